package providers

import (
	"net/http"
	"time"
)

// NewPooledHTTPClient creates an http.Client with connection pooling and a
// tuned transport. All HTTP-based provider adapters in stt/, tts/, and
// agent/ share this.
func NewPooledHTTPClient(poolSize int, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:          poolSize,
			MaxIdleConnsPerHost:   poolSize,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}
