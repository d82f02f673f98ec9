// Package tts provides TTS collaborator adapters.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vox-duplex/voicepipe/internal/metrics"
	"github.com/vox-duplex/voicepipe/internal/providers"
)

// chunkBytes is the read size used to turn a provider's response body into
// discrete PCM deltas; it need not align on sample boundaries, the
// pipeline pads a trailing odd byte itself.
const chunkBytes = 4096

// OpenAITTS synthesizes speech via OpenAI's /v1/audio/speech endpoint with
// response_format "pcm": raw little-endian signed-16 PCM at 24kHz. The
// HTTP response is read and forwarded in fixed-size chunks as it arrives,
// approximating the provider's own internal chunking.
type OpenAITTS struct {
	apiKey string
	url    string
	model  string
	voice  string
	client *http.Client
}

func NewOpenAITTS(apiKey, baseURL, model, voice string, poolSize int) *OpenAITTS {
	if model == "" {
		model = "tts-1"
	}
	if voice == "" {
		voice = "alloy"
	}
	return &OpenAITTS{
		apiKey: apiKey,
		url:    baseURL + "/v1/audio/speech",
		model:  model,
		voice:  voice,
		client: providers.NewPooledHTTPClient(poolSize, 30*time.Second),
	}
}

func (t *OpenAITTS) Name() string { return "openai-tts" }

func (t *OpenAITTS) Stream(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	out := make(chan []byte, 8)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		start := time.Now()

		payload, err := json.Marshal(map[string]any{
			"model":           t.model,
			"voice":           t.voice,
			"input":           text,
			"response_format": "pcm",
		})
		if err != nil {
			errc <- fmt.Errorf("tts: marshal request: %w", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
		if err != nil {
			errc <- fmt.Errorf("tts: build request: %w", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+t.apiKey)

		resp, err := t.client.Do(req)
		if err != nil {
			metrics.Errors.WithLabelValues("tts", "http").Inc()
			errc <- fmt.Errorf("tts: request: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			metrics.Errors.WithLabelValues("tts", "status").Inc()
			errc <- fmt.Errorf("tts: status %d: %s", resp.StatusCode, respBody)
			return
		}

		buf := make([]byte, chunkBytes)
		first := true
		for {
			n, readErr := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				if first {
					metrics.StageDuration.WithLabelValues("tts_first_chunk").Observe(time.Since(start).Seconds())
					first = false
				}
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if readErr == io.EOF {
				return
			}
			if readErr != nil {
				errc <- fmt.Errorf("tts: read response: %w", readErr)
				return
			}
		}
	}()

	return out, errc
}

var _ providers.TTS = (*OpenAITTS)(nil)
