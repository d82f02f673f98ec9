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

// voiceModels maps the engine names exposed on the /ws query string to
// Piper voice identifiers.
var voiceModels = map[string]string{
	"fast":    "en_US-lessac-low",
	"quality": "en_US-lessac-medium",
	"piper":   "en_US-lessac-low",
	"coqui":   "en_US-lessac-medium",
}

func resolveVoice(engine string) string {
	if v, ok := voiceModels[engine]; ok {
		return v
	}
	return voiceModels["fast"]
}

type ttsRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// PiperTTS synthesizes speech via the Piper HTTP sidecar (services/piper).
// The sidecar streams raw PCM as piper produces it, and chunking happens
// on read the same way OpenAITTS does it; the providers.TTS contract never
// distinguishes a provider's own streaming from chunked delivery of a
// single response.
type PiperTTS struct {
	engine string
	url    string
	client *http.Client
}

func NewPiperTTS(piperURL, engine string, poolSize int) *PiperTTS {
	return &PiperTTS{
		engine: engine,
		url:    piperURL + "/synthesize",
		client: providers.NewPooledHTTPClient(poolSize, 30*time.Second),
	}
}

func (p *PiperTTS) Name() string { return "piper-" + p.engine }

func (p *PiperTTS) Stream(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	out := make(chan []byte, 8)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		start := time.Now()

		payload, err := json.Marshal(ttsRequest{Text: text, Voice: resolveVoice(p.engine)})
		if err != nil {
			errc <- fmt.Errorf("tts: marshal request: %w", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
		if err != nil {
			errc <- fmt.Errorf("tts: build request: %w", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			metrics.Errors.WithLabelValues("tts", "http").Inc()
			errc <- fmt.Errorf("tts: piper request: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			metrics.Errors.WithLabelValues("tts", "status").Inc()
			errc <- fmt.Errorf("tts: piper status %d: %s", resp.StatusCode, respBody)
			return
		}

		metrics.StageDuration.WithLabelValues("tts_first_chunk").Observe(time.Since(start).Seconds())

		buf := make([]byte, chunkBytes)
		for {
			n, readErr := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
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
				errc <- fmt.Errorf("tts: read piper response: %w", readErr)
				return
			}
		}
	}()

	return out, errc
}

var _ providers.TTS = (*PiperTTS)(nil)
