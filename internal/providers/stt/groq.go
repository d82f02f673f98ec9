package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vox-duplex/voicepipe/internal/metrics"
	"github.com/vox-duplex/voicepipe/internal/providers"
)

// GroqWhisper is a direct net/http adapter for Groq's OpenAI-compatible
// Whisper endpoint.
type GroqWhisper struct {
	apiKey string
	url    string
	model  string
	client *http.Client
}

func NewGroqWhisper(apiKey, model string, poolSize int) *GroqWhisper {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	return &GroqWhisper{
		apiKey: apiKey,
		url:    "https://api.groq.com/openai/v1/audio/transcriptions",
		model:  model,
		client: providers.NewPooledHTTPClient(poolSize, 30*time.Second),
	}
}

func (g *GroqWhisper) Name() string { return "groq-whisper" }

func (g *GroqWhisper) Stream(ctx context.Context, wavPCM []byte, sampleRate int) (<-chan string, <-chan error) {
	out := make(chan string, 1)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		body, contentType, err := buildMultipartWAV(wavPCM, g.model)
		if err != nil {
			errc <- fmt.Errorf("stt: build request body: %w", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, body)
		if err != nil {
			errc <- fmt.Errorf("stt: build request: %w", err)
			return
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+g.apiKey)

		resp, err := g.client.Do(req)
		if err != nil {
			metrics.Errors.WithLabelValues("stt", "http").Inc()
			errc <- fmt.Errorf("stt: request: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			metrics.Errors.WithLabelValues("stt", "status").Inc()
			errc <- fmt.Errorf("stt: status %d: %s", resp.StatusCode, respBody)
			return
		}

		var result struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			errc <- fmt.Errorf("stt: decode response: %w", err)
			return
		}

		select {
		case out <- result.Text:
		case <-ctx.Done():
		}
	}()

	return out, errc
}

var _ providers.STT = (*GroqWhisper)(nil)
