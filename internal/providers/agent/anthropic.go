package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vox-duplex/voicepipe/internal/metrics"
	"github.com/vox-duplex/voicepipe/internal/providers"
)

// AnthropicAgent is a direct net/http streaming adapter for the Anthropic
// Messages API, consuming content_block_delta SSE events.
type AnthropicAgent struct {
	apiKey string
	url    string
	model  string
	system string
	client *http.Client
}

func NewAnthropicAgent(apiKey, model, systemPrompt string, poolSize int) *AnthropicAgent {
	if model == "" {
		model = "claude-3-5-sonnet-20240620"
	}
	return &AnthropicAgent{
		apiKey: apiKey,
		url:    "https://api.anthropic.com/v1/messages",
		model:  model,
		system: systemPrompt,
		client: providers.NewPooledHTTPClient(poolSize, 120*time.Second),
	}
}

func (a *AnthropicAgent) Name() string { return "anthropic" }

func (a *AnthropicAgent) GenerateStream(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	out := make(chan string, 16)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		payload := map[string]any{
			"model":      a.model,
			"max_tokens": 1024,
			"stream":     true,
			"messages":   []map[string]string{{"role": "user", "content": prompt}},
		}
		if a.system != "" {
			payload["system"] = a.system
		}
		body, err := json.Marshal(payload)
		if err != nil {
			errc <- fmt.Errorf("agent: marshal anthropic request: %w", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
		if err != nil {
			errc <- fmt.Errorf("agent: build anthropic request: %w", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", a.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")

		resp, err := a.client.Do(req)
		if err != nil {
			metrics.Errors.WithLabelValues("agent", "http").Inc()
			errc <- fmt.Errorf("agent: anthropic request: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			metrics.Errors.WithLabelValues("agent", "status").Inc()
			errc <- fmt.Errorf("agent: anthropic status %d", resp.StatusCode)
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")

			var ev struct {
				Type  string `json:"type"`
				Delta struct {
					Text string `json:"text"`
				} `json:"delta"`
			}
			if json.Unmarshal([]byte(data), &ev) != nil {
				continue
			}
			if ev.Type != "content_block_delta" || ev.Delta.Text == "" {
				continue
			}
			select {
			case out <- ev.Delta.Text:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errc
}

var _ providers.Agent = (*AnthropicAgent)(nil)
