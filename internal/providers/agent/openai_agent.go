// Package agent provides Agent collaborator adapters. Only the
// streaming-text contract is wired here; tool wiring belongs to the
// deployment.
package agent

import (
	"context"
	"fmt"

	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/nlpodyssey/openai-agents-go/modelsettings"
	"github.com/openai/openai-go/v2/packages/param"

	"github.com/vox-duplex/voicepipe/internal/providers"
)

// OpenAIAgent drives a single-turn openai-agents-go Runner against an
// OpenAI-compatible chat endpoint. Ollama and other OpenAI-compatible
// endpoints are reached through the same provider with a different
// BaseURL.
type OpenAIAgent struct {
	name      string
	provider  agents.ModelProvider
	model     string
	system    string
	maxTokens int64
}

// NewOpenAIAgent builds an adapter for the named engine ("openai",
// "anthropic", "ollama", ...) pointed at baseURL with the given API key.
func NewOpenAIAgent(name, baseURL, apiKey, model, systemPrompt string, useResponses bool, maxTokens int64) *OpenAIAgent {
	provider := agents.NewOpenAIProvider(agents.OpenAIProviderParams{
		BaseURL:      param.NewOpt(baseURL),
		APIKey:       param.NewOpt(apiKey),
		UseResponses: param.NewOpt(useResponses),
	})
	return &OpenAIAgent{name: name, provider: provider, model: model, system: systemPrompt, maxTokens: maxTokens}
}

func (a *OpenAIAgent) Name() string { return a.name }

// GenerateStream runs a single-turn agent and forwards text deltas as they
// arrive, closing both channels when the run completes.
func (a *OpenAIAgent) GenerateStream(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	out := make(chan string, 16)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		def := agents.New("assistant").
			WithInstructions(a.system).
			WithModel(a.model).
			WithModelSettings(modelsettings.ModelSettings{
				MaxTokens: param.NewOpt(a.maxTokens),
			})

		runner := agents.Runner{Config: agents.RunConfig{
			ModelProvider:   a.provider,
			MaxTurns:        1,
			TracingDisabled: true,
		}}

		events, runErrc, err := runner.RunStreamedChan(ctx, def, prompt)
		if err != nil {
			errc <- fmt.Errorf("agent: stream start: %w", err)
			return
		}

		for ev := range events {
			raw, ok := ev.(agents.RawResponsesStreamEvent)
			if !ok {
				continue
			}
			if raw.Data.Type != "response.output_text.delta" {
				continue
			}
			select {
			case out <- raw.Data.Delta:
			case <-ctx.Done():
				return
			}
		}

		if runErr := <-runErrc; runErr != nil {
			errc <- fmt.Errorf("agent: stream: %w", runErr)
		}
	}()

	return out, errc
}

var _ providers.Agent = (*OpenAIAgent)(nil)
