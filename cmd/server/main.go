// Command server is the WebSocket accept layer for the streaming voice
// pipeline: it upgrades connections, builds providers from the
// environment, serves /metrics, and runs one Pipeline per connection.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vox-duplex/voicepipe/internal/env"
	"github.com/vox-duplex/voicepipe/internal/metrics"
	"github.com/vox-duplex/voicepipe/internal/pipeline"
	"github.com/vox-duplex/voicepipe/internal/prompts"
	"github.com/vox-duplex/voicepipe/internal/providers"
	"github.com/vox-duplex/voicepipe/internal/providers/agent"
	"github.com/vox-duplex/voicepipe/internal/providers/stt"
	"github.com/vox-duplex/voicepipe/internal/providers/tts"
	"github.com/vox-duplex/voicepipe/internal/transport"
	"github.com/vox-duplex/voicepipe/internal/vad"
)

// deps holds the shared backend clients built once at startup and reused
// across every connection.
type deps struct {
	cfg         pipeline.PipelineConfig
	sttRouter   *providers.Router[providers.STT]
	agentRouter *providers.Router[providers.Agent]
	ttsRouter   *providers.Router[providers.TTS]
	vadModel    vad.Model
	warmup      *pipeline.WarmUp
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	port := env.Str("VOICEPIPE_PORT", "8000")

	d := deps{
		cfg:         loadPipelineConfig(),
		sttRouter:   initSTT(),
		agentRouter: initAgent(),
		ttsRouter:   initTTS(),
		vadModel:    vad.NewEnergyModel(),
		warmup:      initWarmup(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", d.handleConnect)
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: mux}

	go awaitShutdown(srv)

	slog.Info("voicepipe server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("voicepipe server stopped")
}

func awaitShutdown(srv *http.Server) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// handleConnect upgrades the connection, resolves per-connection engine
// selection from the query params, and runs one Pipeline to completion.
func (d deps) handleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := transport.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	channel := transport.NewWSChannel(conn)

	sttEngine := orDefault(r.URL.Query().Get("stt_engine"), "openai")
	agentEngine := orDefault(r.URL.Query().Get("agent_engine"), "openai")
	ttsEngine := orDefault(r.URL.Query().Get("tts_engine"), "openai")

	sttClient, err := d.sttRouter.Route(sttEngine)
	if err != nil {
		slog.Error("stt route", "error", err)
		_ = conn.Close()
		return
	}
	agentClient, err := d.agentRouter.Route(agentEngine)
	if err != nil {
		slog.Error("agent route", "error", err)
		_ = conn.Close()
		return
	}
	ttsClient, err := d.ttsRouter.Route(ttsEngine)
	if err != nil {
		slog.Error("tts route", "error", err)
		_ = conn.Close()
		return
	}

	sessionID := uuid.NewString()
	logger := slog.Default().With("session_id", sessionID)

	metrics.SessionsTotal.Inc()
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	channel.WatchContext(ctx)

	logger.Info("call started", "stt_engine", sttEngine, "agent_engine", agentEngine, "tts_engine", ttsEngine)

	p, err := pipeline.New(d.cfg, channel, sttClient, agentClient, ttsClient, d.vadModel, d.warmup, logger)
	if err != nil {
		logger.Error("pipeline construction failed", "error", err)
		_ = conn.Close()
		return
	}
	p.Run(ctx)

	logger.Info("call ended")
}

func loadPipelineConfig() pipeline.PipelineConfig {
	cfg := pipeline.DefaultPipelineConfig()
	cfg.ReceivedAudioSampleRate = env.Int("VOICEPIPE_RECEIVED_SAMPLE_RATE", cfg.ReceivedAudioSampleRate)
	cfg.AudioSampleRate = env.Int("VOICEPIPE_AUDIO_SAMPLE_RATE", cfg.AudioSampleRate)
	cfg.SpeechPadMs = env.Int("VOICEPIPE_SPEECH_PAD_MS", cfg.SpeechPadMs)
	cfg.MinSilenceMs = env.Int("VOICEPIPE_MIN_SILENCE_MS", cfg.MinSilenceMs)
	cfg.MinSpeechS = env.Float("VOICEPIPE_MIN_SPEECH_S", cfg.MinSpeechS)
	cfg.MaxSpeechS = env.Float("VOICEPIPE_MAX_SPEECH_S", cfg.MaxSpeechS)
	return cfg
}

func initWarmup() *pipeline.WarmUp {
	opening := env.Str("VOICEPIPE_OPENING_PROMPT", "")
	if env.Str("VOICEPIPE_WARMUP", "false") == "true" && opening == "" {
		opening = prompts.DefaultOpening
	}
	return &pipeline.WarmUp{OpeningPrompt: opening}
}

func initSTT() *providers.Router[providers.STT] {
	poolSize := env.Int("VOICEPIPE_STT_POOL_SIZE", 50)
	backends := map[string]providers.STT{}

	if key := env.Str("OPENAI_API_KEY", ""); key != "" {
		backends["openai"] = stt.NewOpenAIWhisper(key, env.Str("OPENAI_URL", "https://api.openai.com"), env.Str("OPENAI_STT_MODEL", ""), poolSize)
	}
	if key := env.Str("GROQ_API_KEY", ""); key != "" {
		backends["groq"] = stt.NewGroqWhisper(key, env.Str("GROQ_STT_MODEL", ""), poolSize)
	}
	return providers.NewRouter(backends, "openai")
}

func initAgent() *providers.Router[providers.Agent] {
	poolSize := env.Int("VOICEPIPE_AGENT_POOL_SIZE", 50)
	system := prompts.ForSession(env.Str("VOICEPIPE_SYSTEM_PROMPT", ""))
	maxTokens := int64(env.Int("VOICEPIPE_AGENT_MAX_TOKENS", 2048))
	backends := map[string]providers.Agent{}

	if key := env.Str("OPENAI_API_KEY", ""); key != "" {
		backends["openai"] = agent.NewOpenAIAgent("openai", env.Str("OPENAI_URL", "https://api.openai.com")+"/v1/", key, env.Str("OPENAI_AGENT_MODEL", "gpt-4.1-nano"), system, true, maxTokens)
	}
	if ollamaURL := env.Str("OLLAMA_URL", ""); ollamaURL != "" {
		backends["ollama"] = agent.NewOpenAIAgent("ollama", ollamaURL+"/v1/", "ollama", env.Str("OLLAMA_MODEL", "llama3.2:3b"), system, false, maxTokens)
	}
	if key := env.Str("ANTHROPIC_API_KEY", ""); key != "" {
		backends["anthropic"] = agent.NewAnthropicAgent(key, env.Str("ANTHROPIC_MODEL", ""), system, poolSize)
	}
	fallback := "openai"
	if _, ok := backends[fallback]; !ok {
		for name := range backends {
			fallback = name
			break
		}
	}
	return providers.NewRouter(backends, fallback)
}

func initTTS() *providers.Router[providers.TTS] {
	poolSize := env.Int("VOICEPIPE_TTS_POOL_SIZE", 50)
	backends := map[string]providers.TTS{}

	if key := env.Str("OPENAI_API_KEY", ""); key != "" {
		backends["openai"] = tts.NewOpenAITTS(key, env.Str("OPENAI_URL", "https://api.openai.com"), env.Str("OPENAI_TTS_MODEL", ""), env.Str("OPENAI_TTS_VOICE", ""), poolSize)
	}
	if piperURL := env.Str("PIPER_URL", ""); piperURL != "" {
		backends["fast"] = tts.NewPiperTTS(piperURL, "fast", poolSize)
		backends["quality"] = tts.NewPiperTTS(piperURL, "quality", poolSize)
	}
	fallback := "openai"
	if _, ok := backends[fallback]; !ok {
		for name := range backends {
			fallback = name
			break
		}
	}
	return providers.NewRouter(backends, fallback)
}

func orDefault(val, fallback string) string {
	if val != "" {
		return val
	}
	return fallback
}
