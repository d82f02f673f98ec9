package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vox-duplex/voicepipe/internal/providers"
	"github.com/vox-duplex/voicepipe/internal/vad"
)

// WarmUp configures the optional synthetic opening turn seeded into q3 at
// start so the assistant speaks first. Disabled unless OpeningPrompt is
// non-empty.
type WarmUp struct {
	OpeningPrompt string
}

// Pipeline wires the five stages together and owns their lifetime.
type Pipeline struct {
	cfg      PipelineConfig
	channel  ClientChannel
	stt      providers.STT
	agent    providers.Agent
	tts      providers.TTS
	vadModel vad.Model
	logger   *slog.Logger
	warmup   *WarmUp

	q1 *queue[AudioFrame]
	q2 *queue[Segment]
	q3 *queue[Segment]
	q4 *queue[Event]
}

// New constructs a Pipeline for one client connection. Missing collaborators
// are a construction-time failure, surfaced to the accept layer so it can
// decline the connection.
func New(cfg PipelineConfig, channel ClientChannel, stt providers.STT, agent providers.Agent, tts providers.TTS, model vad.Model, warmup *WarmUp, logger *slog.Logger) (*Pipeline, error) {
	if channel == nil || stt == nil || agent == nil || tts == nil || model == nil {
		return nil, ErrNilProvider
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg: cfg, channel: channel, stt: stt, agent: agent, tts: tts, vadModel: model, warmup: warmup, logger: logger,
		q1: newQueue[AudioFrame]("ingest", "q1"),
		q2: newQueue[Segment]("vadsegmenter", "q2"),
		q3: newQueue[Segment]("transcriber", "q3"),
		q4: newQueue[Event]("agentdriver", "q4"),
	}, nil
}

// Run spawns all five stages and blocks until the pipeline terminates.
// Stages are joined first-completed-wins: when any one exits (normally, by
// error, or via cancellation) the rest are cancelled, the queues drained,
// and Run returns.
func (p *Pipeline) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := newWorkerPool(2)

	ing := newIngest(p.cfg, p.channel, p.q1, p.logger)
	seg := newVADSegmenter(p.cfg, p.vadModel, p.q1.recv(), p.q2, pool, p.logger)
	tr := newTranscriber(p.cfg, p.stt, p.q2.recv(), p.q3, p.q4, p.logger)
	agt := newAgentDriver(p.agent, p.tts, p.q3.recv(), p.q4, p.logger)
	mux := newEventMux(p.channel, p.q4.recv(), p.logger, cancel)

	if p.warmup != nil && p.warmup.OpeningPrompt != "" {
		p.q3.trySend(Segment{Timestamp: time.Now(), Transcript: p.warmup.OpeningPrompt})
	}

	var wg sync.WaitGroup
	stages := []func(context.Context){ing.run, seg.run, tr.run, agt.run, mux.run}
	wg.Add(len(stages))
	for _, stage := range stages {
		go func(run func(context.Context)) {
			defer wg.Done()
			defer cancel() // first stage to exit triggers shutdown of the rest
			run(runCtx)
		}(stage)
	}

	<-runCtx.Done()
	wg.Wait()
	p.drain()
}

// drain closes and empties all queues once every stage has exited, so any
// items abandoned mid-flight are released before Run returns.
func (p *Pipeline) drain() {
	p.q1.close()
	p.q2.close()
	p.q3.close()
	p.q4.close()
	drainQueue(p.q1.recv())
	drainQueue(p.q2.recv())
	drainQueue(p.q3.recv())
	drainQueue(p.q4.recv())
}

func drainQueue[T any](ch <-chan T) {
	for range ch {
	}
}
