package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/vox-duplex/voicepipe/internal/audio"
	"github.com/vox-duplex/voicepipe/internal/metrics"
	"github.com/vox-duplex/voicepipe/internal/providers"
)

// agentDriver consumes transcribed Segments and turns them into streamed
// assistant replies, interleaving text and audio on sentence boundaries.
// A single stage instance serializes all deltas for one turn; there is no
// parallelism within a turn.
type agentDriver struct {
	agent  providers.Agent
	tts    providers.TTS
	in     <-chan Segment
	events *queue[Event]
	logger *slog.Logger
}

func newAgentDriver(agent providers.Agent, tts providers.TTS, in <-chan Segment, events *queue[Event], logger *slog.Logger) *agentDriver {
	return &agentDriver{agent: agent, tts: tts, in: in, events: events, logger: logger}
}

func (d *agentDriver) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case seg, ok := <-d.in:
			if !ok {
				return
			}
			d.processTurn(ctx, seg)
		}
	}
}

func (d *agentDriver) processTurn(ctx context.Context, seg Segment) {
	d.events.trySend(Event{Type: EventUserTranscriptText, Timestamp: seg.Timestamp, Content: seg.Transcript})

	textStartEmitted := false
	speechStartEmitted := false

	// Whatever happens below, always close both brackets so the client
	// can recover its UI state.
	defer func() {
		d.events.trySend(Event{Type: EventAIResponseTextEnd, Timestamp: seg.Timestamp})
		d.events.trySend(Event{Type: EventAIResponseSpeechEnd, Timestamp: seg.Timestamp})
	}()

	chunks, errs := d.agent.GenerateStream(ctx, seg.Transcript)
	var sb sentenceBuffer

	emitSentence := func(complete string) {
		if !speechStartEmitted {
			d.events.trySend(Event{Type: EventAIResponseSpeechStart, Timestamp: seg.Timestamp})
			speechStartEmitted = true
		}
		d.events.trySend(Event{Type: EventAIResponseTextDelta, Timestamp: seg.Timestamp, Content: complete})
		d.streamTTS(ctx, seg.Timestamp, complete)
	}

consume:
	for chunks != nil || errs != nil {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if !textStartEmitted {
				d.events.trySend(Event{Type: EventAIResponseTextStart, Timestamp: seg.Timestamp})
				textStartEmitted = true
			}
			if complete := sb.Add(c); complete != "" {
				emitSentence(complete)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				d.logger.Error("agentdriver: aborting turn", "error", fmt.Errorf("%w: %v", ErrAgentFailed, err))
				metrics.Errors.WithLabelValues("agentdriver", "agent_stream").Inc()
				break consume
			}
		}
	}

	if !textStartEmitted {
		d.events.trySend(Event{Type: EventAIResponseTextStart, Timestamp: seg.Timestamp})
	}
	if remainder := sb.Flush(); remainder != "" {
		if !speechStartEmitted {
			d.events.trySend(Event{Type: EventAIResponseSpeechStart, Timestamp: seg.Timestamp})
		}
		d.events.trySend(Event{Type: EventAIResponseTextDelta, Timestamp: seg.Timestamp, Content: remainder})
		d.streamTTS(ctx, seg.Timestamp, remainder)
	}
}

func (d *agentDriver) streamTTS(ctx context.Context, ts time.Time, text string) {
	metrics.TTSInvocations.Inc()
	chunks, errs := d.tts.Stream(ctx, text)
	for chunks != nil || errs != nil {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			padded := audio.PadToEvenBytes(chunk)
			b64 := base64.StdEncoding.EncodeToString(padded)
			d.events.trySend(Event{Type: EventAIResponseSpeechDelta, Timestamp: ts, Content: b64})
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				d.logger.Error("agentdriver: aborting synthesis", "error", fmt.Errorf("%w: %v", ErrTTSFailed, err))
				metrics.Errors.WithLabelValues("agentdriver", "tts_stream").Inc()
				return
			}
		}
	}
}
