package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vox-duplex/voicepipe/internal/audio"
	"github.com/vox-duplex/voicepipe/internal/metrics"
	"github.com/vox-duplex/voicepipe/internal/providers"
)

// transcriber streams STT over each Segment from q2, emitting text deltas
// and a final transcript.
type transcriber struct {
	cfg    PipelineConfig
	stt    providers.STT
	in     <-chan Segment
	out    *queue[Segment]
	events *queue[Event]
	logger *slog.Logger
}

func newTranscriber(cfg PipelineConfig, stt providers.STT, in <-chan Segment, out *queue[Segment], events *queue[Event], logger *slog.Logger) *transcriber {
	return &transcriber{cfg: cfg, stt: stt, in: in, out: out, events: events, logger: logger}
}

func (t *transcriber) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case seg, ok := <-t.in:
			if !ok {
				return
			}
			t.processSegment(ctx, seg)
		}
	}
}

func (t *transcriber) processSegment(ctx context.Context, seg Segment) {
	t.events.trySend(Event{Type: EventUserTranscriptStart, Timestamp: seg.Timestamp})

	wavBytes, err := audio.EncodeWAV(seg.Samples, t.cfg.AudioSampleRate)
	if err != nil {
		t.logger.Error("transcriber: wav encode failed, dropping segment", "error", err)
		return
	}

	chunks, errs := t.stt.Stream(ctx, wavBytes, t.cfg.AudioSampleRate)
	var transcript strings.Builder
	failed := false

loop:
	for chunks != nil || errs != nil {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			transcript.WriteString(chunk)
			t.events.trySend(Event{Type: EventUserTranscriptTextDelta, Timestamp: seg.Timestamp, Content: chunk})
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				t.logger.Error("transcriber: dropping segment", "error", fmt.Errorf("%w: %v", ErrTranscribeFailed, err))
				metrics.Errors.WithLabelValues("transcriber", "stt_stream").Inc()
				failed = true
				break loop
			}
		}
	}

	// Always close the transcript.start bracket, even on failure; only
	// forwarding to the AgentDriver is skipped.
	t.events.trySend(Event{Type: EventUserTranscriptEnd, Timestamp: seg.Timestamp})
	if failed {
		return
	}

	seg.Transcript = transcript.String()
	seg.Samples = nil
	t.out.trySend(seg)
}
