package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/vox-duplex/voicepipe/internal/audio"
	"github.com/vox-duplex/voicepipe/internal/metrics"
	"github.com/vox-duplex/voicepipe/internal/vad"
)

// vadSegmenter resamples, buffers, and segments speech out of audio
// frames. It is the heaviest stage in the pipeline.
type vadSegmenter struct {
	cfg    PipelineConfig
	model  vad.Model
	in     <-chan AudioFrame
	out    *queue[Segment]
	pool   *workerPool
	logger *slog.Logger

	buffer      []int16
	bufferStart time.Time // timestamp of the first frame contributing to the held buffer
}

func newVADSegmenter(cfg PipelineConfig, model vad.Model, in <-chan AudioFrame, out *queue[Segment], pool *workerPool, logger *slog.Logger) *vadSegmenter {
	return &vadSegmenter{cfg: cfg, model: model, in: in, out: out, pool: pool, logger: logger}
}

func (s *vadSegmenter) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-s.in:
			if !ok {
				return
			}
			s.processFrame(ctx, frame)
		}
	}
}

// processFrame runs the per-frame resample/detect/segment procedure. Any
// panic during processing flushes the buffer and is logged, then the stage
// continues reading the next frame.
func (s *vadSegmenter) processFrame(ctx context.Context, frame AudioFrame) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("vadsegmenter: panic during frame processing, buffer flushed", "error", r)
			s.buffer = nil
		}
	}()

	// Step 1: resample off the stage goroutine via the worker pool.
	resampled := runOn(s.pool, func() []byte {
		return audio.Resample(frame.Payload, s.cfg.ReceivedAudioSampleRate, s.cfg.AudioSampleRate)
	})
	newSamples := audio.BytesToInt16(resampled)

	// Step 2: append to the buffer.
	if len(s.buffer) == 0 && len(newSamples) > 0 {
		s.bufferStart = frame.Timestamp
	}
	s.buffer = append(s.buffer, newSamples...)

	// Step 3: not enough to meaningfully run VAD yet.
	if len(s.buffer) < s.cfg.MinSpeechSamples() {
		return
	}

	// Step 4: run VAD over the entire buffer, off the stage goroutine.
	ranges := runOn(s.pool, func() []vad.Range {
		return s.model.Detect(s.buffer, s.cfg.AudioSampleRate, s.cfg.SpeechPadMs)
	})

	// Step 5.
	bufferFull := len(s.buffer) >= s.cfg.MaxBufferSamples()

	// Step 6: segmentation state machine.
	if len(ranges) == 0 {
		if !bufferFull {
			return
		}
		// Slide window: retain the trailing 90% of the buffer.
		keepFrom := len(s.buffer) - (len(s.buffer) * 9 / 10)
		s.buffer = s.buffer[keepFrom:]
		return
	}

	speechSamples := concatRanges(s.buffer, ranges)
	firstSpeechStart := ranges[0].Start
	lastSpeechEnd := ranges[len(ranges)-1].End
	trailingSilence := len(s.buffer) - lastSpeechEnd

	switch {
	case trailingSilence >= s.cfg.MinSilenceSamples():
		// Utterance complete: discard up to the end of speech, keep trailing
		// silence and any future audio already in the buffer.
		ts := s.bufferStart
		s.buffer = s.buffer[lastSpeechEnd:]
		s.bufferStart = frame.Timestamp
		metrics.SpeechSegments.Inc()
		s.emit(ts, speechSamples)

	case bufferFull:
		// Force flush: discard up to the start of speech.
		ts := s.bufferStart
		remaining := s.buffer[firstSpeechStart:]
		if len(remaining) == len(s.buffer) {
			// The whole buffer is speech; clear entirely to guarantee
			// forward progress.
			s.buffer = nil
		} else {
			s.buffer = remaining
		}
		s.bufferStart = frame.Timestamp
		metrics.SpeechSegments.Inc()
		metrics.ForcedFlushes.Inc()
		s.emit(ts, speechSamples)

	default:
		// Still hearing the speaker.
	}
}

func (s *vadSegmenter) emit(ts time.Time, speechSamples []int16) {
	s.out.trySend(Segment{Timestamp: ts, Samples: audio.Int16ToBytes(speechSamples)})
}

func concatRanges(buffer []int16, ranges []vad.Range) []int16 {
	var total int
	for _, r := range ranges {
		total += r.End - r.Start
	}
	out := make([]int16, 0, total)
	for _, r := range ranges {
		out = append(out, buffer[r.Start:r.End]...)
	}
	return out
}
