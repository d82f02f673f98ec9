// Package metrics wires prometheus instrumentation for the five pipeline
// stages and the four bounded inter-stage queues.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicepipe_sessions_active",
		Help: "Currently active pipeline sessions",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicepipe_sessions_total",
		Help: "Total pipeline sessions started",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voicepipe_stage_duration_seconds",
		Help:    "Per-stage processing latency",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0},
	}, []string{"stage"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voicepipe_queue_depth",
		Help: "Current number of items buffered in an inter-stage queue",
	}, []string{"queue"})

	QueueDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicepipe_queue_drops_total",
		Help: "Items dropped because a queue was full (drop-newest policy)",
	}, []string{"queue"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicepipe_errors_total",
		Help: "Error counts by stage and error type",
	}, []string{"stage", "error_type"})

	AudioFramesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicepipe_audio_frames_ingested_total",
		Help: "Audio frames accepted by Ingest",
	})

	AudioFramesSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicepipe_audio_frames_suppressed_total",
		Help: "Audio frames dropped because the TTS-playing flag was set",
	})

	SpeechSegments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicepipe_speech_segments_total",
		Help: "Speech segments emitted by VADSegmenter",
	})

	ForcedFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicepipe_forced_flushes_total",
		Help: "Segments emitted via forced flush at the buffer cap",
	})

	TTSInvocations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicepipe_tts_invocations_total",
		Help: "TTS stream invocations triggered by sentence boundaries",
	})
)
