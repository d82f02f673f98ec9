// Package pipeline implements the five-stage streaming voice pipeline:
// Ingest -> VADSegmenter -> Transcriber -> AgentDriver -> EventMux.
package pipeline

import "time"

// AudioFrame is a single client-sent audio packet, produced by Ingest and
// consumed by VADSegmenter.
type AudioFrame struct {
	Flag      uint16    // opaque to the pipeline, reserved for client metadata
	Timestamp time.Time // derived from the frame's timestamp_ms header field
	Payload   []byte    // little-endian signed-16 PCM at the client sample rate
}

// Segment is an utterance ready for transcription. It is created by
// VADSegmenter, mutated by Transcriber (Samples is cleared after STT, then
// Transcript is set), and consumed by AgentDriver.
type Segment struct {
	Timestamp  time.Time // timestamp of the first frame contributing to the segment
	Samples    []byte    // contiguous signed-16 PCM at the model sample rate
	Transcript string    // filled in by Transcriber
}

// EventType is the tag of the Event sum type.
type EventType string

const (
	EventUserTranscriptStart     EventType = "user.transcript.start"
	EventUserTranscriptTextDelta EventType = "user.transcript.text.delta"
	EventUserTranscriptEnd       EventType = "user.transcript.end"
	EventUserTranscriptText      EventType = "user.transcript.text"
	EventAIResponseTextStart     EventType = "ai.response.text.start"
	EventAIResponseTextDelta     EventType = "ai.response.text.delta"
	EventAIResponseTextEnd       EventType = "ai.response.text.end"
	EventAIResponseSpeechStart   EventType = "ai.response.speech.start"
	EventAIResponseSpeechDelta   EventType = "ai.response.speech.delta"
	EventAIResponseSpeechEnd     EventType = "ai.response.speech.end"
)

// Event is a typed message to the client. Content is omitted from the wire
// encoding when empty (see EventMux and the JSON marshaling in eventmux.go).
type Event struct {
	Type      EventType
	Timestamp time.Time
	Content   string
}

// wireEvent is the JSON shape written to the client: {type, timestamp, content?}.
type wireEvent struct {
	Type      EventType `json:"type"`
	Timestamp float64   `json:"timestamp"`
	Content   string    `json:"content,omitempty"`
}

func (e Event) toWire() wireEvent {
	return wireEvent{
		Type:      e.Type,
		Timestamp: float64(e.Timestamp.UnixNano()) / 1e9,
		Content:   e.Content,
	}
}

// PipelineConfig is immutable, per-connection configuration.
type PipelineConfig struct {
	HeaderBytes             int     // 10
	ReceivedAudioSampleRate int     // client Hz, default 48000
	AudioSampleRate         int     // model Hz, default 16000
	SpeechPadMs             int     // default 100
	MinSilenceMs            int     // default 500
	MinSpeechS              float64 // default 0.5
	MaxSpeechS              float64 // default 20
}

// DefaultPipelineConfig returns the default tuning for 48kHz client audio
// feeding a 16kHz model.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		HeaderBytes:             10,
		ReceivedAudioSampleRate: 48000,
		AudioSampleRate:         16000,
		SpeechPadMs:             100,
		MinSilenceMs:            500,
		MinSpeechS:              0.5,
		MaxSpeechS:              20,
	}
}

// ResampleRatio returns the integer downsample ratio, panicking if the
// configured rates do not divide evenly.
func (c PipelineConfig) ResampleRatio() int {
	if c.ReceivedAudioSampleRate%c.AudioSampleRate != 0 {
		panic("pipeline: received_audio_sample_rate must be an integer multiple of audio_sample_rate")
	}
	return c.ReceivedAudioSampleRate / c.AudioSampleRate
}

// MaxBufferSamples is max_speech_s * audio_sample_rate, the VADSegmenter's
// hard buffer bound.
func (c PipelineConfig) MaxBufferSamples() int {
	return int(c.MaxSpeechS * float64(c.AudioSampleRate))
}

// MinSpeechSamples is min_speech_s * audio_sample_rate.
func (c PipelineConfig) MinSpeechSamples() int {
	return int(c.MinSpeechS * float64(c.AudioSampleRate))
}

// MinSilenceSamples is min_silence_ms * audio_sample_rate / 1000.
func (c PipelineConfig) MinSilenceSamples() int {
	return c.MinSilenceMs * c.AudioSampleRate / 1000
}
