package pipeline

import "errors"

// Construction-time failures are fatal and surfaced to the accept layer;
// everything else is caught at each stage's outermost loop and logged,
// keeping the pipeline alive.
var (
	ErrShortHeader      = errors.New("pipeline: frame shorter than header_bytes")
	ErrTranscribeFailed = errors.New("pipeline: stt stream failed")
	ErrAgentFailed      = errors.New("pipeline: agent stream failed")
	ErrTTSFailed        = errors.New("pipeline: tts stream failed")
	ErrNilProvider      = errors.New("pipeline: collaborator provider is nil")
	ErrChannelClosed    = errors.New("pipeline: client channel closed")
)
