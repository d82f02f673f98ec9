package pipeline

import "context"

// MessageType distinguishes text (control JSON) from binary (audio) client
// messages, mirroring gorilla/websocket's message type constants without
// depending on that package here.
type MessageType int

const (
	TextMessage   MessageType = 1
	BinaryMessage MessageType = 2
)

// ClientChannel is the only collaborator Ingest and EventMux depend on: a
// duplex message channel to the client. internal/transport provides the
// gorilla/websocket-backed implementation used by cmd/server.
type ClientChannel interface {
	// ReadMessage blocks until a message arrives, ctx is done, or the
	// channel is terminally closed (in which case err wraps ErrChannelClosed).
	ReadMessage(ctx context.Context) (MessageType, []byte, error)
	// WriteText sends a single text message (used by EventMux for Events).
	WriteText(ctx context.Context, data []byte) error
}
