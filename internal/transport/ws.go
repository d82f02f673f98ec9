// Package transport adapts a gorilla/websocket connection to
// pipeline.ClientChannel, giving cmd/server a runnable accept layer for
// the pipeline's duplex JSON+binary framing.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vox-duplex/voicepipe/internal/pipeline"
)

// Upgrader is the shared gorilla/websocket upgrader. CheckOrigin is
// permissive; origin policy belongs to whatever fronts this service.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSChannel adapts a *websocket.Conn to pipeline.ClientChannel.
type WSChannel struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewWSChannel wraps an already-upgraded connection.
func NewWSChannel(conn *websocket.Conn) *WSChannel {
	return &WSChannel{conn: conn}
}

// WatchContext closes the underlying connection when ctx is done, which is
// what unblocks a pending ReadMessage call. gorilla/websocket has no
// native context support, so cancellation is plumbed through Close().
func (c *WSChannel) WatchContext(ctx context.Context) {
	go func() {
		<-ctx.Done()
		_ = c.conn.Close()
	}()
}

func (c *WSChannel) ReadMessage(ctx context.Context) (pipeline.MessageType, []byte, error) {
	msgType, data, err := c.conn.ReadMessage()
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", pipeline.ErrChannelClosed, err)
	}
	switch msgType {
	case websocket.TextMessage:
		return pipeline.TextMessage, data, nil
	case websocket.BinaryMessage:
		return pipeline.BinaryMessage, data, nil
	default:
		return 0, nil, fmt.Errorf("transport: unsupported websocket message type %d", msgType)
	}
}

func (c *WSChannel) WriteText(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
