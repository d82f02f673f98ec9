package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
)

// eventMux consumes q4 and writes each Event to the client channel as a
// JSON text message. Serialization is single-writer, preserving global
// event order; a write failure is terminal.
type eventMux struct {
	channel ClientChannel
	in      <-chan Event
	logger  *slog.Logger
	cancel  context.CancelFunc // triggers pipeline shutdown on write failure
}

func newEventMux(channel ClientChannel, in <-chan Event, logger *slog.Logger, cancel context.CancelFunc) *eventMux {
	return &eventMux{channel: channel, in: in, logger: logger, cancel: cancel}
}

func (m *eventMux) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-m.in:
			if !ok {
				return
			}
			if err := m.write(ctx, ev); err != nil {
				m.logger.Error("eventmux: write failed, shutting down pipeline", "error", err)
				m.cancel()
				return
			}
		}
	}
}

func (m *eventMux) write(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev.toWire())
	if err != nil {
		return err
	}
	return m.channel.WriteText(ctx, data)
}
