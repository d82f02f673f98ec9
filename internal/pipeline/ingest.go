package pipeline

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/vox-duplex/voicepipe/internal/metrics"
)

// ingest demultiplexes incoming channel messages into audio frames and
// control messages. The TTS-playing flag is owned exclusively by this
// stage: written on control messages, read to gate frame ingestion. It
// never crosses a stage boundary.
type ingest struct {
	cfg        PipelineConfig
	channel    ClientChannel
	out        *queue[AudioFrame]
	logger     *slog.Logger
	ttsPlaying bool
}

func newIngest(cfg PipelineConfig, channel ClientChannel, out *queue[AudioFrame], logger *slog.Logger) *ingest {
	return &ingest{cfg: cfg, channel: channel, out: out, logger: logger}
}

func (i *ingest) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgType, data, err := i.channel.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			i.logger.Error("ingest: channel disconnect, triggering shutdown", "error", err)
			return
		}

		switch msgType {
		case BinaryMessage:
			i.handleBinary(data)
		case TextMessage:
			i.handleText(data)
		}
	}
}

func (i *ingest) handleBinary(data []byte) {
	if i.ttsPlaying {
		// The client is playing back assistant audio; suppress barge-in.
		metrics.AudioFramesSuppressed.Inc()
		return
	}
	if len(data) < i.cfg.HeaderBytes {
		i.logger.Warn("ingest: dropping frame", "error", ErrShortHeader, "len", len(data))
		return
	}

	flag := binary.BigEndian.Uint16(data[0:2])
	tsMs := binary.BigEndian.Uint64(data[2:10])
	payload := data[i.cfg.HeaderBytes:]

	metrics.AudioFramesIngested.Inc()
	i.out.trySend(AudioFrame{
		Flag:      flag,
		Timestamp: time.UnixMilli(int64(tsMs)),
		Payload:   payload,
	})
}

func (i *ingest) handleText(data []byte) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		i.logger.Warn("ingest: malformed control JSON, dropping")
		return
	}
	switch msg.Type {
	case "tts_start":
		i.ttsPlaying = true
	case "tts_end":
		i.ttsPlaying = false
	default:
		i.logger.Warn("ingest: unrecognized control message type, ignoring", "raw", string(data))
	}
}
