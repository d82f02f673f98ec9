package pipeline

import (
	"encoding/binary"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildFrame(flag uint16, tsMs uint64, payload []byte) []byte {
	buf := make([]byte, 10+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], flag)
	binary.BigEndian.PutUint64(buf[2:10], tsMs)
	copy(buf[10:], payload)
	return buf
}

// TestIngest_HeaderParsing: the ingest stage produces an AudioFrame with
// identical fields for a well-formed header.
func TestIngest_HeaderParsing(t *testing.T) {
	cfg := DefaultPipelineConfig()
	q := newQueue[AudioFrame]("ingest", "q1")
	ing := newIngest(cfg, nil, q, testLogger())

	payload := []byte{1, 2, 3, 4}
	ing.handleBinary(buildFrame(42, 1_700_000_000_000, payload))

	frame := <-q.recv()
	if frame.Flag != 42 {
		t.Errorf("Flag = %d, want 42", frame.Flag)
	}
	wantTS := time.UnixMilli(1_700_000_000_000)
	if !frame.Timestamp.Equal(wantTS) {
		t.Errorf("Timestamp = %v, want %v", frame.Timestamp, wantTS)
	}
	if string(frame.Payload) != string(payload) {
		t.Errorf("Payload = %v, want %v", frame.Payload, payload)
	}
}

// TestIngest_ShortHeaderRejected: payloads shorter than header_bytes never
// produce a frame.
func TestIngest_ShortHeaderRejected(t *testing.T) {
	cfg := DefaultPipelineConfig()
	q := newQueue[AudioFrame]("ingest", "q1")
	ing := newIngest(cfg, nil, q, testLogger())

	ing.handleBinary([]byte{1, 2, 3, 4, 5}) // 5 bytes, < header_bytes (10)

	select {
	case frame := <-q.recv():
		t.Fatalf("expected no frame enqueued, got %+v", frame)
	default:
	}
}

// TestIngest_BargeInSuppression: frames between tts_start and tts_end are
// silently dropped.
func TestIngest_BargeInSuppression(t *testing.T) {
	cfg := DefaultPipelineConfig()
	q := newQueue[AudioFrame]("ingest", "q1")
	ing := newIngest(cfg, nil, q, testLogger())

	ing.handleText([]byte(`{"type":"tts_start"}`))
	ing.handleBinary(buildFrame(0, 0, []byte{1, 2}))
	ing.handleBinary(buildFrame(0, 0, []byte{3, 4}))
	ing.handleText([]byte(`{"type":"tts_end"}`))
	ing.handleBinary(buildFrame(0, 0, []byte{5, 6}))

	frame := <-q.recv()
	if string(frame.Payload) != string([]byte{5, 6}) {
		t.Fatalf("expected only the post-tts_end frame to pass through, got %+v", frame)
	}
	select {
	case extra := <-q.recv():
		t.Fatalf("expected exactly one frame, got extra %+v", extra)
	default:
	}
}

func TestIngest_MalformedJSONDropped(t *testing.T) {
	cfg := DefaultPipelineConfig()
	q := newQueue[AudioFrame]("ingest", "q1")
	ing := newIngest(cfg, nil, q, testLogger())

	ing.handleText([]byte(`not json`))
	if ing.ttsPlaying {
		t.Error("malformed JSON must not change ttsPlaying state")
	}
}

func TestIngest_UnknownControlTypeIgnored(t *testing.T) {
	cfg := DefaultPipelineConfig()
	q := newQueue[AudioFrame]("ingest", "q1")
	ing := newIngest(cfg, nil, q, testLogger())

	ing.handleText([]byte(`{"type":"something_else"}`))
	if ing.ttsPlaying {
		t.Error("unknown control type must not set ttsPlaying")
	}
}
