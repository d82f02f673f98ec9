package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vox-duplex/voicepipe/internal/providers"
)

// fakeAgent replays a fixed sequence of text chunks.
type fakeAgent struct {
	chunks []string
	err    error
}

func (a *fakeAgent) Name() string { return "fake-agent" }

func (a *fakeAgent) GenerateStream(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	out := make(chan string, len(a.chunks))
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		for _, c := range a.chunks {
			out <- c
		}
		if a.err != nil {
			errc <- a.err
		}
	}()
	return out, errc
}

var _ providers.Agent = (*fakeAgent)(nil)

// fakeTTS records every text it was asked to synthesize and yields one PCM
// chunk per invocation.
type fakeTTS struct {
	invocations []string
	err         error
}

func (f *fakeTTS) Name() string { return "fake-tts" }

func (f *fakeTTS) Stream(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	f.invocations = append(f.invocations, text)
	out := make(chan []byte, 1)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		if f.err != nil {
			errc <- f.err
			return
		}
		out <- []byte{1, 2, 3, 4}
	}()
	return out, errc
}

var _ providers.TTS = (*fakeTTS)(nil)

// TestAgentDriver_SentenceStreaming: chunks "Hi", " there", "! How",
// " are", " you?" split into two sentences, with ai.response.speech.start
// emitted exactly once before the first TTS chunk, and two TTS invocations
// (one per sentence).
func TestAgentDriver_SentenceStreaming(t *testing.T) {
	agentImpl := &fakeAgent{chunks: []string{"Hi", " there", "! How", " are", " you?"}}
	ttsImpl := &fakeTTS{}
	q := newQueue[Event]("agentdriver", "q4")
	d := newAgentDriver(agentImpl, ttsImpl, nil, q, testLogger())

	d.processTurn(context.Background(), Segment{Timestamp: time.Now(), Transcript: "Hello."})

	var types []EventType
	var textDeltas []string
drain:
	for {
		select {
		case ev := <-q.recv():
			types = append(types, ev.Type)
			if ev.Type == EventAIResponseTextDelta {
				textDeltas = append(textDeltas, ev.Content)
			}
		default:
			break drain
		}
	}
	wantDeltas := []string{"Hi there!", " How are you?"}
	if len(textDeltas) != len(wantDeltas) {
		t.Fatalf("text deltas = %v, want %v", textDeltas, wantDeltas)
	}
	for i := range wantDeltas {
		if textDeltas[i] != wantDeltas[i] {
			t.Errorf("delta %d = %q, want %q", i, textDeltas[i], wantDeltas[i])
		}
	}
	if len(ttsImpl.invocations) != 2 {
		t.Fatalf("expected 2 TTS invocations, got %d: %v", len(ttsImpl.invocations), ttsImpl.invocations)
	}

	speechStarts := 0
	firstSpeechStartIdx, firstSpeechDeltaIdx := -1, -1
	for i, ty := range types {
		if ty == EventAIResponseSpeechStart {
			speechStarts++
			if firstSpeechStartIdx == -1 {
				firstSpeechStartIdx = i
			}
		}
		if ty == EventAIResponseSpeechDelta && firstSpeechDeltaIdx == -1 {
			firstSpeechDeltaIdx = i
		}
	}
	if speechStarts != 1 {
		t.Errorf("ai.response.speech.start emitted %d times, want exactly 1", speechStarts)
	}
	if firstSpeechStartIdx == -1 || firstSpeechDeltaIdx == -1 || firstSpeechStartIdx > firstSpeechDeltaIdx {
		t.Errorf("ai.response.speech.start must precede the first speech delta: start@%d delta@%d", firstSpeechStartIdx, firstSpeechDeltaIdx)
	}
}

// TestAgentDriver_ClosesBracketsOnAgentFailure: on agent failure,
// ai.response.text.end and ai.response.speech.end are still emitted so the
// client can recover its UI state.
func TestAgentDriver_ClosesBracketsOnAgentFailure(t *testing.T) {
	agentImpl := &fakeAgent{chunks: nil, err: errors.New("boom")}
	ttsImpl := &fakeTTS{}
	q := newQueue[Event]("agentdriver", "q4")
	d := newAgentDriver(agentImpl, ttsImpl, nil, q, testLogger())

	d.processTurn(context.Background(), Segment{Timestamp: time.Now(), Transcript: "Hello."})

	var sawTextEnd, sawSpeechEnd bool
drain:
	for {
		select {
		case ev := <-q.recv():
			if ev.Type == EventAIResponseTextEnd {
				sawTextEnd = true
			}
			if ev.Type == EventAIResponseSpeechEnd {
				sawSpeechEnd = true
			}
		default:
			break drain
		}
	}
	if !sawTextEnd || !sawSpeechEnd {
		t.Errorf("expected both end brackets closed on failure: text.end=%v speech.end=%v", sawTextEnd, sawSpeechEnd)
	}
}

// TestAgentDriver_TrailingRemainderFlushed ensures a final sentence
// fragment with no boundary character is still emitted and synthesized
// after the agent stream ends.
func TestAgentDriver_TrailingRemainderFlushed(t *testing.T) {
	agentImpl := &fakeAgent{chunks: []string{"no boundary at all"}}
	ttsImpl := &fakeTTS{}
	q := newQueue[Event]("agentdriver", "q4")
	d := newAgentDriver(agentImpl, ttsImpl, nil, q, testLogger())

	d.processTurn(context.Background(), Segment{Timestamp: time.Now(), Transcript: "Hi"})

	if len(ttsImpl.invocations) != 1 || ttsImpl.invocations[0] != "no boundary at all" {
		t.Errorf("expected one TTS call with the full remainder, got %v", ttsImpl.invocations)
	}
}
