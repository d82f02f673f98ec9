package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/vox-duplex/voicepipe/internal/vad"
)

func TestPipeline_NilCollaboratorRejected(t *testing.T) {
	_, err := New(DefaultPipelineConfig(), newFakeChannel(), nil, &fakeAgent{}, &fakeTTS{}, vad.NewEnergyModel(), nil, testLogger())
	if !errors.Is(err, ErrNilProvider) {
		t.Fatalf("err = %v, want ErrNilProvider", err)
	}
}

// TestPipeline_WarmUpSpeaksFirst runs the whole pipeline against fakes: a
// seeded opening prompt produces a full assistant turn on the client
// channel without any client audio.
func TestPipeline_WarmUpSpeaksFirst(t *testing.T) {
	ch := newFakeChannel()
	agentImpl := &fakeAgent{chunks: []string{"Hello!", " Ready when you are."}}
	p, err := New(DefaultPipelineConfig(), ch, &fakeSTT{}, agentImpl, &fakeTTS{}, vad.NewEnergyModel(),
		&WarmUp{OpeningPrompt: "greet the caller"}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() { p.Run(ctx); close(done) }()

	deadline := time.After(5 * time.Second)
	var types []string
	for {
		select {
		case data := <-ch.written:
			var ev struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(data, &ev); err != nil {
				t.Fatalf("unmarshal event: %v", err)
			}
			types = append(types, ev.Type)
			if ev.Type == string(EventAIResponseSpeechEnd) {
				cancel()
				<-done
				assertWarmUpTurn(t, types)
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for the assistant turn, saw %v", types)
		}
	}
}

func assertWarmUpTurn(t *testing.T, types []string) {
	t.Helper()
	want := map[string]bool{
		string(EventUserTranscriptText):    false,
		string(EventAIResponseTextStart):   false,
		string(EventAIResponseTextDelta):   false,
		string(EventAIResponseSpeechStart): false,
		string(EventAIResponseSpeechDelta): false,
		string(EventAIResponseTextEnd):     false,
		string(EventAIResponseSpeechEnd):   false,
	}
	for _, ty := range types {
		if _, ok := want[ty]; ok {
			want[ty] = true
		}
	}
	for ty, seen := range want {
		if !seen {
			t.Errorf("expected event %s in the warm-up turn, saw %v", ty, types)
		}
	}
}

// TestPipeline_ChannelDisconnectShutsDown: when the client channel
// terminates the Ingest stage, every other stage follows and Run returns.
func TestPipeline_ChannelDisconnectShutsDown(t *testing.T) {
	ch := newFakeChannel()
	p, err := New(DefaultPipelineConfig(), ch, &fakeSTT{}, &fakeAgent{}, &fakeTTS{}, vad.NewEnergyModel(), nil, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { p.Run(ctx); close(done) }()

	// fakeChannel.ReadMessage unblocks with an error once ctx is done,
	// which is how a real disconnect surfaces through the transport.
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the channel disconnected")
	}
}
