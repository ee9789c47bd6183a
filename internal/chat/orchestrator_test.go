package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/briefly-ai/briefly/internal/log"
	"github.com/briefly-ai/briefly/internal/prompt"
)

// scriptedBackend emits a fixed fragment sequence, optionally failing after
// a prefix. It records whether its context was canceled.
type scriptedBackend struct {
	fragments []Fragment
	failAfter int // emit this many fragments, then fail; -1 = never
	perFrag   time.Duration

	canceled chan struct{} // closed when ctx cancellation is observed
}

func newScriptedBackend(fragments []Fragment) *scriptedBackend {
	return &scriptedBackend{
		fragments: fragments,
		failAfter: -1,
		canceled:  make(chan struct{}),
	}
}

func (b *scriptedBackend) Stream(ctx context.Context, _ prompt.Prompt, emit func(Fragment) error) error {
	for i, f := range b.fragments {
		if b.failAfter >= 0 && i == b.failAfter {
			return errors.New("backend exploded")
		}
		if b.perFrag > 0 {
			select {
			case <-time.After(b.perFrag):
			case <-ctx.Done():
				close(b.canceled)
				return ctx.Err()
			}
		}
		if ctx.Err() != nil {
			close(b.canceled)
			return ctx.Err()
		}
		if err := emit(f); err != nil {
			if ctx.Err() != nil {
				close(b.canceled)
			}
			return err
		}
	}
	return nil
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestGeneratePreservesOrderAndChannels(t *testing.T) {
	defer goleak.VerifyNone(t)

	backend := newScriptedBackend([]Fragment{
		{Thought: true, Text: "thinking "},
		{Thought: true, Text: "harder"},
		{Thought: false, Text: "The answer "},
		{Thought: true, Text: "wait"},
		{Thought: false, Text: "is 42."},
	})
	o := New(backend, 4, log.NewNop())

	events := collect(t, o.Generate(context.Background(), prompt.Prompt{}))

	if events[len(events)-1].Kind != KindDone {
		t.Fatalf("last event = %v, want Done", events[len(events)-1].Kind)
	}

	var answer, reasoning strings.Builder
	for _, ev := range events[:len(events)-1] {
		switch ev.Kind {
		case KindAnswer:
			answer.WriteString(ev.Text)
		case KindReasoning:
			reasoning.WriteString(ev.Text)
		default:
			t.Fatalf("unexpected event kind %v mid-stream", ev.Kind)
		}
	}

	if got := answer.String(); got != "The answer is 42." {
		t.Errorf("answer concatenation = %q", got)
	}
	if got := reasoning.String(); got != "thinking harderwait" {
		t.Errorf("reasoning concatenation = %q", got)
	}

	// Arrival order preserved across channels: reasoning "wait" arrives
	// after the first answer fragment.
	kinds := make([]EventKind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	want := []EventKind{KindReasoning, KindReasoning, KindAnswer, KindReasoning, KindAnswer, KindDone}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event order %v, want %v", kinds, want)
		}
	}
}

func TestGenerateBackendErrorIsTerminal(t *testing.T) {
	defer goleak.VerifyNone(t)

	backend := newScriptedBackend([]Fragment{
		{Text: "partial "},
		{Text: "never sent"},
	})
	backend.failAfter = 1
	o := New(backend, 4, log.NewNop())

	events := collect(t, o.Generate(context.Background(), prompt.Prompt{}))

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (fragment + error): %v", len(events), events)
	}
	if events[0].Kind != KindAnswer || events[0].Text != "partial " {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Kind != KindError {
		t.Errorf("terminal event = %v, want Error", events[1].Kind)
	}
	if events[1].Err == nil {
		t.Error("error event carries no error")
	}
}

func TestGenerateCancellationReachesBackend(t *testing.T) {
	defer goleak.VerifyNone(t)

	backend := newScriptedBackend([]Fragment{
		{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"}, {Text: "e"},
	})
	backend.perFrag = 20 * time.Millisecond
	o := New(backend, 1, log.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	events := o.Generate(ctx, prompt.Prompt{})

	// Read one event, then disconnect.
	<-events
	cancel()

	select {
	case <-backend.canceled:
	case <-time.After(time.Second):
		t.Fatal("backend did not observe cancellation within bound")
	}

	// The channel must close without a terminal event; drain whatever was
	// already buffered before the cancel.
	for ev := range events {
		if ev.Kind == KindDone || ev.Kind == KindError {
			t.Fatalf("terminal event %v emitted after cancellation", ev.Kind)
		}
	}
}

func TestGenerateBackpressureBlocksProducer(t *testing.T) {
	defer goleak.VerifyNone(t)

	fragments := make([]Fragment, 10)
	for i := range fragments {
		fragments[i] = Fragment{Text: "x"}
	}
	backend := newScriptedBackend(fragments)
	o := New(backend, 2, log.NewNop())

	events := o.Generate(context.Background(), prompt.Prompt{})

	// Consume slowly; every fragment must still arrive, none dropped.
	count := 0
	for ev := range events {
		time.Sleep(5 * time.Millisecond)
		if ev.Kind == KindAnswer {
			count++
		}
	}
	if count != 10 {
		t.Errorf("received %d answer fragments, want 10 (no drops under backpressure)", count)
	}
}

func TestGenerateEmptyStream(t *testing.T) {
	defer goleak.VerifyNone(t)

	backend := newScriptedBackend(nil)
	o := New(backend, 4, log.NewNop())

	events := collect(t, o.Generate(context.Background(), prompt.Prompt{}))
	if len(events) != 1 || events[0].Kind != KindDone {
		t.Errorf("events = %v, want single Done", events)
	}
}
