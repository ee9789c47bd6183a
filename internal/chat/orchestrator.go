package chat

import (
	"context"

	"github.com/briefly-ai/briefly/internal/log"
	"github.com/briefly-ai/briefly/internal/prompt"
)

// Backend is the incremental generation collaborator. Stream opens one call
// for the prompt and invokes emit for every output fragment in arrival
// order; it returns when the stream ends, emit returns an error, or ctx is
// done. Implementations must stop the upstream call promptly on
// cancellation.
type Backend interface {
	Stream(ctx context.Context, p prompt.Prompt, emit func(Fragment) error) error
}

// DefaultBufferSize is the event channel capacity. A slow consumer fills
// the buffer and then blocks the producer; events are never dropped.
const DefaultBufferSize = 32

// Orchestrator turns one backend call into an ordered Event stream.
type Orchestrator struct {
	backend Backend
	buffer  int
	logger  log.Logger
}

// New creates an Orchestrator. buffer <= 0 falls back to DefaultBufferSize.
func New(backend Backend, buffer int, logger log.Logger) *Orchestrator {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Orchestrator{backend: backend, buffer: buffer, logger: logger}
}

// Generate opens one incremental backend call and returns its event stream.
//
// Fragments are forwarded in arrival order with no reordering or batching
// across channels, so concatenating all Answer texts reproduces the final
// answer exactly, and likewise for Reasoning. The stream ends with exactly
// one terminal event: Done on success, Error on a mid-stream backend
// failure (never both, no retry inside an open stream). When ctx is
// canceled the backend call is aborted and the channel closes without a
// terminal event, since nobody is reading anymore.
//
// The channel is closed when the stream ends. Sends block once the buffer
// is full; backpressure is the contract, not dropping.
func (o *Orchestrator) Generate(ctx context.Context, p prompt.Prompt) <-chan Event {
	events := make(chan Event, o.buffer)

	go func() {
		defer close(events)

		send := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		err := o.backend.Stream(ctx, p, func(f Fragment) error {
			ev := Event{Kind: KindAnswer, Text: f.Text}
			if f.Thought {
				ev.Kind = KindReasoning
			}
			if !send(ev) {
				return ctx.Err()
			}
			return nil
		})

		switch {
		case ctx.Err() != nil:
			// Cancellation is not an error; just stop emitting.
			o.logger.Debug("generation canceled", "cause", context.Cause(ctx))
		case err != nil:
			o.logger.Error("generation stream failed", "error", err)
			send(Event{Kind: KindError, Err: err})
		default:
			send(Event{Kind: KindDone})
		}
	}()

	return events
}
