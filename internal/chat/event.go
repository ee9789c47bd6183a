// Package chat drives the incremental generation call and classifies model
// output into a reasoning trace and a final answer, emitted as an ordered
// event stream.
package chat

import "errors"

// ErrUpstreamUnavailable indicates the generation backend could not be
// reached or failed mid-stream.
var ErrUpstreamUnavailable = errors.New("generation backend unavailable")

// EventKind discriminates the Event union.
type EventKind int

const (
	// KindReasoning carries a fragment of the model's reasoning trace.
	KindReasoning EventKind = iota

	// KindAnswer carries a fragment of the final answer text.
	KindAnswer

	// KindError is terminal: the backend failed mid-stream. No events
	// follow it.
	KindError

	// KindDone is terminal: the stream completed normally.
	KindDone
)

// String implements fmt.Stringer for log output.
func (k EventKind) String() string {
	switch k {
	case KindReasoning:
		return "reasoning"
	case KindAnswer:
		return "answer"
	case KindError:
		return "error"
	case KindDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event is one element of a generation stream: a closed tagged union over
// reasoning fragments, answer fragments, a terminal error and a terminal
// done marker. Text is set for Reasoning/Answer, Err for Error.
type Event struct {
	Kind EventKind
	Text string
	Err  error
}

// Fragment is one tagged piece of raw backend output, before it is wrapped
// into an Event.
type Fragment struct {
	Thought bool
	Text    string
}
