package testutil

import (
	"bufio"
	"encoding/json"
	"strings"
	"testing"

	"github.com/briefly-ai/briefly/internal/sse"
)

// Stream is a parsed SSE response body.
type Stream struct {
	Frames []sse.Frame
	Done   bool // terminating [DONE] sentinel seen
}

// ParseStream parses an SSE body in the chat wire protocol: each event is a
// single "data:" line holding either a JSON frame or the [DONE] sentinel.
// Nothing may follow the sentinel.
func ParseStream(t *testing.T, body string) Stream {
	t.Helper()

	var stream Stream
	scanner := bufio.NewScanner(strings.NewReader(body))
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			t.Fatalf("line %d: unexpected SSE line %q", lineNum, line)
		}

		if stream.Done {
			t.Fatalf("line %d: event after [DONE] sentinel: %q", lineNum, line)
		}
		if payload == sse.Sentinel {
			stream.Done = true
			continue
		}

		var frame sse.Frame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			t.Fatalf("line %d: invalid frame JSON %q: %v", lineNum, payload, err)
		}
		stream.Frames = append(stream.Frames, frame)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanning SSE body: %v", err)
	}

	return stream
}

// Text concatenates the content of all frames of the given type, in order.
func (s Stream) Text(frameType string) string {
	var b strings.Builder
	for _, f := range s.Frames {
		if f.Type == frameType {
			b.WriteString(f.Content)
		}
	}
	return b.String()
}
