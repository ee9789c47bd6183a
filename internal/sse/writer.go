// Package sse frames generation events as Server-Sent Events for delivery
// over a long-lived HTTP response.
//
// Each event becomes one discrete "data:" frame carrying a JSON payload;
// the terminal sentinel is the literal frame "[DONE]" so clients can detect
// completion without parsing JSON. Mid-stream errors are surfaced as an
// error-typed frame rather than an HTTP failure, since the status line is
// long gone once streaming has begun.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Sentinel is the terminal frame payload marking normal stream completion.
const Sentinel = "[DONE]"

// Frame is the JSON payload of one SSE data frame.
type Frame struct {
	Type    string `json:"type"` // "thought" | "answer" | "error"
	Content string `json:"content"`
}

// Writer wraps an http.ResponseWriter for SSE streaming.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter creates an SSE writer and sets the streaming headers.
// Fails when the underlying writer cannot flush, since buffered SSE is
// useless to an interactive client.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flusher interface")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteFrame sends one JSON data frame and flushes it to the client.
func (w *Writer) WriteFrame(ctx context.Context, f Frame) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context canceled: %w", ctx.Err())
	default:
	}

	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return w.writeData(string(payload))
}

// WriteSentinel sends the terminal [DONE] frame.
func (w *Writer) WriteSentinel() error {
	return w.writeData(Sentinel)
}

// WriteError sends an error frame. The stream ends after it; no sentinel
// follows a mid-stream error.
func (w *Writer) WriteError(message string) error {
	payload, err := json.Marshal(Frame{Type: "error", Content: message})
	if err != nil {
		return fmt.Errorf("marshal error frame: %w", err)
	}
	return w.writeData(string(payload))
}

// writeData writes one frame in SSE wire format and flushes.
// The payload is JSON or the sentinel, neither of which contains raw
// newlines, so a single data line suffices.
func (w *Writer) writeData(payload string) error {
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	w.flusher.Flush()
	return nil
}
