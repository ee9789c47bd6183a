package sse

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewWriterSetsHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	_, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestWriteFrameWireFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatal(err)
	}

	if err := w.WriteFrame(context.Background(), Frame{Type: "answer", Content: "hello"}); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}

	got := rec.Body.String()
	want := "data: {\"type\":\"answer\",\"content\":\"hello\"}\n\n"
	if got != want {
		t.Errorf("wire format = %q, want %q", got, want)
	}
	if !rec.Flushed {
		t.Error("frame was not flushed")
	}
}

func TestWriteFrameEscapesNewlines(t *testing.T) {
	rec := httptest.NewRecorder()
	w, _ := NewWriter(rec)

	if err := w.WriteFrame(context.Background(), Frame{Type: "thought", Content: "line1\nline2"}); err != nil {
		t.Fatal(err)
	}

	// JSON encoding keeps the frame on a single data line.
	body := rec.Body.String()
	if strings.Count(body, "data: ") != 1 {
		t.Errorf("newline in content split the frame: %q", body)
	}
	if !strings.Contains(body, `line1\nline2`) {
		t.Errorf("content not JSON-escaped: %q", body)
	}
}

func TestWriteSentinel(t *testing.T) {
	rec := httptest.NewRecorder()
	w, _ := NewWriter(rec)

	if err := w.WriteSentinel(); err != nil {
		t.Fatal(err)
	}
	if got := rec.Body.String(); got != "data: [DONE]\n\n" {
		t.Errorf("sentinel frame = %q", got)
	}
}

func TestWriteErrorFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	w, _ := NewWriter(rec)

	if err := w.WriteError("backend unavailable"); err != nil {
		t.Fatal(err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"type":"error"`) {
		t.Errorf("error frame missing type: %q", body)
	}
	if !strings.Contains(body, "backend unavailable") {
		t.Errorf("error frame missing message: %q", body)
	}
}

func TestWriteFrameCanceledContext(t *testing.T) {
	rec := httptest.NewRecorder()
	w, _ := NewWriter(rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.WriteFrame(ctx, Frame{Type: "answer", Content: "x"}); err == nil {
		t.Error("WriteFrame() = nil error with canceled context")
	}
	if rec.Body.Len() != 0 {
		t.Errorf("frame written to canceled stream: %q", rec.Body.String())
	}
}
