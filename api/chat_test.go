package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briefly-ai/briefly/internal/chat"
	"github.com/briefly-ai/briefly/internal/embed"
	"github.com/briefly-ai/briefly/internal/index"
	"github.com/briefly-ai/briefly/internal/log"
	"github.com/briefly-ai/briefly/internal/prompt"
	"github.com/briefly-ai/briefly/internal/refresh"
	"github.com/briefly-ai/briefly/internal/testutil"
)

// stubRetriever returns scripted hits or a scripted error.
type stubRetriever struct {
	hits []index.Hit
	err  error

	queries []string
}

func (s *stubRetriever) Retrieve(_ context.Context, query string) ([]index.Hit, error) {
	s.queries = append(s.queries, query)
	return s.hits, s.err
}

// stubRefresher reports a fixed admission decision.
type stubRefresher struct {
	accept bool
	status refresh.Status

	triggers int
}

func (s *stubRefresher) Trigger() (bool, refresh.Status) {
	s.triggers++
	return s.accept, s.status
}

func (s *stubRefresher) Status() refresh.Status { return s.status }

// stubSnapshots serves a fixed snapshot.
type stubSnapshots struct {
	snap *index.Snapshot
}

func (s *stubSnapshots) Active() *index.Snapshot { return s.snap }

// newTestServer builds a server around the given collaborators, filling the
// rest with working stubs.
func newTestServer(t *testing.T, cfg ServerConfig) http.Handler {
	t.Helper()
	if cfg.Retriever == nil {
		cfg.Retriever = &stubRetriever{}
	}
	if cfg.Builder == nil {
		cfg.Builder = prompt.NewBuilder(0)
	}
	if cfg.Generator == nil {
		cfg.Generator = chat.New(&testutil.Backend{}, 0, log.NewNop())
	}
	if cfg.Refresher == nil {
		cfg.Refresher = &stubRefresher{accept: true}
	}
	if cfg.Snapshots == nil {
		cfg.Snapshots = &stubSnapshots{}
	}
	cfg.Logger = log.NewNop()

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	return srv.Handler()
}

func postJSON(handler http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestChatStreamsThoughtAndAnswerFrames(t *testing.T) {
	backend := &testutil.Backend{
		Fragments: []chat.Fragment{
			{Thought: true, Text: "Scanning today's headlines."},
			{Text: "Markets "},
			{Text: "closed higher."},
		},
	}
	handler := newTestServer(t, ServerConfig{
		Retriever: &stubRetriever{hits: []index.Hit{
			{Chunk: index.Chunk{Text: "Sensex gained 500 points on Friday."}, Score: 0.9},
		}},
		Generator: chat.New(backend, 0, log.NewNop()),
	})

	rec := postJSON(handler, "/chat", `{"message": "How did markets do?"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	stream := testutil.ParseStream(t, rec.Body.String())
	assert.True(t, stream.Done, "stream must end with the [DONE] sentinel")
	assert.Equal(t, "Scanning today's headlines.", stream.Text("thought"))
	assert.Equal(t, "Markets closed higher.", stream.Text("answer"))

	// Retrieved context must have reached the prompt.
	prompts := backend.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0].System, "Sensex gained 500 points")
}

func TestChatPassesHistoryToPrompt(t *testing.T) {
	backend := &testutil.Backend{Fragments: []chat.Fragment{{Text: "ok"}}}
	handler := newTestServer(t, ServerConfig{
		Generator: chat.New(backend, 0, log.NewNop()),
	})

	rec := postJSON(handler, "/chat", `{
		"message": "And tomorrow?",
		"history": [
			{"role": "user", "content": "What's the weather?"},
			{"role": "ai", "content": "Sunny in Kolkata."}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	prompts := backend.Prompts()
	require.Len(t, prompts, 1)
	msgs := prompts[0].Messages
	require.Len(t, msgs, 3) // two history turns plus the question
	assert.Equal(t, prompt.RoleUser, msgs[0].Role)
	assert.Equal(t, prompt.RoleAssistant, msgs[1].Role)
	assert.Contains(t, msgs[2].Content, "And tomorrow?")
}

func TestChatRejectsBadRequests(t *testing.T) {
	handler := newTestServer(t, ServerConfig{})

	tests := []struct {
		name string
		body string
		code string
	}{
		{"invalid json", `{"message": `, "invalid_request"},
		{"missing message", `{"history": []}`, "missing_message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(handler, "/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.code)
		})
	}
}

func TestChatRetrievalOutageIsBadGateway(t *testing.T) {
	handler := newTestServer(t, ServerConfig{
		Retriever: &stubRetriever{err: embed.ErrUpstreamUnavailable},
	})

	rec := postJSON(handler, "/chat", `{"message": "anything"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "upstream_unavailable")
}

func TestChatGenerationFailureEndsWithErrorFrame(t *testing.T) {
	backend := &testutil.Backend{
		Fragments: []chat.Fragment{{Text: "partial "}},
		Err:       chat.ErrUpstreamUnavailable,
	}
	handler := newTestServer(t, ServerConfig{
		Generator: chat.New(backend, 0, log.NewNop()),
	})

	rec := postJSON(handler, "/chat", `{"message": "anything"}`)

	require.Equal(t, http.StatusOK, rec.Code) // headers were already sent
	stream := testutil.ParseStream(t, rec.Body.String())
	assert.False(t, stream.Done, "failed stream must not emit [DONE]")
	assert.Equal(t, "partial ", stream.Text("answer"))
	require.NotEmpty(t, stream.Frames)
	assert.Equal(t, "error", stream.Frames[len(stream.Frames)-1].Type)
}
