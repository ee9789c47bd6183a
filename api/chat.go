package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/briefly-ai/briefly/internal/chat"
	"github.com/briefly-ai/briefly/internal/embed"
	"github.com/briefly-ai/briefly/internal/index"
	"github.com/briefly-ai/briefly/internal/log"
	"github.com/briefly-ai/briefly/internal/prompt"
	"github.com/briefly-ai/briefly/internal/sse"
)

// Frame type values on the chat wire.
const (
	frameThought = "thought"
	frameAnswer  = "answer"
)

// Retriever finds context passages for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]index.Hit, error)
}

// Generator turns a prompt into a stream of reasoning and answer events.
type Generator interface {
	Generate(ctx context.Context, p prompt.Prompt) <-chan chat.Event
}

// ChatHandler handles the streaming chat endpoint.
//
// Endpoint:
//   - POST /chat - streaming chat (SSE)
//
// Request body: {"message": "...", "history": [{"role": "...", "content": "..."}]}
// Response: SSE stream of {"type": "thought"|"answer", "content": "..."}
// frames, terminated by the [DONE] sentinel on success.
type ChatHandler struct {
	retriever Retriever
	builder   *prompt.Builder
	generator Generator
	logger    log.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(retriever Retriever, builder *prompt.Builder, generator Generator, logger log.Logger) *ChatHandler {
	return &ChatHandler{
		retriever: retriever,
		builder:   builder,
		generator: generator,
		logger:    logger,
	}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", h.handleChat)
}

// chatRequest is the POST /chat body.
type chatRequest struct {
	Message string           `json:"message"`
	History []prompt.Message `json:"history"`
}

func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "missing_message", "message is required", h.logger)
		return
	}

	ctx := r.Context()
	requestID := requestIDFromContext(ctx)

	// Retrieval happens before any SSE bytes go out, so its failures can
	// still be reported with a proper status code.
	hits, err := h.retriever.Retrieve(ctx, req.Message)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		h.logger.Error("retrieval failed", "error", err, "request_id", requestID)
		if errors.Is(err, embed.ErrUpstreamUnavailable) {
			writeError(w, http.StatusBadGateway, "upstream_unavailable", "embedding provider unavailable", h.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "retrieval_failed", "retrieval failed", h.logger)
		return
	}

	passages := make([]string, 0, len(hits))
	for _, hit := range hits {
		passages = append(passages, hit.Chunk.Text)
	}
	p := h.builder.Build(req.History, passages, req.Message)

	writer, err := sse.NewWriter(w)
	if err != nil {
		h.logger.Error("streaming not supported", "error", err)
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported", h.logger)
		return
	}

	h.logger.Info("chat stream started",
		"request_id", requestID,
		"passages", len(passages),
		"history", len(req.History))

	for event := range h.generator.Generate(ctx, p) {
		switch event.Kind {
		case chat.KindReasoning:
			err = writer.WriteFrame(ctx, sse.Frame{Type: frameThought, Content: event.Text})
		case chat.KindAnswer:
			err = writer.WriteFrame(ctx, sse.Frame{Type: frameAnswer, Content: event.Text})
		case chat.KindError:
			h.logger.Error("chat stream failed", "error", event.Err, "request_id", requestID)
			_ = writer.WriteError("generation failed")
			return
		case chat.KindDone:
			if err := writer.WriteSentinel(); err != nil {
				h.logger.Debug("sentinel write failed", "error", err, "request_id", requestID)
			}
			h.logger.Info("chat stream completed", "request_id", requestID)
			return
		}
		if err != nil {
			// Client gone; the ctx cancellation already stops generation.
			h.logger.Debug("client disconnected", "error", err, "request_id", requestID)
			return
		}
	}
	// Channel closed without a terminal event: the request was canceled.
	h.logger.Info("chat stream canceled", "request_id", requestID)
}
