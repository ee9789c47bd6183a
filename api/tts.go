package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/briefly-ai/briefly/internal/log"
	"github.com/briefly-ai/briefly/internal/tts"
)

// Speech synthesizes audio from text.
type Speech interface {
	Synthesize(ctx context.Context, text string) (tts.Audio, error)
}

// maxTTSTextLen bounds request bodies; anything longer is a client error.
const maxTTSTextLen = 8192

// TTSHandler handles the text-to-speech endpoint.
//
// Endpoint:
//   - POST /tts - {"text": "..."} in, raw audio bytes out
type TTSHandler struct {
	speech Speech
	logger log.Logger
}

// NewTTSHandler creates a new TTS handler.
func NewTTSHandler(speech Speech, logger log.Logger) *TTSHandler {
	return &TTSHandler{speech: speech, logger: logger}
}

// RegisterRoutes registers TTS routes on the given mux.
func (h *TTSHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /tts", h.handleSynthesize)
}

type ttsRequest struct {
	Text string `json:"text"`
}

func (h *TTSHandler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "missing_text", "text is required", h.logger)
		return
	}
	if len(req.Text) > maxTTSTextLen {
		writeError(w, http.StatusRequestEntityTooLarge, "text_too_long",
			"text exceeds "+strconv.Itoa(maxTTSTextLen)+" bytes", h.logger)
		return
	}

	audio, err := h.speech.Synthesize(r.Context(), req.Text)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		h.logger.Error("speech synthesis failed", "error", err,
			"request_id", requestIDFromContext(r.Context()))
		if errors.Is(err, tts.ErrUpstreamUnavailable) {
			writeError(w, http.StatusBadGateway, "upstream_unavailable", "speech provider unavailable", h.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "synthesis_failed", "speech synthesis failed", h.logger)
		return
	}

	contentType := audio.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio.Data); err != nil {
		h.logger.Debug("failed to write audio response", "error", err)
	}
}
