package api

import (
	"net/http"

	"github.com/briefly-ai/briefly/internal/log"
	"github.com/briefly-ai/briefly/internal/refresh"
)

// Refresher starts and inspects knowledge base refresh jobs.
type Refresher interface {
	Trigger() (accepted bool, status refresh.Status)
	Status() refresh.Status
}

// RefreshHandler handles knowledge base refresh endpoints.
//
// Endpoints:
//   - POST /update-news        - start a refresh job (202, or 409 if one is running)
//   - GET  /update-news/status - inspect the current job
type RefreshHandler struct {
	refresher Refresher
	logger    log.Logger
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(refresher Refresher, logger log.Logger) *RefreshHandler {
	return &RefreshHandler{refresher: refresher, logger: logger}
}

// RegisterRoutes registers refresh routes on the given mux.
func (h *RefreshHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /update-news", h.handleTrigger)
	mux.HandleFunc("GET /update-news/status", h.handleStatus)
}

// refreshResponse is the body of both refresh endpoints.
type refreshResponse struct {
	Accepted bool           `json:"accepted,omitempty"`
	Status   refresh.Status `json:"status"`
}

func (h *RefreshHandler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	accepted, status := h.refresher.Trigger()
	if !accepted {
		h.logger.Info("refresh rejected, job already running",
			"request_id", requestIDFromContext(r.Context()))
		writeJSON(w, http.StatusConflict, refreshResponse{Status: status}, h.logger)
		return
	}

	h.logger.Info("refresh started", "request_id", requestIDFromContext(r.Context()))
	writeJSON(w, http.StatusAccepted, refreshResponse{Accepted: true, Status: status}, h.logger)
}

func (h *RefreshHandler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, refreshResponse{Status: h.refresher.Status()}, h.logger)
}
