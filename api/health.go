package api

import (
	"net/http"

	"github.com/briefly-ai/briefly/internal/log"
	"github.com/briefly-ai/briefly/internal/retrieve"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	snapshots retrieve.SnapshotProvider
	logger    log.Logger
}

// NewHealthHandler creates a new health handler. snapshots is used to report
// knowledge base state on the readiness probe.
func NewHealthHandler(snapshots retrieve.SnapshotProvider, logger log.Logger) *HealthHandler {
	return &HealthHandler{snapshots: snapshots, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness is a liveness probe endpoint.
// Returns 200 OK if the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness reports whether the service can answer with knowledge context.
// The service still chats without a snapshot (general-knowledge fallback),
// so this is 200 either way; the body says which mode it is in.
func (h *HealthHandler) readiness(w http.ResponseWriter, _ *http.Request) {
	type readyResponse struct {
		Status          string `json:"status"`
		SnapshotVersion uint64 `json:"snapshot_version"`
		Chunks          int    `json:"chunks"`
	}

	resp := readyResponse{Status: "ready"}
	if snap := h.snapshots.Active(); snap != nil {
		resp.SnapshotVersion = snap.Version()
		resp.Chunks = snap.Len()
	} else {
		resp.Status = "ready_no_knowledge"
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}
