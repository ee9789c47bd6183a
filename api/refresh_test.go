package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briefly-ai/briefly/internal/refresh"
)

func TestTriggerRefreshAccepted(t *testing.T) {
	refresher := &stubRefresher{
		accept: true,
		status: refresh.Status{State: refresh.StateRunning, StartedAt: time.Now()},
	}
	handler := newTestServer(t, ServerConfig{Refresher: refresher})

	rec := postJSON(handler, "/update-news", "")

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, refresher.triggers)

	var resp refreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Accepted)
	assert.Equal(t, refresh.StateRunning, resp.Status.State)
}

func TestTriggerRefreshConflictWhileRunning(t *testing.T) {
	refresher := &stubRefresher{
		accept: false,
		status: refresh.Status{State: refresh.StateRunning},
	}
	handler := newTestServer(t, ServerConfig{Refresher: refresher})

	rec := postJSON(handler, "/update-news", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRefreshStatusEndpoint(t *testing.T) {
	refresher := &stubRefresher{
		status: refresh.Status{
			State:     refresh.StateSucceeded,
			Version:   3,
			Documents: 12,
			Chunks:    40,
		},
	}
	handler := newTestServer(t, ServerConfig{Refresher: refresher})

	req := httptest.NewRequest(http.MethodGet, "/update-news/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp refreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(3), resp.Status.Version)
	assert.Equal(t, 40, resp.Status.Chunks)
}
