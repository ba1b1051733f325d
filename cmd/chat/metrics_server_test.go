package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmbridge/internal/health"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResetHandler_ClearsActiveSkip(t *testing.T) {
	monitor := health.NewMonitor(health.DefaultConfig(), nil)
	for i := 0; i < 5; i++ {
		monitor.RecordFailure("timeout")
	}
	require.Equal(t, health.StateUnhealthy, monitor.State())

	handler := resetHandler(monitor.Reset, discardLogger())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/health/reset", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, health.StateHealthy, monitor.State())
	assert.Equal(t, 0, monitor.Stats().WindowSize)
}

func TestResetHandler_RejectsNonPost(t *testing.T) {
	monitor := health.NewMonitor(health.DefaultConfig(), nil)
	monitor.RecordFailure("timeout")

	handler := resetHandler(monitor.Reset, discardLogger())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/health/reset", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, 1, monitor.Stats().WindowSize, "a rejected request must not reset the window")
}

func TestLocalHealthHandler_RecoversAfterReset(t *testing.T) {
	monitor := health.NewMonitor(health.DefaultConfig(), nil)
	for i := 0; i < 5; i++ {
		monitor.RecordFailure("connection_refused")
	}

	handler := localHealthHandler(monitor)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/health/local", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	monitor.Reset()

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/health/local", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
