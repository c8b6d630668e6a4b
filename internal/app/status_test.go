package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natcap/ndrbatch/internal/worklog"
)

// statusApp builds a minimal App with a ledger holding one complete and one
// failed scenario.
func statusApp(t *testing.T) *App {
	t.Helper()

	ledger, err := worklog.Open(filepath.Join(t.TempDir(), "work_status.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, ledger.Close()) })

	ctx := context.Background()
	require.NoError(t, ledger.Schedule(ctx, []string{"restoration", "grazing_expansion", "pending"}))
	require.NoError(t, ledger.MarkRunning(ctx, "restoration"))
	require.NoError(t, ledger.MarkComplete(ctx, "restoration"))
	require.NoError(t, ledger.MarkRunning(ctx, "grazing_expansion"))
	require.NoError(t, ledger.MarkFailed(ctx, "grazing_expansion", 137))

	return &App{
		logger: newLogger("error", "text", io.Discard),
		ledger: ledger,
	}
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	a := &App{logger: newLogger("error", "text", io.Discard)}

	rec := httptest.NewRecorder()
	a.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
}

func TestProgressHandler(t *testing.T) {
	t.Parallel()

	t.Run("reports ledger counts", func(t *testing.T) {
		a := statusApp(t)

		rec := httptest.NewRecorder()
		a.progressHandler(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var progress worklog.Progress
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &progress))
		assert.Equal(t, worklog.Progress{Scheduled: 1, Complete: 1, Failed: 1}, progress)
	})

	t.Run("no ledger answers 503", func(t *testing.T) {
		a := &App{logger: newLogger("error", "text", io.Discard)}

		rec := httptest.NewRecorder()
		a.progressHandler(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestStatusServerLifecycle(t *testing.T) {
	t.Parallel()

	a := statusApp(t)
	ctx := context.Background()

	// Reserve an ephemeral port, then hand it to the server.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	a.startStatusServer(ctx, port)

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	var health *http.Response
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		health = resp
		return true
	}, 5*time.Second, 20*time.Millisecond, "status server never came up")

	body, err := io.ReadAll(health.Body)
	require.NoError(t, err)
	require.NoError(t, health.Body.Close())
	assert.Equal(t, "OK\n", string(body))

	resp, err := http.Get(base + "/progress")
	require.NoError(t, err)
	var progress worklog.Progress
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&progress))
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, worklog.Progress{Scheduled: 1, Complete: 1, Failed: 1}, progress)

	a.closeStatusServer(ctx)

	_, err = http.Get(base + "/health")
	require.Error(t, err, "server must refuse connections after shutdown")
}
