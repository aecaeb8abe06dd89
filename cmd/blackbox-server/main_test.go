package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flightcore/internal/api"
	"github.com/banshee-data/flightcore/internal/blackbox"
)

func openStore(t *testing.T) *blackbox.Store {
	t.Helper()
	store, err := blackbox.Open(filepath.Join(t.TempDir(), "bb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, ":8080", *listen)
	assert.Equal(t, "blackbox.db", *dbPath)
	assert.False(t, *showVersion)
}

func TestNewHandlerRoutes(t *testing.T) {
	h, err := newHandler(openStore(t), api.Config{})
	require.NoError(t, err)

	for path, want := range map[string]int{
		"/api/sessions":      http.StatusOK,
		"/api/scenarios":     http.StatusOK,
		"/api/sessions/nope": http.StatusNotFound,
		"/ws/live":           http.StatusNotFound,
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "127.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, path)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	store := openStore(t)
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, "127.0.0.1:0", store, api.Config{}) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServeBadAddress(t *testing.T) {
	err := serve(t.Context(), "256.0.0.1:bad", openStore(t), api.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start server")
}
