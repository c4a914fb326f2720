package handlers

import (
	"io"
	"log/slog"
	"testing"

	"github.com/helpgate/helpgate/internal/coordination"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCoordination(t *testing.T) coordination.Store {
	t.Helper()
	store := coordination.NewMemoryStore()
	t.Cleanup(store.Close)
	return store
}
