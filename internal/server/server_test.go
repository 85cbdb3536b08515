package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/l0p7/pitwall/internal/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestNewRequiresHandler(t *testing.T) {
	_, err := New(config.DefaultConfig(), newTestLogger(), nil)
	require.Error(t, err)
}

func TestNewUsesConfiguredAddress(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Listen.Address = "127.0.0.1"
	cfg.Server.Listen.Port = 9090

	srv, err := New(cfg, newTestLogger(), http.NewServeMux())
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9090", srv.httpServer.Addr)
}

func TestRunShutsDownWhenContextCancelled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Listen.Address = "127.0.0.1"
	cfg.Server.Listen.Port = 0

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv, err := New(cfg, newTestLogger(), handler)
	require.NoError(t, err)

	var order []string
	srv.OnShutdown("pool", func(context.Context) error {
		order = append(order, "pool")
		return nil
	})
	srv.OnShutdown("cache", func(context.Context) error {
		order = append(order, "cache")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not return after cancellation")
	}
	require.Equal(t, []string{"cache", "pool"}, order)
}

func TestShutdownReportsCloseFailures(t *testing.T) {
	srv, err := New(config.DefaultConfig(), newTestLogger(), http.NewServeMux())
	require.NoError(t, err)

	boom := errors.New("boom")
	srv.OnShutdown("cache", func(context.Context) error { return boom })

	err = srv.shutdown(context.Background())
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "close cache")

	// A second shutdown is a no-op.
	require.NoError(t, srv.shutdown(context.Background()))
}
