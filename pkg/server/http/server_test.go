package http

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/absmach/tuner/pkg/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	return fmt.Sprint(l.Addr().(*net.TCPAddr).Port)
}

func TestServerStartAndStopOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := server.Config{Host: "127.0.0.1", Port: freePort(t)}
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	hs := NewServer(ctx, cancel, "tuner", cfg, handler, slog.Default())

	done := make(chan error, 1)
	go func() { done <- hs.Start() }()

	addr := fmt.Sprintf("http://%s:%s/", cfg.Host, cfg.Port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(addr)
		if err != nil {
			return false
		}
		resp.Body.Close()

		return resp.StatusCode == http.StatusTeapot
	}, 5*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestStopSignalHandlerReturnsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := server.Config{Host: "127.0.0.1", Port: freePort(t)}
	hs := NewServer(ctx, cancel, "tuner", cfg, http.NotFoundHandler(), slog.Default())

	cancel()
	assert.NoError(t, server.StopSignalHandler(ctx, cancel, slog.Default(), "tuner", hs))
}
