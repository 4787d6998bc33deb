package queueapi_test

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/queueapi"
)

func TestServer_ServeAndShutdown(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	router, err := queueapi.NewRouter(newEngine(t), queueapi.WithLogger(discardLogger))
	require.NoError(t, err)

	srv := queueapi.NewServer(queueapi.Config{ShutdownTimeout: time.Second}, queueapi.WithServerLogger(discardLogger))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln, router) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}

	_, err = http.Get(url)
	assert.Error(t, err)
}

func TestServer_RunRejectsBadAddr(t *testing.T) {
	t.Parallel()

	srv := queueapi.NewServer(queueapi.Config{Addr: "256.0.0.1:bad"}, queueapi.WithServerLogger(discardLogger))
	err := srv.Run(context.Background(), http.NotFoundHandler())
	assert.ErrorIs(t, err, queueapi.ErrStart)
}
