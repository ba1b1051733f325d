package transport

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startUnixServer serves the generate endpoint on a Unix socket and returns
// the socket path. The server is torn down with the test.
func startUnixServer(t *testing.T, handler http.Handler) string {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "llm.sock")
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	server := &http.Server{Handler: handler}
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(func() {
		_ = server.Close()
	})

	return socketPath
}

func TestUnixSocketTransport_Success(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix sockets not supported on windows")
	}

	socketPath := startUnixServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(GenerateResponse{
			Model:    req.Model,
			Response: "hallo",
			Done:     true,
		})
	}))

	tr := NewUnixSocketTransport(socketPath)
	result := tr.Attempt(context.Background(), RequestSpec{Prompt: "hi", Model: "gemma3"}, 5*time.Second)

	assert.True(t, result.Success)
	assert.Equal(t, "hallo", result.Payload)
	assert.Equal(t, "unix", result.Transport)
}

func TestUnixSocketTransport_UnavailableWithoutPath(t *testing.T) {
	tr := NewUnixSocketTransport("")
	result := tr.Attempt(context.Background(), RequestSpec{Prompt: "hi", Model: "gemma3"}, time.Second)

	assert.False(t, result.Success)
	assert.Equal(t, ReasonUnavailable, result.Reason)
	assert.True(t, result.Unavailable())
	assert.Zero(t, result.Latency, "unavailable result must not consume time")
}

func TestUnixSocketTransport_UnavailableWhenSocketMissing(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix sockets not supported on windows")
	}

	tr := NewUnixSocketTransport(filepath.Join(t.TempDir(), "absent.sock"))
	result := tr.Attempt(context.Background(), RequestSpec{Prompt: "hi", Model: "gemma3"}, time.Second)

	assert.True(t, result.Unavailable())
	assert.Contains(t, result.ErrMessage, "socket not present")
}

func TestUnixSocketTransport_ServerError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix sockets not supported on windows")
	}

	socketPath := startUnixServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "out of memory", http.StatusServiceUnavailable)
	}))

	tr := NewUnixSocketTransport(socketPath)
	result := tr.Attempt(context.Background(), RequestSpec{Prompt: "hi", Model: "gemma3"}, 5*time.Second)

	assert.False(t, result.Success)
	assert.False(t, result.Unavailable(), "a live socket answering 5xx is a failure, not unavailability")
	assert.Equal(t, ReasonServerError, result.Reason)
}
