package transport

import (
	"context"
	"net"
	"net/http"
	"os"
	"runtime"
	"time"
)

// UnixSocketTransport reaches a local inference daemon over a Unix domain
// socket, avoiding the TCP stack entirely. It is the lowest-overhead channel
// when the daemon exposes one.
//
// The transport is structurally unavailable when the platform has no Unix
// sockets or when no socket path is configured. Unavailability is reported
// as a distinct AttemptResult so the orchestrator skips this transport
// without a health penalty.
type UnixSocketTransport struct {
	socketPath string
	client     *http.Client
}

// NewUnixSocketTransport creates a Unix socket transport for the given
// socket path. An empty path yields a permanently unavailable transport,
// which is a valid configuration on hosts without a local daemon socket.
func NewUnixSocketTransport(socketPath string) *UnixSocketTransport {
	dialer := &net.Dialer{Timeout: defaultConnectTimeout}
	return &UnixSocketTransport{
		socketPath: socketPath,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					return dialer.DialContext(ctx, "unix", socketPath)
				},
				MaxIdleConns:    2,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

// Name implements Transport.
func (t *UnixSocketTransport) Name() string {
	return "unix"
}

// available reports whether this transport can run at all right now.
// The socket file is re-checked on every attempt because the daemon may
// come up after the client.
func (t *UnixSocketTransport) available() (bool, string) {
	if runtime.GOOS == "windows" {
		return false, "unix sockets not supported on this platform"
	}
	if t.socketPath == "" {
		return false, "no socket path configured"
	}
	if _, err := os.Stat(t.socketPath); err != nil {
		return false, "socket not present: " + t.socketPath
	}
	return true, ""
}

// Attempt implements Transport. A structurally unavailable transport returns
// the distinct unavailable result without touching the network.
func (t *UnixSocketTransport) Attempt(ctx context.Context, req RequestSpec, timeout time.Duration) AttemptResult {
	if ok, why := t.available(); !ok {
		return unavailableResult(t.Name(), why)
	}
	// The host in the URL is a placeholder; the dialer ignores it and
	// connects to the socket path.
	return postGenerate(ctx, t.client, t.Name(), "http://unix", req, timeout)
}
