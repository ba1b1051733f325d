package transport

import (
	"context"
	"net"
	"net/http"
	"time"
)

// defaultConnectTimeout bounds connection establishment. It is deliberately
// much shorter than the per-attempt timeout: a dead loopback endpoint fails
// the dial within this window, while a slow-but-alive one still gets the
// full attempt budget for generation.
const defaultConnectTimeout = 2 * time.Second

// HTTPTransport reaches the local endpoint over loopback TCP.
// It is stateless apart from its immutable configuration and may be shared
// across concurrent calls.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport creates an HTTP transport for the given base URL
// (e.g. "http://localhost:11434"). A non-positive connectTimeout falls back
// to the default.
func NewHTTPTransport(baseURL string, connectTimeout time.Duration) *HTTPTransport {
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}

	dialer := &net.Dialer{Timeout: connectTimeout}
	return &HTTPTransport{
		baseURL: baseURL,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext:         dialer.DialContext,
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
			// Per-attempt deadlines come from the request context;
			// no client-level timeout on top of them.
		},
	}
}

// Name implements Transport.
func (t *HTTPTransport) Name() string {
	return "http"
}

// Attempt implements Transport. It issues one generate call with the given
// per-attempt timeout and maps every failure to an AttemptResult.
func (t *HTTPTransport) Attempt(ctx context.Context, req RequestSpec, timeout time.Duration) AttemptResult {
	return postGenerate(ctx, t.client, t.Name(), t.baseURL, req, timeout)
}
