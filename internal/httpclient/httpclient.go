// Package httpclient provides the single HTTP client every mirror request
// goes through: per-attempt retry/backoff on connection failures and 5xx
// responses, with timeouts and retry counts sourced from Settings.
package httpclient

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/sdkget/sdkget/internal/settings"
)

// Client wraps a retryablehttp client configured from Settings.
type Client struct {
	inner *retryablehttp.Client
}

// New builds a Client from Settings. connection_timeout bounds dialing and
// TLS handshake (via the transport's DialContext/TLSHandshakeTimeout),
// response_timeout bounds the whole request including body read.
func New(s settings.Settings) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = s.MaxRetriesOnConnectionError
	rc.RetryWaitMin = s.RetryBackoff
	rc.RetryWaitMax = s.RetryBackoff * 8
	rc.HTTPClient.Timeout = s.ResponseTimeout
	rc.Logger = slogAdapter{}

	transport := rc.HTTPClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if t, ok := transport.(*http.Transport); ok {
		t = t.Clone()
		t.DialContext = (&net.Dialer{Timeout: s.ConnectionTimeout}).DialContext
		t.TLSHandshakeTimeout = s.ConnectionTimeout
		rc.HTTPClient.Transport = t
	}

	// Only retry on transport errors and 5xx/429; a 404 from one mirror is
	// the MirrorSelector's problem (try the next mirror), not this client's.
	rc.CheckRetry = retryablehttp.DefaultRetryPolicy

	return &Client{inner: rc}
}

// Get issues a GET request through the retry policy.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.inner.Do(req)
}

// StandardClient exposes the retry-wrapped client as a plain *http.Client,
// for callers (like the S3 mirror path) that need the stdlib interface.
func (c *Client) StandardClient() *http.Client {
	return c.inner.StandardClient()
}

// slogAdapter routes retryablehttp's internal logging through log/slog
// instead of its default stdlib-log logger, matching the rest of the
// codebase's logging.
type slogAdapter struct{}

func (slogAdapter) Printf(format string, args ...any) {
	slog.Debug("httpclient retry", "msg", fmt.Sprintf(format, args...))
}
