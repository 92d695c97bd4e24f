// Package netutil implements the network primitives every probing module
// shares: an HTTP client tolerant of camera-grade self-signed TLS, RFC
// 2617 Digest authentication, and a minimal raw-TCP RTSP client.
package netutil

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TransportError distinguishes a socket/DNS-level failure from an HTTP
// response, so callers can tell "the device didn't answer" from "the
// device answered with an error status."
type TransportError struct {
	URL   string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error requesting %s: %v", e.URL, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// Response is the uniform result of an HTTP call: status, headers, and
// body are always populated, never an error, for any completed HTTP
// exchange (2xx through 5xx alike).
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// RequestOptions configures a single HTTP call. The zero value is usable:
// Timeout 0 means defaultTimeout (10s), and whichever timeout applies
// bounds the whole request, not each connection.
type RequestOptions struct {
	Timeout         time.Duration
	BasicAuthUser   string
	BasicAuthPass   string
	HasBasicAuth    bool
	Headers         map[string]string
	FollowRedirects bool
	ContentType     string
}

const defaultTimeout = 10 * time.Second

// Client is an HTTP client that never validates TLS certificates —
// cameras habitually present self-signed or expired certs, and treating
// TLS errors as hard failures would drop nearly every camera from scope.
type Client struct {
	transport *http.Transport
}

// NewClient constructs a Client with certificate verification disabled.
func NewClient() *Client {
	return &Client{
		transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // cameras are routinely self-signed; see spec.
		},
	}
}

func (c *Client) httpClient(opts RequestOptions) *http.Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	cl := &http.Client{
		Transport: c.transport,
		Timeout:   timeout,
	}
	if !opts.FollowRedirects {
		cl.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return cl
}

// Get issues an HTTP GET.
func (c *Client) Get(ctx context.Context, url string, opts RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil, opts)
}

// Do issues an arbitrary-method request with an optional body, returning
// a uniform Response for any completed exchange. Socket and DNS failures
// are returned as *TransportError.
func (c *Client) Do(ctx context.Context, method, url string, body []byte, opts RequestOptions) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &TransportError{URL: url, Cause: err}
	}

	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}
	if opts.HasBasicAuth {
		req.SetBasicAuth(opts.BasicAuthUser, opts.BasicAuthPass)
	}

	resp, err := c.httpClient(opts).Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: url, Cause: err}
	}

	return &Response{Status: resp.StatusCode, Headers: resp.Header, Body: respBody}, nil
}
