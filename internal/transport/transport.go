// Package transport performs the raw HTTP exchanges against the Runtime API
// endpoint. It knows nothing about the Runtime API semantics; callers get a
// status code, headers and an optional body, plus a small closed set of
// classified failure kinds.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

// Failure kinds surfaced by Get and Post. Anything else is passed through
// as the underlying I/O error. Retries are the caller's business.
var (
	ErrTimeout         = errors.New("request timeout")
	ErrConnectionReset = errors.New("connection reset by peer")
)

// Response is one completed HTTP exchange. HasBody distinguishes a response
// that carried a (possibly empty) body from one that carried none at all.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	HasBody    bool
}

// Client issues GET and POST requests against a single host with a bounded
// per-call timeout. The Runtime API is a local loopback peer, so the
// underlying transport skips proxies and keeps connections warm between the
// long-poll and the report that follows it.
type Client struct {
	baseURL string
	httpc   *http.Client
}

func NewClient(hostport string, requestTimeout time.Duration) *Client {
	return &Client{
		baseURL: "http://" + hostport,
		httpc: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				Proxy:               nil,
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     120 * time.Second,
				DisableCompression:  true,
				ForceAttemptHTTP2:   false,
				DialContext: (&net.Dialer{
					Timeout:   1 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
	}
}

// Get issues GET <path> and returns the completed exchange.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// Post issues POST <path> with the given body bytes (possibly empty) and an
// explicit Content-Length so the exchange never falls back to chunked
// encoding.
func (c *Client) Post(ctx context.Context, path string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = int64(len(body))
	return c.do(req)
}

// Close releases idle connections held against the Runtime API host.
func (c *Client) Close() {
	c.httpc.CloseIdleConnections()
}

func (c *Client) do(req *http.Request) (*Response, error) {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer drainAndClose(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}

	// A Content-Length header, even "0", means the peer sent a body. Only a
	// bodiless exchange (no Content-Length, zero bytes) counts as absent.
	hasBody := resp.ContentLength >= 0 || len(body) > 0

	log.WithField("url", req.URL.String()).
		WithField("status", resp.StatusCode).
		Tracef("%s completed", req.Method)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		HasBody:    hasBody,
	}, nil
}

// classify folds the zoo of net/http failure shapes into the two kinds the
// runtime client cares about; everything else passes through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s", ErrTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %s", ErrTimeout, err)
	case errors.Is(err, syscall.ECONNRESET):
		return fmt.Errorf("%w: %s", ErrConnectionReset, err)
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %s", ErrConnectionReset, err)
	}
	return err
}

// drainAndClose fully consumes the response body so the connection can be
// reused for the next exchange.
func drainAndClose(b io.ReadCloser) {
	if b == nil {
		return
	}
	_, _ = io.Copy(io.Discard, b)
	_ = b.Close()
}
