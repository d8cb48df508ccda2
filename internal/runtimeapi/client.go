// Package runtimeapi implements the client side of the Lambda Runtime API:
// the four invocation-cycle operations, the invocation parser, and the error
// taxonomy shared with the lifecycle loop.
package runtimeapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/localstack/lambda-runtime-bootstrap/internal/transport"
)

// Endpoint paths, versioned the way the Runtime API versions them.
const (
	apiVersion    = "2018-06-01"
	nextPath      = "/" + apiVersion + "/runtime/invocation/next"
	initErrorPath = "/" + apiVersion + "/runtime/init/error"
	invokePrefix  = "/" + apiVersion + "/runtime/invocation/"
)

// Client wraps the transport into the four Runtime API operations. Timeouts
// and connection resets are folded into upstream Errors before they reach
// the caller; other transport failures pass through unchanged.
type Client struct {
	tc *transport.Client
}

func NewClient(hostport string, requestTimeout time.Duration) *Client {
	return &Client{tc: transport.NewClient(hostport, requestTimeout)}
}

// NextInvocation long-polls the Runtime API for the next unit of work and
// parses it. The call blocks until the API dispenses an invocation or the
// per-call timeout expires.
func (c *Client) NextInvocation(ctx context.Context) (*Invocation, []byte, error) {
	resp, err := c.tc.Get(ctx, nextPath)
	if err != nil {
		return nil, nil, wrapTransport(err)
	}
	return ParseInvocation(resp)
}

// SendResponse reports a successful invocation outcome. The payload may be
// empty; it is posted verbatim.
func (c *Client) SendResponse(ctx context.Context, inv *Invocation, payload []byte) error {
	return c.post(ctx, invokePrefix+inv.RequestID+"/response", payload)
}

// SendError reports a failed invocation. The cause's display string becomes
// the errorMessage of a FunctionError response body.
func (c *Client) SendError(ctx context.Context, inv *Invocation, cause error) error {
	body, err := ErrorResponse{ErrorType: ErrorTypeFunction, ErrorMessage: cause.Error()}.MarshalBytes()
	if err != nil {
		return errJSONEncode(err)
	}
	return c.post(ctx, invokePrefix+inv.RequestID+"/error", body)
}

// SendInitError reports a failed initialization. There is no invocation to
// address, so the report goes to the process-level init error endpoint.
func (c *Client) SendInitError(ctx context.Context, cause error) error {
	body, err := ErrorResponse{ErrorType: ErrorTypeInitialization, ErrorMessage: cause.Error()}.MarshalBytes()
	if err != nil {
		return errJSONEncode(err)
	}
	return c.post(ctx, initErrorPath, body)
}

// Close releases the transport's idle connections.
func (c *Client) Close() {
	c.tc.Close()
}

func (c *Client) post(ctx context.Context, path string, body []byte) error {
	resp, err := c.tc.Post(ctx, path, body)
	if err != nil {
		return wrapTransport(err)
	}
	if resp.StatusCode != http.StatusAccepted {
		log.WithField("url", path).
			WithField("status", resp.StatusCode).
			Error("Runtime API rejected report")
		return errBadStatusCode(resp.StatusCode)
	}
	return nil
}

// wrapTransport maps the transport's classified failures onto upstream
// errors; anything unclassified passes through unchanged.
func wrapTransport(err error) error {
	switch {
	case errors.Is(err, transport.ErrTimeout):
		return errUpstream("timeout")
	case errors.Is(err, transport.ErrConnectionReset):
		return errUpstream("connectionResetByPeer")
	}
	return err
}
