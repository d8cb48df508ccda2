package runtimeapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/localstack/lambda-runtime-bootstrap/internal/transport"
)

// Runtime API headers carried on a next-invocation response.
const (
	HeaderAWSRequestID       = "Lambda-Runtime-Aws-Request-Id"
	HeaderDeadlineMs         = "Lambda-Runtime-Deadline-Ms"
	HeaderInvokedFunctionArn = "Lambda-Runtime-Invoked-Function-Arn"
	HeaderTraceID            = "Lambda-Runtime-Trace-Id"
	HeaderClientContext      = "Lambda-Runtime-Client-Context"
	HeaderCognitoIdentity    = "Lambda-Runtime-Cognito-Identity"
)

// Invocation is one unit of work handed out by the Runtime API. The value is
// immutable once parsed; the request id addresses the report that closes it.
type Invocation struct {
	RequestID          string
	DeadlineMs         int64
	InvokedFunctionArn string
	TraceID            string
	ClientContext      string
	CognitoIdentity    string
}

// Deadline converts the epoch-milliseconds deadline to wall-clock time.
func (inv *Invocation) Deadline() time.Time {
	return time.Unix(0, inv.DeadlineMs*int64(time.Millisecond))
}

// ParseInvocation validates a next-invocation response and builds the
// Invocation plus its payload. The four Lambda-Runtime-* headers above are
// required and must be non-empty; the client context and cognito identity
// headers are optional.
//
// A deadline header that fails to parse as a signed 64-bit decimal integer is
// reported as missing, not malformed. The upstream runtimes conflate the two
// and report-path consumers depend on the single error shape.
func ParseInvocation(resp *transport.Response) (*Invocation, []byte, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, nil, errBadStatusCode(resp.StatusCode)
	}
	if !resp.HasBody {
		return nil, nil, errNoBody()
	}

	inv := &Invocation{}

	if inv.RequestID = resp.Header.Get(HeaderAWSRequestID); inv.RequestID == "" {
		return nil, nil, errMissingHeader(HeaderAWSRequestID)
	}
	deadline := resp.Header.Get(HeaderDeadlineMs)
	if deadline == "" {
		return nil, nil, errMissingHeader(HeaderDeadlineMs)
	}
	ms, err := strconv.ParseInt(deadline, 10, 64)
	if err != nil {
		return nil, nil, errMissingHeader(HeaderDeadlineMs)
	}
	inv.DeadlineMs = ms
	if inv.InvokedFunctionArn = resp.Header.Get(HeaderInvokedFunctionArn); inv.InvokedFunctionArn == "" {
		return nil, nil, errMissingHeader(HeaderInvokedFunctionArn)
	}
	if inv.TraceID = resp.Header.Get(HeaderTraceID); inv.TraceID == "" {
		return nil, nil, errMissingHeader(HeaderTraceID)
	}

	inv.ClientContext = resp.Header.Get(HeaderClientContext)
	inv.CognitoIdentity = resp.Header.Get(HeaderCognitoIdentity)

	return inv, resp.Body, nil
}
