package handler

import (
	"context"
	"os"
	"time"
)

// FunctionMetadata mirrors the AWS_LAMBDA_* environment the platform
// establishes before the bootstrap starts. It is read once and shared by
// every invocation's RequestContext.
type FunctionMetadata struct {
	Handler          string // _HANDLER
	FunctionName     string // AWS_LAMBDA_FUNCTION_NAME
	FunctionVersion  string // AWS_LAMBDA_FUNCTION_VERSION
	FunctionMemoryMB string // AWS_LAMBDA_FUNCTION_MEMORY_SIZE
	LogGroupName     string // AWS_LAMBDA_LOG_GROUP_NAME
	LogStreamName    string // AWS_LAMBDA_LOG_STREAM_NAME
}

// MetadataFromEnvironment reads the function metadata from the process
// environment. Unset variables stay empty; the bootstrap treats all of them
// as optional.
func MetadataFromEnvironment() FunctionMetadata {
	return FunctionMetadata{
		Handler:          os.Getenv("_HANDLER"),
		FunctionName:     os.Getenv("AWS_LAMBDA_FUNCTION_NAME"),
		FunctionVersion:  os.Getenv("AWS_LAMBDA_FUNCTION_VERSION"),
		FunctionMemoryMB: os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE"),
		LogGroupName:     os.Getenv("AWS_LAMBDA_LOG_GROUP_NAME"),
		LogStreamName:    os.Getenv("AWS_LAMBDA_LOG_STREAM_NAME"),
	}
}

// RequestContext carries the metadata of the invocation being processed plus
// the function environment. Handlers retrieve it with FromContext.
type RequestContext struct {
	RequestID          string
	Deadline           time.Time
	InvokedFunctionArn string
	TraceID            string
	ClientContext      string
	CognitoIdentity    string

	Function FunctionMetadata
}

type contextKey struct{}

// NewContext returns a context carrying rc.
func NewContext(parent context.Context, rc *RequestContext) context.Context {
	return context.WithValue(parent, contextKey{}, rc)
}

// FromContext retrieves the RequestContext stored by NewContext, if any.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(contextKey{}).(*RequestContext)
	return rc, ok
}
