// Package handler defines the contract between the bootstrap loop and user
// code: the Handler that consumes invocation payloads, the Factory that
// produces it at startup, and the request context surfaced to every
// invocation.
package handler

import "context"

// Handler consumes one invocation payload and produces an optional response.
// A nil response slice means "no response body"; a non-nil empty slice is an
// empty body. The bootstrap invokes the handler serially, one invocation at
// a time; implementations may fan work out internally as long as Invoke
// returns exactly once.
type Handler interface {
	Invoke(ctx context.Context, payload []byte) ([]byte, error)
}

// Func adapts a plain function to the Handler interface.
type Func func(ctx context.Context, payload []byte) ([]byte, error)

func (f Func) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	return f(ctx, payload)
}

// Factory produces the Handler once during initialization. A factory error
// is reported to the Runtime API as an initialization error and terminates
// the process.
type Factory func(ctx context.Context) (Handler, error)
