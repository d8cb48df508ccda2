package runtime

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/localstack/lambda-runtime-bootstrap/internal/runtimeapi"
	"github.com/localstack/lambda-runtime-bootstrap/lambda/handler"
)

// Runner executes a single invocation cycle: obtain work, dispatch it to the
// handler, report the outcome. It holds no per-invocation state; everything
// it needs arrives with the cycle.
type Runner struct {
	client   *runtimeapi.Client
	function handler.FunctionMetadata
	reporter *Reporter
}

func NewRunner(client *runtimeapi.Client, function handler.FunctionMetadata, reporter *Reporter) *Runner {
	return &Runner{
		client:   client,
		function: function,
		reporter: reporter,
	}
}

// RunOnce drives one cycle. A handler failure is not an error here: it is
// reported to the Runtime API and the cycle counts as complete. Only
// failures of the cycle itself (obtaining work, delivering the report)
// propagate to the lifecycle.
func (r *Runner) RunOnce(ctx context.Context, h handler.Handler) error {
	inv, payload, err := r.client.NextInvocation(ctx)
	if err != nil {
		return err
	}

	r.reporter.Start(inv)
	started := time.Now()
	response, handlerErr := r.invoke(ctx, h, inv, payload)
	r.reporter.Finish(inv, time.Since(started))

	if handlerErr != nil {
		log.WithError(handlerErr).
			WithField("request-id", inv.RequestID).
			Warn("Handler failed, reporting function error")
		return r.client.SendError(ctx, inv, handlerErr)
	}
	return r.client.SendResponse(ctx, inv, response)
}

// invoke dispatches the payload to the handler under a context carrying the
// request metadata and the platform deadline. A handler panic surfaces as a
// handler error so the loop survives it.
func (r *Runner) invoke(ctx context.Context, h handler.Handler, inv *runtimeapi.Invocation, payload []byte) (response []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.WithField("request-id", inv.RequestID).Errorf("Handler panicked: %v", p)
			response = nil
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()

	invokeCtx := ctx
	var cancel context.CancelFunc
	if inv.DeadlineMs > 0 {
		invokeCtx, cancel = context.WithDeadline(ctx, inv.Deadline())
		defer cancel()
	}

	rc := &handler.RequestContext{
		RequestID:          inv.RequestID,
		Deadline:           inv.Deadline(),
		InvokedFunctionArn: inv.InvokedFunctionArn,
		TraceID:            inv.TraceID,
		ClientContext:      inv.ClientContext,
		CognitoIdentity:    inv.CognitoIdentity,
		Function:           r.function,
	}
	invokeCtx = handler.NewContext(invokeCtx, rc)

	return h.Invoke(invokeCtx, payload)
}
