// Example bootstrap binary: echoes the invocation payload back. Real
// deployments copy this file and swap in their own handler.
package main

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/localstack/lambda-runtime-bootstrap/lambda/bootstrap"
	"github.com/localstack/lambda-runtime-bootstrap/lambda/handler"
)

func echo(ctx context.Context, payload []byte) ([]byte, error) {
	if rc, ok := handler.FromContext(ctx); ok {
		log.WithField("request-id", rc.RequestID).
			WithField("function", rc.Function.FunctionName).
			Debug("Echoing payload")
	}
	return payload, nil
}

func main() {
	bootstrap.Start(handler.Func(echo))
}
