// Package bootstrap is the public entrypoint of the runtime client. A
// bootstrap binary wires its handler in main:
//
//	func main() {
//		bootstrap.Start(handler.Func(myHandler))
//	}
//
// Start blocks for the lifetime of the execution environment, polling the
// Runtime API and dispatching invocations to the handler.
package bootstrap

import (
	"context"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/localstack/lambda-runtime-bootstrap/internal/config"
	"github.com/localstack/lambda-runtime-bootstrap/internal/runtime"
	"github.com/localstack/lambda-runtime-bootstrap/internal/runtimeapi"
	"github.com/localstack/lambda-runtime-bootstrap/lambda/handler"
)

// Start runs the lifecycle with a handler that needs no initialization work.
// It does not return: the process exits 0 on graceful stop, 1 on a fatal
// error.
func Start(h handler.Handler) {
	StartWithFactory(func(ctx context.Context) (handler.Handler, error) {
		return h, nil
	})
}

// StartWithFactory runs the lifecycle with a factory that builds the handler
// during initialization. A factory error is reported to the Runtime API and
// terminates the process.
func StartWithFactory(factory handler.Factory) {
	// Local development convenience; the Lambda environment ships no .env.
	_ = godotenv.Load()

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatalln("Invalid configuration:", err)
	}
	ConfigureLogging(cfg.LogLevel)

	completed, err := Run(context.Background(), cfg, factory)
	if err != nil {
		log.WithError(err).Error("Bootstrap terminated")
		os.Exit(1)
	}
	log.WithField("completed", completed).Info("Bootstrap stopped")
	os.Exit(0)
}

// Run wires the runtime client, runner and lifecycle together and executes
// the state machine, with the configured stop signal trapped for graceful
// shutdown. It returns the completed invocation count, plus the fatal error
// if the run did not end gracefully.
func Run(ctx context.Context, cfg *config.Config, factory handler.Factory) (uint64, error) {
	client := runtimeapi.NewClient(cfg.RuntimeAPI, cfg.RequestTimeout)
	function := handler.MetadataFromEnvironment()
	reporter := runtime.NewReporter(os.Stdout, function)
	runner := runtime.NewRunner(client, function, reporter)
	lifecycle := runtime.NewLifecycle(client, factory, runner, cfg.MaxInvocations)

	stopSignal, err := cfg.Signal()
	if err != nil {
		return 0, err
	}
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, stopSignal)
	defer func() {
		signal.Stop(sigChan)
		close(sigChan)
	}()
	go func() {
		sig, ok := <-sigChan
		if !ok {
			return
		}
		log.WithField("signal", sig).Info("Stop signal received")
		lifecycle.Stop()
	}()

	return lifecycle.Run(ctx)
}

// ConfigureLogging applies the configured log level, following the logrus
// level names. Trace additionally switches to the JSON formatter.
func ConfigureLogging(level string) {
	switch level {
	case "trace":
		log.SetFormatter(&log.JSONFormatter{})
		log.SetLevel(log.TraceLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	case "fatal":
		log.SetLevel(log.FatalLevel)
	case "panic":
		log.SetLevel(log.PanicLevel)
	default:
		log.Fatal("Invalid value for log level: " + level)
	}
}
