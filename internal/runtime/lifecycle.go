// Package runtime drives the invocation loop of the bootstrap: the Runner
// executes single poll/dispatch/report cycles and the Lifecycle sequences
// initialization, the running loop, and shutdown around them.
package runtime

import (
	"context"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/localstack/lambda-runtime-bootstrap/internal/runtimeapi"
	"github.com/localstack/lambda-runtime-bootstrap/lambda/handler"
)

// State is the lifecycle's current phase.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateRunning
	StateShuttingDown
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateInitializing:
		return "INITIALIZING"
	case StateRunning:
		return "RUNNING"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	case StateTerminal:
		return "TERMINAL"
	default:
		return "UNKNOWN"
	}
}

// Lifecycle owns the process-level state machine. One Lifecycle runs per
// process; Run is called once.
type Lifecycle struct {
	client  *runtimeapi.Client
	factory handler.Factory
	runner  *Runner

	// maxInvocations stops the loop after that many completed cycles.
	// Zero means unlimited; the knob exists for tests.
	maxInvocations uint64

	stop      atomic.Bool
	state     atomic.Int32
	completed uint64
}

func NewLifecycle(client *runtimeapi.Client, factory handler.Factory, runner *Runner, maxInvocations uint64) *Lifecycle {
	return &Lifecycle{
		client:         client,
		factory:        factory,
		runner:         runner,
		maxInvocations: maxInvocations,
	}
}

// Stop requests a graceful stop. It is safe to call from a signal handler
// goroutine and is idempotent. The flag is observed between iterations: an
// in-flight invocation completes and its report is delivered first.
func (l *Lifecycle) Stop() {
	l.stop.Store(true)
}

// State returns the current phase.
func (l *Lifecycle) State() State {
	return State(l.state.Load())
}

// Completed returns the number of invocation cycles whose report was
// delivered.
func (l *Lifecycle) Completed() uint64 {
	return atomic.LoadUint64(&l.completed)
}

// Run executes the state machine to completion and returns the number of
// completed invocations, plus the fatal error if the run did not end
// gracefully.
//
// During RUNNING, upstream errors (timeout, connection reset) are transient:
// the Runtime API is polled again on the next iteration. Every other error
// is fatal.
func (l *Lifecycle) Run(ctx context.Context) (uint64, error) {
	l.state.Store(int32(StateInitializing))

	h, err := l.factory(ctx)
	if err != nil {
		log.WithError(err).Error("Handler initialization failed")
		if reportErr := l.client.SendInitError(ctx, err); reportErr != nil {
			// Best effort: the factory error is what terminates the run.
			log.WithError(reportErr).Error("Failed to report initialization error")
		}
		return l.shutdown(err)
	}
	log.WithField("state", StateRunning).Debug("Initialization complete")
	l.state.Store(int32(StateRunning))

	for {
		if l.stop.Load() {
			log.Info("Stop requested, shutting down")
			return l.shutdown(nil)
		}
		if l.maxInvocations > 0 && l.Completed() >= l.maxInvocations {
			log.WithField("completed", l.Completed()).Info("Invocation limit reached, shutting down")
			return l.shutdown(nil)
		}

		if err := l.runner.RunOnce(ctx, h); err != nil {
			if runtimeapi.IsTransient(err) {
				log.WithError(err).Warn("Transient upstream error, continuing")
				continue
			}
			log.WithError(err).Error("Invocation cycle failed")
			return l.shutdown(err)
		}
		atomic.AddUint64(&l.completed, 1)
	}
}

func (l *Lifecycle) shutdown(fatal error) (uint64, error) {
	l.state.Store(int32(StateShuttingDown))
	l.client.Close()
	l.state.Store(int32(StateTerminal))
	return l.Completed(), fatal
}
