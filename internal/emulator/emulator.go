// Package emulator implements a local stand-in for the Runtime API so the
// bootstrap can be exercised without a Lambda sandbox: the four runtime
// endpoints over an in-memory queue, plus a /invoke trigger that blocks
// until the matching report arrives.
package emulator

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// InvokeRequest triggers one invocation through POST /invoke.
type InvokeRequest struct {
	InvokeId           string `json:"invoke-id"`
	InvokedFunctionArn string `json:"invoked-function-arn"`
	Payload            string `json:"payload"`
	TraceId            string `json:"trace-id"`
	ClientContext      string `json:"client-context"`
	CognitoIdentity    string `json:"cognito-identity"`
}

// ErrorResponse is returned to the /invoke caller when the emulator itself
// fails the invocation (e.g. function timeout).
type ErrorResponse struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorType    string `json:"errorType,omitempty"`
}

type report struct {
	isError bool
	body    []byte
}

type pendingInvoke struct {
	id              string
	payload         []byte
	arn             string
	traceID         string
	clientContext   string
	cognitoIdentity string
	deadline        time.Time
	done            chan report
}

// Server is one emulated execution environment: a single invoke queue
// consumed by a single bootstrap process.
type Server struct {
	functionTimeout time.Duration
	queue           chan *pendingInvoke

	mu         sync.Mutex
	inflight   map[string]*pendingInvoke
	initErrors [][]byte
}

func New(functionTimeout time.Duration) *Server {
	return &Server{
		functionTimeout: functionTimeout,
		queue:           make(chan *pendingInvoke, 16),
		inflight:        make(map[string]*pendingInvoke),
	}
}

// Router lays out the Runtime API surface plus the /invoke trigger.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/2018-06-01/runtime/invocation/next", s.next)
	r.Post("/2018-06-01/runtime/invocation/{requestID}/response", s.response)
	r.Post("/2018-06-01/runtime/invocation/{requestID}/error", s.invokeError)
	r.Post("/2018-06-01/runtime/init/error", s.initError)
	r.Post("/invoke", s.invoke)
	return r
}

// InitErrors returns the init error bodies reported so far.
func (s *Server) InitErrors() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.initErrors))
	copy(out, s.initErrors)
	return out
}

// next hands the oldest queued invocation to the polling bootstrap. The
// handler parks until an invocation is queued or the poller gives up.
func (s *Server) next(w http.ResponseWriter, r *http.Request) {
	select {
	case invoke := <-s.queue:
		s.mu.Lock()
		s.inflight[invoke.id] = invoke
		s.mu.Unlock()

		h := w.Header()
		h.Set("Lambda-Runtime-Aws-Request-Id", invoke.id)
		h.Set("Lambda-Runtime-Deadline-Ms", strconv.FormatInt(invoke.deadline.UnixMilli(), 10))
		h.Set("Lambda-Runtime-Invoked-Function-Arn", invoke.arn)
		h.Set("Lambda-Runtime-Trace-Id", invoke.traceID)
		if invoke.clientContext != "" {
			h.Set("Lambda-Runtime-Client-Context", invoke.clientContext)
		}
		if invoke.cognitoIdentity != "" {
			h.Set("Lambda-Runtime-Cognito-Identity", invoke.cognitoIdentity)
		}
		h.Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(invoke.payload)
	case <-r.Context().Done():
		// Poller went away; the queue keeps the invocation for the next poll.
	}
}

func (s *Server) response(w http.ResponseWriter, r *http.Request) {
	s.deliver(w, r, false)
}

func (s *Server) invokeError(w http.ResponseWriter, r *http.Request) {
	s.deliver(w, r, true)
}

func (s *Server) deliver(w http.ResponseWriter, r *http.Request, isError bool) {
	id := chi.URLParam(r, "requestID")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.WithError(err).Error("Failed to read report body")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	invoke, ok := s.inflight[id]
	delete(s.inflight, id)
	s.mu.Unlock()
	if !ok {
		log.WithField("request-id", id).Warn("Report for unknown invocation")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	invoke.done <- report{isError: isError, body: body}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) initError(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.mu.Lock()
	s.initErrors = append(s.initErrors, body)
	s.mu.Unlock()
	log.WithField("body", string(body)).Debug("Recorded init error")
	w.WriteHeader(http.StatusAccepted)
}

// invoke enqueues one invocation and blocks until its report arrives, the
// function timeout elapses, or the caller goes away. Errors reported by the
// function come back with the X-Amz-Function-Error marker header, matching
// the Invoke API.
func (s *Server) invoke(w http.ResponseWriter, r *http.Request) {
	var req InvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.WithError(err).Error("Failed to decode invoke request")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.InvokeId == "" {
		req.InvokeId = uuid.NewString()
	}
	if req.InvokedFunctionArn == "" {
		req.InvokedFunctionArn = "arn:aws:lambda:us-east-1:000000000000:function:emulated"
	}
	if req.TraceId == "" {
		req.TraceId = "Root=1-" + uuid.NewString()
	}

	invoke := &pendingInvoke{
		id:              req.InvokeId,
		payload:         []byte(req.Payload),
		arn:             req.InvokedFunctionArn,
		traceID:         req.TraceId,
		clientContext:   req.ClientContext,
		cognitoIdentity: req.CognitoIdentity,
		deadline:        time.Now().Add(s.functionTimeout),
		done:            make(chan report, 1),
	}

	var result report
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		select {
		case s.queue <- invoke:
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	})
	g.Go(func() error {
		select {
		case result = <-invoke.done:
			return nil
		case <-time.After(s.functionTimeout):
			return fmt.Errorf("invocation %s timed out", invoke.id)
		case <-gctx.Done():
			return gctx.Err()
		}
	})
	if err := g.Wait(); err != nil {
		log.WithError(err).WithField("request-id", invoke.id).Debug("Invoke did not complete")
		timeoutResp, _ := json.Marshal(ErrorResponse{
			ErrorMessage: fmt.Sprintf("RequestId: %s Error: Task timed out after %.2f seconds", invoke.id, s.functionTimeout.Seconds()),
			ErrorType:    "Sandbox.Timedout",
		})
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(timeoutResp)
		return
	}

	if result.isError {
		w.Header().Set("X-Amz-Function-Error", "Unhandled")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.body)
}
