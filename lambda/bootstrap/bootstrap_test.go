package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localstack/lambda-runtime-bootstrap/internal/config"
	"github.com/localstack/lambda-runtime-bootstrap/internal/emulator"
	"github.com/localstack/lambda-runtime-bootstrap/lambda/handler"
)

func startEmulator(t *testing.T) (*emulator.Server, *httptest.Server, *config.Config) {
	t.Helper()
	em := emulator.New(10 * time.Second)
	ts := httptest.NewServer(em.Router())
	t.Cleanup(ts.Close)

	cfg := &config.Config{
		RuntimeAPI:     strings.TrimPrefix(ts.URL, "http://"),
		RequestTimeout: 250 * time.Millisecond,
		StopSignal:     "SIGTERM",
		MaxInvocations: 1,
		LogLevel:       "info",
	}
	return em, ts, cfg
}

func invokeAsync(t *testing.T, url string, req emulator.InvokeRequest) chan *http.Response {
	t.Helper()
	result := make(chan *http.Response, 1)
	body, err := json.Marshal(req)
	require.NoError(t, err)
	go func() {
		resp, err := http.Post(url+"/invoke", "application/json", bytes.NewReader(body))
		if err != nil {
			close(result)
			return
		}
		result <- resp
	}()
	return result
}

func TestRun_EchoEndToEnd(t *testing.T) {
	_, ts, cfg := startEmulator(t)
	result := invokeAsync(t, ts.URL, emulator.InvokeRequest{InvokeId: "001", Payload: "hello"})

	echo := func(ctx context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	}
	completed, err := Run(context.Background(), cfg, func(ctx context.Context) (handler.Handler, error) {
		return handler.Func(echo), nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), completed)

	resp := <-result
	require.NotNil(t, resp)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "hello", string(body))
	assert.Empty(t, resp.Header.Get("X-Amz-Function-Error"))
}

func TestRun_HandlerFailureEndToEnd(t *testing.T) {
	_, ts, cfg := startEmulator(t)
	result := invokeAsync(t, ts.URL, emulator.InvokeRequest{InvokeId: "002", Payload: "{}"})

	failing := func(ctx context.Context, payload []byte) ([]byte, error) {
		return nil, errors.New("boom")
	}
	completed, err := Run(context.Background(), cfg, func(ctx context.Context) (handler.Handler, error) {
		return handler.Func(failing), nil
	})
	require.NoError(t, err, "a reported handler failure still counts as a completed invocation")
	assert.Equal(t, uint64(1), completed)

	resp := <-result
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, "Unhandled", resp.Header.Get("X-Amz-Function-Error"))
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, `{ "errorType": "FunctionError", "errorMessage": "boom" }`, string(body))
}

func TestRun_InitFailureEndToEnd(t *testing.T) {
	em, _, cfg := startEmulator(t)

	_, err := Run(context.Background(), cfg, func(ctx context.Context) (handler.Handler, error) {
		return nil, errors.New("cant_init")
	})
	require.Error(t, err)
	assert.Equal(t, "cant_init", err.Error())

	initErrors := em.InitErrors()
	require.Len(t, initErrors, 1)
	assert.Equal(t, `{ "errorType": "InitializationError", "errorMessage": "cant_init" }`, string(initErrors[0]))
}

func TestRun_InvalidStopSignal(t *testing.T) {
	_, _, cfg := startEmulator(t)
	cfg.StopSignal = "SIGWINCH"

	_, err := Run(context.Background(), cfg, func(ctx context.Context) (handler.Handler, error) {
		return handler.Func(func(ctx context.Context, payload []byte) ([]byte, error) {
			return nil, nil
		}), nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported stop signal")
}
