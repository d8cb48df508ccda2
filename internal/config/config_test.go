package config

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("AWS_LAMBDA_RUNTIME_API", "127.0.0.1:9001")

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9001", cfg.RuntimeAPI)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, "SIGTERM", cfg.StopSignal)
	assert.Equal(t, uint64(0), cfg.MaxInvocations)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("AWS_LAMBDA_RUNTIME_API", "127.0.0.1:9001")
	t.Setenv("BOOTSTRAP_REQUEST_TIMEOUT", "100ms")
	t.Setenv("BOOTSTRAP_STOP_SIGNAL", "SIGINT")
	t.Setenv("BOOTSTRAP_MAX_INVOCATIONS", "5")
	t.Setenv("BOOTSTRAP_LOG_LEVEL", "debug")

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, cfg.RequestTimeout)
	assert.Equal(t, "SIGINT", cfg.StopSignal)
	assert.Equal(t, uint64(5), cfg.MaxInvocations)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParse_FlagsBeatEnv(t *testing.T) {
	t.Setenv("AWS_LAMBDA_RUNTIME_API", "127.0.0.1:9001")
	t.Setenv("BOOTSTRAP_LOG_LEVEL", "debug")

	cfg, err := Parse([]string{"--log-level", "trace", "--max-invocations", "3"})
	require.NoError(t, err)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.Equal(t, uint64(3), cfg.MaxInvocations)
}

func TestParse_MissingRuntimeAPI(t *testing.T) {
	t.Setenv("AWS_LAMBDA_RUNTIME_API", "")

	_, err := Parse(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AWS_LAMBDA_RUNTIME_API")
}

func TestParse_InvalidSignal(t *testing.T) {
	t.Setenv("AWS_LAMBDA_RUNTIME_API", "127.0.0.1:9001")
	t.Setenv("BOOTSTRAP_STOP_SIGNAL", "SIGWINCH")

	_, err := Parse(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported stop signal")
}

func TestConfig_Signal(t *testing.T) {
	tests := []struct {
		name string
		want syscall.Signal
	}{
		{"SIGTERM", syscall.SIGTERM},
		{"TERM", syscall.SIGTERM},
		{"SIGINT", syscall.SIGINT},
		{"INT", syscall.SIGINT},
		{"SIGHUP", syscall.SIGHUP},
		{"SIGUSR1", syscall.SIGUSR1},
		{"SIGUSR2", syscall.SIGUSR2},
		{"SIGQUIT", syscall.SIGQUIT},
	}
	for _, tt := range tests {
		c := &Config{StopSignal: tt.name}
		sig, err := c.Signal()
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, sig, tt.name)
	}
}
