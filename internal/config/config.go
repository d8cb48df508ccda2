// Package config holds the frozen process configuration of the bootstrap.
// Values come from the environment the platform establishes, with CLI flags
// as local-development overrides; after Parse the value is read-only.
package config

import (
	"fmt"
	"os"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"
)

// DefaultRequestTimeout bounds every single Runtime API call, including the
// long-poll for the next invocation. The platform answers the poll well
// before this in practice; tests dial it down to milliseconds.
const DefaultRequestTimeout = 300 * time.Second

// Config is the recognized option surface. Flag names are the CLI form, env
// names the form the platform or an operator sets.
type Config struct {
	RuntimeAPI     string        `long:"runtime-api" env:"AWS_LAMBDA_RUNTIME_API" description:"host:port of the Runtime API"`
	RequestTimeout time.Duration `long:"request-timeout" env:"BOOTSTRAP_REQUEST_TIMEOUT" default:"300s" description:"per-call deadline for Runtime API requests"`
	StopSignal     string        `long:"stop-signal" env:"BOOTSTRAP_STOP_SIGNAL" default:"SIGTERM" description:"signal that triggers graceful stop"`
	MaxInvocations uint64        `long:"max-invocations" env:"BOOTSTRAP_MAX_INVOCATIONS" default:"0" description:"stop after this many invocations (0 = unlimited)"`
	LogLevel       string        `long:"log-level" env:"BOOTSTRAP_LOG_LEVEL" default:"info" description:"trace|debug|info|warn|error|fatal|panic"`
}

// Parse builds the Config from args (excluding the program name) and the
// environment, then validates it.
func Parse(args []string) (*Config, error) {
	cfg := &Config{}
	parser := flags.NewParser(cfg, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RuntimeAPI == "" {
		return fmt.Errorf("AWS_LAMBDA_RUNTIME_API is not set")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if _, err := c.Signal(); err != nil {
		return err
	}
	return nil
}

// Signal resolves the configured stop signal name.
func (c *Config) Signal() (os.Signal, error) {
	switch c.StopSignal {
	case "SIGTERM", "TERM":
		return syscall.SIGTERM, nil
	case "SIGINT", "INT":
		return syscall.SIGINT, nil
	case "SIGHUP", "HUP":
		return syscall.SIGHUP, nil
	case "SIGUSR1", "USR1":
		return syscall.SIGUSR1, nil
	case "SIGUSR2", "USR2":
		return syscall.SIGUSR2, nil
	case "SIGQUIT", "QUIT":
		return syscall.SIGQUIT, nil
	}
	return nil, fmt.Errorf("unsupported stop signal: %s", c.StopSignal)
}
