// Standalone Runtime API emulator for local development: serves the runtime
// endpoints and a POST /invoke trigger on a local port. Point a bootstrap at
// it with AWS_LAMBDA_RUNTIME_API=127.0.0.1:<port>.
package main

import (
	"net/http"
	"os"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/localstack/lambda-runtime-bootstrap/internal/emulator"
	"github.com/localstack/lambda-runtime-bootstrap/lambda/bootstrap"
)

type options struct {
	Port            string        `long:"port" env:"EMULATOR_PORT" default:"9001" description:"port to listen on"`
	FunctionTimeout time.Duration `long:"function-timeout" env:"EMULATOR_FUNCTION_TIMEOUT" default:"30s" description:"per-invocation deadline"`
	LogLevel        string        `long:"log-level" env:"EMULATOR_LOG_LEVEL" default:"info" description:"trace|debug|info|warn|error|fatal|panic"`
}

func main() {
	_ = godotenv.Load()

	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(os.Args[1:]); err != nil {
		log.Fatalln(err)
	}
	bootstrap.ConfigureLogging(opts.LogLevel)

	server := emulator.New(opts.FunctionTimeout)
	log.WithField("port", opts.Port).Info("Runtime API emulator listening")
	if err := http.ListenAndServe(":"+opts.Port, server.Router()); err != nil {
		log.Fatalln(err)
	}
}
