package runtime

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
	log "github.com/sirupsen/logrus"

	"github.com/localstack/lambda-runtime-bootstrap/internal/runtimeapi"
	"github.com/localstack/lambda-runtime-bootstrap/lambda/handler"
)

// InvokeReport is the per-invocation accounting line written to the log
// stream once the handler returns, before its outcome is reported.
type InvokeReport struct {
	RequestID        string
	DurationMs       float64
	BilledDurationMs float64
	MemorySizeMB     string
	MaxMemoryUsedMB  uint64
}

func (r *InvokeReport) Print(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"REPORT RequestId: %s\t"+
			"Duration: %.2f ms\t"+
			"Billed Duration: %.f ms\t"+
			"Memory Size: %s MB\t"+
			"Max Memory Used: %d MB\t\n",
		r.RequestID, r.DurationMs, r.BilledDurationMs, r.MemorySizeMB, r.MaxMemoryUsedMB)

	return err
}

// Reporter writes the START and REPORT lines framing every invocation.
type Reporter struct {
	w        io.Writer
	function handler.FunctionMetadata
	proc     *process.Process
}

func NewReporter(w io.Writer, function handler.FunctionMetadata) *Reporter {
	r := &Reporter{w: w, function: function}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.WithError(err).Debug("Process stats unavailable, REPORT lines will show 0 MB used")
	} else {
		r.proc = proc
	}
	return r
}

func (r *Reporter) Start(inv *runtimeapi.Invocation) {
	version := r.function.FunctionVersion
	if version == "" {
		version = "$LATEST"
	}
	_, _ = fmt.Fprintf(r.w, "START RequestId: %s Version: %s\n", inv.RequestID, version)
}

func (r *Reporter) Finish(inv *runtimeapi.Invocation, duration time.Duration) {
	durationMs := float64(duration) / float64(time.Millisecond)
	report := InvokeReport{
		RequestID:        inv.RequestID,
		DurationMs:       durationMs,
		BilledDurationMs: math.Ceil(durationMs),
		MemorySizeMB:     r.function.FunctionMemoryMB,
		MaxMemoryUsedMB:  r.maxMemoryUsedMB(),
	}
	if err := report.Print(r.w); err != nil {
		log.WithError(err).Error("Failed to write REPORT line")
	}
}

func (r *Reporter) maxMemoryUsedMB() uint64 {
	if r.proc == nil {
		return 0
	}
	info, err := r.proc.MemoryInfo()
	if err != nil {
		return 0
	}
	return info.RSS >> 20
}
