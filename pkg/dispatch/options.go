package dispatch

import (
	"time"

	"go.uber.org/zap"
)

// Options configures the backends.
type Options struct {
	Logger *zap.Logger

	// Cluster settings.
	SubmitCommand string
	Processes     int
	MemoryGB      int
	// SubmitRate is the maximum submissions per second; <= 0 is unlimited.
	SubmitRate float64
	// Submitter overrides the scheduler invocation.
	Submitter Submitter

	// KillGrace bounds how long the serial backend waits for a killed
	// job's output to drain. Default: 5s.
	KillGrace time.Duration
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
