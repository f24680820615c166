// Package dispatch executes or submits the wrapper scripts of a run.
//
// Backends never inspect job outcomes beyond what is needed to enforce a
// time budget; completion is always derived later from marker files.
package dispatch

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/3leaps/gosperf/pkg/catalog"
	"github.com/3leaps/gosperf/pkg/job"
	"github.com/3leaps/gosperf/pkg/rundir"
)

// Backend names accepted by New.
const (
	BackendSerial    = "serial"
	BackendCluster   = "cluster"
	BackendSetupOnly = "setup-only"
)

// Backends lists the backend names.
var Backends = []string{BackendSerial, BackendCluster, BackendSetupOnly}

// Backend runs the wrapper scripts of a dispatch request.
type Backend interface {
	Name() string
	Dispatch(ctx context.Context, req Request) (*Summary, error)
}

// Request is one dispatch pass over a run.
type Request struct {
	Run *rundir.Run

	// Jobs are dispatched in slice order; callers pass Set.Sorted().
	Jobs []job.Job

	Budget Budget

	// Models supplies cached build times. Jobs whose model is not
	// registered get no build allowance.
	Models *catalog.ModelRegistry
}

// BudgetFor returns the wall-clock budget of j.
func (r Request) BudgetFor(j job.Job) time.Duration {
	var build time.Duration
	if r.Models != nil {
		if m, ok := r.Models.Get(j.Model); ok {
			build = m.BuildTime()
		}
	}
	return r.Budget.For(build)
}

// Summary reports what a dispatch pass did.
type Summary struct {
	ID      string
	Backend string
	Total   int

	// Dispatched counts scripts executed (serial) or submitted (cluster).
	Dispatched int
	// TimedOut counts serial jobs killed at their deadline.
	TimedOut int
	// Failed counts scripts that could not be started or submitted, or
	// exited non-zero.
	Failed int
	// Skipped counts jobs not dispatched because their model failed to build
	// earlier in the same pass.
	Skipped int
	// BrokenModels are the models whose build failed during the pass.
	BrokenModels []string

	StartedAt time.Time
	Duration  time.Duration
}

func newSummary(backend string, total int) *Summary {
	return &Summary{
		ID:        uuid.New().String(),
		Backend:   backend,
		Total:     total,
		StartedAt: time.Now().UTC(),
	}
}

// Budget computes per-job wall-clock limits.
type Budget struct {
	TimeLimit     time.Duration
	BufferPercent float64
	MinBuffer     time.Duration
}

// For returns time limit + max(min buffer, time limit * buffer percent / 100)
// + build time, rounded up to a whole second.
func (b Budget) For(buildTime time.Duration) time.Duration {
	buffer := time.Duration(float64(b.TimeLimit) * b.BufferPercent / 100)
	if buffer < b.MinBuffer {
		buffer = b.MinBuffer
	}
	total := b.TimeLimit + buffer + buildTime
	secs := math.Ceil(total.Seconds())
	return time.Duration(secs) * time.Second
}

// Walltime formats d as HH:MM:SS for batch schedulers. Hours may exceed 99.
func Walltime(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 0 {
		secs = 0
	}
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// New returns the backend named name.
func New(name string, opts Options) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case BackendSerial:
		return NewSerial(opts), nil
	case BackendCluster:
		return NewCluster(opts)
	case BackendSetupOnly:
		return SetupOnly{}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want one of %s)", name, strings.Join(Backends, ", "))
	}
}

// SetupOnly materializes nothing further and runs nothing; the run can be
// started later with a redo.
type SetupOnly struct{}

func (SetupOnly) Name() string { return BackendSetupOnly }

func (SetupOnly) Dispatch(_ context.Context, req Request) (*Summary, error) {
	s := newSummary(BackendSetupOnly, len(req.Jobs))
	return s, nil
}
