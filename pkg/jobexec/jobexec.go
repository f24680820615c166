// Package jobexec is the job process: it runs inside one job directory,
// builds the model, calls the solver, and records its progress as marker
// files and a result record.
package jobexec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/gosperf/pkg/catalog"
	"github.com/3leaps/gosperf/pkg/job"
)

var (
	// ErrModelBuild indicates the model could not be constructed.
	ErrModelBuild = errors.New("model build failed")

	// ErrSolve indicates the solver call did not return a result.
	ErrSolve = errors.New("solve failed")
)

// ModelBuilder constructs the model artifact a solver consumes.
type ModelBuilder interface {
	// Build returns the locator of the built model (usually a file path).
	Build(ctx context.Context, m *catalog.ModelDescriptor, dir string) (string, error)
}

// SolveRequest is one solver invocation.
type SolveRequest struct {
	Model       *catalog.ModelDescriptor
	Solver      *catalog.SolverDescriptor
	ModelSource string
	TimeLimit   time.Duration
	// Dir is the job directory; the solver runs inside it.
	Dir string
}

// Outcome is what a solver reports after returning.
type Outcome struct {
	LowerBound           *float64 `yaml:"lower_bound,omitempty"`
	UpperBound           *float64 `yaml:"upper_bound,omitempty"`
	Iterations           *int64   `yaml:"iterations,omitempty"`
	TerminationCondition string   `yaml:"termination_condition,omitempty"`
	SolverStatus         string   `yaml:"solver_status,omitempty"`
}

// SolverRunner invokes a solver on a built model.
//
// An error means the solver did not return normally; any termination
// condition the solver reports, infeasible included, is a nil error.
type SolverRunner interface {
	Solve(ctx context.Context, req SolveRequest) (*Outcome, error)
}

// Runner executes one job.
type Runner struct {
	Builder ModelBuilder
	Solver  SolverRunner

	// LoadCatalog resolves the catalog named in the job config.
	// Default: catalog.Load.
	LoadCatalog func(path string) (*catalog.Catalog, error)

	Logger *zap.Logger
	Now    func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Run executes the job in dir.
//
// The start marker is written first and the stop marker is always written
// on return. The model-built marker follows a successful build and the
// solve-done marker a solver call that returned. A result record is written
// once the job config has been read, carrying the error message when a
// step failed.
func (r *Runner) Run(ctx context.Context, dir string) (err error) {
	if err := touch(dir, job.StartMarker); err != nil {
		return err
	}
	defer func() {
		if stopErr := touch(dir, job.StopMarker); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	cfg, err := job.ReadConfig(dir)
	if err != nil {
		return err
	}
	log := r.logger().With(zap.Int("run", cfg.Run), zap.String("model", cfg.Model), zap.String("solver", cfg.Solver))

	res := &job.Result{Model: cfg.Model, Solver: cfg.Solver}
	fail := func(sentinel error, cause error) error {
		res.Error = cause.Error()
		if werr := job.WriteResult(dir, res); werr != nil {
			log.Error("Failed to write result record", zap.Error(werr))
		}
		return fmt.Errorf("%w: %w", sentinel, cause)
	}

	load := r.LoadCatalog
	if load == nil {
		load = catalog.Load
	}
	cat, err := load(cfg.Catalog)
	if err != nil {
		return fail(ErrModelBuild, fmt.Errorf("load catalog: %w", err))
	}
	model, err := cat.Models.Lookup(cfg.Model)
	if err != nil {
		return fail(ErrModelBuild, err)
	}
	solver, err := cat.Solvers.Lookup(cfg.Solver)
	if err != nil {
		return fail(ErrModelBuild, err)
	}

	buildStart := r.now()
	res.ModelBuildStart = &buildStart
	log.Info("Building model")
	source, err := r.Builder.Build(ctx, model, dir)
	buildEnd := r.now()
	res.ModelBuildEnd = &buildEnd
	if err != nil {
		return fail(ErrModelBuild, err)
	}
	if err := touch(dir, job.ModelBuiltMarker); err != nil {
		return err
	}

	solveStart := r.now()
	res.SolverStart = &solveStart
	log.Info("Solving", zap.Duration("time_limit", cfg.TimeLimit()))
	outcome, err := r.Solver.Solve(ctx, SolveRequest{
		Model:       model,
		Solver:      solver,
		ModelSource: source,
		TimeLimit:   cfg.TimeLimit(),
		Dir:         dir,
	})
	solveEnd := r.now()
	res.SolverEnd = &solveEnd
	elapsed := solveEnd.Sub(solveStart).Seconds()
	res.SolverTime = &elapsed
	if err != nil {
		return fail(ErrSolve, err)
	}
	if err := touch(dir, job.SolveDoneMarker); err != nil {
		return err
	}

	if outcome != nil {
		res.LowerBound = outcome.LowerBound
		res.UpperBound = outcome.UpperBound
		res.Iterations = outcome.Iterations
		res.TerminationCondition = outcome.TerminationCondition
		res.SolverStatus = outcome.SolverStatus
	}
	if res.TerminationCondition == "" {
		res.TerminationCondition = job.TerminationUnknown
	}
	log.Info("Solve finished",
		zap.String("termination", res.TerminationCondition),
		zap.Float64("elapsed", elapsed))
	return job.WriteResult(dir, res)
}

func touch(dir, name string) error {
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("write marker %s: %w", name, err)
	}
	return f.Close()
}
