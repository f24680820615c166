package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/gosperf/pkg/analysis"
	"github.com/3leaps/gosperf/pkg/catalog"
	"github.com/3leaps/gosperf/pkg/dispatch"
	"github.com/3leaps/gosperf/pkg/job"
	"github.com/3leaps/gosperf/pkg/matrix"
	"github.com/3leaps/gosperf/pkg/redo"
	"github.com/3leaps/gosperf/pkg/runconfig"
	"github.com/3leaps/gosperf/pkg/rundir"
)

// errEmptyMatrix indicates a filter that leaves no compatible job.
var errEmptyMatrix = errors.New("no compatible (model, solver) pairs match the filter")

type newRunOptions struct {
	// RunNumber requests a specific run directory; zero allocates the
	// lowest free number.
	RunNumber int
	// TimeLimit overrides run.time_limit when positive.
	TimeLimit time.Duration
	Filter    matrix.Filter
}

type redoRunOptions struct {
	// RunNumber selects the run; zero means the latest.
	RunNumber int
	// TimeLimit replaces the run's time limit when positive.
	TimeLimit time.Duration
	Redo      redo.Options
}

// runOutcome is what a run or redo command did.
type runOutcome struct {
	Run      *rundir.Run
	Config   *runconfig.RunConfig
	Planned  job.Set
	Dispatch *dispatch.Summary
	// Report is set when the backend ran jobs to completion in-process.
	Report *analysis.Report
}

func (w *workspace) backend(name string) (dispatch.Backend, error) {
	return dispatch.New(name, dispatch.Options{
		Logger:        w.log,
		SubmitCommand: w.cfg.Cluster.SubmitCommand,
		Processes:     w.cfg.Cluster.Processes,
		MemoryGB:      w.cfg.Cluster.MemoryGB,
		SubmitRate:    w.cfg.Cluster.SubmitRate,
		KillGrace:     w.cfg.Run.KillGrace,
	})
}

// jobSpec is the wrapper template for the jobs of rc.
func (w *workspace) jobSpec(rc *runconfig.RunConfig) (rundir.JobSpec, error) {
	command := w.cfg.Job.Command
	if len(command) == 0 {
		exe, err := os.Executable()
		if err != nil {
			return rundir.JobSpec{}, fmt.Errorf("resolve gosperf executable: %w", err)
		}
		command = []string{exe, "job", "exec"}
	}
	return rundir.JobSpec{
		Command:   command,
		TimeLimit: rc.TimeLimit(),
		Catalog:   rc.Catalog,
	}, nil
}

// startRun builds the job matrix, creates a new run directory for it and
// dispatches every job. Filter validation happens before anything is
// written.
func (w *workspace) startRun(ctx context.Context, opts newRunOptions, backend dispatch.Backend) (*runOutcome, error) {
	jobs, err := matrix.Build(w.catalog, opts.Filter)
	if err != nil {
		return nil, runError(err)
	}
	if jobs.Len() == 0 {
		return nil, runError(errEmptyMatrix)
	}

	tl := opts.TimeLimit
	if tl <= 0 {
		tl = w.cfg.Run.TimeLimit
	}

	run, err := w.runs.Allocate(opts.RunNumber)
	if err != nil {
		return nil, runError(err)
	}

	rc := runconfig.New(run.Number, jobs, tl, time.Now())
	if rc.Catalog, err = filepath.Abs(w.cfg.Catalog); err != nil {
		return nil, fmt.Errorf("resolve catalog path: %w", err)
	}
	if err := w.store.Save(rc); err != nil {
		return nil, runError(err)
	}

	spec, err := w.jobSpec(rc)
	if err != nil {
		return nil, err
	}
	if err := run.Materialize(jobs.Sorted(), spec); err != nil {
		return nil, runError(err)
	}

	w.log.Info("Created run",
		zap.Int("run", run.Number),
		zap.String("dir", run.Dir),
		zap.Int("jobs", jobs.Len()),
		zap.Duration("time_limit", tl))

	return w.dispatch(ctx, run, rc, jobs, w.catalog, backend)
}

// redoRun continues an existing run: it refreshes the run's status from
// its markers, plans the jobs to re-execute, resets their directories and
// dispatches them.
func (w *workspace) redoRun(ctx context.Context, opts redoRunOptions, backend dispatch.Backend) (*runOutcome, error) {
	run, err := w.resolveRun(opts.RunNumber)
	if err != nil {
		return nil, err
	}
	rc, err := w.loadRunConfig(run)
	if err != nil {
		return nil, err
	}
	c, err := w.catalogForRun(rc)
	if err != nil {
		return nil, err
	}
	if !opts.Redo.Filter.IsEmpty() {
		if _, err := opts.Redo.Filter.Compile(c); err != nil {
			return nil, runError(err)
		}
	}

	rc, _, err = w.collect(ctx, run, rc)
	if err != nil {
		return nil, err
	}

	planned, err := redo.Plan(rc, opts.Redo, c)
	if err != nil {
		return nil, runError(err)
	}
	if opts.TimeLimit > 0 {
		rc.SetTimeLimit(opts.TimeLimit)
	}

	spec, err := w.jobSpec(rc)
	if err != nil {
		return nil, err
	}
	for _, j := range planned.Sorted() {
		if err := run.Reset(j, spec); err != nil {
			return nil, err
		}
	}

	rc.JobsToRun = planned
	rc.Touch(time.Now())
	if err := w.store.Save(rc); err != nil {
		return nil, runError(err)
	}

	w.log.Info("Planned redo",
		zap.Int("run", run.Number),
		zap.Int("jobs", planned.Len()),
		zap.Bool("redo_existing", opts.Redo.RedoExisting),
		zap.Bool("redo_failed", opts.Redo.RedoFailed))

	if planned.Len() == 0 {
		return &runOutcome{Run: run, Config: rc, Planned: planned}, nil
	}
	return w.dispatch(ctx, run, rc, planned, c, backend)
}

func (w *workspace) dispatch(ctx context.Context, run *rundir.Run, rc *runconfig.RunConfig, jobs job.Set, c *catalog.Catalog, backend dispatch.Backend) (*runOutcome, error) {
	out := &runOutcome{Run: run, Config: rc, Planned: jobs}

	sum, err := backend.Dispatch(ctx, dispatch.Request{
		Run:    run,
		Jobs:   jobs.Sorted(),
		Budget: w.cfg.Budget(rc.TimeLimit()),
		Models: c.Models,
	})
	if err != nil {
		return nil, runError(err)
	}
	out.Dispatch = sum

	// Only the serial backend has finished its jobs on return.
	if backend.Name() != dispatch.BackendSerial {
		return out, nil
	}
	rc, rep, err := w.collect(ctx, run, rc)
	if err != nil {
		return nil, err
	}
	out.Config, out.Report = rc, rep
	return out, nil
}

// collect reconciles rc with the run's markers, persists the result and
// writes the failure log.
func (w *workspace) collect(ctx context.Context, run *rundir.Run, rc *runconfig.RunConfig) (*runconfig.RunConfig, *analysis.Report, error) {
	updated, rep, err := analysis.Collect(ctx, rc, run, analysis.CollectOptions{
		Concurrency: w.cfg.Scan.Concurrency,
		Logger:      w.log,
	})
	if err != nil {
		return nil, nil, runError(err)
	}
	updated.Touch(time.Now())
	if err := w.store.Save(updated); err != nil {
		return nil, nil, runError(err)
	}
	if err := analysis.WriteFailureLog(run, rep); err != nil {
		return nil, nil, err
	}
	return updated, rep, nil
}
