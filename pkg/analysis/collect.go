// Package analysis reconciles job markers into run bookkeeping and scores
// finished jobs against the catalog's reference values.
package analysis

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/3leaps/gosperf/pkg/job"
	"github.com/3leaps/gosperf/pkg/jobstate"
	"github.com/3leaps/gosperf/pkg/runconfig"
	"github.com/3leaps/gosperf/pkg/rundir"
)

// FailureLogFile is the per-run solver failure log.
const FailureLogFile = "solver.failures.yaml"

// Report summarizes one collection pass.
type Report struct {
	ID    string
	Run   int
	Total int

	// Started counts jobs with a start marker.
	Started int
	// NeverStarted are jobs without a start marker.
	NeverStarted []job.Job
	// FailedBuilds maps each model whose build failed to one solver whose
	// job shows the failure.
	FailedBuilds map[string]string
	// SolverFailures maps solver to the sorted models whose solve never
	// completed after a successful build.
	SolverFailures map[string][]string
	// Unfinished are jobs that started but never stopped: timed out,
	// crashed, killed, or still running.
	Unfinished []job.Job

	JobsRun    int
	JobsFailed int
}

// CollectOptions tunes Collect.
type CollectOptions struct {
	// Concurrency bounds parallel marker reads.
	Concurrency int
	Logger      *zap.Logger
}

// Collect reads the markers of every job in cfg and returns an updated copy
// where jobs_run is the set of stopped jobs and jobs_failed the stopped
// jobs that never completed their solve. cfg itself is not modified.
//
// Collect writes nothing; see WriteFailureLog. Calling it again with no
// marker changes yields an identical config.
func Collect(ctx context.Context, cfg *runconfig.RunConfig, run *rundir.Run, opts CollectOptions) (*runconfig.RunConfig, *Report, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	markers, err := jobstate.Scan(ctx, cfg.Jobs, run.JobDir, opts.Concurrency)
	if err != nil {
		return nil, nil, fmt.Errorf("scan job markers: %w", err)
	}

	started, built, solved, finished := job.NewSet(), job.NewSet(), job.NewSet(), job.NewSet()
	for j, m := range markers {
		if m.Start {
			started.Add(j)
		}
		if m.ModelBuilt {
			built.Add(j)
		}
		if m.SolveDone {
			solved.Add(j)
		}
		if m.Stop {
			finished.Add(j)
		}
	}

	rep := &Report{
		ID:             uuid.New().String(),
		Run:            cfg.RunNumber,
		Total:          cfg.Jobs.Len(),
		Started:        started.Len(),
		NeverStarted:   cfg.Jobs.Difference(started).Sorted(),
		FailedBuilds:   make(map[string]string),
		SolverFailures: make(map[string][]string),
		Unfinished:     started.Difference(finished).Sorted(),
	}

	// Iterate in sorted order so the reported solver per model is stable.
	for _, j := range started.Difference(built).Sorted() {
		if _, ok := rep.FailedBuilds[j.Model]; !ok {
			rep.FailedBuilds[j.Model] = j.Solver
		}
	}
	for _, j := range built.Difference(solved).Sorted() {
		rep.SolverFailures[j.Solver] = append(rep.SolverFailures[j.Solver], j.Model)
	}

	out := cfg.Clone()
	out.JobsRun = finished
	out.JobsFailed = finished.Difference(solved)
	rep.JobsRun = out.JobsRun.Len()
	rep.JobsFailed = out.JobsFailed.Len()

	log.Info("Collected run state",
		zap.String("collect_id", rep.ID),
		zap.Int("run", rep.Run),
		zap.Int("jobs", rep.Total),
		zap.Int("started", rep.Started),
		zap.Int("finished", rep.JobsRun),
		zap.Int("failed", rep.JobsFailed),
		zap.Int("unfinished", len(rep.Unfinished)))

	return out, rep, nil
}

// WriteFailureLog writes the solver failures of rep into the run directory
// as a YAML mapping of solver to sorted model names.
func WriteFailureLog(run *rundir.Run, rep *Report) error {
	data, err := yaml.Marshal(rep.SolverFailures)
	if err != nil {
		return fmt.Errorf("marshal failure log: %w", err)
	}
	if err := os.WriteFile(filepath.Join(run.Dir, FailureLogFile), data, 0644); err != nil {
		return fmt.Errorf("write failure log: %w", err)
	}
	return nil
}

// ReadFailureLog reads a run's solver failure log.
func ReadFailureLog(run *rundir.Run) (map[string][]string, error) {
	data, err := os.ReadFile(filepath.Join(run.Dir, FailureLogFile))
	if err != nil {
		return nil, fmt.Errorf("read failure log: %w", err)
	}
	out := make(map[string][]string)
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse failure log: %w", err)
	}
	return out, nil
}

// Print writes the human-readable collection summary.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "%d of %d jobs executed. %d jobs never executed:\n", r.Started, r.Total, len(r.NeverStarted))
	for _, j := range r.NeverStarted {
		fmt.Fprintf(w, " - %s %s\n", j.Model, j.Solver)
	}

	fmt.Fprintf(w, "%d models had failed builds:\n", len(r.FailedBuilds))
	for _, model := range sortedKeys(r.FailedBuilds) {
		fmt.Fprintf(w, " - %s (see %s)\n", model, r.FailedBuilds[model])
	}

	fmt.Fprintf(w, "%d solvers had failed executions:\n", len(r.SolverFailures))
	for _, solver := range sortedKeys(r.SolverFailures) {
		failed := r.SolverFailures[solver]
		fmt.Fprintf(w, " - %s (%d failed): %v\n", solver, len(failed), failed)
	}

	fmt.Fprintf(w, "%d jobs timed out or still running:\n", len(r.Unfinished))
	for _, j := range r.Unfinished {
		fmt.Fprintf(w, " - %s %s\n", j.Solver, j.Model)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
