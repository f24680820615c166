// Package redo plans the continuation of an existing run.
package redo

import (
	"github.com/3leaps/gosperf/pkg/catalog"
	"github.com/3leaps/gosperf/pkg/job"
	"github.com/3leaps/gosperf/pkg/matrix"
	"github.com/3leaps/gosperf/pkg/runconfig"
)

// Options selects what a redo re-executes.
type Options struct {
	// RedoExisting re-runs jobs that already finished cleanly.
	RedoExisting bool
	// RedoFailed re-runs jobs that finished but never completed their solve.
	RedoFailed bool

	Filter matrix.Filter
}

// Plan returns the jobs of cfg to dispatch next.
//
// Starting from the run's full job list it removes finished jobs unless
// RedoExisting, failed jobs unless RedoFailed, and jobs excluded by the
// filter. The result is always a subset of cfg.Jobs. Filter names are
// resolved against c, so unknown names fail before anything is planned.
func Plan(cfg *runconfig.RunConfig, opts Options, c *catalog.Catalog) (job.Set, error) {
	var cf *matrix.Compiled
	if !opts.Filter.IsEmpty() {
		compiled, err := opts.Filter.Compile(c)
		if err != nil {
			return nil, err
		}
		cf = compiled
	}

	out := cfg.Jobs.Clone()
	if !opts.RedoExisting {
		// Failed jobs are also in jobs_run; keep them for the next rule.
		for j := range cfg.JobsRun.Difference(cfg.JobsFailed) {
			out.Remove(j)
		}
	}
	if !opts.RedoFailed {
		for j := range cfg.JobsFailed {
			out.Remove(j)
		}
	}
	return cf.Apply(out), nil
}
