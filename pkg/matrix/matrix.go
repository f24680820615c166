// Package matrix computes the set of (model, solver) jobs for a run.
package matrix

import (
	"github.com/3leaps/gosperf/pkg/catalog"
	"github.com/3leaps/gosperf/pkg/job"
)

// Build returns every registered (model, solver) pair where the solver is
// compatible with the model's class and both pass the filter.
//
// Filter entries that match no registered name fail before any job is
// produced. Use Set.Sorted for the deterministic dispatch order.
func Build(c *catalog.Catalog, f Filter) (job.Set, error) {
	cf, err := f.Compile(c)
	if err != nil {
		return nil, err
	}

	out := make(job.Set)
	solvers := c.Solvers.All()
	for _, m := range c.Models.All() {
		for _, s := range solvers {
			if !s.CanSolve(m.Class) {
				continue
			}
			j := job.New(m.Name, s.Name)
			if cf.Allows(j) {
				out.Add(j)
			}
		}
	}
	return out, nil
}
