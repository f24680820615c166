package matrix

import (
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/3leaps/gosperf/pkg/catalog"
	"github.com/3leaps/gosperf/pkg/job"
)

// ErrInvalidPattern is returned when a name pattern cannot be compiled.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// PatternError wraps pattern-related errors with context.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// Filter restricts a job matrix.
//
// Empty lists mean "no restriction". Model and solver entries are exact
// names or doublestar glob patterns ("ex1*", "gurobi-{BM,HR}"); every entry
// must match at least one registered name.
type Filter struct {
	Models  []string
	Solvers []string
	Classes []string
}

// IsEmpty reports whether the filter restricts nothing.
func (f Filter) IsEmpty() bool {
	return len(f.Models) == 0 && len(f.Solvers) == 0 && len(f.Classes) == 0
}

// Compiled is a filter resolved against a catalog.
//
// A nil set means the dimension is unrestricted.
type Compiled struct {
	models  map[string]struct{}
	solvers map[string]struct{}
	classes catalog.ClassSet
	catalog *catalog.Catalog
}

// Compile resolves f against c.
//
// Returns catalog.ErrUnknownModel, catalog.ErrUnknownSolver or
// catalog.ErrUnknownClass when an entry matches nothing.
func (f Filter) Compile(c *catalog.Catalog) (*Compiled, error) {
	models, err := expand(f.Models, c.Models.Names(), catalog.ErrUnknownModel)
	if err != nil {
		return nil, err
	}
	solvers, err := expand(f.Solvers, c.Solvers.Names(), catalog.ErrUnknownSolver)
	if err != nil {
		return nil, err
	}

	var classes catalog.ClassSet
	if len(f.Classes) > 0 {
		classes = make(catalog.ClassSet, len(f.Classes))
		for _, raw := range f.Classes {
			pc, err := catalog.ParseProblemClass(raw)
			if err != nil {
				return nil, err
			}
			classes[pc] = struct{}{}
		}
	}

	return &Compiled{models: models, solvers: solvers, classes: classes, catalog: c}, nil
}

// Allows reports whether j passes the filter.
//
// A job whose model is no longer registered passes only when neither the
// class nor the model dimension is restricted.
func (cf *Compiled) Allows(j job.Job) bool {
	if cf == nil {
		return true
	}
	if cf.models != nil {
		if _, ok := cf.models[j.Model]; !ok {
			return false
		}
	}
	if cf.solvers != nil {
		if _, ok := cf.solvers[j.Solver]; !ok {
			return false
		}
	}
	if cf.classes != nil {
		m, ok := cf.catalog.Models.Get(j.Model)
		if !ok || !cf.classes.Has(m.Class) {
			return false
		}
	}
	return true
}

// Apply returns the members of s that pass the filter.
func (cf *Compiled) Apply(s job.Set) job.Set {
	out := make(job.Set, len(s))
	for j := range s {
		if cf.Allows(j) {
			out.Add(j)
		}
	}
	return out
}

func expand(patterns, names []string, notFound error) (map[string]struct{}, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	out := make(map[string]struct{})
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Pattern: p, Err: ErrInvalidPattern}
		}
		matched := false
		for _, name := range names {
			ok, err := doublestar.Match(p, name)
			if err != nil {
				return nil, &PatternError{Pattern: p, Err: err}
			}
			if ok {
				out[name] = struct{}{}
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("%w: %s", notFound, p)
		}
	}
	return out, nil
}
