package analysis

import (
	"fmt"
	"math"

	"github.com/3leaps/gosperf/pkg/catalog"
)

// Never is the time-to-threshold of a job that did not reach the threshold.
var Never = math.Inf(1)

// Tolerances are the gap thresholds for classifying a finished job.
type Tolerances struct {
	// Optimality is the relative gap for "solved".
	Optimality float64
	// OptimalitySlack is added to Optimality to absorb rounding in solver output.
	OptimalitySlack float64
	// Acceptable is the looser gap for "acceptable solution".
	Acceptable float64
}

// DefaultTolerances returns 1% optimality, 0.01% slack, 5% acceptable.
func DefaultTolerances() Tolerances {
	return Tolerances{Optimality: 0.01, OptimalitySlack: 0.0001, Acceptable: 0.05}
}

// Validate checks the tolerances are non-negative and ordered.
func (t Tolerances) Validate() error {
	if t.Optimality < 0 || t.OptimalitySlack < 0 || t.Acceptable < 0 {
		return fmt.Errorf("tolerances must not be negative")
	}
	if t.Acceptable < t.Optimality {
		return fmt.Errorf("acceptable tolerance %g is tighter than optimality tolerance %g", t.Acceptable, t.Optimality)
	}
	return nil
}

func (t Tolerances) solved(gap float64) bool {
	return gap <= t.Optimality+t.OptimalitySlack
}

// Gaps are the relative gaps of one finished job. A nil gap is withheld.
type Gaps struct {
	Solution   *float64
	Optimality *float64
}

// ComputeGaps scores the bounds a solver reported for model m.
//
// Maximizing models are negated so both cases read as minimization. A
// lower bound above the solution (possible with cuts that are only valid
// for the optimum) is clamped to the solution. The optimality gap is only
// reported when the model's reference is a proven optimum and the solver is
// exact for the model's class. Missing bounds count as infinite.
//
// With a zero reference value the gaps are absolute differences.
func ComputeGaps(m *catalog.ModelDescriptor, s *catalog.SolverDescriptor, lb, ub *float64) Gaps {
	if m == nil || m.Reference.Kind == catalog.ReferenceInfeasible || !m.Reference.IsSet() {
		return Gaps{}
	}

	lower, upper := math.Inf(-1), math.Inf(1)
	if lb != nil {
		lower = *lb
	}
	if ub != nil {
		upper = *ub
	}

	solution, bound, reference := upper, lower, m.Reference.Value
	if m.Sense == catalog.Maximize {
		solution, bound, reference = -lower, -upper, -m.Reference.Value
	}
	if bound > solution {
		bound = solution
	}

	scale := math.Abs(reference)
	if scale == 0 {
		scale = 1
	}

	g := Gaps{Solution: ptr(math.Abs(solution-reference) / scale)}
	if m.Reference.Kind == catalog.ReferenceOptimal && s.IsGlobalFor(m.Class) {
		g.Optimality = ptr(math.Abs(solution-bound) / scale)
	}
	return g
}

// Times are the elapsed solver times at which a job met each threshold,
// Never when it did not.
type Times struct {
	ToAcceptable float64
	ToSolution   float64
	ToOptimum    float64
}

// ComputeTimes classifies g against t for a job that ran for elapsed seconds.
func ComputeTimes(g Gaps, t Tolerances, elapsed float64) Times {
	out := Times{ToAcceptable: Never, ToSolution: Never, ToOptimum: Never}
	if g.Solution != nil {
		switch {
		case t.solved(*g.Solution):
			out.ToSolution = elapsed
			out.ToAcceptable = elapsed
		case *g.Solution <= t.Acceptable:
			out.ToAcceptable = elapsed
		}
	}
	if g.Optimality != nil && t.solved(*g.Optimality) {
		out.ToOptimum = elapsed
	}
	return out
}

func ptr(v float64) *float64 { return &v }
