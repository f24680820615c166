// Package catalog holds the model and solver registries that a benchmark run
// draws its job matrix from.
//
// Registries are explicit values built once at startup (usually from a YAML
// catalog file) and passed by reference to the matrix builder, the run
// directory manager and the analyzer. There is no process-wide registry.
package catalog

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ProblemClass classifies an optimization model.
//
// NOTE: These values are persisted in catalog files and run artifacts and
// are part of the stable on-disk contract.
type ProblemClass string

const (
	ClassLP    ProblemClass = "LP"
	ClassMILP  ProblemClass = "MILP"
	ClassNLP   ProblemClass = "NLP"
	ClassMINLP ProblemClass = "MINLP"
	ClassDP    ProblemClass = "DP"
	ClassGDP   ProblemClass = "GDP"

	// Convex variants: "convex" refers to the continuous functions.
	ClassConvexNLP   ProblemClass = "cvxNLP"
	ClassConvexMINLP ProblemClass = "cvxMINLP"
	ClassConvexGDP   ProblemClass = "cvxGDP"
)

// AllClasses lists every problem class in display order.
var AllClasses = []ProblemClass{
	ClassGDP, ClassDP, ClassMINLP, ClassNLP, ClassMILP, ClassLP,
	ClassConvexGDP, ClassConvexMINLP, ClassConvexNLP,
}

// ParseProblemClass resolves a class name case-insensitively.
func ParseProblemClass(s string) (ProblemClass, error) {
	s = strings.TrimSpace(s)
	for _, c := range AllClasses {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownClass, s)
}

// ClassSet is a set of problem classes.
type ClassSet map[ProblemClass]struct{}

// NewClassSet builds a set from the given classes.
func NewClassSet(classes ...ProblemClass) ClassSet {
	s := make(ClassSet, len(classes))
	for _, c := range classes {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether c is in the set.
func (s ClassSet) Has(c ProblemClass) bool {
	_, ok := s[c]
	return ok
}

// Sorted returns the members in AllClasses order.
func (s ClassSet) Sorted() []ProblemClass {
	out := make([]ProblemClass, 0, len(s))
	for _, c := range AllClasses {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Sense is the objective direction of a model.
type Sense string

const (
	Minimize Sense = "minimize"
	Maximize Sense = "maximize"
)

// ReferenceKind says what a model's reference value means.
type ReferenceKind string

const (
	// ReferenceOptimal is a proven optimal objective value.
	ReferenceOptimal ReferenceKind = "optimal"
	// ReferenceBestKnown is the best objective value known so far.
	ReferenceBestKnown ReferenceKind = "best_known"
	// ReferenceInfeasible marks a model known to be infeasible; it has no value.
	ReferenceInfeasible ReferenceKind = "infeasible"
)

// Reference is the single reference solution of a model. Exactly one of
// optimal value, best known value or the infeasible sentinel is carried.
type Reference struct {
	Kind  ReferenceKind
	Value float64
}

// OptimalValue returns a proven-optimal reference.
func OptimalValue(v float64) Reference { return Reference{Kind: ReferenceOptimal, Value: v} }

// BestKnownValue returns a best-known reference.
func BestKnownValue(v float64) Reference { return Reference{Kind: ReferenceBestKnown, Value: v} }

// Infeasible returns the known-infeasible reference.
func Infeasible() Reference { return Reference{Kind: ReferenceInfeasible} }

// IsSet reports whether a reference kind has been assigned.
func (r Reference) IsSet() bool { return r.Kind != "" }

// ModelStats are size statistics of a model, taken from the catalog's
// stats block.
type ModelStats struct {
	Variables        int     `yaml:"variables" json:"variables"`
	BinaryVariables  int     `yaml:"binary_variables" json:"binary_variables"`
	IntegerVariables int     `yaml:"integer_variables" json:"integer_variables"`
	Constraints      int     `yaml:"constraints" json:"constraints"`
	BuildTimeSeconds float64 `yaml:"build_time" json:"build_time"`
}

// DiscreteVariables is the count of binary plus integer variables.
func (s ModelStats) DiscreteVariables() int {
	return s.BinaryVariables + s.IntegerVariables
}

// ModelDescriptor describes one benchmark model.
type ModelDescriptor struct {
	Name          string
	Class         ProblemClass
	Sense         Sense
	Reference     Reference
	BestDualBound *float64

	// Source is an opaque locator handed to the build step (usually a file path).
	Source string
	// BuildCommand optionally constructs the model artifact before solving.
	BuildCommand []string

	stats *ModelStats
}

// Stats returns the attached statistics, if any.
func (m *ModelDescriptor) Stats() (ModelStats, bool) {
	if m == nil || m.stats == nil {
		return ModelStats{}, false
	}
	return *m.stats, true
}

// BuildTime is the cached model construction time, zero when unknown.
func (m *ModelDescriptor) BuildTime() time.Duration {
	s, ok := m.Stats()
	if !ok || s.BuildTimeSeconds <= 0 {
		return 0
	}
	return time.Duration(s.BuildTimeSeconds * float64(time.Second))
}

// Validate checks the descriptor invariants.
func (m *ModelDescriptor) Validate() error {
	if err := validateName("model", m.Name); err != nil {
		return err
	}
	if _, err := ParseProblemClass(string(m.Class)); err != nil {
		return fmt.Errorf("model %s: %w", m.Name, err)
	}
	switch m.Sense {
	case Minimize, Maximize:
	default:
		return fmt.Errorf("model %s: invalid objective sense %q", m.Name, m.Sense)
	}
	switch m.Reference.Kind {
	case ReferenceOptimal, ReferenceBestKnown, ReferenceInfeasible:
	case "":
		return fmt.Errorf("%w: model %s has no reference value", ErrReference, m.Name)
	default:
		return fmt.Errorf("%w: model %s has unknown reference kind %q", ErrReference, m.Name, m.Reference.Kind)
	}
	return nil
}

// SolverDescriptor describes one solver configuration.
type SolverDescriptor struct {
	Name string

	// Compatible are the classes the solver can attempt.
	Compatible ClassSet
	// Global are the classes for which the solver guarantees global optimality.
	// Always a subset of Compatible.
	Global ClassSet

	// Command is the solver invocation template run by the job process.
	Command []string

	// MILP and NLP name the sub-solvers used by decomposition methods.
	MILP string
	NLP  string

	// Reformulation is set on derived GDP variants ("bigm" or "hull").
	Reformulation string
	// Base names the solver a derived variant was generated from.
	Base string
}

// CanSolve reports whether the solver accepts models of class c.
func (s *SolverDescriptor) CanSolve(c ProblemClass) bool {
	return s != nil && s.Compatible.Has(c)
}

// IsGlobalFor reports whether the solver is exact for class c.
func (s *SolverDescriptor) IsGlobalFor(c ProblemClass) bool {
	return s != nil && s.Global.Has(c)
}

// Capability returns the capability marker for class c:
// "G" global, "x" compatible, "." otherwise.
func (s *SolverDescriptor) Capability(c ProblemClass) string {
	switch {
	case s.IsGlobalFor(c):
		return "G"
	case s.CanSolve(c):
		return "x"
	default:
		return "."
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

// validateName rejects names that would not map to exactly one directory
// level under a run: solver and model names become path components.
func validateName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s name is required", kind)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %s %q", ErrInvalidName, kind, name)
	}
	return nil
}

// WithStats returns a copy of m carrying the given statistics.
func (m ModelDescriptor) WithStats(s ModelStats) ModelDescriptor {
	m.stats = &s
	return m
}
