package catalog

import "fmt"

// Reformulation names accepted in a derived solver's Reformulation field.
const (
	ReformulationBigM = "bigm"
	ReformulationHull = "hull"
)

// gdpClassFor maps the algebraic class a MIP-type solver handles to the
// disjunctive class it handles after a GDP reformulation.
var gdpClassFor = map[ProblemClass]ProblemClass{
	ClassMINLP:       ClassGDP,
	ClassConvexMINLP: ClassConvexGDP,
	ClassMILP:        ClassDP,
}

var reformulationSuffixes = []struct {
	suffix string
	name   string
}{
	{"BM", ReformulationBigM},
	{"HR", ReformulationHull},
}

// RegisterGDPReformulations registers the big-M and hull variants of base.
//
// A variant is named "<base>-BM" or "<base>-HR". Its compatible and global
// classes are the disjunctive counterparts of the base solver's classes;
// classes without a disjunctive counterpart are dropped.
func (r *SolverRegistry) RegisterGDPReformulations(baseName string) ([]string, error) {
	base, err := r.Lookup(baseName)
	if err != nil {
		return nil, err
	}

	compatible := make(ClassSet)
	for c := range base.Compatible {
		if mapped, ok := gdpClassFor[c]; ok {
			compatible[mapped] = struct{}{}
		}
	}
	global := make(ClassSet)
	for c := range base.Global {
		if mapped, ok := gdpClassFor[c]; ok {
			global[mapped] = struct{}{}
		}
	}
	if len(compatible) == 0 {
		return nil, fmt.Errorf("solver %s has no classes with a GDP counterpart", baseName)
	}

	names := make([]string, 0, len(reformulationSuffixes))
	for _, rf := range reformulationSuffixes {
		variant := SolverDescriptor{
			Name:          base.Name + "-" + rf.suffix,
			Compatible:    compatible,
			Global:        global,
			Command:       base.Command,
			MILP:          base.MILP,
			NLP:           base.NLP,
			Reformulation: rf.name,
			Base:          base.Name,
		}
		if err := r.Register(variant); err != nil {
			return names, err
		}
		names = append(names, variant.Name)
	}
	return names, nil
}
