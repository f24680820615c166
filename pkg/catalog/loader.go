package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	schemasassets "github.com/3leaps/gosperf/internal/assets/schemas"
)

// File is the on-disk catalog document.
type File struct {
	ReferenceFiles []string      `yaml:"reference_files,omitempty"`
	Models         []ModelEntry  `yaml:"models"`
	Solvers        []SolverEntry `yaml:"solvers"`
}

// ModelEntry is one model in a catalog file.
type ModelEntry struct {
	Name           string      `yaml:"name"`
	Class          string      `yaml:"class"`
	Sense          string      `yaml:"sense,omitempty"`
	OptimalValue   *float64    `yaml:"optimal_value,omitempty"`
	BestKnownValue *float64    `yaml:"best_known_value,omitempty"`
	BestDualBound  *float64    `yaml:"best_dual_bound,omitempty"`
	Infeasible     bool        `yaml:"infeasible,omitempty"`
	Source         string      `yaml:"source,omitempty"`
	BuildCommand   []string    `yaml:"build_command,omitempty"`
	Stats          *ModelStats `yaml:"stats,omitempty"`
}

// SolverEntry is one solver in a catalog file.
type SolverEntry struct {
	Name              string   `yaml:"name"`
	Compatible        []string `yaml:"compatible"`
	Global            []string `yaml:"global,omitempty"`
	Command           []string `yaml:"command,omitempty"`
	MILP              string   `yaml:"milp,omitempty"`
	NLP               string   `yaml:"nlp,omitempty"`
	GDPReformulations bool     `yaml:"gdp_reformulations,omitempty"`
}

// Load reads, validates and registers a catalog file.
//
// Relative reference_files and model sources resolve against the catalog's
// directory. Models without inline reference values take them from the
// reference files; a model that still has none is rejected.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("catalog file not found: %s: %w", path, os.ErrNotExist)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading catalog: %s", path)
		}
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	c, err := LoadFromBytes(data, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	c.Path = path
	return c, nil
}

// LoadFromBytes parses and registers a catalog document.
//
// baseDir anchors relative paths; empty means the working directory.
func LoadFromBytes(data []byte, baseDir string) (*Catalog, error) {
	if len(data) == 0 {
		return nil, errors.New("catalog file is empty")
	}

	// Validate the raw document first so unknown fields are rejected.
	if err := schemasassets.ValidateYAML("catalog", schemasassets.CatalogSchema, data); err != nil {
		return nil, err
	}

	var doc File
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML in catalog: %w", err)
	}

	refs := make(map[string]SoluEntry)
	for _, rf := range doc.ReferenceFiles {
		entries, err := ReadSoluFile(resolvePath(baseDir, rf))
		if err != nil {
			return nil, err
		}
		for name, e := range entries {
			refs[name] = e
		}
	}

	c := New()
	for _, me := range doc.Models {
		desc, err := me.descriptor(baseDir, refs)
		if err != nil {
			return nil, err
		}
		if err := c.Models.Register(desc); err != nil {
			return nil, err
		}
	}

	var reformulate []string
	for _, se := range doc.Solvers {
		desc, err := se.descriptor()
		if err != nil {
			return nil, err
		}
		if err := c.Solvers.Register(desc); err != nil {
			return nil, err
		}
		if se.GDPReformulations {
			reformulate = append(reformulate, se.Name)
		}
	}
	for _, name := range reformulate {
		if _, err := c.Solvers.RegisterGDPReformulations(name); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (me ModelEntry) descriptor(baseDir string, refs map[string]SoluEntry) (ModelDescriptor, error) {
	class, err := ParseProblemClass(me.Class)
	if err != nil {
		return ModelDescriptor{}, fmt.Errorf("model %s: %w", me.Name, err)
	}
	sense := Minimize
	if me.Sense != "" {
		sense = Sense(me.Sense)
	}

	desc := ModelDescriptor{
		Name:          me.Name,
		Class:         class,
		Sense:         sense,
		BestDualBound: me.BestDualBound,
		BuildCommand:  me.BuildCommand,
	}
	if me.Source != "" {
		desc.Source = resolvePath(baseDir, me.Source)
	}

	set := 0
	if me.OptimalValue != nil {
		desc.Reference = OptimalValue(*me.OptimalValue)
		set++
	}
	if me.BestKnownValue != nil {
		desc.Reference = BestKnownValue(*me.BestKnownValue)
		set++
	}
	if me.Infeasible {
		desc.Reference = Infeasible()
		set++
	}
	if set > 1 {
		return ModelDescriptor{}, fmt.Errorf("%w: model %s sets more than one of optimal_value, best_known_value, infeasible", ErrReference, me.Name)
	}
	if set == 0 {
		if ref, ok := refs[me.Name]; ok {
			desc.Reference = ref.Reference
			if desc.BestDualBound == nil {
				desc.BestDualBound = ref.BestDualBound
			}
		}
	}

	if me.Stats != nil {
		desc = desc.WithStats(*me.Stats)
	}
	return desc, nil
}

func (se SolverEntry) descriptor() (SolverDescriptor, error) {
	desc := SolverDescriptor{
		Name:       se.Name,
		Compatible: make(ClassSet),
		Global:     make(ClassSet),
		Command:    se.Command,
		MILP:       se.MILP,
		NLP:        se.NLP,
	}
	for _, s := range se.Compatible {
		c, err := ParseProblemClass(s)
		if err != nil {
			return SolverDescriptor{}, fmt.Errorf("solver %s: %w", se.Name, err)
		}
		desc.Compatible[c] = struct{}{}
	}
	for _, s := range se.Global {
		c, err := ParseProblemClass(s)
		if err != nil {
			return SolverDescriptor{}, fmt.Errorf("solver %s: %w", se.Name, err)
		}
		desc.Global[c] = struct{}{}
	}
	return desc, nil
}

func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}
