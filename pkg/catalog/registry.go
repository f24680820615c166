package catalog

import (
	"fmt"
	"sync"
)

// ModelRegistry maps model names to descriptors.
//
// Descriptors are immutable once registered; statistics travel with the
// descriptor (see WithStats). ModelRegistry is safe for concurrent use.
type ModelRegistry struct {
	mu     sync.RWMutex
	models map[string]*ModelDescriptor
}

// NewModelRegistry returns an empty model registry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{models: make(map[string]*ModelDescriptor)}
}

// Register validates and adds a model.
func (r *ModelRegistry) Register(m ModelDescriptor) error {
	if err := m.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[m.Name]; ok {
		return fmt.Errorf("model %s: %w", m.Name, ErrDuplicate)
	}
	desc := m
	if m.stats != nil {
		s := *m.stats
		desc.stats = &s
	}
	r.models[m.Name] = &desc
	return nil
}

// Get looks up a model by name.
func (r *ModelRegistry) Get(name string) (*ModelDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// Lookup looks up a model, returning ErrUnknownModel when absent.
func (r *ModelRegistry) Lookup(name string) (*ModelDescriptor, error) {
	m, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return m, nil
}

// Names returns registered model names in lexicographic order.
func (r *ModelRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.models)
}

// All returns descriptors in name order.
func (r *ModelRegistry) All() []*ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ModelDescriptor, 0, len(r.models))
	for _, name := range sortedKeys(r.models) {
		out = append(out, r.models[name])
	}
	return out
}

// Len returns the number of registered models.
func (r *ModelRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

// SolverRegistry maps solver names to descriptors. Safe for concurrent use.
type SolverRegistry struct {
	mu      sync.RWMutex
	solvers map[string]*SolverDescriptor
}

// NewSolverRegistry returns an empty solver registry.
func NewSolverRegistry() *SolverRegistry {
	return &SolverRegistry{solvers: make(map[string]*SolverDescriptor)}
}

// Register adds a solver. Global classes are folded into the compatible set.
func (r *SolverRegistry) Register(s SolverDescriptor) error {
	if err := validateName("solver", s.Name); err != nil {
		return err
	}
	desc := s
	desc.Compatible = NewClassSet(s.Compatible.Sorted()...)
	desc.Global = NewClassSet(s.Global.Sorted()...)
	for c := range desc.Global {
		desc.Compatible[c] = struct{}{}
	}
	desc.Command = append([]string(nil), s.Command...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.solvers[s.Name]; ok {
		return fmt.Errorf("solver %s: %w", s.Name, ErrDuplicate)
	}
	r.solvers[s.Name] = &desc
	return nil
}

// Get looks up a solver by name.
func (r *SolverRegistry) Get(name string) (*SolverDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.solvers[name]
	return s, ok
}

// Lookup looks up a solver, returning ErrUnknownSolver when absent.
func (r *SolverRegistry) Lookup(name string) (*SolverDescriptor, error) {
	s, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSolver, name)
	}
	return s, nil
}

// Names returns registered solver names in lexicographic order.
func (r *SolverRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.solvers)
}

// All returns descriptors in name order.
func (r *SolverRegistry) All() []*SolverDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*SolverDescriptor, 0, len(r.solvers))
	for _, name := range sortedKeys(r.solvers) {
		out = append(out, r.solvers[name])
	}
	return out
}

// Len returns the number of registered solvers.
func (r *SolverRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.solvers)
}

// Catalog bundles the two registries.
type Catalog struct {
	Models  *ModelRegistry
	Solvers *SolverRegistry

	// Path is the file the catalog was loaded from, if any.
	Path string
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{Models: NewModelRegistry(), Solvers: NewSolverRegistry()}
}
