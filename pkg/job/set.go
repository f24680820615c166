package job

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Set is an unordered collection of distinct jobs.
//
// Sets serialize as a list of [model, solver] pairs in (model, solver)
// order. Decoding rejects lists that repeat a pair.
//
// The zero value is an empty set ready for reads; use NewSet or Add on a
// non-nil set before writing.
type Set map[Job]struct{}

// NewSet builds a set from jobs.
func NewSet(jobs ...Job) Set {
	s := make(Set, len(jobs))
	for _, j := range jobs {
		s[j] = struct{}{}
	}
	return s
}

// Add inserts j.
func (s Set) Add(j Job) { s[j] = struct{}{} }

// Remove deletes j.
func (s Set) Remove(j Job) { delete(s, j) }

// Has reports membership.
func (s Set) Has(j Job) bool {
	_, ok := s[j]
	return ok
}

// Len returns the number of jobs.
func (s Set) Len() int { return len(s) }

// Sorted returns the members in (model, solver) order.
func (s Set) Sorted() []Job {
	out := make([]Job, 0, len(s))
	for j := range s {
		out = append(out, j)
	}
	Sort(out)
	return out
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for j := range s {
		out[j] = struct{}{}
	}
	return out
}

// Union returns s ∪ o.
func (s Set) Union(o Set) Set {
	out := s.Clone()
	for j := range o {
		out[j] = struct{}{}
	}
	return out
}

// Difference returns s − o.
func (s Set) Difference(o Set) Set {
	out := make(Set, len(s))
	for j := range s {
		if !o.Has(j) {
			out[j] = struct{}{}
		}
	}
	return out
}

// Intersect returns s ∩ o.
func (s Set) Intersect(o Set) Set {
	out := make(Set)
	for j := range s {
		if o.Has(j) {
			out[j] = struct{}{}
		}
	}
	return out
}

// SubsetOf reports whether every member of s is in o.
func (s Set) SubsetOf(o Set) bool {
	for j := range s {
		if !o.Has(j) {
			return false
		}
	}
	return true
}

// Equal reports whether both sets hold the same jobs.
func (s Set) Equal(o Set) bool {
	return len(s) == len(o) && s.SubsetOf(o)
}

// Models returns the distinct model names in s, sorted.
func (s Set) Models() []string {
	seen := make(map[string]struct{})
	for j := range s {
		seen[j.Model] = struct{}{}
	}
	return sortedNames(seen)
}

// Solvers returns the distinct solver names in s, sorted.
func (s Set) Solvers() []string {
	seen := make(map[string]struct{})
	for j := range s {
		seen[j.Solver] = struct{}{}
	}
	return sortedNames(seen)
}

// MarshalYAML encodes the set as a sorted list of pairs.
func (s Set) MarshalYAML() (any, error) {
	return s.Sorted(), nil
}

// UnmarshalYAML decodes a list of pairs.
func (s *Set) UnmarshalYAML(value *yaml.Node) error {
	var jobs []Job
	if err := value.Decode(&jobs); err != nil {
		return err
	}
	return s.fromList(jobs)
}

// MarshalJSON encodes the set as a sorted list of pairs.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes a list of pairs.
func (s *Set) UnmarshalJSON(data []byte) error {
	var jobs []Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return err
	}
	return s.fromList(jobs)
}

func (s *Set) fromList(jobs []Job) error {
	out := make(Set, len(jobs))
	for _, j := range jobs {
		if out.Has(j) {
			return fmt.Errorf("duplicate job %s", j)
		}
		out[j] = struct{}{}
	}
	*s = out
	return nil
}

func sortedNames(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
