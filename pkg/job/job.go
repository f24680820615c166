// Package job defines the (model, solver) job value, job sets, and the
// files a job process reads and writes inside its directory.
package job

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Job is an ordered (model, solver) pair. Jobs compare by value.
type Job struct {
	Model  string
	Solver string
}

// New returns the job for model and solver.
func New(model, solver string) Job {
	return Job{Model: model, Solver: solver}
}

// String renders the job as "model/solver".
func (j Job) String() string {
	return j.Model + "/" + j.Solver
}

// Less orders jobs lexicographically by (model, solver).
func (j Job) Less(o Job) bool {
	if j.Model != o.Model {
		return j.Model < o.Model
	}
	return j.Solver < o.Solver
}

func (j Job) validate() error {
	if j.Model == "" || j.Solver == "" {
		return fmt.Errorf("job requires both model and solver, got [%q, %q]", j.Model, j.Solver)
	}
	return nil
}

// MarshalYAML encodes the job as a two-element sequence.
func (j Job) MarshalYAML() (any, error) {
	return []string{j.Model, j.Solver}, nil
}

// UnmarshalYAML decodes a two-element sequence.
func (j *Job) UnmarshalYAML(value *yaml.Node) error {
	var pair []string
	if err := value.Decode(&pair); err != nil {
		return fmt.Errorf("job: line %d: %w", value.Line, err)
	}
	return j.fromPair(pair)
}

// MarshalJSON encodes the job as a two-element array.
func (j Job) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string{j.Model, j.Solver})
}

// UnmarshalJSON decodes a two-element array.
func (j *Job) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("job: %w", err)
	}
	return j.fromPair(pair)
}

func (j *Job) fromPair(pair []string) error {
	if len(pair) != 2 {
		return fmt.Errorf("job must be a [model, solver] pair, got %d elements", len(pair))
	}
	parsed := Job{Model: pair[0], Solver: pair[1]}
	if err := parsed.validate(); err != nil {
		return err
	}
	*j = parsed
	return nil
}

// Sort orders jobs in place by (model, solver).
func Sort(jobs []Job) {
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].Less(jobs[b]) })
}
