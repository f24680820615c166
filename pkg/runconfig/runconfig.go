// Package runconfig persists the bookkeeping record of a run.
//
// The run config file is the single durable source of truth for which jobs
// belong to a run, which were dispatched last, and which finished or failed.
// Only the coordinating process reads or writes it.
package runconfig

import (
	"errors"
	"fmt"
	"time"

	"github.com/3leaps/gosperf/pkg/job"
)

var (
	// ErrInvalid indicates a run config that violates its invariants or schema.
	ErrInvalid = errors.New("invalid run config")

	// ErrNotFound indicates a run without a config file.
	ErrNotFound = errors.New("run config not found")
)

// RunConfig is the bookkeeping record of one run.
type RunConfig struct {
	RunNumber        int     `yaml:"run_number"`
	TimeLimitSeconds float64 `yaml:"time_limit"`
	Catalog          string  `yaml:"catalog,omitempty"`

	CreatedAt *time.Time `yaml:"created_at,omitempty"`
	UpdatedAt *time.Time `yaml:"updated_at,omitempty"`

	// Jobs is the full job matrix of the run.
	Jobs job.Set `yaml:"jobs"`
	// JobsToRun is the most recent dispatch set.
	JobsToRun job.Set `yaml:"jobs_to_run"`
	// JobsRun are the jobs that reached a clean stop in the last collection.
	JobsRun job.Set `yaml:"jobs_run"`
	// JobsFailed are the jobs in JobsRun that never completed their solve.
	JobsFailed job.Set `yaml:"jobs_failed"`
}

// New returns a config for a freshly allocated run where every job is queued.
func New(runNumber int, jobs job.Set, timeLimit time.Duration, now time.Time) *RunConfig {
	created := now.UTC()
	return &RunConfig{
		RunNumber:        runNumber,
		TimeLimitSeconds: timeLimit.Seconds(),
		CreatedAt:        &created,
		Jobs:             jobs.Clone(),
		JobsToRun:        jobs.Clone(),
		JobsRun:          job.NewSet(),
		JobsFailed:       job.NewSet(),
	}
}

// TimeLimit is the per-job solver time limit.
func (c *RunConfig) TimeLimit() time.Duration {
	return time.Duration(c.TimeLimitSeconds * float64(time.Second))
}

// SetTimeLimit replaces the time limit.
func (c *RunConfig) SetTimeLimit(d time.Duration) {
	c.TimeLimitSeconds = d.Seconds()
}

// Touch records a modification time.
func (c *RunConfig) Touch(now time.Time) {
	t := now.UTC()
	c.UpdatedAt = &t
}

// normalize replaces nil job sets with empty ones.
func (c *RunConfig) normalize() {
	if c.Jobs == nil {
		c.Jobs = job.NewSet()
	}
	if c.JobsToRun == nil {
		c.JobsToRun = job.NewSet()
	}
	if c.JobsRun == nil {
		c.JobsRun = job.NewSet()
	}
	if c.JobsFailed == nil {
		c.JobsFailed = job.NewSet()
	}
}

// Validate checks jobs_failed ⊆ jobs_run ⊆ jobs and jobs_to_run ⊆ jobs.
func (c *RunConfig) Validate() error {
	if c.RunNumber < 1 {
		return fmt.Errorf("%w: run_number must be positive, got %d", ErrInvalid, c.RunNumber)
	}
	if c.TimeLimitSeconds <= 0 {
		return fmt.Errorf("%w: time_limit must be positive", ErrInvalid)
	}
	if extra := c.JobsRun.Difference(c.Jobs); extra.Len() > 0 {
		return fmt.Errorf("%w: jobs_run has %d jobs outside the run (first: %s)", ErrInvalid, extra.Len(), extra.Sorted()[0])
	}
	if extra := c.JobsFailed.Difference(c.JobsRun); extra.Len() > 0 {
		return fmt.Errorf("%w: jobs_failed has %d jobs not in jobs_run (first: %s)", ErrInvalid, extra.Len(), extra.Sorted()[0])
	}
	if extra := c.JobsToRun.Difference(c.Jobs); extra.Len() > 0 {
		return fmt.Errorf("%w: jobs_to_run has %d jobs outside the run (first: %s)", ErrInvalid, extra.Len(), extra.Sorted()[0])
	}
	return nil
}

// Clone returns a deep copy.
func (c *RunConfig) Clone() *RunConfig {
	out := *c
	out.Jobs = c.Jobs.Clone()
	out.JobsToRun = c.JobsToRun.Clone()
	out.JobsRun = c.JobsRun.Clone()
	out.JobsFailed = c.JobsFailed.Clone()
	if c.CreatedAt != nil {
		t := *c.CreatedAt
		out.CreatedAt = &t
	}
	if c.UpdatedAt != nil {
		t := *c.UpdatedAt
		out.UpdatedAt = &t
	}
	return &out
}
