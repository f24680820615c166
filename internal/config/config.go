// Package config loads gosperf configuration from defaults, an optional
// YAML file, GOSPERF_* environment variables and runtime overrides, in
// increasing order of precedence.
package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/3leaps/gosperf/pkg/analysis"
	"github.com/3leaps/gosperf/pkg/dispatch"
)

// Config is the resolved gosperf configuration.
type Config struct {
	RunsDir   string `mapstructure:"runs_dir"`
	Catalog   string `mapstructure:"catalog"`
	ResultsDB string `mapstructure:"results_db"`

	Run        RunConfig        `mapstructure:"run"`
	Tolerances TolerancesConfig `mapstructure:"tolerances"`
	Cluster    ClusterConfig    `mapstructure:"cluster"`
	Scan       ScanConfig       `mapstructure:"scan"`
	Job        JobConfig        `mapstructure:"job"`
	Publish    PublishConfig    `mapstructure:"publish"`
	Logging    LoggingConfig    `mapstructure:"logging"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// RunConfig holds dispatch defaults for new runs.
type RunConfig struct {
	TimeLimit     time.Duration `mapstructure:"time_limit"`
	BufferPercent float64       `mapstructure:"buffer_percent"`
	MinBuffer     time.Duration `mapstructure:"min_buffer"`
	Backend       string        `mapstructure:"backend"`
	KillGrace     time.Duration `mapstructure:"kill_grace"`
}

// TolerancesConfig holds the gap thresholds used by analysis.
type TolerancesConfig struct {
	Optimality      float64 `mapstructure:"optimality"`
	OptimalitySlack float64 `mapstructure:"optimality_slack"`
	Acceptable      float64 `mapstructure:"acceptable"`
}

// ClusterConfig configures the batch scheduler backend.
type ClusterConfig struct {
	SubmitCommand string  `mapstructure:"submit_command"`
	Processes     int     `mapstructure:"processes"`
	MemoryGB      int     `mapstructure:"memory_gb"`
	SubmitRate    float64 `mapstructure:"submit_rate"`
}

// ScanConfig bounds marker scanning.
type ScanConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// JobConfig configures the job entry point written into wrapper scripts.
type JobConfig struct {
	// Command is the argv each wrapper runs inside its job directory.
	// Empty means "<running binary> job exec".
	Command []string `mapstructure:"command"`
}

// PublishConfig configures artifact upload.
type PublishConfig struct {
	Region         string   `mapstructure:"region"`
	Endpoint       string   `mapstructure:"endpoint"`
	Profile        string   `mapstructure:"profile"`
	ForcePathStyle bool     `mapstructure:"force_path_style"`
	Concurrency    int      `mapstructure:"concurrency"`
	Artifacts      []string `mapstructure:"artifacts"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// AnalysisTolerances converts the configured thresholds.
func (c *Config) AnalysisTolerances() analysis.Tolerances {
	return analysis.Tolerances{
		Optimality:      c.Tolerances.Optimality,
		OptimalitySlack: c.Tolerances.OptimalitySlack,
		Acceptable:      c.Tolerances.Acceptable,
	}
}

// Budget returns the per-job time budget for a solver time limit.
func (c *Config) Budget(timeLimit time.Duration) dispatch.Budget {
	return dispatch.Budget{
		TimeLimit:     timeLimit,
		BufferPercent: c.Run.BufferPercent,
		MinBuffer:     c.Run.MinBuffer,
	}
}

// ResultsDBPath returns the results database path, defaulting to
// <runs_dir>/results.db.
func (c *Config) ResultsDBPath() string {
	if c.ResultsDB != "" {
		return c.ResultsDB
	}
	return filepath.Join(c.RunsDir, "results.db")
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	if c.RunsDir == "" {
		return fmt.Errorf("runs_dir is required")
	}
	if c.Catalog == "" {
		return fmt.Errorf("catalog is required")
	}
	if c.Run.TimeLimit <= 0 {
		return fmt.Errorf("run.time_limit must be positive, got %s", c.Run.TimeLimit)
	}
	if c.Run.BufferPercent < 0 {
		return fmt.Errorf("run.buffer_percent must not be negative")
	}
	if c.Run.MinBuffer < 0 {
		return fmt.Errorf("run.min_buffer must not be negative")
	}
	if !slices.Contains(dispatch.Backends, c.Run.Backend) {
		return fmt.Errorf("run.backend %q is not one of %v", c.Run.Backend, dispatch.Backends)
	}
	if err := c.AnalysisTolerances().Validate(); err != nil {
		return fmt.Errorf("tolerances: %w", err)
	}
	if c.Cluster.Processes < 1 {
		return fmt.Errorf("cluster.processes must be >= 1")
	}
	if c.Cluster.MemoryGB < 1 {
		return fmt.Errorf("cluster.memory_gb must be >= 1")
	}
	if c.Scan.Concurrency < 1 {
		return fmt.Errorf("scan.concurrency must be >= 1")
	}
	if c.Publish.Concurrency < 1 {
		return fmt.Errorf("publish.concurrency must be >= 1")
	}
	return nil
}
