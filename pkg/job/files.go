package job

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	schemasassets "github.com/3leaps/gosperf/internal/assets/schemas"
)

// Marker files, written by the job process in this order.
//
// NOTE: These names are part of the on-disk run layout.
const (
	StartMarker      = ".job_start.log"
	ModelBuiltMarker = ".job_model_built.log"
	SolveDoneMarker  = ".job_solve_done.log"
	StopMarker       = ".job_stop.log"
)

// Markers lists the marker files in state order.
var Markers = []string{StartMarker, ModelBuiltMarker, SolveDoneMarker, StopMarker}

// Other files in a job directory.
const (
	ConfigFile = "job.config.yaml"
	ResultFile = "job.result.yaml"
	ScriptFile = "run_job.sh"
	StdoutLog  = "stdout.log"
	StderrLog  = "stderr.log"
)

// Config is the per-job payload the job process reads on startup.
type Config struct {
	Run              int     `yaml:"run"`
	Model            string  `yaml:"model"`
	Solver           string  `yaml:"solver"`
	TimeLimitSeconds float64 `yaml:"time_limit"`
	Catalog          string  `yaml:"catalog,omitempty"`
}

// Job returns the (model, solver) pair of the payload.
func (c Config) Job() Job { return New(c.Model, c.Solver) }

// TimeLimit is the solver time limit.
func (c Config) TimeLimit() time.Duration {
	return time.Duration(c.TimeLimitSeconds * float64(time.Second))
}

// WriteConfig writes the payload into dir.
func WriteConfig(dir string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal job config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), data, 0o644); err != nil {
		return fmt.Errorf("write job config: %w", err)
	}
	return nil
}

// ReadConfig reads the payload from dir.
func ReadConfig(dir string) (Config, error) {
	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		return Config{}, fmt.Errorf("read job config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse job config: %w", err)
	}
	if err := cfg.Job().validate(); err != nil {
		return Config{}, fmt.Errorf("job config: %w", err)
	}
	if cfg.TimeLimitSeconds <= 0 {
		return Config{}, fmt.Errorf("job config: time_limit must be positive")
	}
	return cfg, nil
}

// Termination conditions recorded in a result.
const (
	TerminationOptimal       = "optimal"
	TerminationFeasible      = "feasible"
	TerminationInfeasible    = "infeasible"
	TerminationUnbounded     = "unbounded"
	TerminationMaxTime       = "maxTimeLimit"
	TerminationMaxIterations = "maxIterations"
	TerminationSolverError   = "error"
	TerminationUnknown       = "unknown"
)

// Result is the record a job process writes once after its solve attempt.
//
// Optional values are nil when the solver did not report them.
type Result struct {
	Model  string `yaml:"model"`
	Solver string `yaml:"solver"`

	ModelBuildStart *time.Time `yaml:"model_build_start,omitempty"`
	ModelBuildEnd   *time.Time `yaml:"model_build_end,omitempty"`
	SolverStart     *time.Time `yaml:"solver_start,omitempty"`
	SolverEnd       *time.Time `yaml:"solver_end,omitempty"`

	LowerBound *float64 `yaml:"lower_bound,omitempty"`
	UpperBound *float64 `yaml:"upper_bound,omitempty"`
	// SolverTime is the elapsed solver time in seconds.
	SolverTime *float64 `yaml:"solver_time,omitempty"`
	Iterations *int64   `yaml:"iterations,omitempty"`

	TerminationCondition string `yaml:"termination_condition,omitempty"`
	SolverStatus         string `yaml:"solver_status,omitempty"`
	Error                string `yaml:"error,omitempty"`
}

// WriteResult writes the result record into dir.
func WriteResult(dir string, r *Result) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal job result: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ResultFile), data, 0o644); err != nil {
		return fmt.Errorf("write job result: %w", err)
	}
	return nil
}

// ErrNoResult indicates the job directory has no result record.
var ErrNoResult = errors.New("no job result")

// ReadResult reads and validates the result record in dir.
func ReadResult(dir string) (*Result, error) {
	data, err := os.ReadFile(filepath.Join(dir, ResultFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w in %s", ErrNoResult, dir)
		}
		return nil, fmt.Errorf("read job result: %w", err)
	}
	if err := schemasassets.ValidateYAML("job result", schemasassets.JobResultSchema, data); err != nil {
		return nil, err
	}
	var r Result
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse job result: %w", err)
	}
	return &r, nil
}
