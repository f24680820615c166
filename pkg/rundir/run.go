package rundir

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/3leaps/gosperf/pkg/job"
)

// Run is a handle to one run directory.
type Run struct {
	Number int
	Dir    string
}

// JobDir returns the directory of j: <run>/<solver>/<model>.
func (r *Run) JobDir(j job.Job) string {
	return filepath.Join(r.Dir, j.Solver, j.Model)
}

func checkJob(j job.Job) error {
	for _, name := range []string{j.Solver, j.Model} {
		if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("job %s: %w: %q", j, ErrInvalidJob, name)
		}
	}
	return nil
}

// JobSpec is what every job wrapper in a run is generated from.
type JobSpec struct {
	// Command is the job entry point; the wrapper runs it inside the job
	// directory, e.g. ["/usr/local/bin/gosperf", "job", "exec"].
	Command []string

	// TimeLimit is the solver time limit written into each job config.
	TimeLimit time.Duration

	// Catalog is the absolute catalog path handed to the job process.
	Catalog string
}

func (s JobSpec) validate() error {
	if len(s.Command) == 0 || strings.TrimSpace(s.Command[0]) == "" {
		return fmt.Errorf("job command is required")
	}
	if s.TimeLimit <= 0 {
		return fmt.Errorf("time limit must be positive")
	}
	return nil
}

// Materialize creates the directory, wrapper script and config payload of
// every job.
//
// An existing job directory fails with ErrAlreadyExists; prior run output
// is never overwritten.
func (r *Run) Materialize(jobs []job.Job, spec JobSpec) error {
	if err := spec.validate(); err != nil {
		return err
	}
	for _, j := range jobs {
		if err := checkJob(j); err != nil {
			return err
		}
	}
	for _, j := range jobs {
		dir := r.JobDir(j)
		if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
			return fmt.Errorf("create solver dir: %w", err)
		}
		if err := os.Mkdir(dir, 0755); err != nil {
			if os.IsExist(err) {
				return fmt.Errorf("job %s: %w: %s", j, ErrAlreadyExists, dir)
			}
			return fmt.Errorf("create job dir: %w", err)
		}
		if err := r.writeJobFiles(j, spec); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears the output of a previous attempt of j and regenerates its
// wrapper and config so it can be dispatched again.
func (r *Run) Reset(j job.Job, spec JobSpec) error {
	if err := spec.validate(); err != nil {
		return err
	}
	if err := checkJob(j); err != nil {
		return err
	}
	dir := r.JobDir(j)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}
	stale := append([]string{job.ResultFile, job.StdoutLog, job.StderrLog}, job.Markers...)
	for _, name := range stale {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("reset job %s: %w", j, err)
		}
	}
	return r.writeJobFiles(j, spec)
}

// ScriptPath returns the wrapper script of j.
func (r *Run) ScriptPath(j job.Job) string {
	return filepath.Join(r.JobDir(j), job.ScriptFile)
}

func (r *Run) writeJobFiles(j job.Job, spec JobSpec) error {
	dir := r.JobDir(j)
	cfg := job.Config{
		Run:              r.Number,
		Model:            j.Model,
		Solver:           j.Solver,
		TimeLimitSeconds: spec.TimeLimit.Seconds(),
		Catalog:          spec.Catalog,
	}
	if err := job.WriteConfig(dir, cfg); err != nil {
		return fmt.Errorf("job %s: %w", j, err)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve job dir: %w", err)
	}
	script, err := renderScript(scriptData{
		Run:     r.Number,
		Job:     j,
		Dir:     absDir,
		Command: spec.Command,
		Stdout:  job.StdoutLog,
		Stderr:  job.StderrLog,
	})
	if err != nil {
		return fmt.Errorf("job %s: %w", j, err)
	}
	if err := os.WriteFile(filepath.Join(dir, job.ScriptFile), script, 0755); err != nil {
		return fmt.Errorf("write job script: %w", err)
	}
	return nil
}

type scriptData struct {
	Run     int
	Job     job.Job
	Dir     string
	Command []string
	Stdout  string
	Stderr  string
}

var scriptTemplate = template.Must(template.New("run_job.sh").Funcs(template.FuncMap{
	"quote": shellQuote,
}).Parse(`#!/bin/sh
# run {{.Run}}: model {{.Job.Model}}, solver {{.Job.Solver}}
cd {{quote .Dir}} || exit 1
exec{{range .Command}} {{quote .}}{{end}} >{{quote .Stdout}} 2>{{quote .Stderr}}
`))

func renderScript(d scriptData) ([]byte, error) {
	var buf bytes.Buffer
	if err := scriptTemplate.Execute(&buf, d); err != nil {
		return nil, fmt.Errorf("render job script: %w", err)
	}
	return buf.Bytes(), nil
}

// shellQuote single-quotes s for POSIX sh.
func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("/._-+=:,@", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
