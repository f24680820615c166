package jobexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/3leaps/gosperf/pkg/catalog"
)

// OutcomeFile is where a solver command reports its outcome, relative to
// the job directory.
const OutcomeFile = "solver.outcome.yaml"

// CommandBuilder runs a model's build_command inside the job directory.
//
// Models without a build command are used as-is; their source, if set,
// must exist. Arguments are templates over {{.Name}}, {{.Source}} and
// {{.Dir}}.
type CommandBuilder struct{}

type buildVars struct {
	Name   string
	Source string
	Dir    string
}

// Build implements ModelBuilder.
func (CommandBuilder) Build(ctx context.Context, m *catalog.ModelDescriptor, dir string) (string, error) {
	if len(m.BuildCommand) == 0 {
		if m.Source != "" {
			if _, err := os.Stat(m.Source); err != nil {
				return "", fmt.Errorf("model source: %w", err)
			}
		}
		return m.Source, nil
	}

	args, err := expandArgs(m.BuildCommand, buildVars{Name: m.Name, Source: m.Source, Dir: dir})
	if err != nil {
		return "", err
	}
	if err := runCommand(ctx, dir, args); err != nil {
		return "", err
	}
	return m.Source, nil
}

// CommandSolver runs a solver's command template and reads the outcome file
// the command writes.
//
// Template fields: {{.ModelSource}}, {{.TimeLimitSeconds}}, {{.OutcomePath}},
// {{.Reformulation}}, {{.MILP}}, {{.NLP}}, {{.Dir}}.
type CommandSolver struct{}

type solveVars struct {
	ModelSource      string
	TimeLimitSeconds string
	OutcomePath      string
	Reformulation    string
	MILP             string
	NLP              string
	Dir              string
}

// Solve implements SolverRunner.
func (CommandSolver) Solve(ctx context.Context, req SolveRequest) (*Outcome, error) {
	if len(req.Solver.Command) == 0 {
		return nil, fmt.Errorf("solver %s has no command", req.Solver.Name)
	}
	outcomePath := filepath.Join(req.Dir, OutcomeFile)
	if err := os.Remove(outcomePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("clear outcome file: %w", err)
	}

	args, err := expandArgs(req.Solver.Command, solveVars{
		ModelSource:      req.ModelSource,
		TimeLimitSeconds: strconv.FormatFloat(req.TimeLimit.Seconds(), 'f', -1, 64),
		OutcomePath:      outcomePath,
		Reformulation:    req.Solver.Reformulation,
		MILP:             req.Solver.MILP,
		NLP:              req.Solver.NLP,
		Dir:              req.Dir,
	})
	if err != nil {
		return nil, err
	}
	if err := runCommand(ctx, req.Dir, args); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(outcomePath)
	if err != nil {
		return nil, fmt.Errorf("solver %s wrote no outcome: %w", req.Solver.Name, err)
	}
	var out Outcome
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse solver outcome: %w", err)
	}
	return &out, nil
}

func expandArgs(templates []string, vars any) ([]string, error) {
	out := make([]string, 0, len(templates))
	for i, raw := range templates {
		tmpl, err := template.New("arg" + strconv.Itoa(i)).Option("missingkey=error").Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("command argument %q: %w", raw, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, vars); err != nil {
			return nil, fmt.Errorf("command argument %q: %w", raw, err)
		}
		out = append(out, buf.String())
	}
	return out, nil
}

// runCommand runs args in dir with the job's stdout and stderr.
func runCommand(ctx context.Context, dir string, args []string) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return nil
}
