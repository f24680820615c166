package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"

	"github.com/3leaps/gosperf/pkg/catalog"
	"github.com/3leaps/gosperf/pkg/matrix"
	"github.com/3leaps/gosperf/pkg/runconfig"
	"github.com/3leaps/gosperf/pkg/rundir"
)

func TestSetVersionInfo(t *testing.T) {
	orig := versionInfo
	defer func() { versionInfo = orig }()

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
	}{
		{name: "set all values", version: "1.0.0", commit: "abc123", buildDate: "2026-01-15"},
		{name: "set dev version", version: "dev", commit: "HEAD", buildDate: "unknown"},
		{name: "set empty values"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetVersionInfo(tt.version, tt.commit, tt.buildDate)
			assert.Equal(t, tt.version, versionInfo.Version)
			assert.Equal(t, tt.commit, versionInfo.Commit)
			assert.Equal(t, tt.buildDate, versionInfo.BuildDate)
			assert.Contains(t, rootCmd.Version, tt.commit)
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, foundry.ExitSignalInt, ExitCode(fmt.Errorf("dispatch: %w", context.Canceled)))

	err := fmt.Errorf("wrapped: %w", exitError(foundry.ExitFileNotFound, "Run not found", rundir.ErrRunNotFound))
	assert.Equal(t, foundry.ExitFileNotFound, ExitCode(err))
	assert.Contains(t, err.Error(), "exit code")
}

func TestRunError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"unknown model", fmt.Errorf("filter: %w", catalog.ErrUnknownModel), foundry.ExitInvalidArgument},
		{"unknown solver", catalog.ErrUnknownSolver, foundry.ExitInvalidArgument},
		{"unknown class", catalog.ErrUnknownClass, foundry.ExitInvalidArgument},
		{"bad pattern", &matrix.PatternError{Pattern: "[", Err: matrix.ErrInvalidPattern}, foundry.ExitInvalidArgument},
		{"empty matrix", errEmptyMatrix, foundry.ExitInvalidArgument},
		{"escaping job name", fmt.Errorf("job (run9, ..): %w", rundir.ErrInvalidJob), foundry.ExitInvalidArgument},
		{"invalid catalog name", catalog.ErrInvalidName, foundry.ExitInvalidArgument},
		{"existing run", fmt.Errorf("run 3: %w", rundir.ErrAlreadyExists), foundry.ExitFileWriteError},
		{"missing run", rundir.ErrRunNotFound, foundry.ExitFileNotFound},
		{"no runs", rundir.ErrNoRuns, foundry.ExitFileNotFound},
		{"missing config", runconfig.ErrNotFound, foundry.ExitFileNotFound},
		{"malformed config", runconfig.ErrInvalid, foundry.ExitFileReadError},
		{"cancelled", context.Canceled, foundry.ExitSignalInt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ExitCode(runError(tt.err)))
		})
	}

	plain := errors.New("disk on fire")
	assert.Same(t, plain, runError(plain))
}

func TestFlagOverrides(t *testing.T) {
	defer func() { flagRunsDir, flagCatalog = "", "" }()

	assert.Empty(t, flagOverrides())
	flagRunsDir, flagCatalog = "/scratch/runs", "lib.yaml"
	assert.Equal(t, map[string]any{"runs_dir": "/scratch/runs", "catalog": "lib.yaml"}, flagOverrides())
}
