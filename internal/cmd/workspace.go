package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/foundry"
	"go.uber.org/zap"

	"github.com/3leaps/gosperf/internal/config"
	"github.com/3leaps/gosperf/internal/observability"
	"github.com/3leaps/gosperf/pkg/catalog"
	"github.com/3leaps/gosperf/pkg/matrix"
	"github.com/3leaps/gosperf/pkg/runconfig"
	"github.com/3leaps/gosperf/pkg/rundir"
)

// workspace bundles what every run-level command needs.
type workspace struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	runs    *rundir.Manager
	store   *runconfig.Store
	log     *zap.Logger
}

func newWorkspace(cfg *config.Config, c *catalog.Catalog, log *zap.Logger) *workspace {
	if log == nil {
		log = zap.NewNop()
	}
	runs := rundir.NewManager(cfg.RunsDir)
	return &workspace{
		cfg:     cfg,
		catalog: c,
		runs:    runs,
		store:   runconfig.NewStore(runs.RunDir),
		log:     log,
	}
}

// openWorkspace builds a workspace from the loaded configuration. The
// catalog is only loaded when withCatalog is set.
func openWorkspace(withCatalog bool) (*workspace, error) {
	cfg := config.GetConfig()
	if cfg == nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Configuration not loaded", errors.New("config.Load was not called"))
	}
	var c *catalog.Catalog
	if withCatalog {
		loaded, err := catalog.Load(cfg.Catalog)
		if err != nil {
			return nil, catalogError(cfg.Catalog, err)
		}
		c = loaded
		observability.CLILogger.Debug("Loaded catalog",
			zap.String("path", cfg.Catalog),
			zap.Int("models", c.Models.Len()),
			zap.Int("solvers", c.Solvers.Len()))
	}
	return newWorkspace(cfg, c, observability.CLILogger), nil
}

func catalogError(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return exitError(foundry.ExitFileNotFound, "Catalog not found", fmt.Errorf("%s: %w", path, err))
	}
	return exitError(foundry.ExitInvalidArgument, "Invalid catalog", err)
}

// resolveRun returns n, or the latest run when n is zero.
func (w *workspace) resolveRun(n int) (*rundir.Run, error) {
	if n == 0 {
		latest, err := w.runs.Latest()
		if err != nil {
			return nil, runError(err)
		}
		n = latest
	}
	run, err := w.runs.Open(n)
	if err != nil {
		return nil, runError(err)
	}
	return run, nil
}

func (w *workspace) loadRunConfig(run *rundir.Run) (*runconfig.RunConfig, error) {
	cfg, err := w.store.Load(run.Number)
	if err != nil {
		return nil, runError(err)
	}
	return cfg, nil
}

// catalogForRun loads the catalog a run was created with, falling back to
// the configured one.
func (w *workspace) catalogForRun(rc *runconfig.RunConfig) (*catalog.Catalog, error) {
	if w.catalog != nil && (rc.Catalog == "" || sameFile(rc.Catalog, w.cfg.Catalog)) {
		return w.catalog, nil
	}
	path := rc.Catalog
	if path == "" {
		path = w.cfg.Catalog
	}
	c, err := catalog.Load(path)
	if err != nil {
		return nil, catalogError(path, err)
	}
	return c, nil
}

func sameFile(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}

// runError maps run-level failures to exit codes. Per-job failures never
// reach here.
func runError(err error) error {
	var pe *matrix.PatternError
	switch {
	case errors.Is(err, context.Canceled):
		return exitError(foundry.ExitSignalInt, "Cancelled", err)
	case errors.Is(err, catalog.ErrUnknownModel),
		errors.Is(err, catalog.ErrUnknownSolver),
		errors.Is(err, catalog.ErrUnknownClass),
		errors.Is(err, errEmptyMatrix),
		errors.As(err, &pe):
		return exitError(foundry.ExitInvalidArgument, "Invalid job filter", err)
	case errors.Is(err, rundir.ErrInvalidJob), errors.Is(err, catalog.ErrInvalidName):
		return exitError(foundry.ExitInvalidArgument, "Invalid job name", err)
	case errors.Is(err, rundir.ErrAlreadyExists):
		return exitError(foundry.ExitFileWriteError, "Run directory already exists", err)
	case errors.Is(err, rundir.ErrRunNotFound), errors.Is(err, rundir.ErrNoRuns), errors.Is(err, runconfig.ErrNotFound):
		return exitError(foundry.ExitFileNotFound, "Run not found", err)
	case errors.Is(err, runconfig.ErrInvalid):
		return exitError(foundry.ExitFileReadError, "Malformed run config", err)
	default:
		return err
	}
}
