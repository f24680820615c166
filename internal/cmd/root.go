// Package cmd implements the gosperf command line.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gosperf/internal/config"
	"github.com/3leaps/gosperf/internal/observability"
)

const binaryName = "gosperf"

type buildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

var versionInfo = buildInfo{Version: "dev", Commit: "HEAD", BuildDate: "unknown"}

var (
	cfgFile     string
	verbose     bool
	flagRunsDir string
	flagCatalog string
)

var rootCmd = &cobra.Command{
	Use:   binaryName,
	Short: "Benchmark optimization solvers across a model library",
	Long: `gosperf runs every compatible (model, solver) pair of a catalog as an
isolated job, tracks each job through marker files in its run directory,
and analyzes the results against reference solutions.

Examples:
  gosperf list solvers
  gosperf run --new --models 'ex1*' --time-limit 300
  gosperf run --redo --redo-failed
  gosperf analyze -r 3
  gosperf export --make-trace-file -r 3`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initRuntime,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./gosperf.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagRunsDir, "runs-dir", "", "Override the runs directory")
	rootCmd.PersistentFlags().StringVar(&flagCatalog, "catalog", "", "Override the catalog file")
}

// SetVersionInfo records build metadata for --version.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate)
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func initRuntime(cmd *cobra.Command, _ []string) error {
	observability.InitCLILogger(binaryName, verbose)

	config.SetConfigFile(cfgFile)
	cfg, err := config.Load(cmd.Context(), flagOverrides())
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	if !verbose {
		if err := observability.SetLevel(cfg.Logging.Level); err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid logging.level", err)
		}
	}
	observability.CLILogger.Debug("Loaded configuration",
		zap.String("file", cfg.File),
		zap.String("runs_dir", cfg.RunsDir),
		zap.String("catalog", cfg.Catalog))
	return nil
}

func flagOverrides() map[string]any {
	o := make(map[string]any)
	if flagRunsDir != "" {
		o["runs_dir"] = flagRunsDir
	}
	if flagCatalog != "" {
		o["catalog"] = flagCatalog
	}
	return o
}

// ExitCodeError carries the process exit code of a failed command.
type ExitCodeError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.Message, e.Err, e.Code)
}

func (e *ExitCodeError) Unwrap() error { return e.Err }

func exitError(code int, message string, err error) error {
	return &ExitCodeError{Code: code, Message: message, Err: err}
}

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitCodeError
	if errors.As(err, &ee) {
		return ee.Code
	}
	if errors.Is(err, context.Canceled) {
		return foundry.ExitSignalInt
	}
	return 1
}
