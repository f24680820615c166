package cmd

import (
	"errors"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gosperf/internal/observability"
	"github.com/3leaps/gosperf/pkg/jobexec"
)

var jobCmd = &cobra.Command{
	Use:    "job",
	Short:  "Job process entry points (invoked by wrapper scripts)",
	Hidden: true,
	// Jobs run from their own directory and need no gosperf configuration.
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		observability.InitCLILogger(binaryName+"-job", verbose)
		return nil
	},
}

var jobExecCmd = &cobra.Command{
	Use:   "exec [job-dir]",
	Short: "Build and solve the job in job-dir (default: current directory)",
	Long: `Execute one benchmark job: write the start marker, build the model,
solve it under the configured time limit, write the result record and
always write the stop marker.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobExec,
}

func init() {
	rootCmd.AddCommand(jobCmd)
	jobCmd.AddCommand(jobExecCmd)
}

func runJobExec(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid job directory", err)
	}

	runner := &jobexec.Runner{
		Builder: jobexec.CommandBuilder{},
		Solver:  jobexec.CommandSolver{},
		Logger:  observability.CLILogger,
	}
	if err := runner.Run(cmd.Context(), abs); err != nil {
		observability.CLILogger.Error("Job failed", zap.String("dir", abs), zap.Error(err))
		switch {
		case cmd.Context().Err() != nil:
			return exitError(foundry.ExitSignalInt, "Job interrupted", err)
		case errors.Is(err, jobexec.ErrModelBuild), errors.Is(err, jobexec.ErrSolve):
			return err
		default:
			return exitError(foundry.ExitFileWriteError, "Job bookkeeping failed", err)
		}
	}
	return nil
}
