package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/gosperf/pkg/dispatch"
	"github.com/3leaps/gosperf/pkg/matrix"
	"github.com/3leaps/gosperf/pkg/redo"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a new benchmark run or continue an existing one",
	Long: `Start a new run over every compatible (model, solver) pair of the
catalog, or continue an existing run.

--new allocates the next free run directory (or -r N), writes one job
directory per pair and dispatches them. --redo re-dispatches the jobs of an
existing run (the latest unless -r is given) that have not finished;
finished jobs are only re-run with --redo-existing and failed jobs with
--redo-failed.

Filters accept exact names or glob patterns; every entry must match at
least one catalog name.

Examples:
  gosperf run --new
  gosperf run --new --solvers 'gurobi*' --model-types MINLP,GDP --time-limit 600
  gosperf run --new --run-with cluster
  gosperf run --redo -r 4 --redo-failed --models ex1223`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runNew          bool
	runRedo         bool
	runNumber       int
	runTimeLimit    int
	runWith         string
	runModels       []string
	runSolvers      []string
	runModelTypes   []string
	runRedoExisting bool
	runRedoFailed   bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runNew, "new", false, "Start a new run")
	runCmd.Flags().BoolVar(&runRedo, "redo", false, "Continue an existing run")
	runCmd.Flags().IntVarP(&runNumber, "run", "r", 0, "Run number (default: next free for --new, latest for --redo)")
	runCmd.Flags().IntVar(&runTimeLimit, "time-limit", 0, "Solver time limit in seconds (default: run.time_limit)")
	runCmd.Flags().StringVar(&runWith, "run-with", "", "Dispatch backend: "+strings.Join(dispatch.Backends, "|")+" (default: run.backend)")
	runCmd.Flags().StringSliceVar(&runModels, "models", nil, "Model names or patterns")
	runCmd.Flags().StringSliceVar(&runSolvers, "solvers", nil, "Solver names or patterns")
	runCmd.Flags().StringSliceVar(&runModelTypes, "model-types", nil, "Problem classes")
	runCmd.Flags().BoolVar(&runRedoExisting, "redo-existing", false, "Re-run finished jobs (--redo only)")
	runCmd.Flags().BoolVar(&runRedoFailed, "redo-failed", false, "Re-run failed jobs (--redo only)")

	runCmd.MarkFlagsMutuallyExclusive("new", "redo")
	runCmd.MarkFlagsOneRequired("new", "redo")
	runCmd.MarkFlagsMutuallyExclusive("new", "redo-existing")
	runCmd.MarkFlagsMutuallyExclusive("new", "redo-failed")
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if runNumber < 0 {
		return exitError(foundry.ExitInvalidArgument, "Invalid --run value", fmt.Errorf("run number must be positive"))
	}
	if runTimeLimit < 0 {
		return exitError(foundry.ExitInvalidArgument, "Invalid --time-limit value", fmt.Errorf("time limit must be positive"))
	}

	ws, err := openWorkspace(true)
	if err != nil {
		return err
	}

	name := runWith
	if name == "" {
		name = ws.cfg.Run.Backend
	}
	backend, err := ws.backend(name)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --run-with value", err)
	}

	filter := matrix.Filter{Models: runModels, Solvers: runSolvers, Classes: runModelTypes}
	tl := time.Duration(runTimeLimit) * time.Second

	var out *runOutcome
	if runNew {
		out, err = ws.startRun(ctx, newRunOptions{RunNumber: runNumber, TimeLimit: tl, Filter: filter}, backend)
	} else {
		out, err = ws.redoRun(ctx, redoRunOptions{
			RunNumber: runNumber,
			TimeLimit: tl,
			Redo: redo.Options{
				RedoExisting: runRedoExisting,
				RedoFailed:   runRedoFailed,
				Filter:       filter,
			},
		}, backend)
	}
	if err != nil {
		return err
	}
	printOutcome(os.Stdout, out)
	return nil
}

func printOutcome(w io.Writer, o *runOutcome) {
	_, _ = fmt.Fprintf(w, "Run %d: %s\n", o.Run.Number, o.Run.Dir)
	if o.Dispatch == nil {
		_, _ = fmt.Fprintln(w, "Nothing to run.")
		return
	}
	s := o.Dispatch
	_, _ = fmt.Fprintf(w, "Backend %s: %d planned, %d dispatched, %d timed out, %d failed, %d skipped (%s)\n",
		s.Backend, s.Total, s.Dispatched, s.TimedOut, s.Failed, s.Skipped, s.Duration.Round(time.Millisecond))
	if len(s.BrokenModels) > 0 {
		_, _ = fmt.Fprintf(w, "Models that failed to build: %s\n", strings.Join(s.BrokenModels, ", "))
	}
	if s.Backend == dispatch.BackendSetupOnly {
		_, _ = fmt.Fprintf(w, "Jobs are set up but not started; continue with: gosperf run --redo -r %d\n", o.Run.Number)
	}
	if o.Report != nil {
		_, _ = fmt.Fprintln(w)
		o.Report.Print(w)
	}
}
