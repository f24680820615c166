package cmd

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gosperf/pkg/analysis"
	"github.com/3leaps/gosperf/pkg/resultstore"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Collect a run's job states and score its results",
	Long: `Reconcile the marker files of a run into its run config, write the
solver failure log, print the collection report, and score every cleanly
finished job against the catalog's reference values. Scored rows replace
the run's previous rows in the results database.

Examples:
  gosperf analyze
  gosperf analyze -r 3`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

var analyzeRun int

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().IntVarP(&analyzeRun, "run", "r", 0, "Run number (default: latest)")
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	ws, err := openWorkspace(false)
	if err != nil {
		return err
	}
	res, err := ws.analyze(cmd.Context(), analyzeRun)
	if err != nil {
		return err
	}

	res.Report.Print(os.Stdout)
	_, _ = fmt.Fprintln(os.Stdout)
	return printSolverSummary(os.Stdout, res.Rows)
}

type analyzeResult struct {
	Report *analysis.Report
	Rows   []analysis.Row
	Pass   resultstore.Pass
}

// analyze collects run n, scores it and stores the rows.
func (w *workspace) analyze(ctx context.Context, n int) (*analyzeResult, error) {
	run, err := w.resolveRun(n)
	if err != nil {
		return nil, err
	}
	rc, err := w.loadRunConfig(run)
	if err != nil {
		return nil, err
	}
	c, err := w.catalogForRun(rc)
	if err != nil {
		return nil, err
	}

	rc, rep, err := w.collect(ctx, run, rc)
	if err != nil {
		return nil, err
	}

	tol := w.cfg.AnalysisTolerances()
	rows, err := analysis.Analyze(rc, run, c, analysis.AnalyzeOptions{Tolerances: tol, Logger: w.log})
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid tolerances", err)
	}

	db, err := resultstore.Open(ctx, w.cfg.ResultsDBPath())
	if err != nil {
		return nil, exitError(foundry.ExitFileWriteError, "Failed to open results database", err)
	}
	defer func() { _ = db.Close() }()
	if err := resultstore.Migrate(ctx, db); err != nil {
		return nil, exitError(foundry.ExitFileWriteError, "Failed to migrate results database", err)
	}

	pass := resultstore.Pass{
		ID:         uuid.New().String(),
		Run:        run.Number,
		Tolerances: tol,
		CreatedAt:  time.Now().UTC(),
	}
	if err := resultstore.ReplaceRun(ctx, db, pass, rows); err != nil {
		return nil, exitError(foundry.ExitFileWriteError, "Failed to store analysis rows", err)
	}
	pass.RowCount = len(rows)

	w.log.Info("Analyzed run",
		zap.Int("run", run.Number),
		zap.String("pass_id", pass.ID),
		zap.Int("rows", len(rows)),
		zap.String("results_db", w.cfg.ResultsDBPath()))

	return &analyzeResult{Report: rep, Rows: rows, Pass: pass}, nil
}

type solverTally struct {
	jobs, optimal, solved, acceptable int
}

// printSolverSummary prints per-solver counts of jobs that reached each
// threshold.
func printSolverSummary(out io.Writer, rows []analysis.Row) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(out, "No finished jobs to score.")
		return nil
	}
	tallies := make(map[string]*solverTally)
	for _, r := range rows {
		t := tallies[r.Solver]
		if t == nil {
			t = &solverTally{}
			tallies[r.Solver] = t
		}
		t.jobs++
		if !math.IsInf(r.TimeToOptimum, 1) {
			t.optimal++
		}
		if !math.IsInf(r.TimeToSolution, 1) {
			t.solved++
		}
		if !math.IsInf(r.TimeToAcceptable, 1) {
			t.acceptable++
		}
	}
	names := make([]string, 0, len(tallies))
	for name := range tallies {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOLVER\tSCORED\tPROVEN OPTIMAL\tSOLVED\tACCEPTABLE")
	for _, name := range names {
		t := tallies[name]
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", name, t.jobs, t.optimal, t.solved, t.acceptable)
	}
	return w.Flush()
}
