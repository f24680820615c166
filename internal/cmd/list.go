package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/gosperf/pkg/catalog"
	"github.com/3leaps/gosperf/pkg/rundir"
)

var listCmd = &cobra.Command{
	Use:   "list {models|solvers|runs}",
	Short: "List catalog models, solver capabilities or runs",
	Long: `List the catalog's models with their statistics, the solver capability
matrix, or the existing run directories.

In the solver matrix "G" marks a global solver for the class, "x" a
compatible one and "." an incompatible one.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"models", "solvers", "runs"},
	RunE:      runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	switch args[0] {
	case "models":
		ws, err := openWorkspace(true)
		if err != nil {
			return err
		}
		return printModels(os.Stdout, ws.catalog.Models)
	case "solvers":
		ws, err := openWorkspace(true)
		if err != nil {
			return err
		}
		return printSolvers(os.Stdout, ws.catalog.Solvers)
	case "runs":
		ws, err := openWorkspace(false)
		if err != nil {
			return err
		}
		return printRuns(os.Stdout, ws.runs)
	default:
		return exitError(foundry.ExitInvalidArgument, "Invalid list target", fmt.Errorf("expected models, solvers or runs, got %q", args[0]))
	}
}

func printModels(out io.Writer, models *catalog.ModelRegistry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "MODEL\tCLASS\tSENSE\tREFERENCE\tVARS\tBIN\tINT\tCONS\tBUILD (s)")
	for _, m := range models.All() {
		vars, bins, ints, cons, build := "-", "-", "-", "-", "-"
		if st, ok := m.Stats(); ok {
			vars = fmt.Sprint(st.Variables)
			bins = fmt.Sprint(st.BinaryVariables)
			ints = fmt.Sprint(st.IntegerVariables)
			cons = fmt.Sprint(st.Constraints)
			build = fmt.Sprintf("%.2f", st.BuildTimeSeconds)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			m.Name, m.Class, m.Sense, formatReference(m.Reference), vars, bins, ints, cons, build)
	}
	return w.Flush()
}

func formatReference(r catalog.Reference) string {
	switch r.Kind {
	case catalog.ReferenceOptimal:
		return fmt.Sprintf("opt %g", r.Value)
	case catalog.ReferenceBestKnown:
		return fmt.Sprintf("best %g", r.Value)
	case catalog.ReferenceInfeasible:
		return "infeasible"
	default:
		return "-"
	}
}

func printSolvers(out io.Writer, solvers *catalog.SolverRegistry) error {
	w := tabwriter.NewWriter(out, 0, 0, 1, ' ', 0)
	header := make([]string, 0, len(catalog.AllClasses)+1)
	header = append(header, "SOLVER")
	for _, c := range catalog.AllClasses {
		header = append(header, string(c))
	}
	_, _ = fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, s := range solvers.All() {
		row := make([]string, 0, len(catalog.AllClasses)+1)
		row = append(row, s.Name)
		for _, c := range catalog.AllClasses {
			row = append(row, s.Capability(c))
		}
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func printRuns(out io.Writer, runs *rundir.Manager) error {
	nums, err := runs.List()
	if err != nil {
		return runError(err)
	}
	if len(nums) == 0 {
		_, _ = fmt.Fprintln(out, "No runs found")
		return nil
	}
	for _, n := range nums {
		_, _ = fmt.Fprintln(out, runs.RunDir(n))
	}
	return nil
}
