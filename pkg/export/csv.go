package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/3leaps/gosperf/pkg/analysis"
)

// CSVHeader is the column order of WriteRowsCSV.
var CSVHeader = []string{
	"run", "time", "model", "solver", "LB", "UB", "elapsed", "iterations",
	"tc", "sense", "soln_gap", "time_to_ok_soln", "time_to_soln",
	"opt_gap", "time_to_opt", "err_msg",
}

// WriteRowsCSV writes analysis rows as CSV. Absent values and times that
// were never reached are written as empty cells.
func WriteRowsCSV(w io.Writer, rows []analysis.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.Run),
			optTime(r.Time),
			r.Model,
			r.Solver,
			optFloat(r.LowerBound),
			optFloat(r.UpperBound),
			optFloat(r.Elapsed),
			optInt(r.Iterations),
			r.Termination,
			string(r.Sense),
			optFloat(r.SolutionGap),
			finite(r.TimeToAcceptable),
			finite(r.TimeToSolution),
			optFloat(r.OptimalityGap),
			finite(r.TimeToOptimum),
			r.Error,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %s/%s: %w", r.Model, r.Solver, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func optTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func finite(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return ""
	}
	return formatFloat(v)
}
