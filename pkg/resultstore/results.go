package resultstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/3leaps/gosperf/pkg/analysis"
	"github.com/3leaps/gosperf/pkg/catalog"
)

// timeFormat has a fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Pass describes one analysis pass over a run.
type Pass struct {
	ID         string
	Run        int
	Tolerances analysis.Tolerances
	RowCount   int
	CreatedAt  time.Time
}

// ReplaceRun stores rows as the current analysis of pass.Run, replacing any
// rows from earlier passes over the same run.
func ReplaceRun(ctx context.Context, db *sql.DB, pass Pass, rows []analysis.Row) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	if strings.TrimSpace(pass.ID) == "" {
		return fmt.Errorf("pass id is required")
	}
	if pass.CreatedAt.IsZero() {
		pass.CreatedAt = time.Now().UTC()
	}
	pass.RowCount = len(rows)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO analysis_passes (pass_id, run, optimality_tol, optimality_slack, acceptable_tol, row_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		pass.ID, pass.Run,
		pass.Tolerances.Optimality, pass.Tolerances.OptimalitySlack, pass.Tolerances.Acceptable,
		pass.RowCount, pass.CreatedAt.UTC().Format(timeFormat),
	); err != nil {
		return fmt.Errorf("insert analysis pass: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE run = ?`, pass.Run); err != nil {
		return fmt.Errorf("clear run results: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO results (
			run, model, solver, pass_id, started_at, lower_bound, upper_bound, elapsed, iterations,
			termination, sense, soln_gap, opt_gap, time_to_ok_soln, time_to_soln, time_to_opt, err_msg
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range rows {
		var started sql.NullString
		if r.Time != nil {
			started = sql.NullString{String: r.Time.UTC().Format(timeFormat), Valid: true}
		}
		var iterations sql.NullInt64
		if r.Iterations != nil {
			iterations = sql.NullInt64{Int64: *r.Iterations, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			pass.Run, r.Model, r.Solver, pass.ID, started,
			nullPtr(r.LowerBound), nullPtr(r.UpperBound), nullPtr(r.Elapsed), iterations,
			r.Termination, string(r.Sense),
			nullPtr(r.SolutionGap), nullPtr(r.OptimalityGap),
			nullFloat(r.TimeToAcceptable), nullFloat(r.TimeToSolution), nullFloat(r.TimeToOptimum),
			r.Error,
		); err != nil {
			return fmt.Errorf("insert result %s/%s: %w", r.Model, r.Solver, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results: %w", err)
	}
	return nil
}

// ListRows returns stored rows for the given runs (all runs when none),
// ordered by run, model and solver.
func ListRows(ctx context.Context, db *sql.DB, runs ...int) ([]analysis.Row, error) {
	query := `SELECT run, model, solver, started_at, lower_bound, upper_bound, elapsed, iterations,
		termination, sense, soln_gap, opt_gap, time_to_ok_soln, time_to_soln, time_to_opt, err_msg
		FROM results`
	args := make([]any, 0, len(runs))
	if len(runs) > 0 {
		placeholders := make([]string, len(runs))
		for i, n := range runs {
			placeholders[i] = "?"
			args = append(args, n)
		}
		query += " WHERE run IN (" + strings.Join(placeholders, ",") + ")"
	}
	query += " ORDER BY run, model, solver"

	rs, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer func() { _ = rs.Close() }()

	var out []analysis.Row
	for rs.Next() {
		var (
			r                                analysis.Row
			started                          sql.NullString
			lb, ub, elapsed, solnGap, optGap sql.NullFloat64
			toOK, toSoln, toOpt              sql.NullFloat64
			iterations                       sql.NullInt64
			sense                            string
		)
		if err := rs.Scan(&r.Run, &r.Model, &r.Solver, &started, &lb, &ub, &elapsed, &iterations,
			&r.Termination, &sense, &solnGap, &optGap, &toOK, &toSoln, &toOpt, &r.Error); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if started.Valid {
			if t, err := time.Parse(timeFormat, started.String); err == nil {
				r.Time = &t
			}
		}
		if iterations.Valid {
			n := iterations.Int64
			r.Iterations = &n
		}
		r.Sense = catalog.Sense(sense)
		r.LowerBound = ptrNull(lb)
		r.UpperBound = ptrNull(ub)
		r.Elapsed = ptrNull(elapsed)
		r.SolutionGap = ptrNull(solnGap)
		r.OptimalityGap = ptrNull(optGap)
		r.TimeToAcceptable = neverNull(toOK)
		r.TimeToSolution = neverNull(toSoln)
		r.TimeToOptimum = neverNull(toOpt)
		out = append(out, r)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return out, nil
}

// LatestPass returns the most recent analysis pass of run, or nil.
func LatestPass(ctx context.Context, db *sql.DB, run int) (*Pass, error) {
	var (
		p       Pass
		created string
	)
	err := db.QueryRowContext(ctx, `
		SELECT pass_id, run, optimality_tol, optimality_slack, acceptable_tol, row_count, created_at
		FROM analysis_passes WHERE run = ? ORDER BY created_at DESC LIMIT 1`, run).
		Scan(&p.ID, &p.Run, &p.Tolerances.Optimality, &p.Tolerances.OptimalitySlack, &p.Tolerances.Acceptable, &p.RowCount, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query analysis pass: %w", err)
	}
	if t, err := time.Parse(timeFormat, created); err == nil {
		p.CreatedAt = t
	}
	return &p, nil
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func nullPtr(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return nullFloat(*v)
}

func ptrNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func neverNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return analysis.Never
	}
	return v.Float64
}
