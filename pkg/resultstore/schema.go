package resultstore

import (
	"context"
	"database/sql"
	"fmt"
)

const SchemaVersion = 1

// Migrate creates (or upgrades) the results schema in place.
func Migrate(ctx context.Context, db *sql.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if db == nil {
		return fmt.Errorf("db is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL
		);`,
		`INSERT INTO schema_meta (id, schema_version)
			VALUES (1, 0)
			ON CONFLICT(id) DO NOTHING;`,

		`CREATE TABLE IF NOT EXISTS analysis_passes (
			pass_id TEXT PRIMARY KEY,
			run INTEGER NOT NULL,
			optimality_tol REAL NOT NULL,
			optimality_slack REAL NOT NULL,
			acceptable_tol REAL NOT NULL,
			row_count INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_passes_run ON analysis_passes(run);`,

		// Non-finite values (never reached, unbounded gaps) are stored as NULL.
		`CREATE TABLE IF NOT EXISTS results (
			run INTEGER NOT NULL,
			model TEXT NOT NULL,
			solver TEXT NOT NULL,
			pass_id TEXT NOT NULL,
			started_at TEXT,
			lower_bound REAL,
			upper_bound REAL,
			elapsed REAL,
			iterations INTEGER,
			termination TEXT NOT NULL DEFAULT '',
			sense TEXT NOT NULL,
			soln_gap REAL,
			opt_gap REAL,
			time_to_ok_soln REAL,
			time_to_soln REAL,
			time_to_opt REAL,
			err_msg TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run, model, solver)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_results_solver ON results(solver);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}

	var current int
	if err := tx.QueryRowContext(ctx, `SELECT schema_version FROM schema_meta WHERE id=1`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}
	if current != SchemaVersion {
		if _, err := tx.ExecContext(ctx, `UPDATE schema_meta SET schema_version=? WHERE id=1`, SchemaVersion); err != nil {
			return fmt.Errorf("update schema_version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
