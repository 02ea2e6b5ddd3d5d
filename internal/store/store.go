// Package store persists run reports to PostgreSQL for later audit.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the PostgreSQL implementation of schemas.RunStore.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.RunStore = (*Store)(nil)

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// EnsureSchema creates the run tables when they do not exist yet. It is safe
// to call on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS runs (
            id          TEXT PRIMARY KEY,
            goal        TEXT NOT NULL,
            status      TEXT NOT NULL,
            steps_taken INTEGER NOT NULL,
            summary     TEXT NOT NULL DEFAULT '',
            started_at  TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ NOT NULL
        );
        CREATE TABLE IF NOT EXISTS run_steps (
            run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
            step_number INTEGER NOT NULL,
            seq         INTEGER NOT NULL,
            status      TEXT NOT NULL,
            details     TEXT NOT NULL DEFAULT '',
            decision    JSONB NOT NULL,
            recorded_at TIMESTAMPTZ NOT NULL,
            PRIMARY KEY (run_id, seq)
        );
    `
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// SaveRun writes the report and its full history in one transaction.
func (s *Store) SaveRun(ctx context.Context, report *schemas.RunReport) error {
	if report == nil || report.ID == "" {
		return errors.New("run report is missing an id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	const insertRun = `
        INSERT INTO runs (id, goal, status, steps_taken, summary, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO UPDATE SET
            status      = EXCLUDED.status,
            steps_taken = EXCLUDED.steps_taken,
            summary     = EXCLUDED.summary,
            finished_at = EXCLUDED.finished_at;
    `
	if _, err := tx.Exec(ctx, insertRun,
		report.ID, report.Goal, string(report.Status), report.StepsTaken,
		report.Summary, report.StartedAt.UTC(), report.FinishedAt.UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.ID, err)
	}

	if len(report.History) > 0 {
		rows := make([][]interface{}, len(report.History))
		for i, r := range report.History {
			decision, err := json.Marshal(r.Decision)
			if err != nil {
				return fmt.Errorf("failed to marshal decision for step %d: %w", r.StepNumber, err)
			}
			rows[i] = []interface{}{
				report.ID, r.StepNumber, i, string(r.Status),
				r.Details, decision, r.Timestamp.UTC(),
			}
		}

		copyCount, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"run_steps"},
			[]string{"run_id", "step_number", "seq", "status", "details", "decision", "recorded_at"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to copy run steps: %w", err)
		}
		if int(copyCount) != len(report.History) {
			return fmt.Errorf("mismatch in copied step count: expected %d, got %d", len(report.History), copyCount)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRun loads a report with its full history.
func (s *Store) GetRun(ctx context.Context, id string) (*schemas.RunReport, error) {
	const query = `
        SELECT id, goal, status, steps_taken, summary, started_at, finished_at
        FROM runs WHERE id = $1;
    `
	var (
		report schemas.RunReport
		status string
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&report.ID, &report.Goal, &status, &report.StepsTaken,
		&report.Summary, &report.StartedAt, &report.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("run %s not found", id)
		}
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}
	report.Status = schemas.RunStatus(status)

	history, err := s.loadHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	report.History = history
	return &report, nil
}

func (s *Store) loadHistory(ctx context.Context, runID string) (schemas.History, error) {
	const query = `
        SELECT step_number, status, details, decision, recorded_at
        FROM run_steps WHERE run_id = $1 ORDER BY seq ASC;
    `
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run steps: %w", err)
	}
	defer rows.Close()

	var history schemas.History
	for rows.Next() {
		var (
			record   schemas.ExecutionRecord
			status   string
			decision []byte
		)
		if err := rows.Scan(&record.StepNumber, &status, &record.Details, &decision, &record.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan run step: %w", err)
		}
		record.Status = schemas.ExecutionStatus(status)
		if err := json.Unmarshal(decision, &record.Decision); err != nil {
			return nil, fmt.Errorf("failed to unmarshal decision for step %d: %w", record.StepNumber, err)
		}
		history = append(history, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading run steps: %w", err)
	}
	return history, nil
}

// ListRecentRuns returns the newest reports without their histories; callers
// that need the trace fetch it per run.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]schemas.RunReport, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
        SELECT id, goal, status, steps_taken, summary, started_at, finished_at
        FROM runs ORDER BY started_at DESC LIMIT $1;
    `
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var reports []schemas.RunReport
	for rows.Next() {
		var (
			report schemas.RunReport
			status string
		)
		if err := rows.Scan(
			&report.ID, &report.Goal, &status, &report.StepsTaken,
			&report.Summary, &report.StartedAt, &report.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		report.Status = schemas.RunStatus(status)
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading runs: %w", err)
	}
	return reports, nil
}
