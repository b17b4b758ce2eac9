package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"godrift/domain/chain"
	"godrift/domain/core"
	"godrift/domain/results"
	"godrift/ports"
)

// observationRepository mirrors the JSON-file ledger onto Postgres so large
// batches can be queried instead of re-read from disk.
type observationRepository struct {
	db *sqlx.DB
}

// NewObservationRepository connects and ensures the schema exists.
func NewObservationRepository(databaseURL string) (ports.LedgerStore, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	repo := &observationRepository{db: db}
	if err := repo.migrate(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *observationRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chain_runs (
		run_id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		chain_id TEXT NOT NULL,
		condition_key TEXT NOT NULL,
		replicate INT NOT NULL,
		state TEXT NOT NULL,
		final_text TEXT NOT NULL,
		total_tokens INT NOT NULL,
		records JSONB NOT NULL,
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_chain_runs_batch ON chain_runs (batch_id);

	CREATE TABLE IF NOT EXISTS observations (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		run_id TEXT NOT NULL,
		condition_key TEXT NOT NULL,
		metric_name TEXT NOT NULL,
		replicate INT NOT NULL,
		value DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ,
		UNIQUE (batch_id, replicate, condition_key, metric_name)
	);
	CREATE INDEX IF NOT EXISTS idx_observations_batch ON observations (batch_id);

	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_reports_batch ON reports (batch_id);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *observationRepository) Close() error {
	return r.db.Close()
}

// SaveRun inserts one chain run; replays of the same run ID are upserts.
func (r *observationRepository) SaveRun(ctx context.Context, batchID core.BatchID, run chain.Run) error {
	recordsJSON, err := json.Marshal(run.Records)
	if err != nil {
		return fmt.Errorf("failed to marshal stage records: %w", err)
	}

	query := `INSERT INTO chain_runs (
		run_id, batch_id, chain_id, condition_key, replicate, state, final_text, total_tokens, records, started_at, finished_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (run_id) DO UPDATE SET state = EXCLUDED.state, final_text = EXCLUDED.final_text, records = EXCLUDED.records`

	_, err = r.db.ExecContext(ctx, query,
		run.RunID.String(), batchID.String(), run.ChainID.String(), run.ConditionKey, run.Replicate,
		string(run.State), run.FinalText, run.TotalUsage.TotalTokens, recordsJSON,
		run.StartedAt.Time(), run.FinishedAt.Time(),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// SaveObservations bulk-inserts the batch's observations inside one
// transaction. The unique constraint is the database-side version of the
// one-observation-per-cell invariant.
func (r *observationRepository) SaveObservations(ctx context.Context, batchID core.BatchID, observations []results.Observation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO observations (id, batch_id, run_id, condition_key, metric_name, replicate, value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for _, obs := range observations {
		if _, err := tx.ExecContext(ctx, query,
			obs.ID.String(), batchID.String(), obs.RunID.String(),
			obs.ConditionKey, obs.MetricName, obs.Replicate, obs.Value, obs.CreatedAt.Time(),
		); err != nil {
			return fmt.Errorf("%w: %v", core.ErrInvariantViolation, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit observations: %w", err)
	}
	return nil
}

// SaveReport stores the full report as JSONB.
func (r *observationRepository) SaveReport(ctx context.Context, report results.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `INSERT INTO reports (id, batch_id, payload, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`
	if _, err := r.db.ExecContext(ctx, query,
		report.ID.String(), report.BatchID.String(), payload, report.CreatedAt.Time(),
	); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// ListBatches returns batch IDs that have observations.
func (r *observationRepository) ListBatches(ctx context.Context) ([]core.BatchID, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT DISTINCT batch_id FROM observations ORDER BY batch_id`); err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	batches := make([]core.BatchID, len(ids))
	for i, id := range ids {
		batches[i] = core.BatchID(id)
	}
	return batches, nil
}

// LoadRuns reads every run for a batch.
func (r *observationRepository) LoadRuns(ctx context.Context, batchID core.BatchID) ([]chain.Run, error) {
	query := `SELECT run_id, chain_id, condition_key, replicate, state, final_text, total_tokens, records, started_at, finished_at
		FROM chain_runs WHERE batch_id = $1 ORDER BY run_id`

	rows, err := r.db.QueryxContext(ctx, query, batchID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load runs: %w", err)
	}
	defer rows.Close()

	var runs []chain.Run
	for rows.Next() {
		var (
			run         chain.Run
			runID       string
			chainID     string
			state       string
			totalTokens int
			recordsJSON []byte
			startedAt   time.Time
			finishedAt  time.Time
		)
		if err := rows.Scan(&runID, &chainID, &run.ConditionKey, &run.Replicate, &state,
			&run.FinalText, &totalTokens, &recordsJSON, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.RunID = core.RunID(runID)
		run.ChainID = core.ChainID(chainID)
		run.State = chain.RunState(state)
		run.TotalUsage.TotalTokens = totalTokens
		run.StartedAt = core.NewTimestamp(startedAt)
		run.FinishedAt = core.NewTimestamp(finishedAt)
		if err := json.Unmarshal(recordsJSON, &run.Records); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stage records: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LoadObservations reads every observation for a batch.
func (r *observationRepository) LoadObservations(ctx context.Context, batchID core.BatchID) ([]results.Observation, error) {
	query := `SELECT id, run_id, condition_key, metric_name, replicate, value, created_at
		FROM observations WHERE batch_id = $1 ORDER BY condition_key, metric_name, replicate`

	rows, err := r.db.QueryxContext(ctx, query, batchID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}
	defer rows.Close()

	var observations []results.Observation
	for rows.Next() {
		var (
			obs       results.Observation
			id        string
			runID     string
			createdAt time.Time
		)
		if err := rows.Scan(&id, &runID, &obs.ConditionKey, &obs.MetricName, &obs.Replicate, &obs.Value, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		obs.ID = core.ObservationID(id)
		obs.RunID = core.RunID(runID)
		obs.CreatedAt = core.NewTimestamp(createdAt)
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

// LoadReport reads the latest report for a batch.
func (r *observationRepository) LoadReport(ctx context.Context, batchID core.BatchID) (*results.Report, error) {
	var payload []byte
	err := r.db.QueryRowxContext(ctx,
		`SELECT payload FROM reports WHERE batch_id = $1 ORDER BY created_at DESC LIMIT 1`,
		batchID.String(),
	).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: batch %s", core.ErrReportNotFound, batchID)
		}
		return nil, fmt.Errorf("failed to load report: %w", err)
	}

	var report results.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}
