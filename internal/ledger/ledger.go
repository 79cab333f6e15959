package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Run is one completed conversion as stored in dataset_runs.
type Run struct {
	ID          uuid.UUID
	Dataset     string
	Split       string
	Scheme      string
	Shuffled    bool
	Seed        *uint64
	Rows        int
	Records     int
	OutputPaths []string
	LabelCounts map[string]map[string]int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Ledger records conversion runs in Postgres.
type Ledger struct {
	db *sql.DB
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS dataset_runs (
    run_id       UUID PRIMARY KEY,
    dataset      TEXT NOT NULL,
    split        TEXT NOT NULL,
    scheme       TEXT,
    shuffled     BOOLEAN NOT NULL DEFAULT false,
    seed         NUMERIC(20, 0),
    rows_read    INTEGER NOT NULL,
    records      INTEGER NOT NULL,
    output_paths TEXT[] NOT NULL,
    label_counts JSONB NOT NULL,
    started_at   TIMESTAMPTZ NOT NULL,
    finished_at  TIMESTAMPTZ NOT NULL
)`

// seedColumnSQL widens seed on tables created when it was BIGINT.
const seedColumnSQL = `ALTER TABLE dataset_runs ALTER COLUMN seed TYPE NUMERIC(20, 0)`

// Open connects to dsn, verifies the connection and ensures the runs table exists.
func Open(ctx context.Context, dsn string) (*Ledger, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	for _, stmt := range []string{schemaSQL, seedColumnSQL} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("schema setup failed: %w", err)
		}
	}
	return &Ledger{db: db}, nil
}

// RecordRun inserts run. Recording the same run ID twice is a no-op.
func (l *Ledger) RecordRun(ctx context.Context, run Run) error {
	counts, err := encodeLabelCounts(run.LabelCounts)
	if err != nil {
		return err
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO dataset_runs (
			run_id, dataset, split, scheme, shuffled, seed,
			rows_read, records, output_paths, label_counts,
			started_at, finished_at
		) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6::numeric, $7, $8, $9, $10::jsonb, $11, $12)
		ON CONFLICT (run_id) DO NOTHING`,
		run.ID.String(), run.Dataset, run.Split, run.Scheme, run.Shuffled, seedParam(run.Seed),
		run.Rows, run.Records, pq.Array(run.OutputPaths), counts,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

// Close releases the connection pool.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// seedParam renders a seed as decimal text so values above MaxInt64 keep
// their exact value in the numeric column.
func seedParam(seed *uint64) sql.NullString {
	if seed == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: strconv.FormatUint(*seed, 10), Valid: true}
}

// encodeLabelCounts renders per-dimension counts for the jsonb column.
// HODI counts live under the empty dimension and are stored flat.
func encodeLabelCounts(counts map[string]map[string]int) (string, error) {
	var v any = counts
	if flat, ok := counts[""]; ok && len(counts) == 1 {
		v = flat
	}
	if counts == nil {
		v = map[string]int{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode label counts: %w", err)
	}
	return string(b), nil
}
