package records

import (
	"context"
	"fmt"
	"time"

	"fileflow/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createTable = `
CREATE TABLE IF NOT EXISTS conversion_records (
    job_id          TEXT PRIMARY KEY,
    conversion_type TEXT NOT NULL,
    state           TEXT NOT NULL,
    input_file_ids  TEXT[] NOT NULL,
    input_bytes     BIGINT NOT NULL,
    output_file_id  TEXT,
    output_bytes    BIGINT,
    error_kind      TEXT,
    error_message   TEXT,
    duration_ms     BIGINT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL,
    completed_at    TIMESTAMPTZ NOT NULL
);
`

// PostgresSink appends records to the conversion_records table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects to databaseURL and makes sure the table exists.
func NewPostgresSink(ctx context.Context, databaseURL string) (*PostgresSink, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if _, err := pool.Exec(ctx, createTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create conversion_records: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

func (s *PostgresSink) Name() string { return "postgres" }

// Write inserts r. A record already present for the job is left untouched.
func (s *PostgresSink) Write(ctx context.Context, r models.ConversionRecord) error {
	query := `
INSERT INTO conversion_records (job_id, conversion_type, state, input_file_ids, input_bytes, output_file_id, output_bytes, error_kind, error_message, duration_ms, created_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (job_id) DO NOTHING;
`
	inputs := make([]string, len(r.InputFileIDs))
	for i, id := range r.InputFileIDs {
		inputs[i] = string(id)
	}
	_, err := s.pool.Exec(ctx, query,
		string(r.JobID),
		string(r.ConversionType),
		string(r.State),
		inputs,
		r.InputBytes,
		nullable(string(r.OutputFileID)),
		r.OutputBytes,
		nullable(string(r.ErrorKind)),
		nullable(r.ErrorMessage),
		r.DurationMs,
		r.CreatedAt,
		r.CompletedAt,
	)
	return err
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
