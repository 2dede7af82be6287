package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Wq5881898/Scraper/internal/domain"
)

// Schema is the DDL for the results table. Applied by deploy tooling and
// the integration test setup.
const Schema = `
CREATE TABLE IF NOT EXISTS scrape_results (
	id          UUID PRIMARY KEY,
	task_id     TEXT NOT NULL,
	source_id   TEXT NOT NULL,
	url         TEXT NOT NULL,
	success     BOOLEAN NOT NULL,
	status_code INT,
	latency_ms  BIGINT NOT NULL,
	data        JSONB,
	error_class TEXT,
	scraped_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scrape_results_task ON scrape_results (task_id);
CREATE INDEX IF NOT EXISTS idx_scrape_results_source ON scrape_results (source_id, scraped_at);
`

// NewPostgresPool creates a pgxpool and verifies connectivity.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// PostgresSink inserts one row per result into scrape_results.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink wraps an existing pgxpool.
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Write(ctx context.Context, res domain.Result) error {
	var data []byte
	if res.Data != nil {
		encoded, err := json.Marshal(res.Data)
		if err != nil {
			return fmt.Errorf("encode result data for task %s: %w", res.TaskID, err)
		}
		data = encoded
	}

	var statusCode *int
	if res.StatusCode != 0 {
		statusCode = &res.StatusCode
	}
	var errorClass *string
	if res.ErrorClass != "" {
		errorClass = &res.ErrorClass
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO scrape_results
			(id, task_id, source_id, url, success, status_code, latency_ms, data, error_class, scraped_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		uuid.New().String(), res.TaskID, res.Source, res.URL,
		res.Success, statusCode, res.LatencyMS, data, errorClass,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert result for task %s: %w", res.TaskID, err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
