//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wq5881898/Scraper/internal/domain"
	"github.com/Wq5881898/Scraper/internal/storage"
)

// newPostgresSink connects to the test container and truncates the results
// table on cleanup.
func newPostgresSink(t *testing.T) (*storage.PostgresSink, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()
	pool, err := storage.NewPostgresPool(ctx, testPostgresDSN)
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Exec(ctx, "TRUNCATE scrape_results") //nolint:errcheck
		pool.Close()
	})
	return storage.NewPostgresSink(pool), pool
}

func TestPostgresSink_WriteSuccess_RoundTrip(t *testing.T) {
	sink, pool := newPostgresSink(t)
	ctx := context.Background()

	res := domain.Result{
		TaskID:     uuid.New().String(),
		Source:     "dexscreener",
		URL:        "https://api.dexscreener.com/latest/dex/search/",
		Success:    true,
		StatusCode: 200,
		LatencyMS:  87,
		Data:       map[string]any{"token_name": "TEST", "price_usd": "1.23"},
	}
	require.NoError(t, sink.Write(ctx, res))

	var (
		source     string
		success    bool
		statusCode *int
		latencyMS  int64
		data       map[string]any
		errorClass *string
	)
	err := pool.QueryRow(ctx, `
		SELECT source_id, success, status_code, latency_ms, data, error_class
		FROM scrape_results WHERE task_id = $1
	`, res.TaskID).Scan(&source, &success, &statusCode, &latencyMS, &data, &errorClass)
	require.NoError(t, err)

	assert.Equal(t, "dexscreener", source)
	assert.True(t, success)
	require.NotNil(t, statusCode)
	assert.Equal(t, 200, *statusCode)
	assert.Equal(t, int64(87), latencyMS)
	assert.Equal(t, "TEST", data["token_name"])
	assert.Nil(t, errorClass, "successful result must have no error class")
}

func TestPostgresSink_WriteFailure_NullableColumns(t *testing.T) {
	sink, pool := newPostgresSink(t)
	ctx := context.Background()

	task := domain.Task{ID: uuid.New().String(), Source: "gmgn", URL: "https://gmgn.ai"}
	res := domain.FailedResult(task, domain.ErrClassTimeout, 20000)
	require.NoError(t, sink.Write(ctx, res))

	var (
		statusCode *int
		data       []byte
		errorClass *string
	)
	err := pool.QueryRow(ctx, `
		SELECT status_code, data, error_class FROM scrape_results WHERE task_id = $1
	`, task.ID).Scan(&statusCode, &data, &errorClass)
	require.NoError(t, err)

	assert.Nil(t, statusCode, "no response means NULL status_code")
	assert.Nil(t, data)
	require.NotNil(t, errorClass)
	assert.Equal(t, domain.ErrClassTimeout, *errorClass)
}

func TestPostgresSink_EachWriteIsOneRow(t *testing.T) {
	sink, pool := newPostgresSink(t)
	ctx := context.Background()

	taskID := uuid.New().String()
	for i := 0; i < 3; i++ {
		res := domain.Result{
			TaskID:    taskID,
			Source:    "dexscreener",
			URL:       "https://api.dexscreener.com",
			Success:   true,
			LatencyMS: int64(i),
		}
		require.NoError(t, sink.Write(ctx, res))
	}

	var count int
	err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM scrape_results WHERE task_id = $1`, taskID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "repeated scrapes of one task append rows, never upsert")
}
