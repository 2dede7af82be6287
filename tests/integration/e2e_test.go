//go:build integration

// Package integration contains end-to-end integration tests that require
// real infrastructure (Kafka, Redis, PostgreSQL) provided by testcontainers-go.
//
// Run with: go test -tags=integration -v ./tests/integration/
package integration

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wq5881898/Scraper/internal/pacer"
	"github.com/Wq5881898/Scraper/internal/pool"
	redisstore "github.com/Wq5881898/Scraper/internal/redis"
	"github.com/Wq5881898/Scraper/internal/scrape"
	"github.com/Wq5881898/Scraper/internal/source"
	"github.com/Wq5881898/Scraper/internal/stats"
	"github.com/Wq5881898/Scraper/internal/storage"
	"github.com/Wq5881898/Scraper/pkg/retry"
	"github.com/Wq5881898/Scraper/services/runner"
)

// TestE2E_ScrapePipeline runs the full pipeline against real backends: a fake
// upstream API is scraped through the pool, every Result lands in JSONL,
// Postgres and Kafka, and successes are cached in Redis so a second run has
// nothing to do.
func TestE2E_ScrapePipeline(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// ── Fake upstream ────────────────────────────────────────────────────────
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"pairs": []map[string]any{{
				"chainId":       "bsc",
				"dexId":         "pancakeswap",
				"priceUsd":      "1.23",
				"marketCap":     float64(1000000),
				"pairCreatedAt": float64(1614556800000),
				"baseToken":     map[string]any{"name": "TEST-" + r.URL.Query().Get("q")},
			}},
		})
	}))
	defer upstream.Close()

	// ── Inputs ───────────────────────────────────────────────────────────────
	dir := t.TempDir()
	addressFile := filepath.Join(dir, "addresses.txt")
	require.NoError(t, os.WriteFile(addressFile, []byte("0xaaa\n0xbbb\n"), 0o644))
	outputFile := filepath.Join(dir, "results.jsonl")

	// ── Pipeline wiring, the same shape the run command builds ───────────────
	metrics := stats.New()

	jsonlSink, err := storage.NewJSONLSink(outputFile, logger)
	require.NoError(t, err)

	pgPool, err := storage.NewPostgresPool(ctx, testPostgresDSN)
	require.NoError(t, err)
	t.Cleanup(func() {
		// The sink closes pgPool, so truncate over a fresh connection.
		cleanupPool, err := storage.NewPostgresPool(context.Background(), testPostgresDSN)
		if err == nil {
			cleanupPool.Exec(context.Background(), "TRUNCATE scrape_results") //nolint:errcheck
			cleanupPool.Close()
		}
	})

	topic := uniqueTopic("e2e-results")
	createTopic(t, topic)

	store := storage.NewMultiSink(logger,
		jsonlSink,
		storage.NewPostgresSink(pgPool),
		storage.NewKafkaSink(testKafkaBrokers, topic),
	)

	seen := redisstore.NewSeenStore(newRedisClient(t), time.Minute)

	deps := scrape.Deps{
		Client:     &http.Client{Timeout: 5 * time.Second},
		Pacer:      pacer.New(0),
		Backoff:    retry.Backoff{Base: time.Millisecond, Max: 2 * time.Millisecond},
		Metrics:    metrics,
		Logger:     logger,
		MaxRetries: 2,
	}
	registry := scrape.NewRegistry()
	registry.Register(scrape.NewDexscreener(deps))

	p := pool.New(4, 3, logger)

	r := runner.New(p, registry, metrics, store,
		runner.WithLogger(logger),
		runner.WithSeenStore(seen),
	)
	batch := runner.BatchConfig{
		AddressFile:  addressFile,
		AddressLimit: source.DefaultAddressLimit,
		CurlFile:     filepath.Join(dir, "no-curl.txt"),
		Build: source.BuildConfig{
			DexscreenerURL: upstream.URL,
			Chain:          "bsc",
		},
	}

	// ── First run scrapes both addresses ─────────────────────────────────────
	sum, err := r.RunFiles(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Tasks)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Equal(t, 0, sum.Failed)

	// ── Second run finds everything cached ───────────────────────────────────
	sum2, err := r.RunFiles(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, sum2.Tasks, "cached addresses must not be scraped again")

	p.Stop(true)

	// ── Postgres sink got both results (checked before Close shuts the pool) ─
	var count int
	require.NoError(t, pgPool.QueryRow(ctx, `SELECT COUNT(*) FROM scrape_results WHERE success`).Scan(&count))
	assert.Equal(t, 2, count)

	require.NoError(t, store.Close())

	// ── JSONL sink got both results (flushed by Close) ───────────────────────
	f, err := os.Open(outputFile)
	require.NoError(t, err)
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		assert.Equal(t, true, record["status"])
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 2, lines)

	// ── Kafka sink got both results ──────────────────────────────────────────
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     testKafkaBrokers,
		Topic:       topic,
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { reader.Close() }) //nolint:errcheck

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for i := 0; i < 2; i++ {
		msg, err := reader.ReadMessage(readCtx)
		require.NoError(t, err)
		var res map[string]any
		require.NoError(t, json.Unmarshal(msg.Value, &res))
		assert.Equal(t, true, res["success"])
	}
}
