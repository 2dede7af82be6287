package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Wq5881898/Scraper/internal/pacer"
	"github.com/Wq5881898/Scraper/internal/pool"
	redisstore "github.com/Wq5881898/Scraper/internal/redis"
	"github.com/Wq5881898/Scraper/internal/scrape"
	"github.com/Wq5881898/Scraper/internal/source"
	"github.com/Wq5881898/Scraper/internal/stats"
	"github.com/Wq5881898/Scraper/internal/storage"
	"github.com/Wq5881898/Scraper/internal/tuner"
	"github.com/Wq5881898/Scraper/internal/version"
	"github.com/Wq5881898/Scraper/pkg/retry"
	"github.com/Wq5881898/Scraper/pkg/telemetry"
	"github.com/Wq5881898/Scraper/services/runner"
	"github.com/Wq5881898/Scraper/services/runner/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape the configured address list",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().String("address-file", "addresses.txt", "newline-separated token address list")
	runCmd.Flags().Int("address-limit", source.DefaultAddressLimit, "maximum addresses read from the list")
	runCmd.Flags().String("curl-file", "curl_config.txt", "curl command template for the gmgn source (optional)")
	runCmd.Flags().String("chain", "bsc", "chain identifier sent in gmgn request bodies")
	runCmd.Flags().String("gmgn-url", scrape.DefaultGMGNURL, "gmgn token info endpoint")
	runCmd.Flags().String("dexscreener-url", scrape.DefaultDexscreenerURL, "dexscreener pair search endpoint")

	runCmd.Flags().Int("workers", 8, "worker goroutines in the pool")
	runCmd.Flags().Int("initial-limit", 3, "starting admission ceiling")
	runCmd.Flags().Int("max-limit", 20, "upper bound the tuner may raise the ceiling to")
	runCmd.Flags().Float64("rate-per-sec", 2.0, "outbound request rate; 0 disables pacing")
	runCmd.Flags().Duration("eval-interval", tuner.DefaultInterval, "time between tuner evaluations")
	runCmd.Flags().Duration("stats-window", tuner.DefaultWindow, "sliding window the tuner inspects")

	runCmd.Flags().Int("max-retries", 3, "fetch attempts per request")
	runCmd.Flags().Duration("http-timeout", 20*time.Second, "per-request HTTP timeout")

	runCmd.Flags().String("output-file", "results.jsonl", "JSONL results file")
	runCmd.Flags().String("postgres-dsn", "", "PostgreSQL DSN for the results table; empty disables")
	runCmd.Flags().String("kafka-brokers", "", "comma-separated Kafka brokers for result publishing; empty disables")
	runCmd.Flags().String("kafka-topic", "scrape.results", "Kafka topic results are published to")
	runCmd.Flags().String("redis-addr", "", "Redis address for the seen cache; empty disables")
	runCmd.Flags().Duration("seen-ttl", redisstore.DefaultSeenTTL, "how long scraped addresses stay cached")

	runCmd.Flags().String("metrics-addr", ":9091", "Prometheus metrics server address")
	runCmd.Flags().String("otel-endpoint", "", "OTLP HTTP endpoint for tracing (e.g. localhost:4318); empty disables tracing")
	runCmd.Flags().String("cron", "", "cron schedule for repeated runs (e.g. \"@every 30m\"); empty runs once")

	bindFlag("address_file", runCmd.Flags(), "address-file")
	bindFlag("address_limit", runCmd.Flags(), "address-limit")
	bindFlag("curl_file", runCmd.Flags(), "curl-file")
	bindFlag("chain", runCmd.Flags(), "chain")
	bindFlag("gmgn_url", runCmd.Flags(), "gmgn-url")
	bindFlag("dexscreener_url", runCmd.Flags(), "dexscreener-url")
	bindFlag("workers", runCmd.Flags(), "workers")
	bindFlag("initial_limit", runCmd.Flags(), "initial-limit")
	bindFlag("max_limit", runCmd.Flags(), "max-limit")
	bindFlag("rate_per_sec", runCmd.Flags(), "rate-per-sec")
	bindFlag("eval_interval", runCmd.Flags(), "eval-interval")
	bindFlag("stats_window", runCmd.Flags(), "stats-window")
	bindFlag("max_retries", runCmd.Flags(), "max-retries")
	bindFlag("http_timeout", runCmd.Flags(), "http-timeout")
	bindFlag("output_file", runCmd.Flags(), "output-file")
	bindFlag("postgres_dsn", runCmd.Flags(), "postgres-dsn")
	bindFlag("kafka_brokers", runCmd.Flags(), "kafka-brokers")
	bindFlag("kafka_topic", runCmd.Flags(), "kafka-topic")
	bindFlag("redis_addr", runCmd.Flags(), "redis-addr")
	bindFlag("seen_ttl", runCmd.Flags(), "seen-ttl")
	bindFlag("metrics_addr", runCmd.Flags(), "metrics-addr")
	bindFlag("otel_endpoint", runCmd.Flags(), "otel-endpoint")
	bindFlag("cron", runCmd.Flags(), "cron")
	_ = viper.BindEnv("otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func runRun(_ *cobra.Command, _ []string) error {
	cfg := config.Load(viper.GetViper())
	logger := buildLogger(cfg.LogLevel, "scraper")

	shutdownTracer, err := telemetry.InitTracer(context.Background(), "scraper", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer()

	metrics := stats.New()

	jsonlSink, err := storage.NewJSONLSink(cfg.OutputFile, logger)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer func() { _ = jsonlSink.Close() }()
	sinks := []storage.Sink{jsonlSink}

	if cfg.PostgresDSN != "" {
		initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pgPool, err := storage.NewPostgresPool(initCtx, cfg.PostgresDSN)
		cancel()
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		pgSink := storage.NewPostgresSink(pgPool)
		defer func() { _ = pgSink.Close() }()
		sinks = append(sinks, pgSink)
	}

	if cfg.KafkaBrokers != "" {
		kafkaSink := storage.NewKafkaSink(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic)
		defer func() { _ = kafkaSink.Close() }()
		sinks = append(sinks, kafkaSink)
	}
	store := storage.NewMultiSink(logger, sinks...)

	runnerOpts := []runner.Option{runner.WithLogger(logger)}
	if cfg.RedisAddr != "" {
		client := redisstore.NewClient(cfg.RedisAddr)
		defer func() { _ = client.Close() }()
		runnerOpts = append(runnerOpts, runner.WithSeenStore(redisstore.NewSeenStore(client, cfg.SeenTTL)))
	}

	deps := scrape.Deps{
		Client:     &http.Client{Timeout: cfg.HTTPTimeout},
		Pacer:      pacer.New(cfg.RatePerSec),
		Backoff:    retry.NewBackoff(0, 0),
		Metrics:    metrics,
		Logger:     logger,
		MaxRetries: cfg.MaxRetries,
	}
	registry := scrape.NewRegistry()
	registry.Register(scrape.NewGMGN(deps))
	registry.Register(scrape.NewDexscreener(deps))

	p := pool.New(cfg.Workers, cfg.InitialLimit, logger)
	defer p.Stop(false)

	increase := tuner.NewIncreasePolicy()
	if cfg.MaxLimit > 0 {
		increase.MaxLimit = cfg.MaxLimit
	}
	policies := []tuner.Policy{
		tuner.NewReducePolicy(),
		tuner.NewRotateProxyPolicy(),
		increase,
	}
	tun := tuner.New(metrics, p, policies, cfg.EvalInterval, cfg.StatsWindow, logger)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	telemetry.StartMetricsServer(runCtx, cfg.MetricsAddr, logger, func() any { return metrics.Export() })

	tunerDone := make(chan struct{})
	go func() {
		defer close(tunerDone)
		tun.Run(runCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-quit
		logger.Info("shutting down, draining in-flight tasks...")
		runCancel()
	}()

	r := runner.New(p, registry, metrics, store, runnerOpts...)
	batch := runner.BatchConfig{
		AddressFile:  cfg.AddressFile,
		AddressLimit: cfg.AddressLimit,
		CurlFile:     cfg.CurlFile,
		Build: source.BuildConfig{
			GMGNURL:        cfg.GMGNURL,
			DexscreenerURL: cfg.DexscreenerURL,
			Chain:          cfg.Chain,
		},
	}

	logger.Info("runner starting",
		slog.String("version", version.String()),
		slog.Int("workers", cfg.Workers),
		slog.Int("initial_limit", cfg.InitialLimit),
		slog.Float64("rate_per_sec", cfg.RatePerSec),
		slog.String("address_file", cfg.AddressFile),
		slog.String("output_file", cfg.OutputFile),
	)

	cronSpec := viper.GetString("cron")
	if cronSpec != "" {
		err = runner.RunCron(runCtx, cronSpec, logger, func(ctx context.Context) {
			if _, batchErr := r.RunFiles(ctx, batch); batchErr != nil {
				logger.Error("batch failed", slog.String("error", batchErr.Error()))
			}
		})
	} else {
		_, err = r.RunFiles(runCtx, batch)
	}

	runCancel()
	<-tunerDone
	p.Stop(true)

	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	logger.Info("stopped cleanly")
	return nil
}
