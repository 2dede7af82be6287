package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Wq5881898/Scraper/internal/domain"
	"github.com/Wq5881898/Scraper/internal/pool"
	redisstore "github.com/Wq5881898/Scraper/internal/redis"
	"github.com/Wq5881898/Scraper/internal/scrape"
	"github.com/Wq5881898/Scraper/internal/source"
	"github.com/Wq5881898/Scraper/internal/stats"
	"github.com/Wq5881898/Scraper/internal/storage"
)

// Runner drives scrape batches: it submits every task through the
// admission-controlled pool, waits for the results in submission order, and
// writes each one to storage.
type Runner struct {
	pool     *pool.Pool
	registry *scrape.Registry
	metrics  *stats.Collector
	store    storage.Sink
	seen     redisstore.SeenStore
	logger   *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.logger = l } }

// WithSeenStore enables the seen cache: recently scraped addresses are
// dropped before submission and successes are marked after.
func WithSeenStore(s redisstore.SeenStore) Option { return func(r *Runner) { r.seen = s } }

// New constructs a Runner over the given pool, registry, collector and sink.
func New(p *pool.Pool, registry *scrape.Registry, metrics *stats.Collector, store storage.Sink, opts ...Option) *Runner {
	r := &Runner{
		pool:     p,
		registry: registry,
		metrics:  metrics,
		store:    store,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Summary aggregates the outcome of one batch.
type Summary struct {
	Tasks      int
	Succeeded  int
	Failed     int
	Duration   time.Duration
	FinalLimit int
}

// BatchConfig names the inputs of one batch.
type BatchConfig struct {
	AddressFile  string
	AddressLimit int
	CurlFile     string
	Build        source.BuildConfig
}

// RunFiles loads addresses and the optional curl template, builds the task
// list, drops recently scraped addresses, and runs the batch.
func (r *Runner) RunFiles(ctx context.Context, cfg BatchConfig) (Summary, error) {
	template, err := source.LoadCurlTemplate(cfg.CurlFile)
	if err != nil {
		return Summary{}, fmt.Errorf("load curl template: %w", err)
	}
	addresses, err := source.LoadAddresses(cfg.AddressFile, cfg.AddressLimit)
	if err != nil {
		return Summary{}, fmt.Errorf("load addresses: %w", err)
	}

	build := cfg.Build
	build.CurlTemplate = template
	tasks := r.filterSeen(ctx, source.BuildTasks(addresses, build))
	if len(tasks) == 0 {
		r.logger.Info("no tasks to run", slog.Int("addresses", len(addresses)))
		return Summary{}, nil
	}
	return r.RunBatch(ctx, tasks), nil
}

// RunBatch submits the tasks and blocks until every Result has been written
// to storage. Tasks whose source has no registered scraper fail without
// touching the pool.
func (r *Runner) RunBatch(ctx context.Context, tasks []domain.Task) Summary {
	ctx, span := otel.Tracer("runner").Start(ctx, "runner.batch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.tasks", len(tasks)))

	start := time.Now()
	sum := Summary{Tasks: len(tasks)}

	handles := make([]*pool.Handle, 0, len(tasks))
	submitted := make([]domain.Task, 0, len(tasks))
	for _, task := range tasks {
		scraper, err := r.registry.Get(task.Source)
		if err != nil {
			r.logger.Error("no scraper for task",
				slog.String("task_id", task.ID),
				slog.String("source", task.Source),
				slog.String("error", err.Error()),
			)
			r.deliver(ctx, task, domain.FailedResult(task, domain.ErrClassInvalidTask, 0), &sum)
			continue
		}
		handles = append(handles, r.pool.Submit(ctx, task, scraper.Scrape))
		submitted = append(submitted, task)
	}

	for i, h := range handles {
		r.deliver(ctx, submitted[i], h.Result(), &sum)
	}

	sum.Duration = time.Since(start)
	sum.FinalLimit = r.pool.Limit()
	span.SetAttributes(
		attribute.Int("batch.succeeded", sum.Succeeded),
		attribute.Int("batch.failed", sum.Failed),
	)

	snap := r.metrics.Snapshot(time.Since(start))
	r.logger.Info("batch complete",
		slog.Int("tasks", sum.Tasks),
		slog.Int("succeeded", sum.Succeeded),
		slog.Int("failed", sum.Failed),
		slog.Duration("duration", sum.Duration),
		slog.Int("final_limit", sum.FinalLimit),
		slog.Int("total_requests", snap.TotalRequests),
		slog.Int("timeout_count", snap.TimeoutCount),
		slog.Int("http_429_count", snap.HTTP429Count),
		slog.Bool("ban_suspected", snap.BanSuspected),
		slog.Float64("avg_latency_ms", snap.AvgLatencyMS),
	)
	return sum
}

// deliver writes one Result, tallies it, and marks the address seen on
// success.
func (r *Runner) deliver(ctx context.Context, task domain.Task, res domain.Result, sum *Summary) {
	if err := r.store.Write(ctx, res); err != nil {
		r.logger.Error("failed to store result",
			slog.String("task_id", res.TaskID),
			slog.String("error", err.Error()),
		)
	}

	if res.Success {
		sum.Succeeded++
		r.markSeen(ctx, task)
		r.logger.Info("task completed",
			slog.String("task_id", res.TaskID),
			slog.String("source", res.Source),
			slog.Int("status_code", res.StatusCode),
			slog.Int64("latency_ms", res.LatencyMS),
		)
	} else {
		sum.Failed++
		r.logger.Warn("task failed",
			slog.String("task_id", res.TaskID),
			slog.String("source", res.Source),
			slog.String("error_class", res.ErrorClass),
			slog.Int("status_code", res.StatusCode),
			slog.Int64("latency_ms", res.LatencyMS),
		)
	}
}

// filterSeen drops tasks whose address was scraped within the cache TTL.
// When the cache is unreachable the batch runs unfiltered.
func (r *Runner) filterSeen(ctx context.Context, tasks []domain.Task) []domain.Task {
	if r.seen == nil || len(tasks) == 0 {
		return tasks
	}

	bySource := make(map[string][]string)
	for _, t := range tasks {
		if addr := addressOf(t); addr != "" {
			bySource[t.Source] = append(bySource[t.Source], addr)
		}
	}

	unseen := make(map[string]map[string]bool, len(bySource))
	for src, addrs := range bySource {
		kept, err := r.seen.FilterUnseen(ctx, src, addrs)
		if err != nil {
			r.logger.Warn("seen cache unavailable, keeping all addresses",
				slog.String("source", src),
				slog.String("error", err.Error()),
			)
			continue
		}
		set := make(map[string]bool, len(kept))
		for _, a := range kept {
			set[a] = true
		}
		unseen[src] = set
	}

	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if addr := addressOf(t); addr != "" {
			if set, ok := unseen[t.Source]; ok && !set[addr] {
				continue
			}
		}
		out = append(out, t)
	}
	if skipped := len(tasks) - len(out); skipped > 0 {
		r.logger.Info("skipping recently scraped addresses",
			slog.Int("skipped", skipped),
			slog.Int("remaining", len(out)),
		)
	}
	return out
}

func (r *Runner) markSeen(ctx context.Context, task domain.Task) {
	if r.seen == nil {
		return
	}
	addr := addressOf(task)
	if addr == "" {
		return
	}
	if err := r.seen.MarkSeen(ctx, task.Source, addr); err != nil {
		r.logger.Warn("failed to mark address seen",
			slog.String("source", task.Source),
			slog.String("address", addr),
			slog.String("error", err.Error()),
		)
	}
}

// addressOf extracts the address a task targets, for the seen cache.
func addressOf(task domain.Task) string {
	if len(task.Meta.Addresses) > 0 {
		return task.Meta.Addresses[0]
	}
	return task.Params["q"]
}

// RunCron executes run on the given schedule until ctx is cancelled. Accepts
// standard five-field cron expressions and descriptors like "@hourly" or
// "@every 30m".
func RunCron(ctx context.Context, spec string, logger *slog.Logger, run func(context.Context)) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("parse cron %q: %w", spec, err)
	}

	for {
		next := schedule.Next(time.Now())
		logger.Info("next run scheduled", slog.Time("next_run", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		run(ctx)
	}
}
