// Package scrape contains the per-site scrapers, their shared fetch
// machinery, and the source registry.
package scrape

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Wq5881898/Scraper/internal/domain"
	"github.com/Wq5881898/Scraper/pkg/retry"
	"github.com/Wq5881898/Scraper/pkg/telemetry"
)

const tracerName = "scraper"

// Scraper fetches and parses one site. Scrape always returns a Result;
// faults are classified, never propagated.
type Scraper interface {
	Source() string
	Scrape(ctx context.Context, task domain.Task) domain.Result
}

// Gate paces outbound requests. Satisfied by the pacer.
type Gate interface {
	Acquire(ctx context.Context)
}

// Recorder receives every produced outcome. Satisfied by the stats
// collector.
type Recorder interface {
	Record(res domain.Result)
}

// Deps carries the collaborators shared by all scrapers.
type Deps struct {
	Client     *http.Client
	Pacer      Gate
	Backoff    retry.Backoff
	Metrics    Recorder
	Logger     *slog.Logger
	MaxRetries int
}

// execute performs one paced, retried fetch. Transport failures are retried
// up to MaxRetries with backoff; HTTP error statuses are not failures at
// this layer and come back as a normal response for the parser to judge.
func (d Deps) execute(ctx context.Context, task domain.Task, build func(context.Context) (*http.Request, error)) (*http.Response, []byte, error) {
	var (
		resp *http.Response
		body []byte
	)
	cfg := retry.Config{
		MaxAttempts: d.MaxRetries,
		Backoff:     d.Backoff,
		OnRetry: func(attempt int, err error) {
			telemetry.ScrapeRetriesTotal.WithLabelValues(task.Source).Inc()
			d.Logger.Warn("scrape attempt failed",
				slog.String("task_id", task.ID),
				slog.String("source", task.Source),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		},
	}

	err := retry.Do(ctx, cfg, func() error {
		d.Pacer.Acquire(ctx)
		req, err := build(ctx)
		if err != nil {
			return err
		}
		r, err := d.Client.Do(req)
		if err != nil {
			return err
		}
		defer r.Body.Close()
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		resp, body = r, b
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return resp, body, nil
}

// finish builds and records the Result for a fetch that produced a
// response. Only 200 and 201 count as success.
func (d Deps) finish(task domain.Task, start time.Time, statusCode int, data any) domain.Result {
	success := statusCode == http.StatusOK || statusCode == http.StatusCreated
	res := domain.Result{
		TaskID:     task.ID,
		Source:     task.Source,
		URL:        task.URL,
		Success:    success,
		StatusCode: statusCode,
		LatencyMS:  time.Since(start).Milliseconds(),
		Data:       data,
	}
	if !success {
		res.ErrorClass = domain.ErrClassHTTP(statusCode)
	}
	d.record(res)
	return res
}

// fail builds and records the Result for a fetch that never produced a
// response.
func (d Deps) fail(task domain.Task, start time.Time, err error) domain.Result {
	res := domain.FailedResult(task, Classify(err), time.Since(start).Milliseconds())
	d.record(res)
	return res
}

func (d Deps) record(res domain.Result) {
	outcome := res.ErrorClass
	if res.Success {
		outcome = "success"
	}
	telemetry.ScrapeRequestsTotal.WithLabelValues(res.Source, outcome).Inc()
	if d.Metrics != nil {
		d.Metrics.Record(res)
	}
}

// Registry maps source tags to their scrapers.
type Registry struct {
	mu       sync.RWMutex
	scrapers map[string]Scraper
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{scrapers: make(map[string]Scraper)}
}

// Register adds a scraper. Safe to call concurrently.
func (r *Registry) Register(s Scraper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrapers[s.Source()] = s
}

// Get returns the scraper for the given source tag.
// Returns UnknownSourceError if not registered.
func (r *Registry) Get(source string) (Scraper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scrapers[source]
	if !ok {
		return nil, &domain.UnknownSourceError{Source: source}
	}
	return s, nil
}

// Sources lists the registered source tags.
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.scrapers))
	for src := range r.scrapers {
		out = append(out, src)
	}
	return out
}
