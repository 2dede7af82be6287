// Package storage persists scrape results. Sinks are best-effort: a
// failing backend is logged and counted, never fatal to a run.
package storage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Wq5881898/Scraper/internal/domain"
	"github.com/Wq5881898/Scraper/pkg/telemetry"
)

// Sink persists scrape results.
type Sink interface {
	Name() string
	Write(ctx context.Context, res domain.Result) error
	Close() error
}

// MultiSink fans each result out to every configured sink.
type MultiSink struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewMultiSink wraps the given sinks. Results are written to all of them;
// per-sink failures are logged and counted but do not stop the fanout.
func NewMultiSink(logger *slog.Logger, sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks, logger: logger}
}

func (m *MultiSink) Name() string { return "multi" }

// Write delivers the result to every sink. Always returns nil: persistence
// problems must not fail the scrape pipeline.
func (m *MultiSink) Write(ctx context.Context, res domain.Result) error {
	for _, s := range m.sinks {
		if err := s.Write(ctx, res); err != nil {
			telemetry.StorageWriteErrors.WithLabelValues(s.Name()).Inc()
			m.logger.Error("sink write failed",
				slog.String("sink", s.Name()),
				slog.String("task_id", res.TaskID),
				slog.String("error", err.Error()),
			)
			continue
		}
		telemetry.StorageResultsWritten.WithLabelValues(s.Name()).Inc()
	}
	return nil
}

// Close closes every sink, returning the joined errors.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
