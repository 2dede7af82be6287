package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Wq5881898/Scraper/internal/domain"
)

// jsonlRecord is the on-disk line format. Field names are the contract
// with downstream consumers of the result files.
type jsonlRecord struct {
	Timestamp  float64 `json:"timestamp"`
	TaskID     string  `json:"task_id"`
	SourceID   string  `json:"source_id"`
	URL        string  `json:"url"`
	ParsedData any     `json:"parsed_data"`
	Status     bool    `json:"status"`
	Latency    int64   `json:"latency"`
	ErrorType  string  `json:"error_type"`
	StatusCode int     `json:"status_code"`
}

// JSONLSink appends results to a JSON Lines file. Writes are queued to a
// background goroutine so the scrape pipeline never blocks on disk.
type JSONLSink struct {
	file   *os.File
	queue  chan domain.Result
	done   chan struct{}
	logger *slog.Logger

	mu       sync.RWMutex
	closed   bool
	closeErr error
}

// NewJSONLSink opens (or creates) path for appending and starts the
// background writer.
func NewJSONLSink(path string, logger *slog.Logger) (*JSONLSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}
	s := &JSONLSink{
		file:   f,
		queue:  make(chan domain.Result, 256),
		done:   make(chan struct{}),
		logger: logger,
	}
	go s.writer()
	return s, nil
}

func (s *JSONLSink) Name() string { return "jsonl" }

// Write enqueues the result for the background writer.
func (s *JSONLSink) Write(ctx context.Context, res domain.Result) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("jsonl sink closed")
	}
	select {
	case s.queue <- res:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes queued results and closes the file. Safe to call twice.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return s.closeErr
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.closeErr
}

func (s *JSONLSink) writer() {
	defer close(s.done)
	enc := json.NewEncoder(s.file)
	for res := range s.queue {
		rec := jsonlRecord{
			Timestamp:  float64(time.Now().UnixNano()) / float64(time.Second),
			TaskID:     res.TaskID,
			SourceID:   res.Source,
			URL:        res.URL,
			ParsedData: res.Data,
			Status:     res.Success,
			Latency:    res.LatencyMS,
			ErrorType:  res.ErrorClass,
			StatusCode: res.StatusCode,
		}
		if err := enc.Encode(rec); err != nil {
			s.logger.Error("jsonl write failed",
				slog.String("task_id", res.TaskID),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := s.file.Sync(); err != nil {
		s.closeErr = fmt.Errorf("sync results file: %w", err)
	}
	if err := s.file.Close(); err != nil && s.closeErr == nil {
		s.closeErr = fmt.Errorf("close results file: %w", err)
	}
}
