package domain

import "fmt"

// Error classes attached to failed results. HTTP failures use ErrClassHTTP;
// everything else maps to one of the named classes.
const (
	ErrClassTimeout     = "Timeout"
	ErrClassConnection  = "ConnectionError"
	ErrClassPanic       = "Panic"
	ErrClassStopped     = "PoolStopped"
	ErrClassCanceled    = "Canceled"
	ErrClassInvalidTask = "InvalidTask"
)

// ErrClassHTTP returns the error class for a non-success HTTP status.
func ErrClassHTTP(statusCode int) string {
	return fmt.Sprintf("HTTP_%d", statusCode)
}

// Result is the immutable outcome of one task execution. Exactly one Result
// is produced per submitted task, whether the task ran, failed, or was
// rejected. Success implies an empty ErrorClass.
type Result struct {
	TaskID     string `json:"task_id"`
	Source     string `json:"source"`
	URL        string `json:"url"`
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	LatencyMS  int64  `json:"latency_ms"`
	Data       any    `json:"data,omitempty"`
	ErrorClass string `json:"error_class,omitempty"`
}

// FailedResult builds a Result for a task that never produced a response.
func FailedResult(task Task, errorClass string, latencyMS int64) Result {
	return Result{
		TaskID:     task.ID,
		Source:     task.Source,
		URL:        task.URL,
		Success:    false,
		LatencyMS:  latencyMS,
		ErrorClass: errorClass,
	}
}

// RejectedResult builds the Result returned for submissions the pool refused
// because it had already been stopped.
func RejectedResult(task Task) Result {
	return FailedResult(task, ErrClassStopped, 0)
}
