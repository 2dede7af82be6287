package scrape

import (
	"context"
	"errors"
	"net"

	"github.com/Wq5881898/Scraper/internal/domain"
)

// Classify maps a fetch error to its outcome class. Anything that is not a
// timeout, cancellation, or invalid task is a connection-level failure:
// http.Client.Do only errors before a response exists.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return domain.ErrClassCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ErrClassTimeout
	}
	var invalid *domain.InvalidTaskError
	if errors.As(err, &invalid) {
		return domain.ErrClassInvalidTask
	}
	return domain.ErrClassConnection
}
