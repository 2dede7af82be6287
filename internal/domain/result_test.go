package domain_test

import (
	"testing"

	"github.com/Wq5881898/Scraper/internal/domain"
)

func TestErrClassHTTP(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{403, "HTTP_403"},
		{429, "HTTP_429"},
		{500, "HTTP_500"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := domain.ErrClassHTTP(tt.code); got != tt.want {
				t.Errorf("ErrClassHTTP(%d) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestFailedResult_CarriesTaskIdentity(t *testing.T) {
	task := domain.Task{ID: "t1", Source: "dexscreener", URL: "https://example.com"}
	res := domain.FailedResult(task, domain.ErrClassTimeout, 1200)

	if res.TaskID != "t1" || res.Source != "dexscreener" || res.URL != "https://example.com" {
		t.Errorf("FailedResult dropped task identity: %+v", res)
	}
	if res.Success {
		t.Error("FailedResult must not be a success")
	}
	if res.ErrorClass != domain.ErrClassTimeout {
		t.Errorf("ErrorClass = %q, want %q", res.ErrorClass, domain.ErrClassTimeout)
	}
	if res.LatencyMS != 1200 {
		t.Errorf("LatencyMS = %d, want 1200", res.LatencyMS)
	}
}

func TestRejectedResult(t *testing.T) {
	res := domain.RejectedResult(domain.Task{ID: "t2", Source: "gmgn"})
	if res.Success {
		t.Error("rejected result must not be a success")
	}
	if res.ErrorClass != domain.ErrClassStopped {
		t.Errorf("ErrorClass = %q, want %q", res.ErrorClass, domain.ErrClassStopped)
	}
	if res.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", res.StatusCode)
	}
}
