package scrape

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wq5881898/Scraper/internal/domain"
	"github.com/Wq5881898/Scraper/internal/pacer"
	"github.com/Wq5881898/Scraper/internal/stats"
	"github.com/Wq5881898/Scraper/pkg/retry"
)

var (
	_ Scraper  = (*GMGN)(nil)
	_ Scraper  = (*Dexscreener)(nil)
	_ Gate     = (*pacer.Pacer)(nil)
	_ Recorder = (*stats.Collector)(nil)
)

// testDeps wires scrapers with pacing disabled, fast backoff, and a live
// collector so tests can assert recording.
func testDeps(client *http.Client) (Deps, *stats.Collector) {
	metrics := stats.New()
	deps := Deps{
		Client:     client,
		Pacer:      pacer.New(0),
		Backoff:    retry.Backoff{Base: time.Millisecond, Max: 2 * time.Millisecond},
		Metrics:    metrics,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		MaxRetries: 2,
	}
	return deps, metrics
}

func TestRegistryRoundTrip(t *testing.T) {
	deps, _ := testDeps(http.DefaultClient)
	r := NewRegistry()
	r.Register(NewGMGN(deps))
	r.Register(NewDexscreener(deps))

	s, err := r.Get("gmgn")
	require.NoError(t, err)
	assert.Equal(t, "gmgn", s.Source())

	s, err = r.Get("dexscreener")
	require.NoError(t, err)
	assert.Equal(t, "dexscreener", s.Source())

	assert.ElementsMatch(t, []string{"gmgn", "dexscreener"}, r.Sources())
}

func TestRegistryUnknownSource(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("nosuch")
	require.Error(t, err)

	var unknown *domain.UnknownSourceError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nosuch", unknown.Source)
}
