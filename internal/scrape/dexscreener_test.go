package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wq5881898/Scraper/internal/domain"
)

func dexTask(serverURL string) domain.Task {
	return domain.Task{
		ID:     "task-2",
		Source: "dexscreener",
		URL:    serverURL + "/latest/dex/search/",
		Params: map[string]string{"q": "0xabc"},
	}
}

const dexPairResponse = `{
	"pairs": [{
		"chainId": "bsc",
		"dexId": "pancakeswap",
		"priceUsd": "0.0421",
		"marketCap": 4200000,
		"fdv": 5000000,
		"pairCreatedAt": 1614556800000,
		"baseToken": {"name": "TestToken", "symbol": "TT"},
		"liquidity": {"usd": 123456.7},
		"volume": {"h24": 98765.4},
		"priceChange": {"h1": 0.5, "h24": -3.2}
	}]
}`

func TestDexscreenerScrapeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "0xabc", r.URL.Query().Get("q"))
		fmt.Fprint(w, dexPairResponse)
	}))
	defer srv.Close()

	deps, metrics := testDeps(srv.Client())
	res := NewDexscreener(deps).Scrape(context.Background(), dexTask(srv.URL))

	require.True(t, res.Success)
	assert.Equal(t, 200, res.StatusCode)

	data, ok := res.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "TestToken", data["token_name"])
	assert.Equal(t, "bsc", data["chain_id"])
	assert.Equal(t, "pancakeswap", data["dex_id"])
	assert.Equal(t, "0.0421", data["price_usd"])
	assert.Equal(t, 123456.7, data["liquidity_usd"])
	assert.Equal(t, float64(4200000), data["market_cap"])
	assert.Equal(t, 98765.4, data["volume_h24"])
	assert.Equal(t, "2021-03-01T00:00:00Z", data["created_at_utc"])

	change, ok := data["price_change"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, -3.2, change["h24"])

	snap := metrics.Snapshot(time.Minute)
	assert.Equal(t, 1, snap.SuccessCount)
}

func TestDexscreenerScrapeNoPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"pairs": []}`)
	}))
	defer srv.Close()

	deps, _ := testDeps(srv.Client())
	res := NewDexscreener(deps).Scrape(context.Background(), dexTask(srv.URL))

	require.True(t, res.Success)
	data, ok := res.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "can not find 0xabc", data["error"])
	assert.Equal(t, []any{}, data["pairs"])
}

func TestDexscreenerScrapeAPIErrorMessageKept(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"rate limited"}`)
	}))
	defer srv.Close()

	deps, _ := testDeps(srv.Client())
	res := NewDexscreener(deps).Scrape(context.Background(), dexTask(srv.URL))

	data, ok := res.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "rate limited", data["error"])
}

func TestDexscreenerScrapeRateLimitedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"pairs": []}`)
	}))
	defer srv.Close()

	deps, metrics := testDeps(srv.Client())
	res := NewDexscreener(deps).Scrape(context.Background(), dexTask(srv.URL))

	require.False(t, res.Success)
	assert.Equal(t, 429, res.StatusCode)
	assert.Equal(t, "HTTP_429", res.ErrorClass)

	snap := metrics.Snapshot(time.Minute)
	assert.Equal(t, 1, snap.HTTP429Count)
}

func TestDexscreenerScrapeNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `upstream broke`)
	}))
	defer srv.Close()

	deps, _ := testDeps(srv.Client())
	res := NewDexscreener(deps).Scrape(context.Background(), dexTask(srv.URL))

	data, ok := res.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "upstream broke", data["raw_text"])
}

func TestDexscreenerScrapeMissingURLIsInvalidTask(t *testing.T) {
	deps, _ := testDeps(http.DefaultClient)
	res := NewDexscreener(deps).Scrape(context.Background(), domain.Task{ID: "task-2", Source: "dexscreener"})

	require.False(t, res.Success)
	assert.Equal(t, domain.ErrClassInvalidTask, res.ErrorClass)
}
