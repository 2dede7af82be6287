package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Wq5881898/Scraper/internal/domain"
)

// DefaultDexscreenerURL is the pair-search endpoint; the address to look up
// travels in the q query param.
const DefaultDexscreenerURL = "https://api.dexscreener.com/latest/dex/search/"

// Dexscreener scrapes pair data from the DEX Screener search API and
// flattens the first match.
type Dexscreener struct {
	deps Deps
}

// NewDexscreener creates a Dexscreener scraper.
func NewDexscreener(deps Deps) *Dexscreener {
	return &Dexscreener{deps: deps}
}

func (s *Dexscreener) Source() string { return "dexscreener" }

func (s *Dexscreener) Scrape(ctx context.Context, task domain.Task) domain.Result {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "scrape.dexscreener")
	defer span.End()
	span.SetAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("task.url", task.URL),
	)
	start := time.Now()

	if task.URL == "" {
		err := &domain.InvalidTaskError{TaskID: task.ID, Reason: "no url"}
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid task")
		return s.deps.fail(task, start, err)
	}

	resp, body, err := s.deps.execute(ctx, task, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
		if err != nil {
			return nil, err
		}
		if len(task.Params) > 0 {
			q := req.URL.Query()
			for k, v := range task.Params {
				q.Set(k, v)
			}
			req.URL.RawQuery = q.Encode()
		}
		for k, v := range task.Meta.Headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return s.deps.fail(task, start, err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return s.deps.finish(task, start, resp.StatusCode, parsePairSearch(body, resp.StatusCode, task.Params["q"]))
}

// parsePairSearch flattens the first pair of a search response into the
// fields downstream consumers read.
func parsePairSearch(body []byte, statusCode int, query string) any {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return map[string]any{"raw_text": string(body)}
	}

	m, _ := decoded.(map[string]any)
	pairs, _ := m["pairs"].([]any)
	if len(pairs) == 0 {
		msg := ""
		if m != nil {
			msg = firstString(m, "error", "message")
		}
		if msg == "" {
			if query != "" {
				msg = fmt.Sprintf("can not find %s", query)
			} else {
				msg = "can not find token"
			}
		}
		return map[string]any{
			"pairs":       []any{},
			"error":       msg,
			"status_code": statusCode,
		}
	}

	pair, ok := pairs[0].(map[string]any)
	if !ok {
		return decoded
	}

	createdMS, _ := pair["pairCreatedAt"].(float64)
	createdAt := time.UnixMilli(int64(createdMS)).UTC()

	priceChange, ok := pair["priceChange"].(map[string]any)
	if !ok {
		priceChange = map[string]any{}
	}

	return map[string]any{
		"token_name":     dig(pair, "baseToken", "name"),
		"chain_id":       pair["chainId"],
		"dex_id":         pair["dexId"],
		"price_usd":      pair["priceUsd"],
		"liquidity_usd":  dig(pair, "liquidity", "usd"),
		"market_cap":     pair["marketCap"],
		"fdv":            pair["fdv"],
		"volume_h24":     dig(pair, "volume", "h24"),
		"price_change":   priceChange,
		"created_at_utc": createdAt.Format(time.RFC3339),
	}
}

// dig walks nested JSON objects, returning nil when any hop is missing.
func dig(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = mm[k]
	}
	return cur
}
