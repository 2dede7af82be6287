package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Wq5881898/Scraper/internal/domain"
)

// DefaultGMGNURL is the token-info endpoint queried when no curl template
// overrides it.
const DefaultGMGNURL = "https://gmgn.ai/api/v1/mutil_window_token_info"

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// GMGN scrapes token info from gmgn.ai. The request shape comes from a
// captured curl template in task.Meta.RawCurl; chain and addresses from the
// task override the template body.
type GMGN struct {
	deps Deps
}

// NewGMGN creates a GMGN scraper.
func NewGMGN(deps Deps) *GMGN {
	return &GMGN{deps: deps}
}

func (s *GMGN) Source() string { return "gmgn" }

func (s *GMGN) Scrape(ctx context.Context, task domain.Task) domain.Result {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "scrape.gmgn")
	defer span.End()
	span.SetAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("task.url", task.URL),
	)
	start := time.Now()

	method := http.MethodGet
	target := task.URL
	params := task.Params
	headers := task.Meta.Headers
	var (
		cookies  map[string]string
		jsonBody map[string]any
		rawBody  string
	)

	if task.Meta.RawCurl != "" {
		cr, err := ParseCurl(task.Meta.RawCurl)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bad curl template")
			return s.deps.fail(task, start, &domain.InvalidTaskError{TaskID: task.ID, Reason: err.Error()})
		}
		method, target = cr.Method, cr.URL
		params, headers, cookies = cr.Params, cr.Headers, cr.Cookies
		jsonBody, rawBody = cr.JSONBody, cr.RawBody
		if jsonBody != nil {
			if task.Meta.Chain != "" {
				jsonBody["chain"] = task.Meta.Chain
			}
			if len(task.Meta.Addresses) > 0 {
				jsonBody["addresses"] = task.Meta.Addresses
			}
		}
	}
	if target == "" {
		err := &domain.InvalidTaskError{TaskID: task.ID, Reason: "no url and no curl template"}
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid task")
		return s.deps.fail(task, start, err)
	}

	token := ""
	if len(task.Meta.Addresses) > 0 {
		token = task.Meta.Addresses[0]
	}

	resp, body, err := s.deps.execute(ctx, task, func(ctx context.Context) (*http.Request, error) {
		var reader io.Reader
		if jsonBody != nil {
			encoded, err := json.Marshal(jsonBody)
			if err != nil {
				return nil, err
			}
			reader = bytes.NewReader(encoded)
		} else if rawBody != "" {
			reader = strings.NewReader(rawBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, err
		}
		if len(params) > 0 {
			q := req.URL.Query()
			for k, v := range params {
				q.Set(k, v)
			}
			req.URL.RawQuery = q.Encode()
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		for name, value := range cookies {
			req.AddCookie(&http.Cookie{Name: name, Value: value})
		}
		if jsonBody != nil && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", defaultUserAgent)
		}
		return req, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return s.deps.fail(task, start, err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return s.deps.finish(task, start, resp.StatusCode, parseTokenInfo(body, resp.StatusCode, token))
}

// parseTokenInfo extracts the data payload from a token-info response,
// keeping error detail around when the body is not what a healthy response
// looks like.
func parseTokenInfo(body []byte, statusCode int, token string) any {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		text := string(body)
		if len(text) > 1000 {
			text = text[:1000]
		}
		return map[string]any{
			"token":       token,
			"error":       "invalid_json",
			"status_code": statusCode,
			"raw_text":    text,
		}
	}

	if statusCode != http.StatusOK && statusCode != http.StatusCreated {
		msg := ""
		if m, ok := payload.(map[string]any); ok {
			msg = firstString(m, "error", "message")
		}
		if msg == "" {
			msg = fmt.Sprintf("http_%d", statusCode)
		}
		return map[string]any{
			"token":       token,
			"error":       msg,
			"status_code": statusCode,
			"raw":         payload,
		}
	}

	m, ok := payload.(map[string]any)
	if !ok {
		return payload
	}
	data := m["data"]
	if isEmptyValue(data) {
		data = m["result"]
	}
	if isEmptyValue(data) {
		msg := "can not find token"
		if token != "" {
			msg = fmt.Sprintf("can not find %s", token)
		}
		return map[string]any{
			"token":       token,
			"error":       msg,
			"status_code": statusCode,
		}
	}
	return data
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// isEmptyValue mirrors truthiness for decoded JSON values.
func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0
	case map[string]any:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}
