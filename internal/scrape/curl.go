package scrape

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	shellwords "github.com/mattn/go-shellwords"
)

// CurlRequest is a raw curl command template broken into request fields.
// Site operators paste a captured curl command into the config; the
// scraper rebuilds the request from these pieces.
type CurlRequest struct {
	Method   string
	URL      string
	Params   map[string]string
	Headers  map[string]string
	Cookies  map[string]string
	JSONBody map[string]any
	RawBody  string
}

// ParseCurl splits a curl command line into a CurlRequest. Recognised
// flags: -X/--request, -H/--header, -b/--cookie, the --data family, and
// --url; a bare http(s) token also counts as the URL. A body on a GET
// promotes the method to POST, matching curl itself.
func ParseCurl(cmd string) (*CurlRequest, error) {
	tokens, err := shellwords.Parse(cmd)
	if err != nil {
		return nil, fmt.Errorf("split curl command: %w", err)
	}
	if len(tokens) == 0 || tokens[0] != "curl" {
		return nil, fmt.Errorf("curl template must start with 'curl'")
	}

	cr := &CurlRequest{
		Method:  "GET",
		Headers: make(map[string]string),
		Cookies: make(map[string]string),
	}
	var rawURL string

	for i := 1; i < len(tokens); {
		t := tokens[i]
		switch {
		case (t == "-X" || t == "--request") && i+1 < len(tokens):
			cr.Method = strings.ToUpper(tokens[i+1])
			i += 2
		case (t == "-H" || t == "--header") && i+1 < len(tokens):
			name, value, ok := strings.Cut(tokens[i+1], ":")
			if ok {
				name = strings.TrimSpace(name)
				value = strings.TrimSpace(value)
				if strings.EqualFold(name, "cookie") {
					parseCookieString(value, cr.Cookies)
				} else {
					cr.Headers[name] = value
				}
			}
			i += 2
		case (t == "-b" || t == "--cookie") && i+1 < len(tokens):
			parseCookieString(strings.TrimSpace(tokens[i+1]), cr.Cookies)
			i += 2
		case (t == "-d" || t == "--data" || t == "--data-raw" || t == "--data-binary" || t == "--data-urlencode") && i+1 < len(tokens):
			cr.RawBody = tokens[i+1]
			if cr.Method == "GET" {
				cr.Method = "POST"
			}
			i += 2
		case t == "--url" && i+1 < len(tokens):
			rawURL = tokens[i+1]
			i += 2
		case strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://"):
			rawURL = t
			i++
		default:
			i++
		}
	}

	if rawURL == "" {
		return nil, fmt.Errorf("no URL found in curl template")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse curl URL: %w", err)
	}
	cr.Params = make(map[string]string)
	for key, values := range u.Query() {
		if len(values) > 0 {
			cr.Params[key] = values[len(values)-1]
		}
	}
	u.RawQuery = ""
	u.Fragment = ""
	cr.URL = u.String()

	if cr.RawBody != "" {
		var body map[string]any
		if err := json.Unmarshal([]byte(cr.RawBody), &body); err == nil {
			cr.JSONBody = body
		}
	}
	return cr, nil
}

// parseCookieString folds "k=v; k2=v2" pairs into dst.
func parseCookieString(raw string, dst map[string]string) {
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		dst[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
}
