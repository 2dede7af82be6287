package domain

// Meta carries per-source request details attached to a task.
// Fields are optional; each scraper reads the ones it understands.
type Meta struct {
	// RawCurl is a curl command template describing the request shape
	// (method, URL, headers, cookies, body). Used by the gmgn scraper.
	RawCurl string `json:"raw_curl,omitempty"`
	// Chain overrides the "chain" field of a JSON body built from RawCurl.
	Chain string `json:"chain,omitempty"`
	// Addresses overrides the "addresses" field of a JSON body built from
	// RawCurl. The first entry identifies the token in error payloads.
	Addresses []string `json:"addresses,omitempty"`
	// Headers are extra request headers for sources without a curl template.
	Headers map[string]string `json:"headers,omitempty"`
}

// Task is a single unit of scraping work. The submitter owns it until it is
// handed to the pool; after that only the executing worker touches it.
type Task struct {
	ID     string            `json:"id"`
	Source string            `json:"source"`
	URL    string            `json:"url"`
	Params map[string]string `json:"params,omitempty"`
	Meta   Meta              `json:"meta,omitempty"`
}
