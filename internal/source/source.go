// Package source loads address lists and curl templates and turns them
// into scrape tasks.
package source

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/Wq5881898/Scraper/internal/domain"
)

// DefaultAddressLimit caps how many addresses one run will take from a file.
const DefaultAddressLimit = 100

// LoadAddresses reads one address per line, skipping blank lines, up to
// limit (non-positive means DefaultAddressLimit). An address file that
// yields nothing is an error: a run with zero tasks is always a mistake.
func LoadAddresses(path string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultAddressLimit
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open address file: %w", err)
	}
	defer f.Close()

	var addresses []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		addr := strings.TrimSpace(scanner.Text())
		if addr == "" {
			continue
		}
		addresses = append(addresses, addr)
		if len(addresses) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read address file: %w", err)
	}
	if len(addresses) == 0 {
		return nil, &domain.NoAddressesError{Path: path}
	}
	return addresses, nil
}

// LoadCurlTemplate reads a captured curl command from path. A missing file
// is not an error: it just disables the sources that need a template.
func LoadCurlTemplate(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read curl template: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// BuildConfig carries the knobs task building needs.
type BuildConfig struct {
	GMGNURL        string
	DexscreenerURL string
	CurlTemplate   string
	Chain          string
}

// BuildTasks creates the task batch for one run: a gmgn task per address
// when a curl template is available, and a dexscreener task per address.
func BuildTasks(addresses []string, cfg BuildConfig) []domain.Task {
	tasks := make([]domain.Task, 0, 2*len(addresses))

	if cfg.CurlTemplate != "" {
		for _, addr := range addresses {
			tasks = append(tasks, domain.Task{
				ID:     uuid.NewString(),
				Source: "gmgn",
				URL:    cfg.GMGNURL,
				Params: map[string]string{},
				Meta: domain.Meta{
					RawCurl:   cfg.CurlTemplate,
					Chain:     cfg.Chain,
					Addresses: []string{addr},
				},
			})
		}
	}

	for _, addr := range addresses {
		tasks = append(tasks, domain.Task{
			ID:     uuid.NewString(),
			Source: "dexscreener",
			URL:    cfg.DexscreenerURL,
			Params: map[string]string{"q": addr},
		})
	}
	return tasks
}
