// Package redis provides the seen-address cache that makes repeated runs
// resumable: addresses scraped successfully within the TTL are skipped.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSeenTTL is how long a successful scrape suppresses re-scraping.
const DefaultSeenTTL = 24 * time.Hour

func seenKey(source, address string) string {
	return "scraper:seen:" + source + ":" + address
}

// SeenStore remembers which addresses have been scraped per source.
type SeenStore interface {
	MarkSeen(ctx context.Context, source, address string) error
	FilterUnseen(ctx context.Context, source string, addresses []string) ([]string, error)
}

type seenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSeenStore creates a Redis-backed SeenStore. A non-positive ttl falls
// back to DefaultSeenTTL.
func NewSeenStore(client *redis.Client, ttl time.Duration) SeenStore {
	if ttl <= 0 {
		ttl = DefaultSeenTTL
	}
	return &seenStore{client: client, ttl: ttl}
}

// NewClient creates and returns a new Redis client.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		PoolSize:     10,
	})
}

func (s *seenStore) MarkSeen(ctx context.Context, source, address string) error {
	err := s.client.Set(ctx, seenKey(source, address), "1", s.ttl).Err()
	if err != nil {
		return fmt.Errorf("redis mark seen %s/%s: %w", source, address, err)
	}
	return nil
}

// FilterUnseen returns the subset of addresses with no seen marker, in
// input order.
func (s *seenStore) FilterUnseen(ctx context.Context, source string, addresses []string) ([]string, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	keys := make([]string, len(addresses))
	for i, addr := range addresses {
		keys[i] = seenKey(source, addr)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis filter unseen for %s: %w", source, err)
	}
	unseen := make([]string, 0, len(addresses))
	for i, v := range values {
		if v == nil {
			unseen = append(unseen, addresses[i])
		}
	}
	return unseen, nil
}
