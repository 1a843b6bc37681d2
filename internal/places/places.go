// Package places finds restaurants near the user.
package places

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/foodvoice/internal/domain"
	"github.com/soyeahso/foodvoice/internal/logging"
)

// ErrNotConfigured is returned when no search backend credentials are set.
var ErrNotConfigured = errors.New("places: search backend not configured")

// Query describes a text search around a point.
type Query struct {
	Text         string        `json:"text"`
	Location     domain.LatLng `json:"location"`
	RadiusMeters float64       `json:"radiusMeters"`
	Limit        int           `json:"limit"`
	IncludedType string        `json:"includedType,omitempty"`
}

// Key returns a stable cache key for the query.
func (q Query) Key() string {
	q.Text = strings.ToLower(strings.TrimSpace(q.Text))
	data, _ := json.Marshal(q)
	sum := sha256.Sum256(data)
	return "places:" + hex.EncodeToString(sum[:16])
}

// Searcher finds places matching a query.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]domain.Place, error)
}

// Cache stores serialized search results with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cached wraps a Searcher with a result cache. Cache failures are logged and
// fall through to the underlying searcher.
type Cached struct {
	next  Searcher
	cache Cache
	ttl   time.Duration
	log   *logging.Logger
}

// NewCached creates a caching searcher.
func NewCached(next Searcher, cache Cache, ttl time.Duration, log *logging.Logger) *Cached {
	return &Cached{next: next, cache: cache, ttl: ttl, log: log.Sub("places.cache")}
}

// Search returns cached results when present, otherwise queries and stores them.
func (c *Cached) Search(ctx context.Context, q Query) ([]domain.Place, error) {
	key := q.Key()

	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	} else if ok {
		var cached []domain.Place
		if err := json.Unmarshal(data, &cached); err == nil {
			c.log.Debug().Str("key", key).Int("results", len(cached)).Msg("cache hit")
			return cached, nil
		}
		c.log.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	}

	results, err := c.next.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(results); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return results, nil
}

// Static is a Searcher over a fixed list, used when no backend is configured
// and in tests.
type Static struct {
	Places []domain.Place
	Err    error
}

// Search returns the fixed list truncated to q.Limit.
func (s *Static) Search(ctx context.Context, q Query) ([]domain.Place, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := s.Places
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return append([]domain.Place(nil), out...), nil
}

// Unconfigured always fails with ErrNotConfigured.
type Unconfigured struct{}

func (Unconfigured) Search(ctx context.Context, q Query) ([]domain.Place, error) {
	return nil, fmt.Errorf("search %q: %w", q.Text, ErrNotConfigured)
}
