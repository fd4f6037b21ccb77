package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/investrun/internal/data"
	"github.com/sawpanic/investrun/internal/market"
	"github.com/sawpanic/investrun/internal/metrics"
)

// CachedSource serves repeated downloads of the same symbol and range from a cache.
type CachedSource struct {
	next    data.Source
	cache   Cache
	ttl     time.Duration
	metrics *metrics.Registry
}

// NewCachedSource decorates next; m may be nil.
func NewCachedSource(next data.Source, c Cache, ttl time.Duration, m *metrics.Registry) *CachedSource {
	return &CachedSource{next: next, cache: c, ttl: ttl, metrics: m}
}

// Name implements data.Source.
func (s *CachedSource) Name() string { return s.next.Name() + "+cache" }

// Key is the cache key for a symbol and range.
func Key(source, symbol string, start, end market.Date) string {
	return fmt.Sprintf("prices:%s:%s:%s:%s", source, symbol, start, end)
}

// Fetch implements data.Source. Cache failures fall through to the wrapped source.
func (s *CachedSource) Fetch(ctx context.Context, symbol string, start, end market.Date) (*market.Series, error) {
	key := Key(s.next.Name(), symbol, start, end)

	raw, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		s.metrics.CacheResult("error")
		log.Warn().Err(err).Str("key", key).Msg("Price cache read failed")
	case ok:
		var series market.Series
		if err := json.Unmarshal(raw, &series); err == nil {
			s.metrics.CacheResult("hit")
			return &series, nil
		}
		s.metrics.CacheResult("error")
		log.Warn().Str("key", key).Msg("Discarding undecodable cache entry")
	default:
		s.metrics.CacheResult("miss")
	}

	series, err := s.next.Fetch(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(series); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Price cache write failed")
		}
	}
	return series, nil
}
