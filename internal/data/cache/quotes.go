// Package cache provides a redis read-through cache in front of the
// market-data provider, so repeated leg-mark reads within one cycle do
// not re-hit the upstream.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/optiondesk/internal/providers"
)

// QuoteCache is a MarketDataProvider that serves quotes from redis with
// a short TTL and falls through to the inner provider on miss. Redis
// failures degrade to the inner provider rather than failing the read.
type QuoteCache struct {
	rdb    *redis.Client
	inner  providers.MarketDataProvider
	ttl    time.Duration
	prefix string
}

// NewQuoteCache builds a cache. A nil client disables caching entirely.
func NewQuoteCache(rdb *redis.Client, inner providers.MarketDataProvider, ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &QuoteCache{rdb: rdb, inner: inner, ttl: ttl, prefix: "optiondesk:quote:"}
}

// Read implements providers.MarketDataProvider.
func (c *QuoteCache) Read(ctx context.Context, symbol string) (providers.Quote, error) {
	if c.rdb == nil {
		return c.inner.Read(ctx, symbol)
	}

	key := c.prefix + symbol
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var q providers.Quote
		if err := json.Unmarshal(raw, &q); err == nil {
			return q, nil
		}
		log.Warn().Str("symbol", symbol).Msg("cached quote malformed, refetching")
	} else if err != redis.Nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("quote cache read failed, falling through")
	}

	q, err := c.inner.Read(ctx, symbol)
	if err != nil {
		return providers.Quote{}, err
	}

	if raw, err := json.Marshal(q); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("quote cache write failed")
		}
	}
	return q, nil
}

// Invalidate drops a symbol's cached quote.
func (c *QuoteCache) Invalidate(ctx context.Context, symbol string) error {
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, c.prefix+symbol).Err(); err != nil {
		return fmt.Errorf("invalidate %s: %w", symbol, err)
	}
	return nil
}
