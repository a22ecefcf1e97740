package campaigns

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"dreamboard/internal/events"
	"dreamboard/internal/infra/kv"
)

const summaryTTL = time.Minute

// Cache holds public dream board summaries. Writers only invalidate.
type Cache struct {
	store  kv.Store
	logger zerolog.Logger
}

// NewCache wraps a KV store.
func NewCache(store kv.Store, logger zerolog.Logger) *Cache {
	return &Cache{store: store, logger: logger}
}

func cacheKey(id string) string { return "campaign:" + id }

// Summary returns the cached summary or loads and caches it.
func (c *Cache) Summary(ctx context.Context, id string, load func(context.Context) (events.DreamBoardData, error)) (events.DreamBoardData, error) {
	if c == nil || c.store == nil {
		return load(ctx)
	}
	raw, err := c.store.Get(ctx, cacheKey(id))
	if err == nil {
		var out events.DreamBoardData
		if jsonErr := json.Unmarshal([]byte(raw), &out); jsonErr == nil {
			return out, nil
		}
	} else if !errors.Is(err, kv.ErrNil) {
		c.logger.Warn().Err(err).Str("dream_board_id", id).Msg("campaigns.cache_read_failed")
	}

	out, err := load(ctx)
	if err != nil {
		return out, err
	}
	if encoded, err := json.Marshal(out); err == nil {
		if err := c.store.Set(ctx, cacheKey(id), string(encoded), summaryTTL); err != nil {
			c.logger.Warn().Err(err).Str("dream_board_id", id).Msg("campaigns.cache_write_failed")
		}
	}
	return out, nil
}

// Invalidate drops the cached summary. Failures are logged only.
func (c *Cache) Invalidate(ctx context.Context, id string) {
	if c == nil || c.store == nil {
		return
	}
	if err := c.store.Del(ctx, cacheKey(id)); err != nil {
		c.logger.Warn().Err(err).Str("dream_board_id", id).Msg("campaigns.cache_invalidate_failed")
	}
}
