// Package kv is the key-value backend for rate limits, caches and token
// storage. Redis is used when configured; the in-process store serves
// sandbox mode and tests.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNil is returned by Get when the key does not exist.
var ErrNil = errors.New("kv: key not found")

// ScoredMember is a sorted-set member with its score.
type ScoredMember struct {
	Member string
	Score  float64
}

// Store is the storage contract shared by all backends. A zero TTL means
// the key does not expire.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// TTL returns the remaining lifetime, or a negative duration when the
	// key has no expiry or does not exist.
	TTL(ctx context.Context, key string) (time.Duration, error)

	ZAdd(ctx context.Context, key string, members ...ScoredMember) error
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) error
	ZCard(ctx context.Context, key string) (int64, error)
	// ZRangeWithScores returns members ordered by ascending score between
	// the start and stop ranks, inclusive.
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)

	Close() error
}
