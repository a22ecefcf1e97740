package middleware

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dreamboard/internal/infra/kv"
)

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter counts hits per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// FixedWindow allows limit hits per window, counted with INCR and a TTL.
type FixedWindow struct {
	Store  kv.Store
	Limit  int
	Window time.Duration
}

func (l FixedWindow) Allow(ctx context.Context, key string) (Decision, error) {
	n, err := l.Store.Incr(ctx, key)
	if err != nil {
		return Decision{Allowed: true}, err
	}
	if n == 1 {
		if err := l.Store.Expire(ctx, key, l.Window); err != nil {
			return Decision{Allowed: true}, err
		}
	}
	if n <= int64(l.Limit) {
		return Decision{Allowed: true}, nil
	}
	ttl, err := l.Store.TTL(ctx, key)
	if err != nil {
		return Decision{Allowed: true}, err
	}
	if ttl < 0 {
		// A lost EXPIRE would block the key forever.
		_ = l.Store.Expire(ctx, key, l.Window)
		ttl = l.Window
	}
	return Decision{RetryAfter: ttl}, nil
}

// SlidingWindow allows limit hits in any trailing window, tracked in a
// sorted set scored by hit time.
type SlidingWindow struct {
	Store  kv.Store
	Limit  int
	Window time.Duration
	Now    func() time.Time
}

func (l SlidingWindow) Allow(ctx context.Context, key string) (Decision, error) {
	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}
	nowMs := float64(now.UnixMilli())
	windowMs := float64(l.Window.Milliseconds())

	if err := l.Store.ZRemRangeByScore(ctx, key, math.Inf(-1), nowMs-windowMs); err != nil {
		return Decision{Allowed: true}, err
	}
	count, err := l.Store.ZCard(ctx, key)
	if err != nil {
		return Decision{Allowed: true}, err
	}
	if count >= int64(l.Limit) {
		retry := l.Window
		oldest, err := l.Store.ZRangeWithScores(ctx, key, 0, 0)
		if err == nil && len(oldest) == 1 {
			retry = time.Duration(oldest[0].Score+windowMs-nowMs) * time.Millisecond
		}
		return Decision{RetryAfter: retry}, nil
	}
	if err := l.Store.ZAdd(ctx, key, kv.ScoredMember{Member: uuid.NewString(), Score: nowMs}); err != nil {
		return Decision{Allowed: true}, err
	}
	if err := l.Store.Expire(ctx, key, l.Window); err != nil {
		return Decision{Allowed: true}, err
	}
	return Decision{Allowed: true}, nil
}

// RateLimit rejects requests over the limit with 429. The key function
// scopes the counter; store failures let the request through.
func RateLimit(limiter Limiter, key func(*http.Request) string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			d, err := limiter.Allow(r.Context(), k)
			if err != nil {
				logger.Warn().Err(err).Str("key", k).Msg("ratelimit.store_failed")
			}
			if !d.Allowed {
				WriteRateLimited(w, d.RetryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteRateLimited writes the 429 response with whole seconds to wait.
func WriteRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": "rate_limited", "retryAfterSeconds": secs})
}

// ClientIPKey scopes a limiter to prefix and the client address.
func ClientIPKey(prefix string) func(*http.Request) string {
	return func(r *http.Request) string {
		return prefix + ":" + ClientIP(r)
	}
}
