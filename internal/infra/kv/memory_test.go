package kv

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestMemoryStoreExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s := NewMemoryStore().WithClock(clock.now)
	ctx := context.Background()

	if err := s.Set(ctx, "token", "abc", time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if v, err := s.Get(ctx, "token"); err != nil || v != "abc" {
		t.Fatalf("Get = %q, %v", v, err)
	}
	if ttl, _ := s.TTL(ctx, "token"); ttl != time.Minute {
		t.Fatalf("TTL = %s, want 1m", ttl)
	}

	clock.t = clock.t.Add(time.Minute)
	if _, err := s.Get(ctx, "token"); !errors.Is(err, ErrNil) {
		t.Fatalf("expected ErrNil after expiry, got %v", err)
	}
	if ttl, _ := s.TTL(ctx, "token"); ttl >= 0 {
		t.Fatalf("expected negative TTL for missing key, got %s", ttl)
	}
}

func TestMemoryStoreIncr(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		n, err := s.Incr(ctx, "counter")
		if err != nil {
			t.Fatalf("Incr error: %v", err)
		}
		if n != i {
			t.Fatalf("Incr = %d, want %d", n, i)
		}
	}
	_ = s.Del(ctx, "counter")
	if n, _ := s.Incr(ctx, "counter"); n != 1 {
		t.Fatalf("Incr after Del = %d, want 1", n)
	}
}

func TestMemoryStoreSortedSet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.ZAdd(ctx, "window", ScoredMember{"c", 30}, ScoredMember{"a", 10}, ScoredMember{"b", 20})

	if n, _ := s.ZCard(ctx, "window"); n != 3 {
		t.Fatalf("ZCard = %d, want 3", n)
	}
	first, _ := s.ZRangeWithScores(ctx, "window", 0, 0)
	if len(first) != 1 || first[0].Member != "a" {
		t.Fatalf("ZRangeWithScores first = %#v", first)
	}
	_ = s.ZRemRangeByScore(ctx, "window", 0, 20)
	rest, _ := s.ZRangeWithScores(ctx, "window", 0, -1)
	if len(rest) != 1 || rest[0].Member != "c" {
		t.Fatalf("after ZRemRangeByScore = %#v", rest)
	}
}
