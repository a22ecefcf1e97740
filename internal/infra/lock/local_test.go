package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLocalMutexSerializesSameKey(t *testing.T) {
	m := NewLocalMutex()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := m.Acquire(context.Background(), CampaignKey("c1"))
			if err != nil {
				t.Errorf("Acquire error: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			g.Release()
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxInside)
	}
	if len(m.slots) != 0 {
		t.Fatalf("expected slots to be cleaned up, got %d", len(m.slots))
	}
}

func TestLocalMutexDifferentKeysDoNotBlock(t *testing.T) {
	m := NewLocalMutex()
	g1, err := m.Acquire(context.Background(), CampaignKey("a"))
	if err != nil {
		t.Fatalf("Acquire a: %v", err)
	}
	defer g1.Release()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	g2, err := m.Acquire(ctx, CampaignKey("b"))
	if err != nil {
		t.Fatalf("Acquire b should not block: %v", err)
	}
	g2.Release()
}

func TestLocalMutexHonorsContext(t *testing.T) {
	m := NewLocalMutex()
	g, _ := m.Acquire(context.Background(), "k")
	defer g.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(ctx, "k"); err == nil {
		t.Fatal("expected context error while lock is held")
	}
}

func TestGuardReleaseIsIdempotent(t *testing.T) {
	m := NewLocalMutex()
	g, _ := m.Acquire(context.Background(), "k")
	g.Release()
	g.Release()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	g2, err := m.Acquire(ctx, "k")
	if err != nil {
		t.Fatalf("Acquire after double release: %v", err)
	}
	g2.Release()
}
