package lock

import (
	"context"
	"sync"
)

// LocalMutex is an in-process NamedMutex. It only serializes callers in the
// same process.
type LocalMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalMutex returns an empty keyed mutex.
func NewLocalMutex() *LocalMutex {
	return &LocalMutex{slots: make(map[string]*slot)}
}

func (m *LocalMutex) Acquire(ctx context.Context, key string) (Guard, error) {
	m.mu.Lock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	m.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return &localGuard{m: m, key: key, s: s}, nil
	case <-ctx.Done():
		m.unref(key, s)
		return nil, ctx.Err()
	}
}

func (m *LocalMutex) unref(key string, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}

type localGuard struct {
	once sync.Once
	m    *LocalMutex
	key  string
	s    *slot
}

func (g *localGuard) Release() {
	g.once.Do(func() {
		<-g.s.ch
		g.m.unref(g.key, g.s)
	})
}

var _ NamedMutex = (*LocalMutex)(nil)
