package lock

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"dreamboard/internal/infra"
	"dreamboard/internal/sqlinline"
)

// PGAdvisoryMutex holds a session-level advisory lock on a dedicated pooled
// connection for the duration of the critical section.
type PGAdvisoryMutex struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPGAdvisoryMutex builds a NamedMutex backed by pg_advisory_lock.
func NewPGAdvisoryMutex(pool *pgxpool.Pool, logger zerolog.Logger) *PGAdvisoryMutex {
	return &PGAdvisoryMutex{pool: pool, logger: logger}
}

func (m *PGAdvisoryMutex) Acquire(ctx context.Context, key string) (Guard, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock: acquire connection: %w", err)
	}
	runner := infra.NewConnRunner(conn, m.logger)
	if _, err := runner.Exec(ctx, sqlinline.QAdvisoryLock, key); err != nil {
		// The session may still hold the lock if the wait was interrupted
		// after it was granted.
		conn.Conn().Close(context.WithoutCancel(ctx))
		conn.Release()
		return nil, fmt.Errorf("lock: %s: %w", key, err)
	}
	return &pgGuard{conn: conn, runner: runner, key: key, logger: m.logger}, nil
}

type pgGuard struct {
	once   sync.Once
	conn   *pgxpool.Conn
	runner *infra.SQLRunner
	key    string
	logger zerolog.Logger
}

func (g *pgGuard) Release() {
	g.once.Do(func() {
		ctx := context.Background()
		if _, err := g.runner.Exec(ctx, sqlinline.QAdvisoryUnlock, g.key); err != nil {
			g.logger.Error().Err(err).Str("key", g.key).Msg("lock.advisory_unlock_failed")
			g.conn.Conn().Close(ctx)
		}
		g.conn.Release()
	})
}

var _ NamedMutex = (*PGAdvisoryMutex)(nil)
