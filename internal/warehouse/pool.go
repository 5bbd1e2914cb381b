// Package warehouse provides shared PostgreSQL helpers: the connection
// pool, table introspection and batched insert/upsert SQL. The pool is
// initialized lazily by the first component that needs it and torn down
// at run end.
package warehouse

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// DB is the pool surface used by the loader, backfill engine and
// enrichment writers. *pgxpool.Pool and pgxmock both satisfy it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Connect opens a connection pool against the warehouse.
func Connect(ctx context.Context, uri string, minConns, maxConns int32) (*pgxpool.Pool, error) {
	if uri == "" {
		return nil, eris.New("warehouse: database URI is empty")
	}

	cfg, err := pgxpool.ParseConfig(uri)
	if err != nil {
		return nil, eris.Wrap(err, "warehouse: parse database URI")
	}
	if minConns <= 0 {
		minConns = 2
	}
	if maxConns <= 0 {
		maxConns = 10
	}
	cfg.MinConns = minConns
	cfg.MaxConns = maxConns
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "warehouse: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "warehouse: ping")
	}
	return pool, nil
}

// LazyPool defers pool creation until first use so plan-only runs never
// open a connection.
type LazyPool struct {
	uri      string
	minConns int32
	maxConns int32
	pool     *pgxpool.Pool
}

// NewLazyPool wraps connection parameters without connecting.
func NewLazyPool(uri string, minConns, maxConns int32) *LazyPool {
	return &LazyPool{uri: uri, minConns: minConns, maxConns: maxConns}
}

// Get returns the pool, connecting on first call.
func (l *LazyPool) Get(ctx context.Context) (*pgxpool.Pool, error) {
	if l.pool != nil {
		return l.pool, nil
	}
	pool, err := Connect(ctx, l.uri, l.minConns, l.maxConns)
	if err != nil {
		return nil, err
	}
	l.pool = pool
	return pool, nil
}

// Close tears down the pool if it was ever opened.
func (l *LazyPool) Close() {
	if l.pool != nil {
		l.pool.Close()
		l.pool = nil
	}
}
