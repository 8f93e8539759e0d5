package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx operations repositories run against.
// It is satisfied by *pgxpool.Conn and by pgx.Tx, so the same repository
// code serves both plain request reads and the push batch transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Scope carries the database handle for one request. The handler middleware
// acquires a dedicated connection per request; the push service swaps in a
// transaction-backed scope for the duration of a batch.
type Scope struct {
	Conn Querier

	poolConn *pgxpool.Conn
}

// Close releases the underlying pooled connection, if any.
// Transaction-backed scopes own nothing and Close is a no-op for them.
func (s *Scope) Close() {
	if s.poolConn == nil {
		return
	}
	s.poolConn.Release()
	s.poolConn = nil
}

// Begin opens a transaction on the scope's connection.
func (s *Scope) Begin(ctx context.Context) (pgx.Tx, error) {
	if s.poolConn == nil {
		return nil, fmt.Errorf("scope is not backed by a pooled connection")
	}
	return s.poolConn.Begin(ctx)
}

// AcquireScope acquires a dedicated connection from the pool.
// The returned Scope MUST be closed with defer scope.Close().
func (db *DB) AcquireScope(ctx context.Context) (*Scope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Scope{Conn: conn, poolConn: conn}, nil
}

// NewTxScope wraps an open transaction in a Scope so repositories invoked
// within the transaction share it transparently.
func NewTxScope(tx pgx.Tx) *Scope {
	return &Scope{Conn: tx}
}
