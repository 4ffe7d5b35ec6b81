// Package postgres implements chatgraph.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements chatgraph.Store using PostgreSQL via pgx.
type PGStore struct {
	db *pgxpool.Pool
}

// New creates a new PGStore backed by the given pgx connection pool.
func New(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// Connect opens a pool for url, checks it is reachable and wraps it in a PGStore.
func Connect(ctx context.Context, url string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("chatgraph: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("chatgraph: ping: %w", err)
	}
	return New(pool), nil
}

// Close releases the pool.
func (s *PGStore) Close() error {
	s.db.Close()
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
