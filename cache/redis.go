package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	fieldPayload  = "payload"
	fieldFilename = "filename"
)

// Redis is a Cache backed by Redis hashes with a key TTL. Redis evicts
// expired keys on its own, so an expired id reads as ErrNotFound and no
// sweeper is needed.
type Redis struct {
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis connects to addr and checks the connection with a PING.
func NewRedis(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	if addr == "" {
		return nil, fmt.Errorf("cache: missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return NewRedisClient(rdb, ttl), nil
}

// NewRedisClient wraps an existing client.
func NewRedisClient(rdb goredis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, prefix: "chatgraph:export:", ttl: ttl}
}

func (r *Redis) key(id string) string { return r.prefix + id }

func (r *Redis) Put(ctx context.Context, payload []byte, name NameFunc) (string, error) {
	id := uuid.NewString()
	k := r.key(id)
	_, err := r.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HSet(ctx, k, fieldPayload, payload, fieldFilename, name(id))
		p.PExpire(ctx, k, r.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("cache: put %s: %w", id, err)
	}
	return id, nil
}

// Get reads the entry and refreshes its TTL in one MULTI block.
func (r *Redis) Get(ctx context.Context, id string) (Entry, error) {
	k := r.key(id)
	var fields *goredis.MapStringStringCmd
	_, err := r.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		fields = p.HGetAll(ctx, k)
		p.PExpire(ctx, k, r.ttl)
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return Entry{}, fmt.Errorf("cache: get %s: %w", id, err)
	}

	vals := fields.Val()
	payload, ok := vals[fieldPayload]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{
		Payload:  []byte(payload),
		Filename: vals[fieldFilename],
		Expires:  time.Now().Add(r.ttl),
	}, nil
}

// Close releases the client.
func (r *Redis) Close() error { return r.rdb.Close() }
