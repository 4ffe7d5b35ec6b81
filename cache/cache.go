// Package cache holds generated export files for a short time so a client
// can download them by an opaque id.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("cache: entry not found")
	ErrExpired  = errors.New("cache: entry expired")
)

// DefaultTTL is how long an untouched export stays downloadable.
const DefaultTTL = 60 * time.Second

// Entry is a cached export file.
type Entry struct {
	Payload  []byte
	Filename string
	Expires  time.Time
}

// NameFunc builds an entry's download filename from its id.
type NameFunc func(id string) string

// Fixed names every entry filename.
func Fixed(filename string) NameFunc {
	return func(string) string { return filename }
}

// Cache stores export payloads under unguessable ids. A successful Get
// slides the entry's expiry forward by one TTL.
type Cache interface {
	Put(ctx context.Context, payload []byte, name NameFunc) (string, error)
	Get(ctx context.Context, id string) (Entry, error)
}
