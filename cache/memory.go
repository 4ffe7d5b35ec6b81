package cache

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Cache.
//
// Entries live in a sync.Map and each carries its own mutex, so a download
// that checks and extends an entry, and a sweep that removes it, serialize
// on that entry alone while unrelated ids proceed in parallel.
type Memory struct {
	ttl     time.Duration
	now     func() time.Time
	entries sync.Map // id -> *entry
}

type entry struct {
	mu       sync.Mutex
	payload  []byte
	filename string
	expires  time.Time
	gone     bool
}

// Option configures a Memory cache.
type Option func(*Memory)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Memory) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an empty in-memory cache.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{ttl: DefaultTTL, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// TTL returns the configured time-to-live.
func (m *Memory) TTL() time.Duration { return m.ttl }

// Put stores a copy of payload and returns its new id.
func (m *Memory) Put(_ context.Context, payload []byte, name NameFunc) (string, error) {
	id := uuid.NewString()
	m.entries.Store(id, &entry{
		payload:  bytes.Clone(payload),
		filename: name(id),
		expires:  m.now().Add(m.ttl),
	})
	return id, nil
}

// Get returns a copy of the entry for id and extends its expiry to now + TTL.
// An entry found past its expiry is removed and reported as ErrExpired.
func (m *Memory) Get(_ context.Context, id string) (Entry, error) {
	v, ok := m.entries.Load(id)
	if !ok {
		return Entry{}, ErrNotFound
	}
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return Entry{}, ErrNotFound
	}
	now := m.now()
	if now.After(e.expires) {
		e.gone = true
		m.entries.CompareAndDelete(id, e)
		return Entry{}, ErrExpired
	}
	e.expires = now.Add(m.ttl)
	return Entry{Payload: bytes.Clone(e.payload), Filename: e.filename, Expires: e.expires}, nil
}

// Sweep removes every expired entry and returns how many it removed.
func (m *Memory) Sweep() int {
	now := m.now()
	removed := 0
	m.entries.Range(func(k, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		if !e.gone && now.After(e.expires) {
			e.gone = true
			if m.entries.CompareAndDelete(k, e) {
				removed++
			}
		}
		e.mu.Unlock()
		return true
	})
	return removed
}

// Len counts live entries, expired or not.
func (m *Memory) Len() int {
	n := 0
	m.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Run sweeps once per TTL until ctx is done. onSweep, when non-nil, is told
// how many entries each sweep removed.
func (m *Memory) Run(ctx context.Context, onSweep func(removed int)) {
	ticker := time.NewTicker(m.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := m.Sweep()
			if onSweep != nil {
				onSweep(n)
			}
		}
	}
}
