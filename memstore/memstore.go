// Package memstore is an in-memory chatgraph.Store for development and
// tests. Datasets are deep-copied on the way in and out so callers never
// share state with the store.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/meikuraledutech/chatgraph"
)

// Store implements chatgraph.Store with a mutex-guarded map.
type Store struct {
	mu       sync.RWMutex
	datasets map[string][]byte // name -> JSON-encoded dataset
}

// New creates an empty store.
func New() *Store {
	return &Store{datasets: make(map[string][]byte)}
}

func (s *Store) CreateSchema(context.Context) error { return nil }

func (s *Store) CreateDataset(_ context.Context, d *chatgraph.Dataset) error {
	raw, err := encode(d)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[d.Name]; ok {
		return chatgraph.ErrDatasetExists
	}
	s.datasets[strings.Clone(d.Name)] = raw
	return nil
}

func (s *Store) GetDataset(_ context.Context, name string) (*chatgraph.Dataset, error) {
	s.mu.RLock()
	raw, ok := s.datasets[name]
	s.mu.RUnlock()
	if !ok {
		return nil, chatgraph.ErrNotFound
	}
	return decode(raw)
}

func (s *Store) ListDatasets(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.datasets))
	for n := range s.datasets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) DeleteDataset(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[name]; !ok {
		return chatgraph.ErrNotFound
	}
	delete(s.datasets, name)
	return nil
}

func (s *Store) AppendItems(_ context.Context, name string, items []chatgraph.Item) error {
	return s.update(name, func(d *chatgraph.Dataset) {
		d.Items = append(d.Items, items...)
	})
}

func (s *Store) ReplaceItems(_ context.Context, name string, timestamp int64, items []chatgraph.Item) error {
	return s.update(name, func(d *chatgraph.Dataset) {
		d.Timestamp = timestamp
		d.Items = items
	})
}

func (s *Store) Close() error { return nil }

// update applies fn to the named dataset under the write lock.
func (s *Store) update(name string, fn func(d *chatgraph.Dataset)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.datasets[name]
	if !ok {
		return chatgraph.ErrNotFound
	}
	d, err := decode(raw)
	if err != nil {
		return err
	}
	fn(d)
	raw, err = encode(d)
	if err != nil {
		return err
	}
	// Write through the stored name; the map keeps the key of the latest
	// assignment and name may alias a caller's buffer.
	s.datasets[d.Name] = raw
	return nil
}

func encode(d *chatgraph.Dataset) ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("memstore: encode dataset %q: %w", d.Name, err)
	}
	return raw, nil
}

func decode(raw []byte) (*chatgraph.Dataset, error) {
	var d chatgraph.Dataset
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("memstore: decode dataset: %w", err)
	}
	if d.Items == nil {
		d.Items = []chatgraph.Item{}
	}
	return &d, nil
}
