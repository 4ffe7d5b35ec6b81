// Package service ties the dataset store, the format adapters and the export
// cache together into the operations the HTTP layer exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/meikuraledutech/chatgraph"
	"github.com/meikuraledutech/chatgraph/cache"
	"github.com/meikuraledutech/chatgraph/format"
	"github.com/meikuraledutech/chatgraph/logger"
)

var ErrInvalidName = errors.New("chatgraph: name must not be empty")

// ExportResult identifies a cached export file.
type ExportResult struct {
	ID       string `json:"download_id"`
	Filename string `json:"filename"`
}

type Service struct {
	store   chatgraph.Store
	cache   cache.Cache
	formats *format.Registry
	log     *logger.Logger
	now     func() time.Time

	// One mutex per dataset name serializes read-modify-write sequences.
	locks sync.Map
}

func New(store chatgraph.Store, c cache.Cache, formats *format.Registry, log *logger.Logger) *Service {
	return &Service{
		store:   store,
		cache:   c,
		formats: formats,
		log:     log.With("component", "service"),
		now:     time.Now,
	}
}

func (s *Service) lock(dataset string) func() {
	v, _ := s.locks.LoadOrStore(strings.Clone(dataset), &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Formats lists the registered adapters.
func (s *Service) Formats() []format.Adapter {
	return s.formats.List()
}

// Import decodes raw with the named format and appends the resulting items
// to dataset under a fresh "{format}-{n}-" prefix. It returns how many items
// were added. Nothing is written unless the whole payload decodes.
func (s *Service) Import(ctx context.Context, dataset, formatName string, raw []byte) (int, error) {
	adapter, err := s.formats.Get(formatName)
	if err != nil {
		return 0, err
	}
	items, err := adapter.Decode(raw)
	if err != nil {
		return 0, err
	}

	defer s.lock(dataset)()

	d, err := s.store.GetDataset(ctx, dataset)
	if err != nil {
		return 0, err
	}
	chatgraph.NameBatch(d.Items, adapter.Name(), items)
	if err := s.store.AppendItems(ctx, dataset, items); err != nil {
		return 0, fmt.Errorf("chatgraph: import into %q: %w", dataset, err)
	}

	s.log.Info("dataset imported", "dataset", dataset, "format", adapter.Name(), "items", len(items))
	return len(items), nil
}

// Export renders every item of dataset in the named format and parks the
// file in the cache. Any structural error fails the whole export.
func (s *Service) Export(ctx context.Context, dataset, formatName string, opts format.EncodeOptions) (ExportResult, error) {
	adapter, err := s.formats.Get(formatName)
	if err != nil {
		return ExportResult{}, err
	}
	d, err := s.store.GetDataset(ctx, dataset)
	if err != nil {
		return ExportResult{}, err
	}
	payload, err := adapter.Encode(d.Items, opts)
	if err != nil {
		return ExportResult{}, err
	}

	var filename string
	id, err := s.cache.Put(ctx, payload, func(id string) string {
		filename = fmt.Sprintf("%s_export_%s%s", adapter.Name(), id, opts.Extension())
		return filename
	})
	if err != nil {
		return ExportResult{}, fmt.Errorf("chatgraph: cache export: %w", err)
	}

	s.log.Info("dataset exported", "dataset", dataset, "format", adapter.Name(), "bytes", len(payload), "download_id", id)
	return ExportResult{ID: id, Filename: filename}, nil
}

// Download returns a cached export and keeps it alive for another TTL.
func (s *Service) Download(ctx context.Context, id string) (cache.Entry, error) {
	return s.cache.Get(ctx, id)
}

func (s *Service) ListDatasets(ctx context.Context) ([]string, error) {
	return s.store.ListDatasets(ctx)
}

func (s *Service) GetDataset(ctx context.Context, name string) (*chatgraph.Dataset, error) {
	return s.store.GetDataset(ctx, name)
}

// CreateDataset stores d. A zero timestamp is replaced by the current time in
// milliseconds.
func (s *Service) CreateDataset(ctx context.Context, d *chatgraph.Dataset) error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrInvalidName
	}
	if err := uniqueNames(d.Items); err != nil {
		return err
	}
	if d.Timestamp == 0 {
		d.Timestamp = s.now().UnixMilli()
	}
	if d.Items == nil {
		d.Items = []chatgraph.Item{}
	}
	return s.store.CreateDataset(ctx, d)
}

// UpdateDataset replaces the items and timestamp of an existing dataset.
func (s *Service) UpdateDataset(ctx context.Context, d *chatgraph.Dataset) error {
	if err := uniqueNames(d.Items); err != nil {
		return err
	}
	if d.Timestamp == 0 {
		d.Timestamp = s.now().UnixMilli()
	}
	defer s.lock(d.Name)()
	return s.store.ReplaceItems(ctx, d.Name, d.Timestamp, d.Items)
}

// DeleteDataset removes the dataset and forgets its mutex.
func (s *Service) DeleteDataset(ctx context.Context, name string) error {
	defer s.lock(name)()
	if err := s.store.DeleteDataset(ctx, name); err != nil {
		return err
	}
	s.locks.Delete(name)
	return nil
}

func uniqueNames(items []chatgraph.Item) error {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Name) == "" {
			return fmt.Errorf("%w: item", ErrInvalidName)
		}
		if _, ok := seen[it.Name]; ok {
			return fmt.Errorf("%w: %q", chatgraph.ErrItemExists, it.Name)
		}
		seen[it.Name] = struct{}{}
	}
	return nil
}
