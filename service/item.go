package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/meikuraledutech/chatgraph"
)

// ListItems returns the item names of dataset in order.
func (s *Service) ListItems(ctx context.Context, dataset string) ([]string, error) {
	d, err := s.store.GetDataset(ctx, dataset)
	if err != nil {
		return nil, err
	}
	return d.ItemNames(), nil
}

func (s *Service) GetItem(ctx context.Context, dataset, name string) (*chatgraph.Item, error) {
	d, err := s.store.GetDataset(ctx, dataset)
	if err != nil {
		return nil, err
	}
	i := d.Find(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: item %q", chatgraph.ErrNotFound, name)
	}
	return &d.Items[i], nil
}

// CreateItem appends it to dataset. Returns ErrItemExists if the name is taken.
func (s *Service) CreateItem(ctx context.Context, dataset string, it chatgraph.Item) error {
	if strings.TrimSpace(it.Name) == "" {
		return ErrInvalidName
	}
	defer s.lock(dataset)()

	d, err := s.store.GetDataset(ctx, dataset)
	if err != nil {
		return err
	}
	if d.Find(it.Name) >= 0 {
		return fmt.Errorf("%w: %q", chatgraph.ErrItemExists, it.Name)
	}
	return s.store.AppendItems(ctx, dataset, []chatgraph.Item{it})
}

// UpdateItem replaces the item called name in place. it may carry a new name
// as long as no other item uses it; an empty name keeps the old one.
func (s *Service) UpdateItem(ctx context.Context, dataset, name string, it chatgraph.Item) error {
	if it.Name == "" {
		it.Name = name
	}
	return s.editItems(ctx, dataset, name, func(d *chatgraph.Dataset, i int) error {
		if j := d.Find(it.Name); j >= 0 && j != i {
			return fmt.Errorf("%w: %q", chatgraph.ErrItemExists, it.Name)
		}
		d.Items[i] = it
		return nil
	})
}

func (s *Service) DeleteItem(ctx context.Context, dataset, name string) error {
	return s.editItems(ctx, dataset, name, func(d *chatgraph.Dataset, i int) error {
		d.Items = slices.Delete(d.Items, i, i+1)
		return nil
	})
}

// editItems runs fn on the item called name and writes the whole list back
// with a fresh timestamp.
func (s *Service) editItems(ctx context.Context, dataset, name string, fn func(d *chatgraph.Dataset, i int) error) error {
	defer s.lock(dataset)()

	d, err := s.store.GetDataset(ctx, dataset)
	if err != nil {
		return err
	}
	i := d.Find(name)
	if i < 0 {
		return fmt.Errorf("%w: item %q", chatgraph.ErrNotFound, name)
	}
	if err := fn(d, i); err != nil {
		return err
	}
	return s.store.ReplaceItems(ctx, dataset, s.now().UnixMilli(), d.Items)
}
