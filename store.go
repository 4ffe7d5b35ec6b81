package chatgraph

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("chatgraph: not found")
	ErrDatasetExists = errors.New("chatgraph: dataset already exists")
	ErrItemExists    = errors.New("chatgraph: item already exists")
)

// Store defines the contract for persisting datasets.
// Every method is atomic at dataset granularity.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error

	// Datasets
	CreateDataset(ctx context.Context, d *Dataset) error
	GetDataset(ctx context.Context, name string) (*Dataset, error)
	ListDatasets(ctx context.Context) ([]string, error)
	DeleteDataset(ctx context.Context, name string) error

	// Items
	AppendItems(ctx context.Context, name string, items []Item) error
	ReplaceItems(ctx context.Context, name string, timestamp int64, items []Item) error

	Close() error
}
