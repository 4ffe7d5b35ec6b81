package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meikuraledutech/chatgraph"
)

// CreateDataset saves a dataset and its items in one transaction.
// Returns ErrDatasetExists if the name is taken.
func (s *PGStore) CreateDataset(ctx context.Context, d *chatgraph.Dataset) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("chatgraph: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx,
		`INSERT INTO chatgraph_datasets (name, timestamp) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		d.Name, d.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("chatgraph: insert dataset: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return chatgraph.ErrDatasetExists
	}

	if err := insertItems(ctx, tx, d.Name, 0, d.Items); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("chatgraph: commit: %w", err)
	}
	return nil
}

// GetDataset retrieves a dataset with its items in insertion order.
// Returns ErrNotFound if no dataset has that name.
func (s *PGStore) GetDataset(ctx context.Context, name string) (*chatgraph.Dataset, error) {
	d := &chatgraph.Dataset{Name: name, Items: []chatgraph.Item{}}

	err := s.db.QueryRow(ctx,
		`SELECT timestamp FROM chatgraph_datasets WHERE name = $1`, name,
	).Scan(&d.Timestamp)
	if err != nil {
		if isNoRows(err) {
			return nil, chatgraph.ErrNotFound
		}
		return nil, fmt.Errorf("chatgraph: get dataset: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT name, nodes FROM chatgraph_items WHERE dataset = $1 ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("chatgraph: query items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it  chatgraph.Item
			raw []byte
		)
		if err := rows.Scan(&it.Name, &raw); err != nil {
			return nil, fmt.Errorf("chatgraph: scan item: %w", err)
		}
		if err := json.Unmarshal(raw, &it.Nodes); err != nil {
			return nil, fmt.Errorf("chatgraph: decode item %q: %w", it.Name, err)
		}
		d.Items = append(d.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatgraph: rows items: %w", err)
	}

	return d, nil
}

// ListDatasets returns every dataset name, sorted.
// Returns an empty slice (not nil) if none exist.
func (s *PGStore) ListDatasets(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT name FROM chatgraph_datasets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("chatgraph: list datasets: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("chatgraph: scan dataset: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatgraph: rows datasets: %w", err)
	}
	return names, nil
}

// DeleteDataset removes a dataset. Its items are cascade-deleted by the DB.
// Returns ErrNotFound if the dataset doesn't exist.
func (s *PGStore) DeleteDataset(ctx context.Context, name string) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM chatgraph_datasets WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("chatgraph: delete dataset: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return chatgraph.ErrNotFound
	}
	return nil
}

// lockDataset takes a row lock on the dataset so concurrent writers to the
// same dataset serialize.
func lockDataset(ctx context.Context, tx pgx.Tx, name string) error {
	var n string
	err := tx.QueryRow(ctx,
		`SELECT name FROM chatgraph_datasets WHERE name = $1 FOR UPDATE`, name,
	).Scan(&n)
	if err != nil {
		if isNoRows(err) {
			return chatgraph.ErrNotFound
		}
		return fmt.Errorf("chatgraph: lock dataset: %w", err)
	}
	return nil
}
