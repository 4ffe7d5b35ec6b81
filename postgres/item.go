package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meikuraledutech/chatgraph"
)

// AppendItems adds items after the existing ones.
// Returns ErrNotFound if the dataset doesn't exist.
func (s *PGStore) AppendItems(ctx context.Context, name string, items []chatgraph.Item) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("chatgraph: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockDataset(ctx, tx, name); err != nil {
		return err
	}

	var next int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM chatgraph_items WHERE dataset = $1`, name,
	).Scan(&next); err != nil {
		return fmt.Errorf("chatgraph: next position: %w", err)
	}

	if err := insertItems(ctx, tx, name, next, items); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("chatgraph: commit: %w", err)
	}
	return nil
}

// ReplaceItems swaps the whole item list and timestamp (replace semantics).
// Returns ErrNotFound if the dataset doesn't exist.
func (s *PGStore) ReplaceItems(ctx context.Context, name string, timestamp int64, items []chatgraph.Item) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("chatgraph: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx,
		`UPDATE chatgraph_datasets SET timestamp = $1 WHERE name = $2`, timestamp, name)
	if err != nil {
		return fmt.Errorf("chatgraph: update dataset: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return chatgraph.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM chatgraph_items WHERE dataset = $1`, name); err != nil {
		return fmt.Errorf("chatgraph: delete items: %w", err)
	}
	if err := insertItems(ctx, tx, name, 0, items); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("chatgraph: commit: %w", err)
	}
	return nil
}

// insertItems queues one INSERT per item in a single batch.
func insertItems(ctx context.Context, tx pgx.Tx, dataset string, first int, items []chatgraph.Item) error {
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, it := range items {
		nodes := it.Nodes
		if nodes == nil {
			nodes = []chatgraph.Node{}
		}
		raw, err := json.Marshal(nodes)
		if err != nil {
			return fmt.Errorf("chatgraph: encode item %q: %w", it.Name, err)
		}
		batch.Queue(
			`INSERT INTO chatgraph_items (dataset, position, name, nodes) VALUES ($1, $2, $3, $4)`,
			dataset, first+i, it.Name, raw,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("chatgraph: insert items: %w", err)
	}
	return nil
}
