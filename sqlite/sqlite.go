// Package sqlite implements chatgraph.Store on SQLite through database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/meikuraledutech/chatgraph"
)

// Store implements chatgraph.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New opens the database at dsn and runs migrations.
// A ":memory:" dsn is pinned to one connection so every query sees the same
// database.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.CreateSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS datasets (
		name       TEXT PRIMARY KEY,
		timestamp  INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS dataset_items (
		dataset  TEXT NOT NULL,
		position INTEGER NOT NULL,
		name     TEXT NOT NULL,
		nodes    TEXT NOT NULL,
		PRIMARY KEY (dataset, position),
		FOREIGN KEY (dataset) REFERENCES datasets(name) ON DELETE CASCADE
	)`,
}

// CreateSchema creates the datasets and dataset_items tables if they don't exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("sqlite: migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateDataset(ctx context.Context, d *chatgraph.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (name, timestamp) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		d.Name, d.Timestamp)
	if err != nil {
		return fmt.Errorf("sqlite: insert dataset: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return chatgraph.ErrDatasetExists
	}
	if err := insertItems(ctx, tx, d.Name, 0, d.Items); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetDataset(ctx context.Context, name string) (*chatgraph.Dataset, error) {
	d := &chatgraph.Dataset{Name: name, Items: []chatgraph.Item{}}
	err := s.db.QueryRowContext(ctx,
		`SELECT timestamp FROM datasets WHERE name = ?`, name).Scan(&d.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chatgraph.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get dataset: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, nodes FROM dataset_items WHERE dataset = ? ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it    chatgraph.Item
			nodes string
		)
		if err := rows.Scan(&it.Name, &nodes); err != nil {
			return nil, fmt.Errorf("sqlite: scan item: %w", err)
		}
		if err := json.Unmarshal([]byte(nodes), &it.Nodes); err != nil {
			return nil, fmt.Errorf("sqlite: decode item %q: %w", it.Name, err)
		}
		d.Items = append(d.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows items: %w", err)
	}
	return d, nil
}

func (s *Store) ListDatasets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM datasets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list datasets: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("sqlite: scan dataset: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *Store) DeleteDataset(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback()

	// foreign_keys is per connection, so items are removed explicitly.
	if _, err := tx.ExecContext(ctx, `DELETE FROM dataset_items WHERE dataset = ?`, name); err != nil {
		return fmt.Errorf("sqlite: delete items: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("sqlite: delete dataset: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return chatgraph.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) AppendItems(ctx context.Context, name string, items []chatgraph.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := exists(ctx, tx, name); err != nil {
		return err
	}
	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM dataset_items WHERE dataset = ?`, name,
	).Scan(&next); err != nil {
		return fmt.Errorf("sqlite: next position: %w", err)
	}
	if err := insertItems(ctx, tx, name, next, items); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ReplaceItems(ctx context.Context, name string, timestamp int64, items []chatgraph.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE datasets SET timestamp = ? WHERE name = ?`, timestamp, name)
	if err != nil {
		return fmt.Errorf("sqlite: update dataset: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return chatgraph.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM dataset_items WHERE dataset = ?`, name); err != nil {
		return fmt.Errorf("sqlite: delete items: %w", err)
	}
	if err := insertItems(ctx, tx, name, 0, items); err != nil {
		return err
	}
	return tx.Commit()
}

func exists(ctx context.Context, tx *sql.Tx, name string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM datasets WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return chatgraph.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("sqlite: find dataset: %w", err)
	}
	return nil
}

// insertItems writes items at consecutive positions starting from first.
func insertItems(ctx context.Context, tx *sql.Tx, dataset string, first int, items []chatgraph.Item) error {
	if len(items) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO dataset_items (dataset, position, name, nodes) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, it := range items {
		nodes, err := json.Marshal(nodesOf(it))
		if err != nil {
			return fmt.Errorf("sqlite: encode item %q: %w", it.Name, err)
		}
		if _, err := stmt.ExecContext(ctx, dataset, first+i, it.Name, string(nodes)); err != nil {
			return fmt.Errorf("sqlite: insert item %q: %w", it.Name, err)
		}
	}
	return nil
}

func nodesOf(it chatgraph.Item) []chatgraph.Node {
	if it.Nodes == nil {
		return []chatgraph.Node{}
	}
	return it.Nodes
}
