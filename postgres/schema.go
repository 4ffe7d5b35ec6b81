package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS chatgraph_datasets (
    name       TEXT PRIMARY KEY,
    timestamp  BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS chatgraph_items (
    dataset  TEXT NOT NULL REFERENCES chatgraph_datasets(name) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    name     TEXT NOT NULL,
    nodes    JSONB NOT NULL DEFAULT '[]',
    PRIMARY KEY (dataset, position)
);

CREATE INDEX IF NOT EXISTS idx_chatgraph_items_name ON chatgraph_items(dataset, name);
`

// CreateSchema creates the chatgraph_datasets and chatgraph_items tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the chatgraph_items and chatgraph_datasets tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS chatgraph_items, chatgraph_datasets CASCADE;`)
	return err
}
