package peer

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

const peerSchema = `CREATE TABLE IF NOT EXISTS peer_attributes (
	instance_id TEXT NOT NULL,
	key         TEXT NOT NULL,
	value       TEXT NOT NULL,
	PRIMARY KEY (instance_id, key)
)`

// SQLiteStore keeps the snapshot in a peer_attributes table, one row per
// instance and attribute.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// SQLite performs best with a single write connection.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA busy_timeout=5000", peerSchema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Load reads every row.
func (s *SQLiteStore) Load(ctx context.Context) (map[string]map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT instance_id, key, value FROM peer_attributes`)
	if err != nil {
		return nil, fmt.Errorf("query peers: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]string)
	for rows.Next() {
		var id, key, value string
		if err := rows.Scan(&id, &key, &value); err != nil {
			return nil, fmt.Errorf("scan peer: %w", err)
		}
		if out[id] == nil {
			out[id] = make(map[string]string)
		}
		out[id][key] = value
	}
	return out, rows.Err()
}

// Save replaces the table contents in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snapshot map[string]map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := replacePeers(ctx, tx, snapshot); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

func replacePeers(ctx context.Context, tx *sql.Tx, snapshot map[string]map[string]string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM peer_attributes`); err != nil {
		return fmt.Errorf("clear peers: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO peer_attributes (instance_id, key, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for id, attrs := range snapshot {
		for key, value := range attrs {
			if _, err := stmt.ExecContext(ctx, id, key, value); err != nil {
				return fmt.Errorf("insert peer %s: %w", id, err)
			}
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
