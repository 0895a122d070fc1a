// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/pollchat/internal/storage"
	"github.com/mmynk/pollchat/internal/storage/docpath"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writers would otherwise fail with SQLITE_BUSY under concurrent PUTs
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get assembles the JSON subtree rooted at path.
func (s *SQLiteStore) Get(ctx context.Context, path string) ([]byte, error) {
	p, err := docpath.Clean(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrStatus, err)
	}

	query, args := subtreeWhere(p)
	rows, err := s.db.QueryContext(ctx, "SELECT path, value FROM nodes"+query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	leaves := make(docpath.Leaves)
	for rows.Next() {
		var leafPath, value string
		if err := rows.Scan(&leafPath, &value); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		leaves[leafPath] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate nodes: %w", err)
	}

	return docpath.Assemble(p, leaves)
}

// Put replaces the subtree at path with value inside one transaction.
func (s *SQLiteStore) Put(ctx context.Context, path string, value any) error {
	p, err := docpath.Clean(path)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrStatus, err)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}
	leaves, err := docpath.Flatten(p, raw)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrStatus, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Drop the old subtree
	query, args := subtreeWhere(p)
	if _, err := tx.ExecContext(ctx, "DELETE FROM nodes"+query, args...); err != nil {
		return fmt.Errorf("failed to delete subtree: %w", err)
	}

	// A scalar stored at an ancestor would shadow the new subtree
	for _, a := range docpath.Ancestors(p) {
		if _, err := tx.ExecContext(ctx, "DELETE FROM nodes WHERE path = ?", a); err != nil {
			return fmt.Errorf("failed to delete ancestor leaf: %w", err)
		}
	}

	// Insert new leaves
	now := time.Now().UnixMilli()
	for leafPath, value := range leaves {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO nodes (path, value, updated_at) VALUES (?, ?, ?)",
			leafPath, string(value), now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert node: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Delete removes the subtree at path.
func (s *SQLiteStore) Delete(ctx context.Context, path string) error {
	p, err := docpath.Clean(path)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrStatus, err)
	}

	query, args := subtreeWhere(p)
	if _, err := s.db.ExecContext(ctx, "DELETE FROM nodes"+query, args...); err != nil {
		return fmt.Errorf("failed to delete subtree: %w", err)
	}
	return nil
}

// subtreeWhere returns a WHERE clause matching p and all of its descendants.
func subtreeWhere(p string) (string, []any) {
	if p == "" {
		return "", nil
	}
	return " WHERE path = ? OR (path >= ? AND path < ?)", []any{p, p + "/", p + "0"}
}
