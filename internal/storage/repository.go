// Package storage persists state documents and local cache entries in
// SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"staffplan/internal/store"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps revision bumps serialised.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// LoadDocument implements store.DocumentStore
func (r *SQLiteRepository) LoadDocument(ctx context.Context, id string) (store.Document, error) {
	var (
		doc     = store.Document{ID: id}
		data    string
		updated string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT data, revision, updated_at FROM app_state WHERE id = ?`, id,
	).Scan(&data, &doc.Revision, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, store.ErrNotFound
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("load document %s: %w", id, err)
	}
	doc.Data = []byte(data)
	doc.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return doc, nil
}

// SaveDocument implements store.DocumentStore
func (r *SQLiteRepository) SaveDocument(ctx context.Context, id string, data []byte) (store.Document, error) {
	now := r.now().UTC()
	doc := store.Document{ID: id, Data: data, UpdatedAt: now}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO app_state (id, data, revision, updated_at) VALUES (?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			revision = app_state.revision + 1,
			updated_at = excluded.updated_at
		RETURNING revision`,
		id, string(data), now.Format(timeLayout),
	).Scan(&doc.Revision)
	if err != nil {
		return store.Document{}, fmt.Errorf("save document %s: %w", id, err)
	}

	slog.DebugContext(ctx, "State document saved to SQLite",
		"id", id,
		"revision", doc.Revision,
		"bytes", len(data))

	return doc, nil
}

// Get implements store.KeyValueStore
func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Set implements store.KeyValueStore
func (r *SQLiteRepository) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, r.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
