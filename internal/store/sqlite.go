package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/jonoseba/portal/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// newStoreWithDB wraps an existing handle without running migrations.
func newStoreWithDB(db *sqlx.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveNotifications replaces the snapshot stored under namespace with items,
// preserving their order. The write is all-or-nothing.
func (s *SQLiteStore) SaveNotifications(ctx context.Context, namespace string, items []model.Notification) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notification_cache WHERE namespace = ?", namespace); err != nil {
		return fmt.Errorf("clearing snapshot %s: %w", namespace, err)
	}

	const query = `
		INSERT INTO notification_cache (
			namespace, position, id, user_id, type,
			title, message, read,
			related_entity_id, related_entity_type, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for i, n := range items {
		_, err := tx.ExecContext(ctx, query,
			namespace, i, n.ID, n.UserID, string(n.Type),
			n.Title, n.Message, n.Read,
			n.RelatedEntityID, n.RelatedEntityType, n.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("saving notification %s: %w", n.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot %s: %w", namespace, err)
	}
	return nil
}

// LoadNotifications returns the snapshot stored under namespace in its
// saved order. A missing snapshot yields an empty slice.
func (s *SQLiteStore) LoadNotifications(ctx context.Context, namespace string) ([]model.Notification, error) {
	items := []model.Notification{}
	err := s.db.SelectContext(ctx, &items, `
		SELECT id, user_id, type, title, message, read,
		       related_entity_id, related_entity_type, created_at
		FROM notification_cache
		WHERE namespace = ?
		ORDER BY position`, namespace)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", namespace, err)
	}
	return items, nil
}

// ClearNotifications drops the snapshot stored under namespace.
func (s *SQLiteStore) ClearNotifications(ctx context.Context, namespace string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM notification_cache WHERE namespace = ?", namespace); err != nil {
		return fmt.Errorf("clearing snapshot %s: %w", namespace, err)
	}
	return nil
}

// GetCached returns the cached payload for key, or nil if none is stored.
func (s *SQLiteStore) GetCached(ctx context.Context, key string) (*CacheEntry, error) {
	var e CacheEntry
	err := s.db.GetContext(ctx, &e, "SELECT key, payload, fetched_at FROM query_cache WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache entry %s: %w", key, err)
	}
	return &e, nil
}

// PutCached stores payload under key, replacing any previous entry.
func (s *SQLiteStore) PutCached(ctx context.Context, key string, payload []byte, fetchedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO query_cache (key, payload, fetched_at) VALUES (?, ?, ?)",
		key, string(payload), fetchedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing cache entry %s: %w", key, err)
	}
	return nil
}

// PurgeCache removes every cached query.
func (s *SQLiteStore) PurgeCache(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM query_cache"); err != nil {
		return fmt.Errorf("purging query cache: %w", err)
	}
	return nil
}
