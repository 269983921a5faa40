package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	authclient "github.com/goliatone/go-auth-client"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const sqliteCreateClientStorage = `CREATE TABLE IF NOT EXISTS client_storage (
    namespace TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    updated_at TIMESTAMP,
    CONSTRAINT uq_client_storage_namespace_key UNIQUE (namespace, key)
);`

// Entry is the Bun model for one stored key.
type Entry struct {
	bun.BaseModel `bun:"table:client_storage"`

	Namespace string    `bun:"namespace,notnull"`
	Key       string    `bun:"key,notnull"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at"`
}

// BunStore implements authclient.Storage on a SQL table through Bun. Keys
// are scoped by namespace so several clients can share one database.
type BunStore struct {
	db        *bun.DB
	namespace string
	now       func() time.Time
}

var _ authclient.Storage = (*BunStore)(nil)

// NewBunStore returns a store over db. Call Migrate before first use.
func NewBunStore(db *bun.DB, namespace string) *BunStore {
	return &BunStore{
		db:        db,
		namespace: strings.TrimSpace(namespace),
		now:       time.Now,
	}
}

// OpenSQLite opens a SQLite database at dsn, creates the storage table and
// returns a store for namespace. The returned close func releases the db.
func OpenSQLite(ctx context.Context, dsn, namespace string) (*BunStore, func() error, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	store := NewBunStore(db, namespace)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return store, db.Close, nil
}

// Migrate creates the storage table when missing.
func (s *BunStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteCreateClientStorage); err != nil {
		return fmt.Errorf("storage: migrate: %w", err)
	}
	return nil
}

// Namespace returns the key scope of the store.
func (s *BunStore) Namespace() string {
	return s.namespace
}

// Get returns the value for key in this store's namespace.
func (s *BunStore) Get(ctx context.Context, key string) (string, bool, error) {
	var entry Entry
	err := s.db.NewSelect().
		Model(&entry).
		Where("namespace = ? AND key = ?", s.namespace, key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("storage: get %q: %w", key, err)
	}
	return entry.Value, true, nil
}

// Set upserts the value for key.
func (s *BunStore) Set(ctx context.Context, key, value string) error {
	entry := &Entry{
		Namespace: s.namespace,
		Key:       key,
		Value:     value,
		UpdatedAt: s.now(),
	}

	_, err := s.db.NewInsert().
		Model(entry).
		On("CONFLICT (namespace, key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("storage: set %q: %w", key, err)
	}
	return nil
}

// Delete removes key from the namespace.
func (s *BunStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*Entry)(nil)).
		Where("namespace = ? AND key = ?", s.namespace, key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("storage: delete %q: %w", key, err)
	}
	return nil
}

// Keys lists the keys stored under the namespace.
func (s *BunStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.NewSelect().
		Model((*Entry)(nil)).
		Column("key").
		Where("namespace = ?", s.namespace).
		Order("key ASC").
		Scan(ctx, &keys)
	if err != nil {
		return nil, fmt.Errorf("storage: keys: %w", err)
	}
	return keys, nil
}
