package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver.
	_ "modernc.org/sqlite"             // SQLite driver.
)

// Dialect holds the driver name and statements for a database/sql backend.
type Dialect struct {
	Driver      string
	CreateTable string
	Select      string
	Upsert      string
	Delete      string
}

// SQLiteDialect targets modernc.org/sqlite.
var SQLiteDialect = Dialect{
	Driver: "sqlite",
	CreateTable: `CREATE TABLE IF NOT EXISTS kv_store (
		store_key TEXT PRIMARY KEY,
		store_value BLOB NOT NULL,
		updated_at TEXT NOT NULL
	);`,
	Select: `SELECT store_value FROM kv_store WHERE store_key = ?`,
	Upsert: `INSERT INTO kv_store (store_key, store_value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(store_key) DO UPDATE SET store_value = excluded.store_value, updated_at = excluded.updated_at`,
	Delete: `DELETE FROM kv_store WHERE store_key = ?`,
}

// MySQLDialect targets github.com/go-sql-driver/mysql.
var MySQLDialect = Dialect{
	Driver: "mysql",
	CreateTable: `CREATE TABLE IF NOT EXISTS kv_store (
		store_key VARCHAR(191) NOT NULL PRIMARY KEY,
		store_value LONGBLOB NOT NULL,
		updated_at VARCHAR(40) NOT NULL
	)`,
	Select: `SELECT store_value FROM kv_store WHERE store_key = ?`,
	Upsert: `INSERT INTO kv_store (store_key, store_value, updated_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE store_value = VALUES(store_value), updated_at = VALUES(updated_at)`,
	Delete: `DELETE FROM kv_store WHERE store_key = ?`,
}

// SQLBackend persists values through database/sql.
type SQLBackend struct {
	db      *sql.DB
	dialect Dialect
}

var _ Backend = (*SQLBackend)(nil)

// NewSQLBackend wraps an open handle. The caller is responsible for Migrate.
func NewSQLBackend(db *sql.DB, dialect Dialect) *SQLBackend {
	return &SQLBackend{db: db, dialect: dialect}
}

// OpenSQLite opens or creates the SQLite file at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return openSQL(ctx, SQLiteDialect, path)
}

// OpenMySQL connects with dsn and applies the schema.
func OpenMySQL(ctx context.Context, dsn string) (*SQLBackend, error) {
	return openSQL(ctx, MySQLDialect, dsn)
}

func openSQL(ctx context.Context, dialect Dialect, dsn string) (*SQLBackend, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Driver, err)
	}
	backend := NewSQLBackend(db, dialect)
	if err := backend.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return backend, nil
}

// Migrate creates the kv_store table if missing.
func (b *SQLBackend) Migrate(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, b.dialect.CreateTable); err != nil {
		return fmt.Errorf("migrate %s kv_store: %w", b.dialect.Driver, err)
	}
	return nil
}

// Close closes the underlying database.
func (b *SQLBackend) Close() error {
	return b.db.Close()
}

func (b *SQLBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	if err := b.db.QueryRowContext(ctx, b.dialect.Select, key).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (b *SQLBackend) Set(ctx context.Context, key string, value []byte) error {
	_, err := b.db.ExecContext(ctx, b.dialect.Upsert, key, value, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (b *SQLBackend) Delete(ctx context.Context, key string) error {
	_, err := b.db.ExecContext(ctx, b.dialect.Delete, key)
	return err
}

func (b *SQLBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}
