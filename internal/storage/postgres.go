package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgConn is the subset of *pgxpool.Pool the backend needs.
type pgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresBackend persists values in the kv_store table created by cmd/migrator.
type PostgresBackend struct {
	conn pgConn
}

var _ Backend = (*PostgresBackend)(nil)

func NewPostgresBackend(conn pgConn) *PostgresBackend {
	return &PostgresBackend{conn: conn}
}

const (
	pgSelectValue = `SELECT store_value FROM kv_store WHERE store_key = $1`
	pgUpsertValue = `INSERT INTO kv_store (store_key, store_value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (store_key) DO UPDATE SET store_value = EXCLUDED.store_value, updated_at = now()`
	pgDeleteValue = `DELETE FROM kv_store WHERE store_key = $1`
)

func (p *PostgresBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	if err := p.conn.QueryRow(ctx, pgSelectValue, key).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (p *PostgresBackend) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.conn.Exec(ctx, pgUpsertValue, key, value)
	return err
}

func (p *PostgresBackend) Delete(ctx context.Context, key string) error {
	_, err := p.conn.Exec(ctx, pgDeleteValue, key)
	return err
}

func (p *PostgresBackend) Ping(ctx context.Context) error {
	return p.conn.Ping(ctx)
}
