package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Dialect はSQLStorageが発行するクエリの方言。
type Dialect int

const (
	// DialectPostgres は $1 形式のプレースホルダを使う。
	DialectPostgres Dialect = iota
	// DialectSQLite は ? 形式のプレースホルダを使う。
	DialectSQLite
)

// queryTimeout は1クエリあたりのタイムアウト。
const queryTimeout = 5 * time.Second

type sqlQueries struct {
	get    string
	upsert string
	delete string
}

var dialectQueries = map[Dialect]sqlQueries{
	DialectPostgres: {
		get: `SELECT value FROM client_storage WHERE key = $1`,
		upsert: `INSERT INTO client_storage (key, value, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value,
	updated_at = NOW()`,
		delete: `DELETE FROM client_storage WHERE key = $1`,
	},
	DialectSQLite: {
		get: `SELECT value FROM client_storage WHERE key = ?`,
		upsert: `INSERT INTO client_storage (key, value, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (key) DO UPDATE
SET value = excluded.value,
	updated_at = CURRENT_TIMESTAMP`,
		delete: `DELETE FROM client_storage WHERE key = ?`,
	},
}

// SQLStorage は client_storage テーブルに保存するStorage実装。
// スキーマは database パッケージ（PostgreSQLはマイグレーション、SQLiteは埋め込みスキーマ）が用意する。
type SQLStorage struct {
	db      *sql.DB
	queries sqlQueries
}

// NewSQLStorage はSQLStorageを生成する。
func NewSQLStorage(db *sql.DB, dialect Dialect) (*SQLStorage, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	q, ok := dialectQueries[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect: %d", dialect)
	}
	return &SQLStorage{db: db, queries: q}, nil
}

func (s *SQLStorage) GetItem(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var value string
	if err := s.db.QueryRowContext(ctx, s.queries.get, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("query storage item: %w", err)
	}
	return value, true, nil
}

func (s *SQLStorage) SetItem(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, s.queries.upsert, key, value); err != nil {
		return fmt.Errorf("upsert storage item: %w", err)
	}
	return nil
}

func (s *SQLStorage) RemoveItem(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, s.queries.delete, key); err != nil {
		return fmt.Errorf("delete storage item: %w", err)
	}
	return nil
}
