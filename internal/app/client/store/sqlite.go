package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore хранилище документов поверх SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite открывает (или создаёт) базу по указанному пути и применяет схему.
//
// База работает в режиме WAL, с одним соединением: SQLite допускает только
// одного писателя.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации таблиц: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, collection, key string, doc []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, key, doc, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, key) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at
	`, collection, key, doc, time.Now().UTC())

	return wrap("put", collection, key, err)
}

func (s *SQLiteStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT doc FROM documents WHERE collection = ? AND key = ?",
		collection, key,
	).Scan(&doc)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap("get", collection, key, err)
	}

	return doc, nil
}

func (s *SQLiteStore) GetAll(ctx context.Context, collection string) ([]Entry, error) {
	return s.Query(ctx, collection, nil)
}

func (s *SQLiteStore) Delete(ctx context.Context, collection, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND key = ?",
		collection, key,
	)

	return wrap("delete", collection, key, err)
}

func (s *SQLiteStore) Query(ctx context.Context, collection string, pred Predicate) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, doc FROM documents WHERE collection = ? ORDER BY key",
		collection,
	)
	if err != nil {
		return nil, wrap("query", collection, "", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Doc); err != nil {
			return nil, wrap("query", collection, "", err)
		}
		if pred == nil || pred(e.Key, e.Doc) {
			entries = append(entries, e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("query", collection, "", err)
	}

	return entries, nil
}

func (s *SQLiteStore) Keys(ctx context.Context, collection string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key FROM documents WHERE collection = ? ORDER BY key",
		collection,
	)
	if err != nil {
		return nil, wrap("keys", collection, "", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, wrap("keys", collection, "", err)
		}
		keys = append(keys, key)
	}

	return keys, wrap("keys", collection, "", rows.Err())
}

func (s *SQLiteStore) Rekey(ctx context.Context, collection, oldKey, newKey string, doc []byte) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("rekey", collection, oldKey, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO documents (collection, key, doc, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, key) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at
	`, collection, newKey, doc, time.Now().UTC()); err != nil {
		return wrap("rekey", collection, newKey, err)
	}

	if oldKey != newKey {
		if _, err = tx.ExecContext(ctx,
			"DELETE FROM documents WHERE collection = ? AND key = ?",
			collection, oldKey,
		); err != nil {
			return wrap("rekey", collection, oldKey, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return wrap("rekey", collection, newKey, err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
