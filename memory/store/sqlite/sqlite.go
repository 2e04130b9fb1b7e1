//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package sqlite provides a durable store implementation backed by SQLite.
// All rows are unicode text; timestamps are ISO-8601.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver registration.

	"trpc.group/trpc-go/trpc-botagent-go/memory/store"
)

const (
	sqliteCreateKV = "CREATE TABLE IF NOT EXISTS memory_kv (" +
		"namespace TEXT NOT NULL, " +
		"key TEXT NOT NULL, " +
		"value TEXT NOT NULL, " +
		"updated_at TEXT NOT NULL, " +
		"PRIMARY KEY (namespace, key)" +
		")"

	sqliteCreateList = "CREATE TABLE IF NOT EXISTS memory_list (" +
		"id INTEGER PRIMARY KEY AUTOINCREMENT, " +
		"namespace TEXT NOT NULL, " +
		"key TEXT NOT NULL, " +
		"value TEXT NOT NULL, " +
		"created_at TEXT NOT NULL" +
		")"

	sqliteCreateListIndex = "CREATE INDEX IF NOT EXISTS idx_memory_list_ns_key " +
		"ON memory_list (namespace, key)"

	sqliteUpsertKV = "INSERT INTO memory_kv (namespace, key, value, updated_at) " +
		"VALUES (?, ?, ?, ?) " +
		"ON CONFLICT(namespace, key) DO UPDATE SET " +
		"value = excluded.value, updated_at = excluded.updated_at"

	sqliteSelectKV = "SELECT value FROM memory_kv WHERE namespace = ? AND key = ?"
	sqliteDeleteKV = "DELETE FROM memory_kv WHERE namespace = ? AND key = ?"

	sqliteInsertListItem = "INSERT INTO memory_list (namespace, key, value, created_at) " +
		"VALUES (?, ?, ?, ?)"

	sqliteSelectList = "SELECT value FROM memory_list WHERE namespace = ? AND key = ? " +
		"ORDER BY id ASC LIMIT ? OFFSET ?"

	sqliteDeleteList = "DELETE FROM memory_list WHERE namespace = ? AND key = ?"

	sqliteTrimList = "DELETE FROM memory_list WHERE id IN (" +
		"SELECT id FROM memory_list WHERE namespace = ? AND key = ? " +
		"ORDER BY id ASC LIMIT MAX(0, " +
		"(SELECT COUNT(*) FROM memory_list WHERE namespace = ? AND key = ?) - ?)" +
		")"

	sqliteSelectKeys = "SELECT DISTINCT key FROM memory_kv WHERE namespace = ? " +
		"UNION SELECT DISTINCT key FROM memory_list WHERE namespace = ? " +
		"ORDER BY key"
)

var _ store.Store = (*Store)(nil)

// Store is a SQLite-backed implementation of store.Store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and prepares the schema.
// The connection enables WAL and a 5s busy timeout, and serializes all
// access through a single connection so concurrent writers never observe
// SQLITE_BUSY.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New creates a store on an existing DB handle and prepares the schema.
// The DB must use a SQLite driver.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	for _, stmt := range []string{sqliteCreateKV, sqliteCreateList, sqliteCreateListIndex} {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Get returns the value stored under key, or ok=false when absent.
func (s *Store) Get(ctx context.Context, ns store.Namespace, key string) ([]byte, bool, error) {
	if err := ns.Validate(); err != nil {
		return nil, false, err
	}
	var value string
	err := s.db.QueryRowContext(ctx, sqliteSelectKV, ns.String(), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select kv: %w", err)
	}
	return []byte(value), true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, ns store.Namespace, key string, value []byte) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, sqliteUpsertKV,
		ns.String(), key, string(value), isoNow()); err != nil {
		return fmt.Errorf("upsert kv: %w", err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, ns store.Namespace, key string) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, sqliteDeleteKV, ns.String(), key); err != nil {
		return fmt.Errorf("delete kv: %w", err)
	}
	return nil
}

// AppendList appends item to the list stored under key.
func (s *Store) AppendList(ctx context.Context, ns store.Namespace, key string, item []byte) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, sqliteInsertListItem,
		ns.String(), key, string(item), isoNow()); err != nil {
		return fmt.Errorf("append list: %w", err)
	}
	return nil
}

// GetList returns list items in insertion order, honoring offset and limit.
func (s *Store) GetList(ctx context.Context, ns store.Namespace, key string, offset, limit int) ([][]byte, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unbounded.
	}
	rows, err := s.db.QueryContext(ctx, sqliteSelectList, ns.String(), key, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select list: %w", err)
	}
	defer rows.Close()
	var items [][]byte
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan list item: %w", err)
		}
		items = append(items, []byte(value))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate list: %w", err)
	}
	return items, nil
}

// ReplaceList replaces the whole list with items inside one transaction.
func (s *Store) ReplaceList(ctx context.Context, ns store.Namespace, key string, items [][]byte) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace list: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, sqliteDeleteList, ns.String(), key); err != nil {
		return fmt.Errorf("clear list: %w", err)
	}
	now := isoNow()
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, sqliteInsertListItem,
			ns.String(), key, string(item), now); err != nil {
			return fmt.Errorf("insert list item: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace list: %w", err)
	}
	return nil
}

// TrimList keeps the most recent max items and returns the number removed.
func (s *Store) TrimList(ctx context.Context, ns store.Namespace, key string, max int) (int, error) {
	if err := ns.Validate(); err != nil {
		return 0, err
	}
	if max < 0 {
		max = 0
	}
	res, err := s.db.ExecContext(ctx, sqliteTrimList,
		ns.String(), key, ns.String(), key, max)
	if err != nil {
		return 0, fmt.Errorf("trim list: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("trim list rows affected: %w", err)
	}
	return int(removed), nil
}

// ListKeys returns the union of KV and list keys in the namespace, sorted.
func (s *Store) ListKeys(ctx context.Context, ns store.Namespace) ([]string, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sqliteSelectKeys, ns.String(), ns.String())
	if err != nil {
		return nil, fmt.Errorf("select keys: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func isoNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}
