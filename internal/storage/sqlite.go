package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgellow/login-front/internal/log"
	_ "modernc.org/sqlite"
)

var _ Store = (*SQLiteStore)(nil)
var _ Purger = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
)`

// SQLiteStore persists keys in a local SQLite file. It is the CLI's default:
// every login-front process on the machine sees the same state, like tabs of
// one origin share localStorage.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the database at path.
// ":memory:" gives a private in-memory database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
		// Swap and SetIfAbsent read then write; BEGIN IMMEDIATE takes the
		// write lock up front so a second process waits on the busy timeout
		// instead of failing on a stale snapshot.
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	// One connection serialises transactions inside this process; the
	// busy timeout handles other processes.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating kv table: %w", err)
	}

	log.LogDebugWithFields("storage", "Opened SQLite store", map[string]any{
		"path": path,
	})
	return &SQLiteStore{db: db}, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func live(expiresAt int64, now time.Time) bool {
	return expiresAt == 0 || now.UnixNano() <= expiresAt
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, `SELECT value, expires_at FROM kv WHERE key = ?`, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	if !live(expiresAt, time.Now()) {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, unixNano(expiry(ttl)))
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("deleting keys: %w", err)
	}
	return nil
}

// readForUpdate must run inside tx
func readForUpdate(ctx context.Context, tx *sql.Tx, key string) (string, bool, error) {
	var value string
	var expiresAt int64
	err := tx.QueryRowContext(ctx, `SELECT value, expires_at FROM kv WHERE key = ?`, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if !live(expiresAt, time.Now()) {
		return "", false, nil
	}
	return value, true, nil
}

func (s *SQLiteStore) Swap(ctx context.Context, key, value string) (string, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("beginning swap: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	prev, existed, err := readForUpdate(ctx, tx, key)
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO kv (key, value, expires_at) VALUES (?, ?, 0)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = 0`,
		key, value); err != nil {
		return "", false, fmt.Errorf("writing %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("committing swap: %w", err)
	}
	return prev, existed, nil
}

func (s *SQLiteStore) SetIfAbsent(ctx context.Context, key, value string) (string, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("beginning insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, existed, err := readForUpdate(ctx, tx, key)
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}
	if existed {
		return current, false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO kv (key, value, expires_at) VALUES (?, ?, 0)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = 0`,
		key, value); err != nil {
		return "", false, fmt.Errorf("writing %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("committing insert: %w", err)
	}
	return value, true, nil
}

// PurgeExpired deletes rows whose TTL has passed
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE expires_at != 0 AND expires_at < ?`, time.Now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purging expired keys: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
