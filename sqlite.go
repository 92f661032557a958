package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
	"github.com/samber/oops"
)

//go:embed migrations.sql
var sqliteMigrations string

// SQLiteStore is the durable dedup store. Every mark is its own committed
// statement, so a mid-run crash keeps all marks committed up to that point.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the database at path and
// applies migrations. WAL mode and a busy timeout are set through the DSN
// so concurrent delivery workers do not trip over each other.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, oops.With("path", path).Wrapf(err, "failed to create database directory")
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=30000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, oops.With("path", path).Wrapf(err, "failed to open sqlite database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, oops.With("path", path).Wrapf(err, "sqlite ping failed")
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		db.Close()
		return nil, oops.With("path", path).Wrapf(err, "failed to run migrations")
	}
	slog.Debug("SQLite store ready", "path", path)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) HasSeen(key string) (bool, error) {
	var k string
	err := s.db.QueryRow(`SELECT key FROM seen WHERE key = ?`, key).Scan(&k)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("seen check failed for %s: %w", key, err)
	}
	return true, nil
}

// MarkSeen records the key; a duplicate insert is swallowed by
// INSERT OR IGNORE, which is what makes the call idempotent.
func (s *SQLiteStore) MarkSeen(key string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO seen (key, first_seen_at) VALUES (?, ?)`,
		key, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("mark seen failed for %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) HasDelivered(key string, chatID int64) (bool, error) {
	var k string
	err := s.db.QueryRow(
		`SELECT key FROM delivered WHERE key = ? AND chat_id = ?`,
		key, chatID,
	).Scan(&k)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delivered check failed for %s/%d: %w", key, chatID, err)
	}
	return true, nil
}

func (s *SQLiteStore) MarkDelivered(key string, chatID int64) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO delivered (key, chat_id, delivered_at) VALUES (?, ?, ?)`,
		key, chatID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("mark delivered failed for %s/%d: %w", key, chatID, err)
	}
	return nil
}

func (s *SQLiteStore) Stats() (StoreStats, error) {
	var stats StoreStats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM seen`).Scan(&stats.TotalSeen); err != nil {
		return StoreStats{}, fmt.Errorf("seen count failed: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(DISTINCT key) FROM delivered`).Scan(&stats.TotalDeliveredDistinct); err != nil {
		return StoreStats{}, fmt.Errorf("delivered count failed: %w", err)
	}
	return stats, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
