// Package db stores the image history in SQLite: connection setup, embedded
// migrations, the history repository and a non-blocking writer for it.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	// pure Go driver, registers "sqlite"
	_ "modernc.org/sqlite"
)

// ConnectionConfig holds configuration for SQLite connections.
type ConnectionConfig struct {
	Path        string
	BusyTimeout time.Duration
	// MaxOpenConns is 1 by default: history writes are serialized anyway.
	MaxOpenConns int
}

// DefaultConnectionConfig uses WAL with a single connection.
func DefaultConnectionConfig(path string) ConnectionConfig {
	return ConnectionConfig{
		Path:         path,
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 1,
	}
}

// dsn passes the pragmas through the driver so every pooled connection gets
// them, not only the first.
func (c ConnectionConfig) dsn() string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + c.Path + "?" + q.Encode()
}

// NewSQLiteConnection opens the database and checks that WAL is active.
func NewSQLiteConnection(config ConnectionConfig) (*sql.DB, error) {
	if config.Path == "" {
		return nil, errors.New("database path is required")
	}
	if config.MaxOpenConns < 1 {
		config.MaxOpenConns = 1
	}

	conn, err := sql.Open("sqlite", config.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(config.MaxOpenConns)
	conn.SetMaxIdleConns(config.MaxOpenConns)

	var journalMode string
	if err := conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", config.Path, err)
	}
	if journalMode != "wal" {
		conn.Close()
		return nil, fmt.Errorf("WAL mode not enabled for %s, got: %s", config.Path, journalMode)
	}
	return conn, nil
}
