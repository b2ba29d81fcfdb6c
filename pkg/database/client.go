// Copyright 2025 Omnilock Labs
//
// Database Client for Relayer State
// Embedded SQLite storage with connection pooling and schema bootstrap

package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Client represents a database client with connection pooling
type Client struct {
	db     *sql.DB
	path   string
	logger *log.Logger
}

// ClientOption is a functional option for configuring the client
type ClientOption func(*Client)

// WithLogger sets a custom logger for the client
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient opens (creating if missing) the SQLite database at path and
// initializes the schema.
func NewClient(path string, maxConns int, opts ...ClientOption) (*Client, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if maxConns < 5 {
		maxConns = 5
	}

	client := &Client{
		path:   path,
		logger: log.New(log.Writer(), "[Database] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(client)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := configurePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure SQLite: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	client.db = db
	client.logger.Printf("Opened database %s (max_conns=%d)", path, maxConns)

	return client, nil
}

// configurePragmas applies SQLite configuration pragmas
func configurePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}
	return nil
}

// initSchema creates the relayer tables and indexes if they do not exist
func initSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			nonce            INTEGER NOT NULL UNIQUE,
			trace_id         TEXT NOT NULL,
			sender           TEXT NOT NULL,
			amount           TEXT NOT NULL,
			payload          TEXT NOT NULL,
			deadline         INTEGER NOT NULL,
			description      TEXT,
			state            TEXT NOT NULL DEFAULT 'observed',
			result           TEXT,
			dest_signature   TEXT,
			source_settle_tx TEXT,
			proof_json       TEXT,
			retry_count      INTEGER NOT NULL DEFAULT 0,
			error_message    TEXT,
			created_at       TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			nonce       INTEGER NOT NULL,
			trace_id    TEXT NOT NULL,
			actor       TEXT NOT NULL,
			step        TEXT NOT NULL,
			status      TEXT NOT NULL,
			detail      TEXT,
			timestamp   TEXT NOT NULL,
			created_at  TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_state ON messages(state)`,
		`CREATE INDEX IF NOT EXISTS idx_events_nonce ON events(nonce)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// DB returns the underlying *sql.DB for direct access
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close closes the database connection
func (c *Client) Close() error {
	if c.db != nil {
		c.logger.Println("Closing database connection")
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// ExecContext executes a query that doesn't return rows
func (c *Client) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows
func (c *Client) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a query that returns at most one row
func (c *Client) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}
