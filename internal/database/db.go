package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// MemoryDSN keeps the cache in process memory only
const MemoryDSN = "file:aidetector?mode=memory&cache=shared"

// DB represents the embedding cache connection
type DB struct {
	conn *sql.DB
}

// New opens the SQLite cache at dsn. In-memory databases are pinned to a
// single connection so every query sees the same data.
func New(dsn string) (*DB, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if strings.Contains(dsn, "mode=memory") || strings.Contains(dsn, ":memory:") {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// NewFromConn wraps an already opened connection
func NewFromConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}
