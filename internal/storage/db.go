package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// DB is a Store backed by a single SQLite table.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases coherent and serializes writers.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn, now: time.Now}, nil
}

// Get returns the value stored under key, or ErrNotFound.
func (db *DB) Get(ctx context.Context, key string) ([]byte, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT value FROM records WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)",
		key, db.now().UnixMilli(),
	)

	var value []byte
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

// Put replaces the value stored under key.
func (db *DB) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt sql.NullInt64
	if at, ok := expiry(db.now(), ttl); ok {
		expiresAt = sql.NullInt64{Int64: at.UnixMilli(), Valid: true}
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO records (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, key, value, expiresAt)
	return err
}

// Delete removes key. Deleting an absent key is not an error.
func (db *DB) Delete(ctx context.Context, key string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM records WHERE key = ?", key)
	return err
}

// CleanExpired removes all expired records and returns how many were removed.
func (db *DB) CleanExpired(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		"DELETE FROM records WHERE expires_at IS NOT NULL AND expires_at <= ?",
		db.now().UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
