// Package sqlite implements the repository interfaces on top of SQLite.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite, so the binary builds without CGo and
// tests can run against ":memory:" databases with no external services.
//
// CONNECTION MODEL:
// SQLite allows one writer at a time, and PRAGMAs such as foreign_keys apply
// per connection. The pool is therefore capped at a single connection:
//   - every statement sees the same PRAGMA settings (and the same ":memory:"
//     database, which would otherwise be private to each connection)
//   - a transaction owns the connection until it commits or rolls back, so
//     two recipe updates can never interleave their delete/insert steps
//
// The price is that code running inside RunInTx must only use the tx it was
// handed; touching db.conn there would wait on itself.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements the repository interfaces.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/cookshare.db" → file-based database
//   - ":memory:"          → throwaway database for tests
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	// Keep the single connection alive; closing it would drop a ":memory:" DB.
	conn.SetConnMaxLifetime(0)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	db := &DB{
		conn: conn,
		now:  func() time.Time { return time.Now().UTC() },
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. Every statement is idempotent.
//
// Child tables declare ON DELETE CASCADE so removing a recipe (or a user)
// removes everything hanging off it. UNIQUE(recipe_id, "order") makes a
// duplicate position inside one recipe a constraint violation rather than
// silently ambiguous ordering.
func (db *DB) migrate() error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id            TEXT PRIMARY KEY,
				email         TEXT NOT NULL UNIQUE,
				name          TEXT NOT NULL DEFAULT '',
				role          TEXT NOT NULL DEFAULT 'USER' CHECK (role IN ('USER', 'ADMIN')),
				bio           TEXT NOT NULL DEFAULT '',
				avatar_url    TEXT NOT NULL DEFAULT '',
				github_id     INTEGER UNIQUE,
				password_hash TEXT NOT NULL DEFAULT '',
				created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);`},
		{"recipes", `
			CREATE TABLE IF NOT EXISTS recipes (
				id          TEXT PRIMARY KEY,
				title       TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				image       TEXT NOT NULL DEFAULT '',
				servings    INTEGER NOT NULL DEFAULT 4 CHECK (servings >= 1),
				prep_time   INTEGER CHECK (prep_time >= 0),
				cook_time   INTEGER CHECK (cook_time >= 0),
				difficulty  TEXT NOT NULL DEFAULT 'Medium',
				category    TEXT NOT NULL DEFAULT 'Main',
				published   INTEGER NOT NULL DEFAULT 0,
				author_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_recipes_created_at ON recipes(created_at);
			CREATE INDEX IF NOT EXISTS idx_recipes_author_id ON recipes(author_id);`},
		{"ingredients", `
			CREATE TABLE IF NOT EXISTS ingredients (
				id        TEXT PRIMARY KEY,
				recipe_id TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
				name      TEXT NOT NULL,
				amount    TEXT NOT NULL,
				unit      TEXT NOT NULL DEFAULT '',
				"order"   INTEGER NOT NULL,
				UNIQUE (recipe_id, "order")
			);`},
		{"steps", `
			CREATE TABLE IF NOT EXISTS steps (
				id          TEXT PRIMARY KEY,
				recipe_id   TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
				instruction TEXT NOT NULL,
				image       TEXT NOT NULL DEFAULT '',
				"order"     INTEGER NOT NULL,
				UNIQUE (recipe_id, "order")
			);`},
		{"likes", `
			CREATE TABLE IF NOT EXISTS likes (
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				recipe_id  TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (user_id, recipe_id)
			);`},
		{"comments", `
			CREATE TABLE IF NOT EXISTS comments (
				id         TEXT PRIMARY KEY,
				recipe_id  TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				content    TEXT NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_comments_recipe_id ON comments(recipe_id);`},
	}

	for _, s := range stmts {
		if _, err := db.conn.Exec(s.sql); err != nil {
			return fmt.Errorf("creating %s table: %w", s.name, err)
		}
	}
	return nil
}

// inTx runs fn inside a transaction, rolling back when fn fails.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapWriteError("transaction", "", fmt.Errorf("sqlite: committing transaction: %w", err))
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// nullableInt converts an optional int to a value database/sql can bind.
func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// intPtr converts a scanned nullable column back to an optional int.
func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
