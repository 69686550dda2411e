// Package db is the SQLite order store. Orders live in a single table whose
// version column backs the conditional update in Save.
package db

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/buildtall-systems/orderflow/internal/order"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var (
	_ order.Store  = (*DB)(nil)
	_ order.Lister = (*DB)(nil)
)

// pragmas run on the single pooled connection right after open.
var pragmas = []struct {
	stmt string
	what string
}{
	{`PRAGMA busy_timeout = 5000;`, "setting busy timeout"},
	{`PRAGMA journal_mode = WAL;`, "setting WAL mode"},
}

// DB is an order.Store backed by a SQLite file.
type DB struct {
	*sql.DB
}

// Open opens or creates the SQLite file at dbPath. The pool is capped at one
// connection so version-checked updates are never interleaved inside the process.
func Open(dbPath string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening order database: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p.stmt); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", p.what, err)
		}
	}

	return &DB{DB: sqlDB}, nil
}

// Migrate applies the embedded orders schema. Running it again is a no-op.
func (db *DB) Migrate() error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		return fmt.Errorf("migrating orders schema: %w", err)
	}

	return nil
}
