// Package pgstore stores orders in PostgreSQL through a pgx connection pool.
package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/buildtall-systems/orderflow/internal/fsm"
	"github.com/buildtall-systems/orderflow/internal/order"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const orderColumns = `id, created_at, state, version, updated_at`

var (
	_ order.Store  = (*Store)(nil)
	_ order.Lister = (*Store)(nil)
)

// Store is a PostgreSQL-backed order store.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Migrate applies the embedded schema through goose.
func (s *Store) Migrate(ctx context.Context, logger *slog.Logger) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer func() {
		if err := db.Close(); err != nil {
			logger.ErrorContext(ctx, "closing migration connection", slog.Any("error", err))
		}
	}()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(gooseLogger{logger})

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// LoadByID returns an order by ID.
func (s *Store) LoadByID(ctx context.Context, id string) (*order.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", order.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying order: %w", err)
	}
	return o, nil
}

// Save inserts a new order or applies a version-checked update.
func (s *Store) Save(ctx context.Context, o *order.Order) (*order.Order, error) {
	if !o.State.Valid() {
		return nil, fmt.Errorf("saving order: invalid state %q", o.State)
	}

	next := *o
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now()
	}

	if next.Version == 0 {
		if next.ID == "" {
			next.ID = uuid.NewString()
		}
		_, err := s.pool.Exec(ctx, `
			INSERT INTO orders (id, created_at, state, version, updated_at)
			VALUES ($1, $2, $3, 1, $4)
		`, next.ID, next.CreatedAt, string(next.State), next.UpdatedAt)
		if err != nil {
			return nil, insertError(err, next.ID)
		}
		next.Version = 1
		return &next, nil
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET state = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4
	`, string(next.State), next.UpdatedAt, next.ID, next.Version)
	if err != nil {
		return nil, fmt.Errorf("updating order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, next.ID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("checking order: %w", err)
		}
		return nil, staleUpdateError(exists, next.ID, next.Version)
	}

	next.Version++
	return &next, nil
}

// List returns orders most recent first. A non-positive limit returns all.
func (s *Store) List(ctx context.Context, limit int) ([]order.Order, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC LIMIT $1
	`, limitArg)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var o order.Order
	var state string
	if err := row.Scan(&o.ID, &o.CreatedAt, &state, &o.Version, &o.UpdatedAt); err != nil {
		return nil, err
	}

	st, err := fsm.ParseState(state)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", o.ID, err)
	}
	o.State = st
	return &o, nil
}

// isDuplicateKey detects unique constraint violations (SQLSTATE 23505).
// insertError maps a failed INSERT: a duplicate id means another writer
// created the order first.
func insertError(err error, id string) error {
	if isDuplicateKey(err) {
		return fmt.Errorf("%w: %s already exists", order.ErrConcurrentModification, id)
	}
	return fmt.Errorf("creating order: %w", err)
}

// staleUpdateError explains an UPDATE that matched no rows.
func staleUpdateError(exists bool, id string, version int64) error {
	if !exists {
		return fmt.Errorf("%w: %s", order.ErrNotFound, id)
	}
	return fmt.Errorf("%w: %s changed since version %d", order.ErrConcurrentModification, id, version)
}

func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type gooseLogger struct {
	log *slog.Logger
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Error(fmt.Sprintf(format, v...))
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Info(fmt.Sprintf(format, v...))
}
