// Package postgres implements the domain repositories on top of a pgx
// connection pool. NUMERIC money columns are mapped through
// shopspring/decimal and converted to integer cents at this boundary.
package postgres

import (
	"context"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/go-faster/errors"

	"github.com/solient/storefront/db"
)

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database config")
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create connection pool")
	}
	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, db.Schema); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	return nil
}

// centsToDecimal renders integer cents as an exact two-decimal amount for
// NUMERIC storage.
func centsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// decimalToCents converts a two-decimal NUMERIC amount back to integer cents.
func decimalToCents(d decimal.Decimal) int64 {
	return d.Shift(2).IntPart()
}
