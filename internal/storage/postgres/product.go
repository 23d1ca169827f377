package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/solient/storefront/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, slug, title, price FROM products ORDER BY id`

	getProductByIDSQL = `SELECT id, slug, title, price FROM products WHERE id = $1`

	getProductBySlugSQL = `SELECT id, slug, title, price FROM products WHERE slug = $1`

	getProductsByIDsSQL = `SELECT id, slug, title, price FROM products WHERE id = ANY($1)`

	getProductsBySlugsSQL = `SELECT id, slug, title, price FROM products WHERE slug = ANY($1)`

	upsertProductSQL = `INSERT INTO products (slug, title, price) VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE SET title = EXCLUDED.title, price = EXCLUDED.price`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its numeric identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	return r.getOne(ctx, getProductByIDSQL, id)
}

// GetBySlug returns a single product by its slug.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*product.Product, error) {
	return r.getOne(ctx, getProductBySlugSQL, slug)
}

// GetByIDs returns products matching any of the given IDs in one query.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetBySlugs returns products matching any of the given slugs in one query.
func (r *ProductRepository) GetBySlugs(ctx context.Context, slugs []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsBySlugsSQL, slugs)
	if err != nil {
		return nil, errors.Wrap(err, "get products by slugs")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Upsert inserts or refreshes a catalog row by slug. Used by the seed and
// ingest commands, not by the request path.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL, p.Slug, p.Title, centsToDecimal(p.PriceCents))
	if err != nil {
		return errors.Wrapf(err, "upsert product %q", p.Slug)
	}
	return nil
}

func (r *ProductRepository) getOne(ctx context.Context, sql string, arg any) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrap(err, "get product")
	}
	return &p, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		price decimal.Decimal
	)
	if err := row.Scan(&p.ID, &p.Slug, &p.Title, &price); err != nil {
		return p, err
	}
	p.PriceCents = decimalToCents(price)
	return p, nil
}
