package product

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog item available for purchase. Prices are held in
// integer cents; conversion to a decimal amount happens only at the storage
// and HTTP boundaries.
type Product struct {
	ID         int64
	Slug       string
	Title      string
	PriceCents int64
}

// Repository defines read operations for the product catalog.
// GetByIDs and GetBySlugs must each issue a single batched query.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)
	GetBySlugs(ctx context.Context, slugs []string) ([]Product, error)
}
