package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrEmptyItems rejects a purchase request with no items.
var ErrEmptyItems = errors.New("items required")

// MissingRefError indicates a request item referenced no product at all.
type MissingRefError struct {
	Index int
}

func (e *MissingRefError) Error() string {
	return fmt.Sprintf("item %d: product reference required (slug or id)", e.Index)
}

// InvalidQuantityError indicates a request item has a non-positive quantity.
type InvalidQuantityError struct {
	Index int
	Ref   Ref
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("item %d (%s): quantity must be greater than 0", e.Index, e.Ref)
}

// ProductNotFoundError indicates a referenced product does not exist. The
// whole request fails; no partial order is created.
type ProductNotFoundError struct {
	Ref Ref
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.Ref)
}
