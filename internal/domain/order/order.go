package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/solient/storefront/internal/domain/user"
)

// Status is the lifecycle state of an order. Orders are created in their
// final state; there are no partial-order states.
type Status string

// StatusPaid is the only status a committed order can have.
const StatusPaid Status = "paid"

// ErrNotFound is returned when an order does not exist or belongs to a
// different user.
var ErrNotFound = errors.New("order not found")

// Line is an immutable snapshot of one purchased product, captured at
// order-creation time. It preserves the historical price even if the catalog
// later changes.
type Line struct {
	ProductID      int64
	Slug           string
	Title          string
	UnitPriceCents int64
	Quantity       int
}

// Order is a completed purchase. CreatedAt is the authoritative timestamp
// for purchase-limit window queries. Orders are never mutated after creation.
type Order struct {
	ID              string
	UserID          int64
	Lines           []Line
	TotalCents      int64
	ShippingAddress *user.Address
	Status          Status
	CreatedAt       time.Time
}

// RequestItem is one transient input line of a purchase request.
type RequestItem struct {
	Ref      Ref
	Quantity int
}

// Repository defines the persistence contract for the order ledger.
type Repository interface {
	// Create persists the order header and all line snapshots in a single
	// transaction: either everything becomes visible or nothing does.
	Create(ctx context.Context, o *Order) error

	// Get returns the order with the given ID if it belongs to userID,
	// or ErrNotFound.
	Get(ctx context.Context, orderID string, userID int64) (*Order, error)

	// ListByUser returns the user's orders, newest first, lines included.
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
}
