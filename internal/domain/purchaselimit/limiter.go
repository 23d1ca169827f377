// Package purchaselimit caps how many units of a product a user may buy
// within a sliding time window. The window is anchored on the committed
// creation time of prior orders, so the ledger of completed purchases is the
// single source of truth.
package purchaselimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// Config holds the process-wide purchase limit. Both fields must be
// positive; construction of invalid values is the config layer's problem,
// not this package's.
type Config struct {
	// PerProduct is the maximum quantity of a single product a user may buy
	// within Window.
	PerProduct int
	// Window is the length of the sliding window.
	Window time.Duration
}

// Item is an aggregated purchase request line: total requested quantity for
// one product. Slug is carried only for error reporting.
type Item struct {
	ProductID int64
	Slug      string
	Quantity  int
}

// Ledger is the read side of the order store needed for window queries.
// SumQuantityByProduct must issue a single batched query and must see all
// previously committed orders.
type Ledger interface {
	SumQuantityByProduct(ctx context.Context, userID int64, productIDs []int64, since time.Time) (map[int64]int, error)
}

// LimitExceededError reports the first product in a request that would push
// the user past the limit. It carries everything a caller needs to explain
// the rejection.
type LimitExceededError struct {
	Limit     int
	Window    time.Duration
	ProductID int64
	Slug      string
	Requested int
	Prior     int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf(
		"purchase limit exceeded for product %d: limit %d per %s, requested %d, already purchased %d",
		e.ProductID, e.Limit, e.Window, e.Requested, e.Prior,
	)
}

// Evaluator checks aggregated purchase requests against the configured
// limit using the ledger's trailing-window sums.
type Evaluator struct {
	cfg    Config
	ledger Ledger
}

// New creates an Evaluator backed by the given ledger.
func New(cfg Config, ledger Ledger) *Evaluator {
	return &Evaluator{cfg: cfg, ledger: ledger}
}

// Check accepts or rejects the aggregated request items for userID. The
// window is anchored on at, which the caller also uses as the commit
// timestamp so the check and the commit share one point-in-time view.
//
// The boundary is inclusive: a purchase committed exactly Window before at
// still counts against the limit. Items are checked in order and the first
// offender is reported via *LimitExceededError.
func (e *Evaluator) Check(ctx context.Context, userID int64, items []Item, at time.Time) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}

	since := at.Add(-e.cfg.Window)
	prior, err := e.ledger.SumQuantityByProduct(ctx, userID, ids, since)
	if err != nil {
		return errors.Wrap(err, "sum recent purchases")
	}

	for _, it := range items {
		if p := prior[it.ProductID]; p+it.Quantity > e.cfg.PerProduct {
			return &LimitExceededError{
				Limit:     e.cfg.PerProduct,
				Window:    e.cfg.Window,
				ProductID: it.ProductID,
				Slug:      it.Slug,
				Requested: it.Quantity,
				Prior:     p,
			}
		}
	}
	return nil
}
