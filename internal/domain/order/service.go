package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/solient/storefront/internal/domain/product"
	"github.com/solient/storefront/internal/domain/purchaselimit"
	"github.com/solient/storefront/internal/domain/user"
)

// PurchaseRequest holds the input for a purchase. UserID comes from the
// authentication layer and is already verified.
type PurchaseRequest struct {
	UserID          int64
	Items           []RequestItem
	ShippingAddress *user.Address
	SaveAddress     bool
}

// Service orchestrates purchases: validation, product resolution, the
// purchase-limit check, and atomic order creation.
type Service struct {
	products product.Repository
	users    user.Repository
	orders   Repository
	limiter  *purchaselimit.Evaluator
	locks    *keyedMutex
	now      func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	users user.Repository,
	orders Repository,
	limiter *purchaselimit.Evaluator,
) *Service {
	return &Service{
		products: products,
		users:    users,
		orders:   orders,
		limiter:  limiter,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// Purchase validates the request, resolves all referenced products in one
// batch per reference kind, checks the purchase limit, and persists the
// order header and line snapshots atomically. The check and the commit run
// under a per-user lock so two concurrent purchases by the same user cannot
// both pass the check before either commits.
func (s *Service) Purchase(ctx context.Context, req PurchaseRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for i, it := range req.Items {
		if it.Ref.IsZero() {
			return nil, &MissingRefError{Index: i}
		}
		if it.Quantity <= 0 {
			return nil, &InvalidQuantityError{Index: i, Ref: it.Ref}
		}
	}

	resolved, err := s.resolveProducts(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	// Line snapshots capture the current price in integer cents; duplicate
	// references to one product stay separate lines but their quantities sum
	// for the limit check.
	lines := make([]Line, len(req.Items))
	var totalCents int64
	requested := make(map[int64]int, len(req.Items))
	limitItems := make([]purchaselimit.Item, 0, len(req.Items))
	for i, it := range req.Items {
		p := resolved[i]
		lines[i] = Line{
			ProductID:      p.ID,
			Slug:           p.Slug,
			Title:          p.Title,
			UnitPriceCents: p.PriceCents,
			Quantity:       it.Quantity,
		}
		totalCents += p.PriceCents * int64(it.Quantity)

		if _, seen := requested[p.ID]; !seen {
			limitItems = append(limitItems, purchaselimit.Item{ProductID: p.ID, Slug: p.Slug})
		}
		requested[p.ID] += it.Quantity
	}
	for i := range limitItems {
		limitItems[i].Quantity = requested[limitItems[i].ProductID]
	}

	addr, err := s.resolveAddress(ctx, req)
	if err != nil {
		return nil, err
	}

	// Critical section: the window read and the commit must observe a
	// consistent ledger for this user. One timestamp anchors both the
	// window check and the committed CreatedAt.
	unlock := s.locks.lock(req.UserID)
	defer unlock()

	at := s.now().UTC()
	if err := s.limiter.Check(ctx, req.UserID, limitItems, at); err != nil {
		return nil, err
	}

	o := &Order{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Lines:           lines,
		TotalCents:      totalCents,
		ShippingAddress: addr,
		Status:          StatusPaid,
		CreatedAt:       at,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// Order returns a single order belonging to userID.
func (s *Service) Order(ctx context.Context, userID int64, orderID string) (*Order, error) {
	return s.orders.Get(ctx, orderID, userID)
}

// Orders returns the user's order history, newest first.
func (s *Service) Orders(ctx context.Context, userID int64) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// resolveProducts batch-fetches every referenced product (one query per
// reference kind) and maps each request item to its product. Any unresolved
// reference fails the whole request.
func (s *Service) resolveProducts(ctx context.Context, items []RequestItem) ([]product.Product, error) {
	var (
		ids   []int64
		slugs []string
	)
	for _, it := range items {
		switch it.Ref.Kind() {
		case RefID:
			ids = append(ids, it.Ref.ID())
		case RefSlug:
			slugs = append(slugs, it.Ref.Slug())
		}
	}

	byID := make(map[int64]product.Product)
	bySlug := make(map[string]product.Product)
	if len(ids) > 0 {
		fetched, err := s.products.GetByIDs(ctx, ids)
		if err != nil {
			return nil, errors.Wrap(err, "get products by id")
		}
		for _, p := range fetched {
			byID[p.ID] = p
		}
	}
	if len(slugs) > 0 {
		fetched, err := s.products.GetBySlugs(ctx, slugs)
		if err != nil {
			return nil, errors.Wrap(err, "get products by slug")
		}
		for _, p := range fetched {
			bySlug[p.Slug] = p
		}
	}

	resolved := make([]product.Product, len(items))
	for i, it := range items {
		var (
			p  product.Product
			ok bool
		)
		switch it.Ref.Kind() {
		case RefID:
			p, ok = byID[it.Ref.ID()]
		case RefSlug:
			p, ok = bySlug[it.Ref.Slug()]
		}
		if !ok {
			return nil, &ProductNotFoundError{Ref: it.Ref}
		}
		resolved[i] = p
	}
	return resolved, nil
}

// resolveAddress picks the shipping address for the order: an explicit
// address wins, otherwise the user's saved address is used. When requested,
// a newly supplied address is saved to the profile before the order commits;
// the save is a side effect and is not transactional with the order.
func (s *Service) resolveAddress(ctx context.Context, req PurchaseRequest) (*user.Address, error) {
	if req.ShippingAddress != nil {
		if req.SaveAddress {
			if err := s.users.SaveAddress(ctx, req.UserID, *req.ShippingAddress); err != nil {
				return nil, errors.Wrap(err, "save address")
			}
		}
		return req.ShippingAddress, nil
	}

	saved, err := s.users.Address(ctx, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "load saved address")
	}
	return saved, nil
}
