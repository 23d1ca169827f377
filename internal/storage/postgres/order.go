package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/solient/storefront/internal/domain/order"
	"github.com/solient/storefront/internal/domain/purchaselimit"
	"github.com/solient/storefront/internal/domain/user"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, user_id, total, status, shipping_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, line_no, product_id, slug, title, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	getOrderSQL = `SELECT id, user_id, total, status, shipping_address, created_at
		FROM orders WHERE id = $1 AND user_id = $2`

	listOrdersSQL = `SELECT id, user_id, total, status, shipping_address, created_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id`

	listItemsSQL = `SELECT order_id, product_id, slug, title, unit_price, quantity
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, line_no`

	sumQuantitySQL = `SELECT oi.product_id, SUM(oi.quantity)::BIGINT
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.user_id = $1 AND oi.product_id = ANY($2) AND o.created_at >= $3
		GROUP BY oi.product_id`
)

var (
	_ order.Repository     = (*OrderRepository)(nil)
	_ purchaselimit.Ledger = (*OrderRepository)(nil)
)

// OrderRepository is the order ledger backed by PostgreSQL. It serves both
// the write side (order.Repository) and the purchase-limit window reads
// (purchaselimit.Ledger).
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order header and all line snapshots in one
// transaction. Lines are sent as a single batch inside the transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	addrJSON, err := marshalAddress(o.ShippingAddress)
	if err != nil {
		return errors.Wrap(err, "marshal shipping address")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, centsToDecimal(o.TotalCents), string(o.Status), addrJSON, o.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert order %q", o.ID)
	}

	batch := &pgx.Batch{}
	for i, l := range o.Lines {
		batch.Queue(insertOrderItemSQL,
			o.ID, i+1, l.ProductID, l.Slug, l.Title, centsToDecimal(l.UnitPriceCents), l.Quantity,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrapf(err, "insert order items %q", o.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrapf(err, "commit order %q", o.ID)
	}
	return nil
}

// Get returns the order with its lines, scoped to userID. An ID that is not
// a UUID cannot match any row, so it maps to ErrNotFound without touching
// the database rather than failing the UUID cast in Postgres.
func (r *OrderRepository) Get(ctx context.Context, orderID string, userID int64) (*order.Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, order.ErrNotFound
	}

	rows, err := r.pool.Query(ctx, getOrderSQL, orderID, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", orderID)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", orderID)
	}

	if err := r.attachLines(ctx, []*order.Order{&o}); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByUser returns the user's orders, newest first, lines included.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	if len(orders) == 0 {
		return orders, nil
	}

	refs := make([]*order.Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	if err := r.attachLines(ctx, refs); err != nil {
		return nil, err
	}
	return orders, nil
}

// SumQuantityByProduct returns, per requested product, the total quantity
// the user purchased since the given timestamp. Products with no purchases
// in the window are absent from the result. The boundary is inclusive.
func (r *OrderRepository) SumQuantityByProduct(
	ctx context.Context, userID int64, productIDs []int64, since time.Time,
) (map[int64]int, error) {
	rows, err := r.pool.Query(ctx, sumQuantitySQL, userID, productIDs, since)
	if err != nil {
		return nil, errors.Wrap(err, "sum quantities")
	}
	defer rows.Close()

	sums := make(map[int64]int, len(productIDs))
	for rows.Next() {
		var (
			productID int64
			total     int64
		)
		if err := rows.Scan(&productID, &total); err != nil {
			return nil, errors.Wrap(err, "scan quantity sum")
		}
		sums[productID] = int(total)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sum quantities")
	}
	return sums, nil
}

// attachLines loads line snapshots for all given orders in a single query.
func (r *OrderRepository) attachLines(ctx context.Context, orders []*order.Order) error {
	ids := make([]string, len(orders))
	byID := make(map[string]*order.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
	}

	rows, err := r.pool.Query(ctx, listItemsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "list order items")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			l       order.Line
			price   decimal.Decimal
		)
		if err := rows.Scan(&orderID, &l.ProductID, &l.Slug, &l.Title, &price, &l.Quantity); err != nil {
			return errors.Wrap(err, "scan order item")
		}
		l.UnitPriceCents = decimalToCents(price)
		if o, ok := byID[orderID]; ok {
			o.Lines = append(o.Lines, l)
		}
	}
	return errors.Wrap(rows.Err(), "list order items")
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o        order.Order
		total    decimal.Decimal
		status   string
		addrJSON []byte
	)
	if err := row.Scan(&o.ID, &o.UserID, &total, &status, &addrJSON, &o.CreatedAt); err != nil {
		return o, err
	}
	o.TotalCents = decimalToCents(total)
	o.Status = order.Status(status)
	o.ShippingAddress = unmarshalAddress(addrJSON)
	return o, nil
}

func marshalAddress(addr *user.Address) ([]byte, error) {
	if addr == nil {
		return nil, nil
	}
	return json.Marshal(addr)
}

// unmarshalAddress parses a stored address. Malformed JSON yields no
// address rather than an error.
func unmarshalAddress(raw []byte) *user.Address {
	if len(raw) == 0 {
		return nil
	}
	var addr user.Address
	if err := json.Unmarshal(raw, &addr); err != nil {
		return nil
	}
	return &addr
}
