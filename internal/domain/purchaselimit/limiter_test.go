package purchaselimit

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockLedger struct {
	sums map[int64]int
	err  error

	calls     int
	lastUser  int64
	lastIDs   []int64
	lastSince time.Time
}

func (m *mockLedger) SumQuantityByProduct(
	_ context.Context, userID int64, productIDs []int64, since time.Time,
) (map[int64]int, error) {
	m.calls++
	m.lastUser = userID
	m.lastIDs = productIDs
	m.lastSince = since
	return m.sums, m.err
}

var checkAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// --- Tests ---

func TestCheck_EmptyItems(t *testing.T) {
	ledger := &mockLedger{}
	e := New(Config{PerProduct: 1, Window: time.Minute}, ledger)

	err := e.Check(context.Background(), 7, nil, checkAt)
	require.NoError(t, err)
	assert.Zero(t, ledger.calls, "empty requests must not query the ledger")
}

func TestCheck_UnderLimit(t *testing.T) {
	ledger := &mockLedger{sums: map[int64]int{1: 2}}
	e := New(Config{PerProduct: 5, Window: time.Minute}, ledger)

	err := e.Check(context.Background(), 7, []Item{
		{ProductID: 1, Slug: "widget", Quantity: 3},
		{ProductID: 2, Slug: "gadget", Quantity: 5},
	}, checkAt)
	require.NoError(t, err)
}

func TestCheck_Exceeded(t *testing.T) {
	ledger := &mockLedger{sums: map[int64]int{1: 1}}
	e := New(Config{PerProduct: 1, Window: time.Minute}, ledger)

	err := e.Check(context.Background(), 7, []Item{
		{ProductID: 1, Slug: "widget", Quantity: 1},
	}, checkAt)

	var exceeded *LimitExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 1, exceeded.Limit)
	assert.Equal(t, time.Minute, exceeded.Window)
	assert.Equal(t, int64(1), exceeded.ProductID)
	assert.Equal(t, "widget", exceeded.Slug)
	assert.Equal(t, 1, exceeded.Requested)
	assert.Equal(t, 1, exceeded.Prior)
}

func TestCheck_RequestAloneOverLimit(t *testing.T) {
	// No prior purchases, but the aggregated request itself exceeds the cap.
	ledger := &mockLedger{}
	e := New(Config{PerProduct: 1, Window: time.Minute}, ledger)

	err := e.Check(context.Background(), 7, []Item{
		{ProductID: 9, Slug: "widget", Quantity: 2},
	}, checkAt)

	var exceeded *LimitExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 2, exceeded.Requested)
	assert.Equal(t, 0, exceeded.Prior)
}

func TestCheck_WindowBounds(t *testing.T) {
	ledger := &mockLedger{}
	e := New(Config{PerProduct: 3, Window: 60 * time.Second}, ledger)

	err := e.Check(context.Background(), 42, []Item{
		{ProductID: 5, Quantity: 1},
		{ProductID: 6, Quantity: 1},
	}, checkAt)
	require.NoError(t, err)

	assert.Equal(t, 1, ledger.calls, "one batched query for all products")
	assert.Equal(t, int64(42), ledger.lastUser)
	assert.ElementsMatch(t, []int64{5, 6}, ledger.lastIDs)
	assert.Equal(t, checkAt.Add(-60*time.Second), ledger.lastSince)
}

func TestCheck_FirstOffenderReported(t *testing.T) {
	ledger := &mockLedger{sums: map[int64]int{2: 1, 3: 1}}
	e := New(Config{PerProduct: 1, Window: time.Minute}, ledger)

	err := e.Check(context.Background(), 7, []Item{
		{ProductID: 1, Quantity: 1},
		{ProductID: 2, Slug: "second", Quantity: 1},
		{ProductID: 3, Slug: "third", Quantity: 1},
	}, checkAt)

	var exceeded *LimitExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, int64(2), exceeded.ProductID)
	assert.Equal(t, "second", exceeded.Slug)
}

func TestCheck_LedgerError(t *testing.T) {
	ledger := &mockLedger{err: errors.New("db down")}
	e := New(Config{PerProduct: 1, Window: time.Minute}, ledger)

	err := e.Check(context.Background(), 7, []Item{{ProductID: 1, Quantity: 1}}, checkAt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum recent purchases")
}
