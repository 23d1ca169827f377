package postgres

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solient/storefront/internal/domain/order"
	"github.com/solient/storefront/internal/domain/user"
)

func TestCentsDecimalRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 1, 10, 30, 650, 99, 123405, 999999999999} {
		d := centsToDecimal(cents)
		assert.Equal(t, cents, decimalToCents(d), "cents %d", cents)
	}

	// Exact two-decimal rendering, no float drift.
	assert.Equal(t, "0.30", centsToDecimal(30).StringFixed(2))
	assert.Equal(t, "6.50", centsToDecimal(650).StringFixed(2))

	// NUMERIC values come back with varying exponents; cents must not.
	d := decimal.RequireFromString("21.00")
	assert.Equal(t, int64(2100), decimalToCents(d))
	d = decimal.RequireFromString("0.1")
	assert.Equal(t, int64(10), decimalToCents(d))
}

func TestMarshalAddress(t *testing.T) {
	raw, err := marshalAddress(nil)
	require.NoError(t, err)
	assert.Nil(t, raw)

	raw, err = marshalAddress(&user.Address{Line1: "1 Main St", City: "Oslo", Country: "NO"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"line1":"1 Main St","city":"Oslo","postalCode":"","country":"NO"}`, string(raw))
}

func TestUnmarshalAddress(t *testing.T) {
	addr := unmarshalAddress([]byte(`{"line1":"1 Main St","city":"Oslo","postalCode":"0150","country":"NO"}`))
	require.NotNil(t, addr)
	assert.Equal(t, "1 Main St", addr.Line1)
	assert.Equal(t, "0150", addr.PostalCode)

	// A stored value that fails to parse is treated as absent, not an error.
	for _, raw := range [][]byte{nil, {}, []byte(`{`), []byte(`"not an object"`), []byte(`[1,2]`)} {
		assert.Nil(t, unmarshalAddress(raw), "raw %q", raw)
	}
}

func TestOrderGet_NonUUIDID(t *testing.T) {
	// A nil pool proves the lookup short-circuits before any query.
	repo := NewOrderRepository(nil)

	for _, id := range []string{"abc", "", "123", "not-a-uuid-at-all"} {
		_, err := repo.Get(context.Background(), id, 1)
		assert.ErrorIs(t, err, order.ErrNotFound, "id %q", id)
	}
}
