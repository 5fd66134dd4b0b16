package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopfront/orders-service/internal/domain"
)

func defaultConfig() Config {
	return Config{
		TaxRate:               decimal.RequireFromString("0.10"),
		FreeShippingThreshold: decimal.RequireFromString("100"),
		FlatShippingFee:       decimal.RequireFromString("15"),
	}
}

func item(price string, qty int) domain.CartItem {
	return domain.CartItem{
		ProductID: 1,
		Name:      "test product",
		UnitPrice: decimal.RequireFromString(price),
		Quantity:  qty,
	}
}

func TestTotals_FreeShippingOverThreshold(t *testing.T) {
	calc := NewCalculator(defaultConfig())

	totals := calc.Totals([]domain.CartItem{item("30.00", 2), item("55.00", 1)})

	assert.Equal(t, 3, totals.TotalItems)
	assert.True(t, totals.Subtotal.Equal(decimal.RequireFromString("115.00")), "subtotal %s", totals.Subtotal)
	assert.True(t, totals.TaxAmount.Equal(decimal.RequireFromString("11.50")), "tax %s", totals.TaxAmount)
	assert.True(t, totals.ShippingAmount.IsZero(), "shipping %s", totals.ShippingAmount)
	assert.True(t, totals.TotalAmount.Equal(decimal.RequireFromString("126.50")), "total %s", totals.TotalAmount)
}

func TestTotals_FlatShippingUnderThreshold(t *testing.T) {
	calc := NewCalculator(defaultConfig())

	totals := calc.Totals([]domain.CartItem{item("10.00", 1)})

	assert.Equal(t, 1, totals.TotalItems)
	assert.True(t, totals.Subtotal.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, totals.TaxAmount.Equal(decimal.RequireFromString("1.00")))
	assert.True(t, totals.ShippingAmount.Equal(decimal.RequireFromString("15")))
	assert.True(t, totals.TotalAmount.Equal(decimal.RequireFromString("26.00")))
}

func TestTotals_ThresholdIsExclusive(t *testing.T) {
	calc := NewCalculator(defaultConfig())

	// Exactly at the threshold still pays shipping; only strictly greater
	// subtotals ship free.
	at := calc.Totals([]domain.CartItem{item("100.00", 1)})
	assert.True(t, at.ShippingAmount.Equal(decimal.RequireFromString("15")))

	over := calc.Totals([]domain.CartItem{item("100.01", 1)})
	assert.True(t, over.ShippingAmount.IsZero())
}

func TestTotals_InvariantHoldsExactly(t *testing.T) {
	calc := NewCalculator(defaultConfig())

	carts := [][]domain.CartItem{
		{item("0.01", 1)},
		{item("19.99", 3), item("0.05", 7)},
		{item("33.33", 3)},
		{item("123.45", 2), item("0.99", 13)},
	}
	for _, cart := range carts {
		totals := calc.Totals(cart)
		sum := totals.Subtotal.Add(totals.TaxAmount).Add(totals.ShippingAmount)
		require.True(t, totals.TotalAmount.Equal(sum),
			"total %s != subtotal %s + tax %s + shipping %s",
			totals.TotalAmount, totals.Subtotal, totals.TaxAmount, totals.ShippingAmount)
	}
}

func TestTotals_EmptyCart(t *testing.T) {
	calc := NewCalculator(defaultConfig())

	totals := calc.Totals(nil)
	assert.Equal(t, 0, totals.TotalItems)
	assert.True(t, totals.Subtotal.IsZero())
}

func TestLineTotal(t *testing.T) {
	got := LineTotal(item("2.50", 4))
	assert.True(t, got.Equal(decimal.RequireFromString("10.00")))
}
