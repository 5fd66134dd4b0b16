// Package pricing computes order totals from a cart snapshot. Rates and
// thresholds are injected so they live in configuration rather than scattered
// literals.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/shopfront/orders-service/internal/domain"
)

// Config holds the pricing knobs applied at checkout.
type Config struct {
	// TaxRate is applied to the subtotal, e.g. 0.10 for 10%.
	TaxRate decimal.Decimal
	// FreeShippingThreshold waives shipping when subtotal exceeds it.
	FreeShippingThreshold decimal.Decimal
	// FlatShippingFee is charged below the threshold.
	FlatShippingFee decimal.Decimal
}

type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Totals computes item count, subtotal, tax, shipping, and the grand total
// for the given cart lines. Amounts are rounded to cents; the result always
// satisfies TotalAmount = Subtotal + TaxAmount + ShippingAmount exactly.
func (c *Calculator) Totals(items []domain.CartItem) domain.Totals {
	subtotal := decimal.Zero
	totalItems := 0
	for _, item := range items {
		line := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
		totalItems += item.Quantity
	}
	subtotal = subtotal.Round(2)

	tax := subtotal.Mul(c.cfg.TaxRate).Round(2)

	shipping := c.cfg.FlatShippingFee
	if subtotal.GreaterThan(c.cfg.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	return domain.Totals{
		TotalItems:     totalItems,
		Subtotal:       subtotal,
		TaxAmount:      tax,
		ShippingAmount: shipping,
		TotalAmount:    subtotal.Add(tax).Add(shipping),
	}
}

// LineTotal is the price of one cart line, rounded to cents.
func LineTotal(item domain.CartItem) decimal.Decimal {
	return item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
}
