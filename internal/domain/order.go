package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is a snapshot of one cart line handed over by the cart subsystem
// at checkout time. It is trusted as-is and never re-validated against the
// live catalog.
type CartItem struct {
	ProductID   int64           `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Image       string          `json:"image,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

// CustomerInfo is the contact snapshot copied into the order header. It
// reflects the customer at order time, not their current profile.
type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Country string `json:"country,omitempty"`
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
}

// NewOrder carries everything the checkout flow supplies to create an order.
type NewOrder struct {
	UserID          string
	Items           []CartItem
	Customer        CustomerInfo
	ShippingAddress Address
	BillingAddress  Address
	SameAsShipping  bool
	PaymentMethod   string
	CustomerNotes   string
}

// Totals holds the amounts computed from a cart snapshot. The invariant
// TotalAmount == Subtotal + TaxAmount + ShippingAmount holds exactly.
type Totals struct {
	TotalItems     int
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingAmount decimal.Decimal
	TotalAmount    decimal.Decimal
}

type Order struct {
	ID             int64           `json:"id"`
	OrderNumber    string          `json:"order_number"`
	UserID         string          `json:"user_id"`
	Status         Status          `json:"status"`
	TotalItems     int             `json:"total_items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	ShippingAmount decimal.Decimal `json:"shipping_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`

	Customer        CustomerInfo `json:"customer"`
	ShippingAddress Address      `json:"shipping_address"`
	BillingAddress  Address      `json:"billing_address"`
	SameAsShipping  bool         `json:"same_as_shipping"`

	PaymentMethod string `json:"payment_method"`
	CustomerNotes string `json:"customer_notes,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`

	Items   []OrderLineItem      `json:"items"`
	History []StatusHistoryEntry `json:"status_history"`
}

// OrderLineItem is one product-quantity entry within an order. The product
// columns are copies taken at purchase time so later catalog edits cannot
// rewrite order history. Immutable once the order exists.
type OrderLineItem struct {
	ID                 int64           `json:"id"`
	OrderID            int64           `json:"order_id"`
	ProductID          int64           `json:"product_id"`
	ProductName        string          `json:"product_name"`
	ProductDescription string          `json:"product_description,omitempty"`
	ProductImage       string          `json:"product_image,omitempty"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	Quantity           int             `json:"quantity"`
	TotalPrice         decimal.Decimal `json:"total_price"`
}

// StatusHistoryEntry is one row of the append-only audit trail. OldStatus is
// nil only for the entry recording order creation.
type StatusHistoryEntry struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	OldStatus *Status   `json:"old_status"`
	NewStatus Status    `json:"new_status"`
	ChangedBy string    `json:"changed_by"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderSummary is the trimmed listing row returned by user and admin
// listings.
type OrderSummary struct {
	ID           int64           `json:"id"`
	OrderNumber  string          `json:"order_number"`
	UserID       string          `json:"user_id,omitempty"`
	CustomerName string          `json:"customer_name,omitempty"`
	Status       Status          `json:"status"`
	TotalItems   int             `json:"total_items"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	ShippedAt    *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt  *time.Time      `json:"delivered_at,omitempty"`
}

// UserOrderStats aggregates one user's order history.
type UserOrderStats struct {
	TotalOrders       int             `json:"total_orders"`
	DeliveredOrders   int             `json:"delivered_orders"`
	PendingOrders     int             `json:"pending_orders"`
	ProcessingOrders  int             `json:"processing_orders"`
	TotalSpent        decimal.Decimal `json:"total_spent"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	LastOrderAt       *time.Time      `json:"last_order_at,omitempty"`
}

// DashboardStats aggregates recent activity for the admin dashboard.
type DashboardStats struct {
	TotalOrders       int             `json:"total_orders"`
	OrdersByStatus    map[Status]int  `json:"orders_by_status"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	RecentOrders      []OrderSummary  `json:"recent_orders"`
}
