package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopfront/orders-service/internal/domain"
	"github.com/shopfront/orders-service/internal/pricing"
)

// OrderRepository owns the transactional creation of orders and every status
// transition. Each mutating method runs inside a single database transaction:
// either the whole write lands or none of it does.
type OrderRepository struct {
	db      *sql.DB
	pricing *pricing.Calculator
}

func NewOrderRepository(db *sql.DB, calc *pricing.Calculator) *OrderRepository {
	return &OrderRepository{db: db, pricing: calc}
}

// ListOptions filters a user's order listing.
type ListOptions struct {
	Limit  int
	Offset int
	Status domain.Status
}

// AdminListOptions filters the cross-user admin listing. Search matches the
// order number and the customer name/email snapshots.
type AdminListOptions struct {
	Limit  int
	Offset int
	Status domain.Status
	Search string
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (o *ListOptions) normalize() {
	if o.Limit <= 0 {
		o.Limit = defaultPageSize
	}
	if o.Limit > maxPageSize {
		o.Limit = maxPageSize
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

func validateNewOrder(no domain.NewOrder) error {
	if no.UserID == "" {
		return &domain.ValidationError{Field: "user_id", Message: "user id is required"}
	}
	if len(no.Items) == 0 {
		return &domain.ValidationError{Field: "items", Message: "cart cannot be empty"}
	}
	for i, item := range no.Items {
		if item.Quantity <= 0 {
			return &domain.ValidationError{
				Field:   fmt.Sprintf("items[%d].quantity", i),
				Message: "quantity must be a positive integer",
			}
		}
		if item.UnitPrice.IsNegative() {
			return &domain.ValidationError{
				Field:   fmt.Sprintf("items[%d].unit_price", i),
				Message: "unit price cannot be negative",
			}
		}
	}
	return nil
}

// Create persists the order header, every line item, and the initial history
// row (NULL -> pending) atomically, allocating the order number from a
// database sequence so concurrent creations never collide.
func (r *OrderRepository) Create(ctx context.Context, no domain.NewOrder) (*domain.Order, error) {
	if err := validateNewOrder(no); err != nil {
		return nil, err
	}

	totals := r.pricing.Totals(no.Items)

	if no.PaymentMethod == "" {
		no.PaymentMethod = "cash_on_delivery"
	}
	billing := no.BillingAddress
	if no.SameAsShipping {
		billing = no.ShippingAddress
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		return nil, fmt.Errorf("failed to allocate order number: %w", err)
	}
	orderNumber := fmt.Sprintf("ORD-%08d", seq)

	var orderID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			order_number, user_id, status, total_items, subtotal, tax_amount,
			shipping_amount, total_amount, customer_name, customer_email,
			customer_phone, customer_country, shipping_address_line1,
			shipping_address_line2, shipping_city, shipping_state,
			shipping_postal_code, shipping_country, billing_address_line1,
			billing_address_line2, billing_city, billing_state,
			billing_postal_code, billing_country, same_as_shipping,
			payment_method, customer_notes
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
		)
		RETURNING id
	`,
		orderNumber, no.UserID, domain.StatusPending, totals.TotalItems,
		totals.Subtotal, totals.TaxAmount, totals.ShippingAmount, totals.TotalAmount,
		no.Customer.Name, no.Customer.Email, no.Customer.Phone, no.Customer.Country,
		no.ShippingAddress.Line1, no.ShippingAddress.Line2, no.ShippingAddress.City,
		no.ShippingAddress.State, no.ShippingAddress.PostalCode, no.ShippingAddress.Country,
		billing.Line1, billing.Line2, billing.City, billing.State,
		billing.PostalCode, billing.Country, no.SameAsShipping,
		no.PaymentMethod, no.CustomerNotes,
	).Scan(&orderID)
	if err != nil {
		return nil, err
	}

	for _, item := range no.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				order_id, product_id, product_name, product_description,
				product_image, unit_price, quantity, total_price
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, orderID, item.ProductID, item.Name, item.Description, item.Image,
			item.UnitPrice, item.Quantity, pricing.LineTotal(item))
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, old_status, new_status, changed_by, change_reason)
		VALUES ($1, NULL, $2, $3, 'Order created')
	`, orderID, domain.StatusPending, no.UserID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, orderID)
}

// GetByID fetches the header, its line items in insertion order, and the
// full history in chronological order.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	order := &domain.Order{}
	var confirmedAt, shippedAt, deliveredAt sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_number, user_id, status, total_items, subtotal,
		       tax_amount, shipping_amount, total_amount, customer_name,
		       customer_email, customer_phone, customer_country,
		       shipping_address_line1, shipping_address_line2, shipping_city,
		       shipping_state, shipping_postal_code, shipping_country,
		       billing_address_line1, billing_address_line2, billing_city,
		       billing_state, billing_postal_code, billing_country,
		       same_as_shipping, payment_method, customer_notes,
		       created_at, updated_at, confirmed_at, shipped_at, delivered_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &order.OrderNumber, &order.UserID, &order.Status,
		&order.TotalItems, &order.Subtotal, &order.TaxAmount,
		&order.ShippingAmount, &order.TotalAmount, &order.Customer.Name,
		&order.Customer.Email, &order.Customer.Phone, &order.Customer.Country,
		&order.ShippingAddress.Line1, &order.ShippingAddress.Line2,
		&order.ShippingAddress.City, &order.ShippingAddress.State,
		&order.ShippingAddress.PostalCode, &order.ShippingAddress.Country,
		&order.BillingAddress.Line1, &order.BillingAddress.Line2,
		&order.BillingAddress.City, &order.BillingAddress.State,
		&order.BillingAddress.PostalCode, &order.BillingAddress.Country,
		&order.SameAsShipping, &order.PaymentMethod, &order.CustomerNotes,
		&order.CreatedAt, &order.UpdatedAt, &confirmedAt, &shippedAt, &deliveredAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	order.ConfirmedAt = nullableTime(confirmedAt)
	order.ShippedAt = nullableTime(shippedAt)
	order.DeliveredAt = nullableTime(deliveredAt)

	if order.Items, err = r.itemsByOrderID(ctx, id); err != nil {
		return nil, err
	}
	if order.History, err = r.historyByOrderID(ctx, id); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) itemsByOrderID(ctx context.Context, orderID int64) ([]domain.OrderLineItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, product_description,
		       product_image, unit_price, quantity, total_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.OrderLineItem{}
	for rows.Next() {
		var item domain.OrderLineItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.ProductDescription, &item.ProductImage, &item.UnitPrice,
			&item.Quantity, &item.TotalPrice,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *OrderRepository) historyByOrderID(ctx context.Context, orderID int64) ([]domain.StatusHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, old_status, new_status, changed_by, change_reason, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	history := []domain.StatusHistoryEntry{}
	for rows.Next() {
		var entry domain.StatusHistoryEntry
		var oldStatus sql.NullString
		if err := rows.Scan(
			&entry.ID, &entry.OrderID, &oldStatus, &entry.NewStatus,
			&entry.ChangedBy, &entry.Reason, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if oldStatus.Valid {
			s := domain.Status(oldStatus.String)
			entry.OldStatus = &s
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}

// GetByUserID lists a user's orders newest first, optionally filtered by
// exact status.
func (r *OrderRepository) GetByUserID(ctx context.Context, userID string, opts ListOptions) ([]domain.OrderSummary, error) {
	opts.normalize()
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Message: "unknown status"}
	}

	query := `
		SELECT id, order_number, status, total_items, total_amount,
		       created_at, updated_at, shipped_at, delivered_at
		FROM orders
		WHERE user_id = $1
	`
	args := []any{userID}

	if opts.Status != "" {
		args = append(args, opts.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	args = append(args, opts.Limit, opts.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanSummaries(rows, false)
}

// List is the admin listing across all users with status filter and search.
func (r *OrderRepository) List(ctx context.Context, opts AdminListOptions) ([]domain.OrderSummary, error) {
	lo := ListOptions{Limit: opts.Limit, Offset: opts.Offset}
	lo.normalize()
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Message: "unknown status"}
	}

	query := `
		SELECT id, order_number, user_id, customer_name, status, total_items,
		       total_amount, created_at, updated_at, shipped_at, delivered_at
		FROM orders
		WHERE 1=1
	`
	args := []any{}

	if opts.Status != "" {
		args = append(args, opts.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if opts.Search != "" {
		args = append(args, "%"+opts.Search+"%")
		n := len(args)
		query += fmt.Sprintf(" AND (order_number ILIKE $%d OR customer_name ILIKE $%d OR customer_email ILIKE $%d)", n, n, n)
	}

	args = append(args, lo.Limit, lo.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanSummaries(rows, true)
}

func scanSummaries(rows *sql.Rows, admin bool) ([]domain.OrderSummary, error) {
	summaries := []domain.OrderSummary{}
	for rows.Next() {
		var s domain.OrderSummary
		var shippedAt, deliveredAt sql.NullTime
		var err error
		if admin {
			err = rows.Scan(&s.ID, &s.OrderNumber, &s.UserID, &s.CustomerName,
				&s.Status, &s.TotalItems, &s.TotalAmount,
				&s.CreatedAt, &s.UpdatedAt, &shippedAt, &deliveredAt)
		} else {
			err = rows.Scan(&s.ID, &s.OrderNumber, &s.Status, &s.TotalItems,
				&s.TotalAmount, &s.CreatedAt, &s.UpdatedAt, &shippedAt, &deliveredAt)
		}
		if err != nil {
			return nil, err
		}
		s.ShippedAt = nullableTime(shippedAt)
		s.DeliveredAt = nullableTime(deliveredAt)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// UpdateStatus moves an order to newStatus under the transition policy for
// the given actor, stamps the matching transition timestamp when first
// entering confirmed/shipped/delivered, and appends a history row, all in
// one transaction. Returns false with a nil error when the order is already
// in newStatus.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, newStatus domain.Status, actor domain.Actor, reason string) (bool, error) {
	return r.transition(ctx, id, newStatus, actor, reason, nil)
}

// transition is the shared transactional core of UpdateStatus and Cancel.
// The optional guard sees the row-locked current status, so its verdict
// cannot be raced by a concurrent transition.
func (r *OrderRepository) transition(ctx context.Context, id int64, newStatus domain.Status, actor domain.Actor, reason string, guard func(domain.Status) error) (bool, error) {
	if !newStatus.Valid() {
		return false, &domain.ValidationError{Field: "status", Message: "unknown status"}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var current domain.Status
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, domain.ErrOrderNotFound
		}
		return false, err
	}

	if guard != nil {
		if err := guard(current); err != nil {
			return false, err
		}
	}

	if current == newStatus {
		return false, nil
	}

	if err := domain.ValidateTransition(current, newStatus, actor); err != nil {
		return false, err
	}

	query := `UPDATE orders SET status = $1, updated_at = now()`
	switch newStatus {
	case domain.StatusConfirmed:
		query += `, confirmed_at = COALESCE(confirmed_at, now())`
	case domain.StatusShipped:
		query += `, shipped_at = COALESCE(shipped_at, now())`
	case domain.StatusDelivered:
		query += `, delivered_at = COALESCE(delivered_at, now())`
	}
	query += ` WHERE id = $2`

	if _, err := tx.ExecContext(ctx, query, newStatus, id); err != nil {
		return false, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, old_status, new_status, changed_by, change_reason)
		VALUES ($1, $2, $3, $4, $5)
	`, id, current, newStatus, actor.ID, reason)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}

	return true, nil
}

// Cancel moves an order to cancelled when it is still pending or confirmed.
// The eligibility guard applies to every actor, admins included, and is
// evaluated under the same row lock as the transition itself.
func (r *OrderRepository) Cancel(ctx context.Context, id int64, actor domain.Actor, reason string) error {
	if reason == "" {
		reason = "Cancelled by customer"
	}

	_, err := r.transition(ctx, id, domain.StatusCancelled, actor, reason, func(current domain.Status) error {
		if !current.Cancellable() {
			return &domain.InvalidTransitionError{From: current, To: domain.StatusCancelled}
		}
		return nil
	})
	return err
}

// Delete removes a cancelled order together with its line items and history.
// Orders in any other status cannot be deleted.
func (r *OrderRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var current domain.Status
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrOrderNotFound
		}
		return err
	}

	if current != domain.StatusCancelled {
		return &domain.ValidationError{Field: "status", Message: "only cancelled orders can be deleted"}
	}

	// FK cascades take order_items and order_status_history with the header.
	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
		return err
	}

	return tx.Commit()
}

// UserStats aggregates a user's order history for the account page.
func (r *OrderRepository) UserStats(ctx context.Context, userID string) (*domain.UserOrderStats, error) {
	stats := &domain.UserOrderStats{}
	var lastOrderAt sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'delivered'),
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'processing'),
		       COALESCE(SUM(total_amount), 0),
		       COALESCE(AVG(total_amount), 0),
		       MAX(created_at)
		FROM orders
		WHERE user_id = $1
	`, userID).Scan(
		&stats.TotalOrders, &stats.DeliveredOrders, &stats.PendingOrders,
		&stats.ProcessingOrders, &stats.TotalSpent, &stats.AverageOrderValue,
		&lastOrderAt,
	)
	if err != nil {
		return nil, err
	}

	stats.TotalSpent = stats.TotalSpent.Round(2)
	stats.AverageOrderValue = stats.AverageOrderValue.Round(2)
	stats.LastOrderAt = nullableTime(lastOrderAt)
	return stats, nil
}

// DashboardStats aggregates the last 30 days of orders plus the ten most
// recent ones for the admin dashboard.
func (r *OrderRepository) DashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	stats := &domain.DashboardStats{OrdersByStatus: map[domain.Status]int{}}

	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM orders
		WHERE created_at >= now() - INTERVAL '30 days'
		GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	revenue := decimal.Zero
	for rows.Next() {
		var status domain.Status
		var count int
		var sum decimal.Decimal
		if err := rows.Scan(&status, &count, &sum); err != nil {
			return nil, err
		}
		stats.OrdersByStatus[status] = count
		stats.TotalOrders += count
		if status != domain.StatusCancelled {
			revenue = revenue.Add(sum)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats.TotalRevenue = revenue.Round(2)
	if billed := stats.TotalOrders - stats.OrdersByStatus[domain.StatusCancelled]; billed > 0 {
		stats.AverageOrderValue = revenue.Div(decimal.NewFromInt(int64(billed))).Round(2)
	} else {
		stats.AverageOrderValue = decimal.Zero
	}

	recent, err := r.List(ctx, AdminListOptions{Limit: 10})
	if err != nil {
		return nil, err
	}
	stats.RecentOrders = recent

	return stats, nil
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	ts := t.Time
	return &ts
}
