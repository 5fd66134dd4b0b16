package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/shopfront/orders-service/internal/domain"
	"github.com/shopfront/orders-service/internal/identity"
)

// Store is the slice of the repository the HTTP layer needs.
type Store interface {
	Create(ctx context.Context, no domain.NewOrder) (*domain.Order, error)
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	GetByUserID(ctx context.Context, userID string, opts ListOptions) ([]domain.OrderSummary, error)
	List(ctx context.Context, opts AdminListOptions) ([]domain.OrderSummary, error)
	UpdateStatus(ctx context.Context, id int64, newStatus domain.Status, actor domain.Actor, reason string) (bool, error)
	Cancel(ctx context.Context, id int64, actor domain.Actor, reason string) error
	Delete(ctx context.Context, id int64) error
	UserStats(ctx context.Context, userID string) (*domain.UserOrderStats, error)
	DashboardStats(ctx context.Context) (*domain.DashboardStats, error)
}

type Handler struct {
	store  Store
	logger *slog.Logger

	ordersCreated     metric.Int64Counter
	statusTransitions metric.Int64Counter
}

func NewHandler(store Store, logger *slog.Logger) (*Handler, error) {
	meter := otel.Meter("github.com/shopfront/orders-service/internal/orders")

	ordersCreated, err := meter.Int64Counter("orders_created_total",
		metric.WithDescription("Orders created"))
	if err != nil {
		return nil, err
	}
	statusTransitions, err := meter.Int64Counter("order_status_transitions_total",
		metric.WithDescription("Successful order status transitions"))
	if err != nil {
		return nil, err
	}

	return &Handler{
		store:             store,
		logger:            logger,
		ordersCreated:     ordersCreated,
		statusTransitions: statusTransitions,
	}, nil
}

type createOrderRequest struct {
	Items           []domain.CartItem   `json:"items"`
	Customer        domain.CustomerInfo `json:"customer"`
	ShippingAddress domain.Address      `json:"shipping_address"`
	BillingAddress  domain.Address      `json:"billing_address"`
	SameAsShipping  bool                `json:"same_as_shipping"`
	PaymentMethod   string              `json:"payment_method"`
	CustomerNotes   string              `json:"customer_notes"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.ActorFromContext(r.Context())

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.store.Create(r.Context(), domain.NewOrder{
		UserID:          actor.ID,
		Items:           req.Items,
		Customer:        req.Customer,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		SameAsShipping:  req.SameAsShipping,
		PaymentMethod:   req.PaymentMethod,
		CustomerNotes:   req.CustomerNotes,
	})
	if err != nil {
		h.writeDomainError(w, r, err, "failed to create order")
		return
	}

	h.ordersCreated.Add(r.Context(), 1)
	h.logger.Info("order created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"user_id", order.UserID,
		"total_amount", order.TotalAmount,
		"request_id", identity.RequestIDFromContext(r.Context()),
	)
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.ActorFromContext(r.Context())

	opts := ListOptions{
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
		Status: domain.Status(r.URL.Query().Get("status")),
	}

	summaries, err := h.store.GetByUserID(r.Context(), actor.ID, opts)
	if err != nil {
		h.writeDomainError(w, r, err, "failed to list orders")
		return
	}

	h.writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.ActorFromContext(r.Context())

	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	order, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err, "failed to get order")
		return
	}

	// Customers only see their own orders; a foreign id reads as absent.
	if !actor.Admin && order.UserID != actor.ID {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.ActorFromContext(r.Context())

	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	order, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err, "failed to load order")
		return
	}
	if !actor.Admin && order.UserID != actor.ID {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	if err := h.store.Cancel(r.Context(), id, actor, req.Reason); err != nil {
		h.writeDomainError(w, r, err, "failed to cancel order")
		return
	}

	h.statusTransitions.Add(r.Context(), 1, metric.WithAttributes(
		attribute.String("from", string(order.Status)),
		attribute.String("to", string(domain.StatusCancelled)),
	))
	h.logger.Info("order cancelled",
		"order_id", id,
		"user_id", actor.ID,
		"request_id", identity.RequestIDFromContext(r.Context()),
	)
	h.writeJSON(w, http.StatusOK, map[string]any{"changed": true, "status": domain.StatusCancelled})
}

func (h *Handler) HandleUserStats(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.ActorFromContext(r.Context())

	stats, err := h.store.UserStats(r.Context(), actor.ID)
	if err != nil {
		h.writeDomainError(w, r, err, "failed to compute user stats")
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) HandleAdminList(w http.ResponseWriter, r *http.Request) {
	opts := AdminListOptions{
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
		Status: domain.Status(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("search"),
	}

	summaries, err := h.store.List(r.Context(), opts)
	if err != nil {
		h.writeDomainError(w, r, err, "failed to list orders")
		return
	}

	h.writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) HandleAdminGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	order, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err, "failed to get order")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status domain.Status `json:"status"`
	Reason string        `json:"reason"`
}

func (h *Handler) HandleAdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.ActorFromContext(r.Context())

	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	changed, err := h.store.UpdateStatus(r.Context(), id, req.Status, actor, req.Reason)
	if err != nil {
		h.writeDomainError(w, r, err, "failed to update order status")
		return
	}

	if changed {
		h.statusTransitions.Add(r.Context(), 1, metric.WithAttributes(
			attribute.String("to", string(req.Status)),
		))
		h.logger.Info("order status updated",
			"order_id", id,
			"status", req.Status,
			"changed_by", actor.ID,
			"request_id", identity.RequestIDFromContext(r.Context()),
		)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"changed": changed, "status": req.Status})
}

func (h *Handler) HandleAdminDelete(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.ActorFromContext(r.Context())

	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.writeDomainError(w, r, err, "failed to delete order")
		return
	}

	h.logger.Info("order deleted",
		"order_id", id,
		"deleted_by", actor.ID,
		"request_id", identity.RequestIDFromContext(r.Context()),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.DashboardStats(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err, "failed to compute dashboard stats")
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		h.writeError(w, http.StatusNotFound, "order not found")
	case domain.IsValidation(err):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case domain.IsInvalidTransition(err):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error(logMsg,
			"error", err,
			"path", r.URL.Path,
			"request_id", identity.RequestIDFromContext(r.Context()),
		)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
