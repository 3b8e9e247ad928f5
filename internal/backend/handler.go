// Package backend is a reference implementation of the order and payment REST contract on
// PostgreSQL. It is the authority for status transitions and announces every change on Kafka.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/tableorder/internal/domain"
)

// Store is the persistence the handler needs. *Repository implements it.
type Store interface {
	CreateOrder(ctx context.Context, req NewOrder) (*domain.Order, error)
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, domain.OrderStatus, error)
	CreatePayment(ctx context.Context, orderID int64, method domain.PaymentMethod, token string) (*domain.Payment, string, error)
	ListPayments(ctx context.Context) ([]domain.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status domain.PaymentStatus) (*domain.Payment, error)
}

// Publisher announces status changes. *messaging.Producer implements it.
type Publisher interface {
	OrderStatusChanged(ctx context.Context, event domain.OrderStatusChangedEvent) error
	PaymentStatusChanged(ctx context.Context, event domain.PaymentStatusChangedEvent) error
}

type Handler struct {
	store       Store
	publisher   Publisher
	redirectURL string
	logger      *slog.Logger
	newToken    func() string
}

// NewHandler builds the handler. publisher may be nil; redirectURL may be empty, in which case
// digital payments carry only a token.
func NewHandler(store Store, publisher Publisher, redirectURL string, logger *slog.Logger) *Handler {
	return &Handler{
		store:       store,
		publisher:   publisher,
		redirectURL: redirectURL,
		logger:      logger,
		newToken:    uuid.NewString,
	}
}

func (h *Handler) Register(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	if wrap == nil {
		wrap = func(f http.HandlerFunc) http.HandlerFunc { return f }
	}
	mux.HandleFunc("POST /orders/guest", wrap(h.HandleCreateGuestOrder))
	mux.HandleFunc("GET /orders", wrap(h.HandleListOrders))
	mux.HandleFunc("GET /orders/{id}", wrap(h.HandleGetOrder))
	mux.HandleFunc("PUT /orders/{id}/status", wrap(h.HandleUpdateOrderStatus))
	mux.HandleFunc("POST /payments/guest/manual", wrap(h.HandleManualPayment))
	mux.HandleFunc("POST /payments/guest/pay", wrap(h.HandleDigitalPayment))
	mux.HandleFunc("GET /payments", wrap(h.HandleListPayments))
	mux.HandleFunc("PUT /payments/{id}/status", wrap(h.HandleUpdatePaymentStatus))
}

// Wire shapes use snake_case, the way the production backend answers.
type orderLineJSON struct {
	MenuID    int64  `json:"menu_id"`
	Name      string `json:"product_name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type orderJSON struct {
	ID            int64           `json:"id"`
	TableNumber   int             `json:"table_number"`
	CustomerName  string          `json:"customer_name"`
	Status        string          `json:"status"`
	TotalAmount   int64           `json:"total_amount"`
	PaymentMethod string          `json:"payment_method"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []orderLineJSON `json:"items"`
}

func toOrderJSON(o domain.Order) orderJSON {
	out := orderJSON{
		ID:            o.ID,
		TableNumber:   o.TableNumber,
		CustomerName:  o.CustomerName,
		Status:        string(o.Status),
		TotalAmount:   o.TotalAmount,
		PaymentMethod: string(o.PaymentMethod),
		CreatedAt:     o.CreatedAt,
		Items:         make([]orderLineJSON, 0, len(o.Items)),
	}
	for _, l := range o.Items {
		out.Items = append(out.Items, orderLineJSON{MenuID: l.MenuItemID, Name: l.Name, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return out
}

type paymentJSON struct {
	ID            int64     `json:"id"`
	OrderID       int64     `json:"order_id"`
	Amount        int64     `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func toPaymentJSON(p domain.Payment) paymentJSON {
	return paymentJSON{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Amount:        p.Amount,
		PaymentMethod: string(p.PaymentMethod),
		Status:        string(p.Status),
		CreatedAt:     p.CreatedAt,
	}
}

type guestOrderRequest struct {
	TableNumber  int    `json:"tableNumber"`
	CustomerName string `json:"customerName"`
	Items        []struct {
		MenuID   int64 `json:"menuId"`
		Quantity int   `json:"quantity"`
	} `json:"items"`
}

func (h *Handler) HandleCreateGuestOrder(w http.ResponseWriter, r *http.Request) {
	var req guestOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.CustomerName)
	switch {
	case name == "":
		h.fail(w, http.StatusBadRequest, "customer name is required")
		return
	case req.TableNumber < 1:
		h.fail(w, http.StatusBadRequest, "table number must be a positive integer")
		return
	case len(req.Items) == 0:
		h.fail(w, http.StatusBadRequest, "items must not be empty")
		return
	}

	lines := make([]domain.CartLine, 0, len(req.Items))
	for _, it := range req.Items {
		if it.MenuID < 1 || it.Quantity < 1 {
			h.fail(w, http.StatusBadRequest, "each item needs a menu id and a quantity of at least 1")
			return
		}
		lines = append(lines, domain.CartLine{MenuItemID: it.MenuID, Quantity: it.Quantity})
	}

	order, err := h.store.CreateOrder(r.Context(), NewOrder{
		TableNumber:    req.TableNumber,
		CustomerName:   name,
		Items:          lines,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	var menuErr *MenuItemError
	if errors.As(err, &menuErr) {
		h.fail(w, http.StatusUnprocessableEntity, menuErr.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to create order", "error", err)
		h.fail(w, http.StatusInternalServerError, "failed to create order")
		return
	}

	h.logger.Info("order created", "order_id", order.ID, "table_number", order.TableNumber, "total_amount", order.TotalAmount)
	h.ok(w, http.StatusCreated, "order created", toOrderJSON(*order))
}

func (h *Handler) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListOrders(r.Context())
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.fail(w, http.StatusInternalServerError, "internal server error")
		return
	}

	items := make([]orderJSON, 0, len(orders))
	for _, o := range orders {
		items = append(items, toOrderJSON(o))
	}
	h.ok(w, http.StatusOK, "", map[string]any{"items": items})
}

func (h *Handler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	order, err := h.store.GetOrder(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		h.fail(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "order_id", id)
		h.fail(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.ok(w, http.StatusOK, "", toOrderJSON(*order))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) HandleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status, ok := domain.ParseOrderStatus(req.Status)
	if !ok {
		h.fail(w, http.StatusBadRequest, "unknown order status "+req.Status)
		return
	}

	order, from, err := h.store.UpdateOrderStatus(r.Context(), id, status)
	switch {
	case errors.Is(err, ErrNotFound):
		h.fail(w, http.StatusNotFound, "order not found")
		return
	case errors.Is(err, domain.ErrInvalidTransition):
		h.logger.Info("order transition rejected", "order_id", id, "from", from, "to", status)
		h.fail(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to update order status", "error", err, "order_id", id)
		h.fail(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if h.publisher != nil {
		event := domain.OrderStatusChangedEvent{
			OrderID:   order.ID,
			From:      from,
			To:        order.Status,
			Timestamp: time.Now().UTC(),
		}
		if err := h.publisher.OrderStatusChanged(r.Context(), event); err != nil {
			h.logger.Error("failed to publish order status event", "error", err, "order_id", order.ID)
		}
	}

	h.logger.Info("order status updated", "order_id", order.ID, "from", from, "to", order.Status)
	h.ok(w, http.StatusOK, "order status updated", toOrderJSON(*order))
}

type paymentRequest struct {
	OrderID  int64 `json:"orderId"`
	Customer struct {
		FirstName string `json:"first_name"`
	} `json:"customer"`
}

func (h *Handler) decodePaymentRequest(w http.ResponseWriter, r *http.Request) (paymentRequest, bool) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.OrderID < 1 {
		h.fail(w, http.StatusBadRequest, "orderId is required")
		return req, false
	}
	return req, true
}

func (h *Handler) HandleManualPayment(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodePaymentRequest(w, r)
	if !ok {
		return
	}

	p, _, err := h.store.CreatePayment(r.Context(), req.OrderID, domain.PaymentMethodManual, "")
	if !h.paymentCreated(w, err, req.OrderID) {
		return
	}

	h.logger.Info("manual payment recorded", "order_id", req.OrderID, "payment_id", p.ID)
	h.ok(w, http.StatusCreated, "manual payment recorded", map[string]any{"payment": toPaymentJSON(*p)})
}

func (h *Handler) HandleDigitalPayment(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodePaymentRequest(w, r)
	if !ok {
		return
	}

	p, token, err := h.store.CreatePayment(r.Context(), req.OrderID, domain.PaymentMethodQRIS, h.newToken())
	if !h.paymentCreated(w, err, req.OrderID) {
		return
	}

	handoff := map[string]string{"token": token}
	if h.redirectURL != "" && token != "" {
		handoff["redirect_url"] = h.redirectURL + "/" + token
	}

	h.logger.Info("digital payment initialized", "order_id", req.OrderID, "payment_id", p.ID, "customer", req.Customer.FirstName)
	h.ok(w, http.StatusCreated, "payment initialized", map[string]any{
		"midtrans": handoff,
		"payment":  toPaymentJSON(*p),
	})
}

func (h *Handler) paymentCreated(w http.ResponseWriter, err error, orderID int64) bool {
	if errors.Is(err, ErrNotFound) {
		h.fail(w, http.StatusNotFound, "order not found")
		return false
	}
	if err != nil {
		h.logger.Error("failed to create payment", "error", err, "order_id", orderID)
		h.fail(w, http.StatusInternalServerError, "failed to create payment")
		return false
	}
	return true
}

func (h *Handler) HandleListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.store.ListPayments(r.Context())
	if err != nil {
		h.logger.Error("failed to list payments", "error", err)
		h.fail(w, http.StatusInternalServerError, "internal server error")
		return
	}

	items := make([]paymentJSON, 0, len(payments))
	for _, p := range payments {
		items = append(items, toPaymentJSON(p))
	}
	h.ok(w, http.StatusOK, "", map[string]any{"payments": items})
}

func (h *Handler) HandleUpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status, ok := domain.ParsePaymentStatus(req.Status)
	if !ok {
		h.fail(w, http.StatusBadRequest, "unknown payment status "+req.Status)
		return
	}

	p, err := h.store.UpdatePaymentStatus(r.Context(), id, status)
	switch {
	case errors.Is(err, ErrNotFound):
		h.fail(w, http.StatusNotFound, "payment not found")
		return
	case errors.Is(err, domain.ErrInvalidTransition):
		h.fail(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to update payment status", "error", err, "payment_id", id)
		h.fail(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if h.publisher != nil {
		event := domain.PaymentStatusChangedEvent{
			PaymentID: p.ID,
			OrderID:   p.OrderID,
			Status:    p.Status,
			Timestamp: time.Now().UTC(),
		}
		if err := h.publisher.PaymentStatusChanged(r.Context(), event); err != nil {
			h.logger.Error("failed to publish payment status event", "error", err, "payment_id", p.ID)
		}
	}

	h.logger.Info("payment status updated", "payment_id", p.ID, "order_id", p.OrderID, "status", p.Status)
	h.ok(w, http.StatusOK, "payment status updated", toPaymentJSON(*p))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		h.fail(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (h *Handler) ok(w http.ResponseWriter, status int, message string, data any) {
	h.writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func (h *Handler) fail(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, envelope{Success: false, Message: message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
