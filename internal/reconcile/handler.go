package reconcile

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/joao-fontenele/tableorder/internal/backendapi"
	"github.com/joao-fontenele/tableorder/internal/domain"
)

// Handler exposes the staff console over JSON. Every read is served from the local snapshot.
type Handler struct {
	loop     *Loop
	console  *Console
	location *time.Location
	logger   *slog.Logger
}

func NewHandler(loop *Loop, console *Console, location *time.Location, logger *slog.Logger) *Handler {
	if location == nil {
		location = time.Local
	}
	return &Handler{
		loop:     loop,
		console:  console,
		location: location,
		logger:   logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /orders", h.HandleListOrders)
	mux.HandleFunc("GET /orders/pending", h.HandlePendingOrders)
	mux.HandleFunc("GET /orders/{id}", h.HandleGetOrder)
	mux.HandleFunc("POST /orders/{id}/accept", h.HandleAccept)
	mux.HandleFunc("PUT /orders/{id}/status", h.HandleAdvance)
	mux.HandleFunc("POST /orders/{id}/receipt", h.HandleReprint)
	mux.HandleFunc("GET /payments", h.HandleListPayments)
	mux.HandleFunc("GET /payments/queue", h.HandleCashierQueue)
	mux.HandleFunc("POST /payments/{id}/confirm", h.HandleConfirmPayment)
	mux.HandleFunc("GET /stats", h.HandleStats)
	mux.HandleFunc("POST /refresh", h.HandleRefresh)
}

type listResponse struct {
	Items     any       `json:"items"`
	FetchedAt time.Time `json:"fetchedAt"`
	Stale     bool      `json:"stale"`
	Error     string    `json:"error,omitempty"`
}

func (h *Handler) list(items any, snap Snapshot) listResponse {
	resp := listResponse{Items: items, FetchedAt: snap.FetchedAt}
	if err := h.loop.LastError(); err != nil {
		resp.Stale = true
		resp.Error = err.Error()
	}
	return resp
}

func (h *Handler) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := Filter{Query: q.Get("q"), Location: h.location}
	if s := q.Get("status"); s != "" {
		status, ok := domain.ParseOrderStatus(s)
		if !ok {
			h.writeError(w, http.StatusBadRequest, "unknown status "+s)
			return
		}
		f.Status = status
	}
	if d := q.Get("date"); d != "" {
		date, err := time.ParseInLocation(time.DateOnly, d, h.location)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		f.Date = date
	}

	snap := h.loop.Snapshot()
	h.writeJSON(w, http.StatusOK, h.list(snap.Filter(f), snap))
}

func (h *Handler) HandlePendingOrders(w http.ResponseWriter, r *http.Request) {
	snap := h.loop.Snapshot()
	h.writeJSON(w, http.StatusOK, h.list(snap.PendingOrders(), snap))
}

type orderView struct {
	domain.Order
	Payment      *domain.Payment      `json:"payment,omitempty"`
	NextStatuses []domain.OrderStatus `json:"nextStatuses"`
	AcceptPath   string               `json:"acceptPath,omitempty"`
}

func (h *Handler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	snap := h.loop.Snapshot()
	order, found := snap.Order(id)
	if !found {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	view := orderView{
		Order:        order,
		Payment:      snap.PaymentFor(id),
		NextStatuses: order.Status.NextStatuses(),
	}
	if order.Status == domain.OrderStatusPending {
		view.AcceptPath = domain.DerivedAcceptancePath(order, view.Payment).String()
	}
	h.writeJSON(w, http.StatusOK, view)
}

type acceptRequest struct {
	Choice string `json:"choice"`
}

func parseReceiptChoice(s string) (domain.ReceiptChoice, bool) {
	switch s {
	case "":
		return domain.ReceiptChoiceNone, true
	case "print":
		return domain.AcceptAndPrint, true
	case "accept_only":
		return domain.AcceptOnly, true
	}
	return domain.ReceiptChoiceNone, false
}

func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req acceptRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	choice, ok := parseReceiptChoice(req.Choice)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "choice must be print or accept_only")
		return
	}

	res, err := h.console.Accept(r.Context(), id, choice)
	if errors.Is(err, ErrChoiceRequired) {
		h.writeJSON(w, http.StatusConflict, map[string]any{
			"error":   err.Error(),
			"choices": []string{"print", "accept_only"},
		})
		return
	}
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

type advanceRequest struct {
	Status string `json:"status"`
}

func (h *Handler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target, ok := domain.ParseOrderStatus(req.Status)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "unknown status "+req.Status)
		return
	}

	order, err := h.console.Advance(r.Context(), id, target)
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleReprint(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.console.Reprint(r.Context(), id); err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "printed"})
}

func (h *Handler) HandleListPayments(w http.ResponseWriter, r *http.Request) {
	snap := h.loop.Snapshot()
	h.writeJSON(w, http.StatusOK, h.list(snap.Payments, snap))
}

func (h *Handler) HandleCashierQueue(w http.ResponseWriter, r *http.Request) {
	snap := h.loop.Snapshot()
	h.writeJSON(w, http.StatusOK, h.list(snap.CashierQueue(), snap))
}

func (h *Handler) HandleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.console.ConfirmPayment(r.Context(), id)
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.loop.Snapshot().Stats(time.Now(), h.location))
}

func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.loop.Refresh(r.Context()); err != nil {
		h.logger.Error("manual refresh failed", "error", err)
		h.writeError(w, http.StatusBadGateway, "refresh failed")
		return
	}
	h.writeJSON(w, http.StatusOK, h.loop.Snapshot().Stats(time.Now(), h.location))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		h.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		msg := err.Error()
		if server := backendapi.ServerMessage(err); server != "" {
			msg = server
		}
		h.writeError(w, http.StatusConflict, msg)
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrPaymentNotFound), errors.Is(err, backendapi.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		msg := backendapi.ServerMessage(err)
		if msg == "" {
			msg = "backend request failed"
		}
		h.writeError(w, http.StatusBadGateway, msg)
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
