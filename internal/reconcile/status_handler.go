package reconcile

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/tableorder/internal/backendapi"
	"github.com/joao-fontenele/tableorder/internal/domain"
)

// StatusHandler serves the guest-facing order status view.
type StatusHandler struct {
	watchers *Watchers
	logger   *slog.Logger
}

func NewStatusHandler(watchers *Watchers, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		watchers: watchers,
		logger:   logger,
	}
}

type statusResponse struct {
	ID          int64              `json:"id"`
	Status      domain.OrderStatus `json:"status"`
	TableNumber int                `json:"tableNumber"`
	TotalAmount int64              `json:"totalAmount"`
	Done        bool               `json:"done"`
}

func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		h.writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := h.watchers.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, backendapi.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("failed to get order status", "error", err, "order_id", id)
		h.writeError(w, http.StatusBadGateway, "order status unavailable")
		return
	}

	h.writeJSON(w, http.StatusOK, statusResponse{
		ID:          order.ID,
		Status:      order.Status,
		TableNumber: order.TableNumber,
		TotalAmount: order.TotalAmount,
		Done:        order.Status.IsTerminal(),
	})
}

func (h *StatusHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *StatusHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
