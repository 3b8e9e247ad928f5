package checkout

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/tableorder/internal/domain"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// HandleCheckout answers 200 with the CheckoutResult for every well-formed request,
// including failed checkouts.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, domain.CheckoutResult{Message: "invalid request body"})
		return
	}

	result := h.service.Checkout(r.Context(), req)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
