// Package checkout turns a guest cart into a persisted order and one payment attempt.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/joao-fontenele/tableorder/internal/backendapi"
	"github.com/joao-fontenele/tableorder/internal/domain"
	"github.com/joao-fontenele/tableorder/internal/payment"
	"github.com/joao-fontenele/tableorder/internal/telemetry"
)

var tracer = otel.Tracer("checkout")

var ErrInProgress = errors.New("checkout already in progress")

const (
	msgManualPlaced       = "Order placed. Please pay at the cashier."
	msgPaymentProcessing  = "Payment is being processed."
	msgRedirecting        = "Redirecting to payment page..."
	msgCancelled          = "payment cancelled"
	msgGatewayUnavailable = "payment unavailable, contact cashier"
	msgOrderFailed        = "failed to create order"
	msgManualFailed       = "failed to create manual payment"
	msgDigitalFailed      = "failed to start digital payment"
	msgNoPaymentData      = "failed to obtain payment data"
	msgUnexpected         = "checkout failed, please try again"
)

const defaultGatewayTimeout = 15 * time.Minute

// Backend is the subset of the REST contract checkout needs.
type Backend interface {
	CreateGuestOrder(ctx context.Context, req backendapi.CreateGuestOrderRequest, idempotencyKey string) (domain.Order, error)
	CreateManualPayment(ctx context.Context, orderID int64) (domain.Payment, error)
	InitDigitalPayment(ctx context.Context, orderID int64, firstName string) (backendapi.DigitalPayment, error)
}

// GatewaySource resolves the payment gateway attached to a guest session.
type GatewaySource interface {
	Gateway(session string) payment.Gateway
}

type GatewayFunc func(session string) payment.Gateway

func (f GatewayFunc) Gateway(session string) payment.Gateway {
	return f(session)
}

// SingleGateway serves every session with gw.
func SingleGateway(gw payment.Gateway) GatewaySource {
	return GatewayFunc(func(string) payment.Gateway { return gw })
}

type Request struct {
	Session       string            `json:"session"`
	Cart          []domain.CartLine `json:"cart"`
	TableNumber   int               `json:"tableNumber"`
	CustomerName  string            `json:"customerName"`
	PaymentMethod string            `json:"paymentMethod"`
}

type Service struct {
	backend        Backend
	gateways       GatewaySource
	metrics        *telemetry.Metrics
	logger         *slog.Logger
	inflight       *inflight
	gatewayTimeout time.Duration
	newKey         func() string
}

type Option func(*Service)

// WithGatewayTimeout bounds how long checkout waits for the guest to finish in the widget.
func WithGatewayTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.gatewayTimeout = d
		}
	}
}

func NewService(backend Backend, gateways GatewaySource, metrics *telemetry.Metrics, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		backend:        backend,
		gateways:       gateways,
		metrics:        metrics,
		logger:         logger,
		inflight:       newInflight(),
		gatewayTimeout: defaultGatewayTimeout,
		newKey:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout never returns an error; every failure is a CheckoutResult with Success=false.
func (s *Service) Checkout(ctx context.Context, req Request) (result domain.CheckoutResult) {
	ctx, span := tracer.Start(ctx, "checkout")
	defer span.End()

	outcome := "failed"
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("checkout panicked", "panic", fmt.Sprint(r))
			span.SetStatus(codes.Error, "panic")
			result = failure(msgUnexpected)
			outcome = "failed"
		}
		s.metrics.CheckoutResult(ctx, req.PaymentMethod, outcome)
		span.SetAttributes(
			attribute.String("checkout.outcome", outcome),
			attribute.Bool("checkout.success", result.Success),
		)
	}()

	valid, err := validate(req)
	if err != nil {
		outcome = "invalid"
		s.logger.Info("checkout rejected", "reason", err.Error())
		return failure(err.Error())
	}

	key := fingerprint(valid)
	if !s.inflight.acquire(key) {
		outcome = "duplicate"
		s.logger.Info("duplicate checkout rejected", "table_number", valid.tableNumber)
		return failure(ErrInProgress.Error())
	}
	defer s.inflight.release(key)

	order, err := s.createOrder(ctx, key, valid)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("failed to create order", "error", err, "table_number", valid.tableNumber)
		return failure(messageOr(err, msgOrderFailed))
	}
	if order.ID == 0 {
		s.logger.Error("backend returned order without id", "table_number", valid.tableNumber)
		return failure(msgOrderFailed)
	}
	span.SetAttributes(attribute.Int64("order.id", order.ID))

	if valid.method == domain.PaymentMethodManual {
		result, outcome = s.payManual(ctx, order)
		return result
	}
	result, outcome = s.payDigital(ctx, req.Session, order, valid.customerName)
	return result
}

// createOrder reuses the idempotency key of an earlier attempt with the same fingerprint
// when that attempt never got a response, so a resubmit after a lost reply does not
// create a second order.
func (s *Service) createOrder(ctx context.Context, fp string, req validRequest) (domain.Order, error) {
	items := make([]backendapi.GuestOrderItem, 0, len(req.cart))
	for _, line := range req.cart {
		items = append(items, backendapi.GuestOrderItem{MenuID: line.MenuItemID, Quantity: line.Quantity})
	}

	idemKey := s.inflight.idempotencyKey(fp, s.newKey)
	order, err := s.backend.CreateGuestOrder(ctx, backendapi.CreateGuestOrderRequest{
		TableNumber:  req.tableNumber,
		CustomerName: req.customerName,
		Items:        items,
	}, idemKey)

	var apiErr *backendapi.Error
	s.inflight.settle(fp, idemKey, err == nil || errors.As(err, &apiErr))
	return order, err
}

func (s *Service) payManual(ctx context.Context, order domain.Order) (domain.CheckoutResult, string) {
	p, err := s.backend.CreateManualPayment(ctx, order.ID)
	if err != nil {
		s.logger.Error("failed to create manual payment", "error", err, "order_id", order.ID)
		return failure(messageOr(err, msgManualFailed)), "failed"
	}
	if p.ID == 0 {
		s.logger.Error("backend returned manual payment without id", "order_id", order.ID)
		return failure(msgManualFailed), "failed"
	}

	s.logger.Info("manual checkout completed", "order_id", order.ID, "payment_id", p.ID)
	return domain.CheckoutResult{
		Success:   true,
		Message:   msgManualPlaced,
		OrderID:   order.ID,
		PaymentID: p.ID,
	}, "success"
}

func (s *Service) payDigital(ctx context.Context, session string, order domain.Order, name string) (domain.CheckoutResult, string) {
	dp, err := s.backend.InitDigitalPayment(ctx, order.ID, name)
	if err != nil {
		s.logger.Error("failed to start digital payment", "error", err, "order_id", order.ID)
		return failure(messageOr(err, msgDigitalFailed)), "failed"
	}
	if dp.Payment.ID == 0 {
		s.logger.Error("backend returned digital payment without id", "order_id", order.ID)
		return failure(msgDigitalFailed), "failed"
	}
	if dp.Token == "" && dp.RedirectURL == "" {
		s.logger.Error("digital payment returned neither token nor redirect", "order_id", order.ID)
		return failure(msgNoPaymentData), "failed"
	}

	gw := s.gateways.Gateway(session)
	if dp.Token != "" && gw.Available() {
		openCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
		res, err := gw.OpenPaymentUI(openCtx, dp.Token)
		cancel()

		switch {
		case errors.Is(err, payment.ErrUnavailable):
			s.logger.Info("payment widget became unavailable", "order_id", order.ID)
		case err != nil:
			s.logger.Error("payment widget failed", "error", err, "order_id", order.ID)
			return failure(msgGatewayUnavailable), "gateway_error"
		case res.Closed():
			s.logger.Info("payment widget closed by guest", "order_id", order.ID, "payment_id", dp.Payment.ID)
			return failure(msgCancelled), "cancelled"
		default:
			s.logger.Info("digital checkout completed",
				"order_id", order.ID,
				"payment_id", dp.Payment.ID,
				"status", res.Status,
				"transaction_id", res.TransactionID,
			)
			return domain.CheckoutResult{
				Success:   true,
				Message:   msgPaymentProcessing,
				SnapToken: dp.Token,
				OrderID:   order.ID,
				PaymentID: dp.Payment.ID,
			}, "success"
		}
	}

	if dp.RedirectURL != "" {
		s.logger.Info("redirecting guest to payment page", "order_id", order.ID)
		return domain.CheckoutResult{
			Success:     true,
			Message:     msgRedirecting,
			RedirectURL: dp.RedirectURL,
			OrderID:     order.ID,
			PaymentID:   dp.Payment.ID,
		}, "redirect"
	}

	s.logger.Error("payment widget unavailable and no redirect url", "order_id", order.ID)
	return failure(msgGatewayUnavailable), "gateway_error"
}

func failure(message string) domain.CheckoutResult {
	return domain.CheckoutResult{Success: false, Message: message}
}

func messageOr(err error, fallback string) string {
	if msg := backendapi.ServerMessage(err); msg != "" {
		return msg
	}
	return fallback
}
