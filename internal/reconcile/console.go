package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/tableorder/internal/domain"
	"github.com/joao-fontenele/tableorder/internal/receipt"
	"github.com/joao-fontenele/tableorder/internal/telemetry"
)

var (
	// ErrChoiceRequired means a manual, unpaid order needs staff to pick accept-and-print or accept-only.
	ErrChoiceRequired  = errors.New("receipt choice required")
	ErrOrderNotFound   = errors.New("order not in snapshot")
	ErrPaymentNotFound = errors.New("payment not in snapshot")
)

// ActionBackend is the write side of the backend used by staff actions.
type ActionBackend interface {
	UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status domain.PaymentStatus) (domain.Payment, error)
}

// Console issues guarded staff actions against the backend and folds each response into the
// loop's snapshot so the acting terminal sees its own change before the next cycle.
type Console struct {
	backend ActionBackend
	loop    *Loop
	printer receipt.Printer
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

func NewConsole(backend ActionBackend, loop *Loop, printer receipt.Printer, metrics *telemetry.Metrics, logger *slog.Logger) *Console {
	return &Console{
		backend: backend,
		loop:    loop,
		printer: printer,
		metrics: metrics,
		logger:  logger,
	}
}

type AcceptResult struct {
	Order         domain.Order          `json:"order"`
	Path          domain.AcceptancePath `json:"-"`
	ReceiptIssued bool                  `json:"receiptIssued"`
}

// AcceptPath reports how the order would be accepted given the current snapshot.
func (c *Console) AcceptPath(orderID int64) (domain.AcceptancePath, error) {
	snap := c.loop.Snapshot()
	order, ok := snap.Order(orderID)
	if !ok {
		return 0, fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
	}
	return domain.DerivedAcceptancePath(order, snap.PaymentFor(orderID)), nil
}

// Accept moves a pending order to accepted. Orders on the receipt-choice path need choice set;
// a receipt is printed when the path and choice call for one.
func (c *Console) Accept(ctx context.Context, orderID int64, choice domain.ReceiptChoice) (AcceptResult, error) {
	snap := c.loop.Snapshot()
	order, ok := snap.Order(orderID)
	if !ok {
		c.metrics.StaffAction(ctx, "accept", "not_found")
		return AcceptResult{}, fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
	}
	if err := domain.CheckOrderTransition(order.Status, domain.OrderStatusAccepted); err != nil {
		c.metrics.StaffAction(ctx, "accept", "rejected")
		return AcceptResult{}, err
	}

	path := domain.DerivedAcceptancePath(order, snap.PaymentFor(orderID))
	if path == domain.OfferReceiptChoice && choice == domain.ReceiptChoiceNone {
		return AcceptResult{Order: order, Path: path}, ErrChoiceRequired
	}

	updated, err := c.backend.UpdateOrderStatus(ctx, orderID, domain.OrderStatusAccepted)
	if err != nil {
		c.metrics.StaffAction(ctx, "accept", "failed")
		c.logger.Error("failed to accept order", "error", err, "order_id", orderID)
		return AcceptResult{}, fmt.Errorf("accept order %d: %w", orderID, err)
	}
	updated = fillFrom(updated, order, domain.OrderStatusAccepted)
	c.loop.applyOrder(updated)

	res := AcceptResult{Order: updated, Path: path}
	if path.EmitsReceipt(choice) {
		if err := c.printer.Print(ctx, receipt.Render(updated)); err != nil {
			c.logger.Error("failed to print receipt", "error", err, "order_id", orderID)
		} else {
			res.ReceiptIssued = true
		}
	}

	c.metrics.StaffAction(ctx, "accept", "ok")
	c.logger.Info("order accepted", "order_id", orderID, "path", path.String(), "receipt", res.ReceiptIssued)
	return res, nil
}

// Advance requests a status transition after checking it against the local copy. The backend
// remains the authority and may still reject it.
func (c *Console) Advance(ctx context.Context, orderID int64, target domain.OrderStatus) (domain.Order, error) {
	order, ok := c.loop.Snapshot().Order(orderID)
	if !ok {
		c.metrics.StaffAction(ctx, "advance", "not_found")
		return domain.Order{}, fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
	}
	if err := domain.CheckOrderTransition(order.Status, target); err != nil {
		c.metrics.StaffAction(ctx, "advance", "rejected")
		return domain.Order{}, err
	}

	updated, err := c.backend.UpdateOrderStatus(ctx, orderID, target)
	if err != nil {
		c.metrics.StaffAction(ctx, "advance", "failed")
		c.logger.Error("failed to update order status", "error", err, "order_id", orderID, "status", target)
		return domain.Order{}, fmt.Errorf("update order %d: %w", orderID, err)
	}
	updated = fillFrom(updated, order, target)
	c.loop.applyOrder(updated)

	c.metrics.StaffAction(ctx, "advance", "ok")
	c.logger.Info("order status updated", "order_id", orderID, "from", order.Status, "to", updated.Status)
	return updated, nil
}

// ConfirmPayment marks a pending payment as paid.
func (c *Console) ConfirmPayment(ctx context.Context, paymentID int64) (domain.Payment, error) {
	p, ok := c.loop.Snapshot().Payment(paymentID)
	if !ok {
		c.metrics.StaffAction(ctx, "confirm_payment", "not_found")
		return domain.Payment{}, fmt.Errorf("payment %d: %w", paymentID, ErrPaymentNotFound)
	}
	if err := domain.CheckPaymentTransition(p.Status, domain.PaymentStatusPaid); err != nil {
		c.metrics.StaffAction(ctx, "confirm_payment", "rejected")
		return domain.Payment{}, err
	}

	updated, err := c.backend.UpdatePaymentStatus(ctx, paymentID, domain.PaymentStatusPaid)
	if err != nil {
		c.metrics.StaffAction(ctx, "confirm_payment", "failed")
		c.logger.Error("failed to confirm payment", "error", err, "payment_id", paymentID)
		return domain.Payment{}, fmt.Errorf("confirm payment %d: %w", paymentID, err)
	}
	if updated.ID == 0 {
		updated.ID = paymentID
	}
	if updated.OrderID == 0 {
		updated.OrderID = p.OrderID
	}
	if updated.Amount == 0 {
		updated.Amount = p.Amount
	}
	if updated.PaymentMethod == "" {
		updated.PaymentMethod = p.PaymentMethod
	}
	if updated.CreatedAt.IsZero() {
		updated.CreatedAt = p.CreatedAt
	}
	c.loop.applyPayment(updated)

	c.metrics.StaffAction(ctx, "confirm_payment", "ok")
	c.logger.Info("payment confirmed", "payment_id", paymentID, "order_id", updated.OrderID)
	return updated, nil
}

// Reprint prints the receipt of an order in the snapshot again. It changes nothing.
func (c *Console) Reprint(ctx context.Context, orderID int64) error {
	order, ok := c.loop.Snapshot().Order(orderID)
	if !ok {
		return fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
	}
	if err := c.printer.Print(ctx, receipt.Render(order)); err != nil {
		return fmt.Errorf("reprint order %d: %w", orderID, err)
	}
	c.metrics.StaffAction(ctx, "reprint", "ok")
	return nil
}

// fillFrom completes a sparse action response with fields from the local copy.
func fillFrom(updated, local domain.Order, target domain.OrderStatus) domain.Order {
	if updated.ID == 0 {
		updated.ID = local.ID
	}
	if updated.Status == "" {
		updated.Status = target
	}
	if updated.TableNumber == 0 {
		updated.TableNumber = local.TableNumber
	}
	if updated.CustomerName == "" {
		updated.CustomerName = local.CustomerName
	}
	if len(updated.Items) == 0 {
		updated.Items = local.Items
	}
	if updated.TotalAmount == 0 {
		updated.TotalAmount = local.TotalAmount
	}
	if updated.CreatedAt.IsZero() {
		updated.CreatedAt = local.CreatedAt
	}
	if local.PaymentMethod != "" {
		updated.PaymentMethod = local.PaymentMethod
	}
	return updated
}
