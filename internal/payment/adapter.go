package payment

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Adapter is the production Gateway over a Bridge. A nil bridge is permanently unavailable.
// Only one OpenPaymentUI call may be pending at a time; a second concurrent call gets ErrBusy.
type Adapter struct {
	bridge Bridge
	busy   atomic.Bool
	logger *slog.Logger
}

func NewAdapter(bridge Bridge, logger *slog.Logger) *Adapter {
	return &Adapter{
		bridge: bridge,
		logger: logger,
	}
}

func (a *Adapter) Available() bool {
	return a.bridge != nil && a.bridge.Ready()
}

type outcome struct {
	result Result
	err    error
}

func (a *Adapter) OpenPaymentUI(ctx context.Context, token string) (Result, error) {
	if token == "" {
		return Result{}, ErrEmptyToken
	}
	if !a.Available() {
		return Result{}, ErrUnavailable
	}
	if !a.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer a.busy.Store(false)

	done := make(chan outcome, 1)
	var once sync.Once
	finish := func(o outcome) {
		once.Do(func() { done <- o })
	}

	a.logger.Info("opening payment widget")

	a.bridge.Pay(token, Callbacks{
		OnSuccess: func(r BridgeResult) {
			finish(outcome{result: toResult(StatusPaid, r)})
		},
		OnPending: func(r BridgeResult) {
			finish(outcome{result: toResult(StatusPending, r)})
		},
		OnError: func(r BridgeResult) {
			finish(outcome{err: &GatewayError{StatusCode: r.StatusCode, Message: r.StatusMessage}})
		},
		OnClose: func() {
			finish(outcome{result: Result{Status: StatusClosed, TransactionStatus: string(StatusClosed)}})
		},
	})

	select {
	case o := <-done:
		if o.err != nil {
			a.logger.Error("payment widget reported error", "error", o.err)
			return Result{}, o.err
		}
		a.logger.Info("payment widget finished", "status", o.result.Status, "transaction_id", o.result.TransactionID)
		return o.result, nil
	case <-ctx.Done():
		a.bridge.Hide()
		a.logger.Error("payment widget abandoned", "error", ctx.Err())
		return Result{}, ctx.Err()
	}
}

func toResult(status Status, r BridgeResult) Result {
	return Result{
		Status:            status,
		OrderID:           r.OrderID,
		TransactionID:     r.TransactionID,
		TransactionStatus: r.TransactionStatus,
		PaymentType:       r.PaymentType,
		GrossAmount:       r.GrossAmount,
	}
}
