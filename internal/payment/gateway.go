// Package payment hides the provider's payment widget behind a single-shot operation. Callers see
// one terminal outcome per call: a paid or pending Result, a closed Result, or an error.
package payment

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrEmptyToken  = errors.New("payment token is empty")
	ErrUnavailable = errors.New("payment gateway unavailable")
	ErrBusy        = errors.New("payment gateway busy")
)

type Status string

const (
	StatusPaid    Status = "paid"
	StatusPending Status = "pending"
	// StatusClosed means the guest dismissed the widget. It is not an error.
	StatusClosed Status = "closed"
)

type Result struct {
	Status            Status
	OrderID           string
	TransactionID     string
	TransactionStatus string
	PaymentType       string
	GrossAmount       string
}

func (r Result) Closed() bool {
	return r.Status == StatusClosed
}

// GatewayError is the provider reporting a failed payment.
type GatewayError struct {
	StatusCode string
	Message    string
}

func (e *GatewayError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("payment gateway error (status %s)", e.StatusCode)
	}
	return fmt.Sprintf("payment gateway error (status %s): %s", e.StatusCode, e.Message)
}

// Gateway is the port the checkout depends on.
type Gateway interface {
	Available() bool
	OpenPaymentUI(ctx context.Context, token string) (Result, error)
}

// BridgeResult mirrors the payload the provider widget hands to its callbacks.
type BridgeResult struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id,omitempty"`
	TransactionStatus string `json:"transaction_status,omitempty"`
	StatusCode        string `json:"status_code,omitempty"`
	StatusMessage     string `json:"status_message,omitempty"`
	FraudStatus       string `json:"fraud_status,omitempty"`
	PaymentType       string `json:"payment_type,omitempty"`
	GrossAmount       string `json:"gross_amount,omitempty"`
	TransactionTime   string `json:"transaction_time,omitempty"`
}

type Callbacks struct {
	OnSuccess func(BridgeResult)
	OnPending func(BridgeResult)
	OnError   func(BridgeResult)
	OnClose   func()
}

// Bridge is the provider-installed widget: pay(token, callbacks) and hide().
// Ready reports whether the widget is loaded and able to accept Pay.
type Bridge interface {
	Ready() bool
	Pay(token string, cb Callbacks)
	Hide()
}
