// Package paymenttest provides deterministic payment doubles.
package paymenttest

import (
	"context"
	"sync"

	"github.com/joao-fontenele/tableorder/internal/payment"
)

type Outcome int

const (
	OutcomePaid Outcome = iota
	OutcomePending
	OutcomeError
	OutcomeClosed
)

// Gateway returns the configured Outcome on every call and records the tokens it was opened with.
type Gateway struct {
	Unavailable bool
	Outcome     Outcome

	mu     sync.Mutex
	tokens []string
}

func (g *Gateway) Available() bool {
	return !g.Unavailable
}

func (g *Gateway) OpenPaymentUI(ctx context.Context, token string) (payment.Result, error) {
	if token == "" {
		return payment.Result{}, payment.ErrEmptyToken
	}
	if g.Unavailable {
		return payment.Result{}, payment.ErrUnavailable
	}

	g.mu.Lock()
	g.tokens = append(g.tokens, token)
	g.mu.Unlock()

	switch g.Outcome {
	case OutcomePaid:
		return payment.Result{Status: payment.StatusPaid, TransactionStatus: "settlement"}, nil
	case OutcomePending:
		return payment.Result{Status: payment.StatusPending, TransactionStatus: "pending"}, nil
	case OutcomeClosed:
		return payment.Result{Status: payment.StatusClosed, TransactionStatus: "closed"}, nil
	default:
		return payment.Result{}, &payment.GatewayError{StatusCode: "500", Message: "transaction failed"}
	}
}

func (g *Gateway) Tokens() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.tokens))
	copy(out, g.tokens)
	return out
}

// Bridge is a widget double. Pay stores the callbacks; the test decides when and how the
// widget finishes by calling one of the Fire methods.
type Bridge struct {
	NotReady bool

	mu      sync.Mutex
	cb      *payment.Callbacks
	token   string
	hidden  int
	payed   chan struct{}
	payOnce sync.Once
}

func NewBridge() *Bridge {
	return &Bridge{payed: make(chan struct{})}
}

func (b *Bridge) Ready() bool {
	return !b.NotReady
}

func (b *Bridge) Pay(token string, cb payment.Callbacks) {
	b.mu.Lock()
	b.cb = &cb
	b.token = token
	b.mu.Unlock()
	b.payOnce.Do(func() { close(b.payed) })
}

func (b *Bridge) Hide() {
	b.mu.Lock()
	b.hidden++
	b.mu.Unlock()
}

// Paid is closed once Pay has been called.
func (b *Bridge) Paid() <-chan struct{} {
	return b.payed
}

func (b *Bridge) Token() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token
}

func (b *Bridge) HideCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hidden
}

func (b *Bridge) callbacks() payment.Callbacks {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cb == nil {
		return payment.Callbacks{}
	}
	return *b.cb
}

func (b *Bridge) FireSuccess(r payment.BridgeResult) {
	b.callbacks().OnSuccess(r)
}

func (b *Bridge) FirePending(r payment.BridgeResult) {
	b.callbacks().OnPending(r)
}

func (b *Bridge) FireError(r payment.BridgeResult) {
	b.callbacks().OnError(r)
}

func (b *Bridge) FireClose() {
	b.callbacks().OnClose()
}
