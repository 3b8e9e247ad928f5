package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joao-fontenele/tableorder/internal/domain"
)

type terminal struct {
	loop    *Loop
	console *Console
	printer *recordingPrinter
}

func newTerminal(t *testing.T, server *fakeServer) terminal {
	t.Helper()
	loop := NewLoop(server, time.Hour, nil, discardLogger())
	printer := &recordingPrinter{}
	if err := loop.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh failed: %v", err)
	}
	return terminal{
		loop:    loop,
		console: NewConsole(server, loop, printer, nil, discardLogger()),
		printer: printer,
	}
}

func manualOrder(id int64) domain.Order {
	return domain.Order{
		ID:            id,
		TableNumber:   5,
		CustomerName:  "Budi",
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodManual,
		TotalAmount:   30000,
		Items:         []domain.OrderLine{{MenuItemID: 1, Name: "Nasi Goreng", Quantity: 2, UnitPrice: 15000}},
	}
}

func TestConsole_TwoSessionsConverge(t *testing.T) {
	server := newFakeServer()
	server.addOrder(manualOrder(7))

	a := newTerminal(t, server)
	b := newTerminal(t, server)

	if _, err := a.console.Accept(context.Background(), 7, domain.AcceptOnly); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	if got, _ := a.loop.Snapshot().Order(7); got.Status != domain.OrderStatusAccepted {
		t.Errorf("acting session should see accepted immediately, got %s", got.Status)
	}
	if got, _ := b.loop.Snapshot().Order(7); got.Status != domain.OrderStatusPending {
		t.Errorf("other session changes only on its own poll, got %s", got.Status)
	}

	writesBefore := server.writeCount()
	if err := b.loop.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if got, _ := b.loop.Snapshot().Order(7); got.Status != domain.OrderStatusAccepted {
		t.Errorf("expected session B to converge on accepted, got %s", got.Status)
	}
	if server.writeCount() != writesBefore {
		t.Error("session B must not issue writes to converge")
	}
}

func TestConsole_StaleSessionRejectedByServer(t *testing.T) {
	server := newFakeServer()
	server.addOrder(manualOrder(7))

	a := newTerminal(t, server)
	b := newTerminal(t, server)

	if _, err := a.console.Accept(context.Background(), 7, domain.AcceptOnly); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	// B still believes the order is pending, so its guard passes and the server decides.
	_, err := b.console.Accept(context.Background(), 7, domain.AcceptOnly)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition from server, got %v", err)
	}
	if server.order(7).Status != domain.OrderStatusAccepted {
		t.Errorf("server state changed: %s", server.order(7).Status)
	}
}

func TestConsole_AdvanceRejectsPendingToReady(t *testing.T) {
	server := newFakeServer()
	server.addOrder(manualOrder(7))
	term := newTerminal(t, server)

	_, err := term.console.Advance(context.Background(), 7, domain.OrderStatusReady)

	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if server.writeCount() != 0 {
		t.Error("guard must stop the request before it is sent")
	}
	if got, _ := term.loop.Snapshot().Order(7); got.Status != domain.OrderStatusPending {
		t.Errorf("local status changed to %s", got.Status)
	}
	if server.order(7).Status != domain.OrderStatusPending {
		t.Errorf("server status changed to %s", server.order(7).Status)
	}
}

func TestConsole_AdvanceHappyPath(t *testing.T) {
	server := newFakeServer()
	o := manualOrder(7)
	o.Status = domain.OrderStatusAccepted
	server.addOrder(o)
	term := newTerminal(t, server)

	for _, target := range []domain.OrderStatus{domain.OrderStatusPreparing, domain.OrderStatusReady, domain.OrderStatusCompleted} {
		got, err := term.console.Advance(context.Background(), 7, target)
		if err != nil {
			t.Fatalf("advance to %s failed: %v", target, err)
		}
		if got.Status != target {
			t.Errorf("expected %s, got %s", target, got.Status)
		}
	}

	if _, err := term.console.Advance(context.Background(), 7, domain.OrderStatusReady); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected completed to be terminal, got %v", err)
	}
}

func TestConsole_AcceptPaths(t *testing.T) {
	tests := []struct {
		name        string
		method      domain.PaymentMethod
		paid        bool
		choice      domain.ReceiptChoice
		wantErr     error
		wantReceipt bool
		wantStatus  domain.OrderStatus
	}{
		{
			name:        "digital accepts with receipt",
			method:      domain.PaymentMethodQRIS,
			wantReceipt: true,
			wantStatus:  domain.OrderStatusAccepted,
		},
		{
			name:        "manual paid accepts with receipt",
			method:      domain.PaymentMethodManual,
			paid:        true,
			wantReceipt: true,
			wantStatus:  domain.OrderStatusAccepted,
		},
		{
			name:       "manual unpaid needs a choice",
			method:     domain.PaymentMethodManual,
			wantErr:    ErrChoiceRequired,
			wantStatus: domain.OrderStatusPending,
		},
		{
			name:        "manual accept and print",
			method:      domain.PaymentMethodManual,
			choice:      domain.AcceptAndPrint,
			wantReceipt: true,
			wantStatus:  domain.OrderStatusAccepted,
		},
		{
			name:       "manual accept only",
			method:     domain.PaymentMethodManual,
			choice:     domain.AcceptOnly,
			wantStatus: domain.OrderStatusAccepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newFakeServer()
			o := manualOrder(7)
			o.PaymentMethod = tt.method
			server.addOrder(o)
			status := domain.PaymentStatusPending
			if tt.paid {
				status = domain.PaymentStatusPaid
			}
			server.addPayment(domain.Payment{ID: 70, OrderID: 7, PaymentMethod: tt.method, Status: status})
			term := newTerminal(t, server)

			res, err := term.console.Accept(context.Background(), 7, tt.choice)

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if res.ReceiptIssued != tt.wantReceipt || (term.printer.count() == 1) != tt.wantReceipt {
				t.Errorf("expected receipt=%v, got issued=%v printed=%d", tt.wantReceipt, res.ReceiptIssued, term.printer.count())
			}
			if got := server.order(7).Status; got != tt.wantStatus {
				t.Errorf("expected server status %s, got %s", tt.wantStatus, got)
			}
		})
	}
}

func TestConsole_AcceptNonPendingRejected(t *testing.T) {
	server := newFakeServer()
	o := manualOrder(7)
	o.Status = domain.OrderStatusPreparing
	server.addOrder(o)
	term := newTerminal(t, server)

	_, err := term.console.Accept(context.Background(), 7, domain.AcceptAndPrint)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if term.printer.count() != 0 {
		t.Error("no receipt expected for a rejected accept")
	}
}

func TestConsole_ConfirmPayment(t *testing.T) {
	server := newFakeServer()
	server.addOrder(manualOrder(7))
	server.addPayment(domain.Payment{ID: 70, OrderID: 7, Amount: 30000, PaymentMethod: domain.PaymentMethodManual, Status: domain.PaymentStatusPending})
	term := newTerminal(t, server)

	if len(term.loop.Snapshot().CashierQueue()) != 1 {
		t.Fatal("expected payment in cashier queue")
	}

	p, err := term.console.ConfirmPayment(context.Background(), 70)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != domain.PaymentStatusPaid {
		t.Errorf("expected paid, got %s", p.Status)
	}
	if len(term.loop.Snapshot().CashierQueue()) != 0 {
		t.Error("confirmed payment should leave the cashier queue immediately")
	}

	// Once paid, accepting the manual order no longer asks for a choice.
	path, err := term.console.AcceptPath(7)
	if err != nil || path != domain.AutoAccept {
		t.Errorf("expected auto accept after payment, got %v (%v)", path, err)
	}

	if _, err := term.console.ConfirmPayment(context.Background(), 70); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected second confirmation to be rejected, got %v", err)
	}
}

func TestConsole_UnknownIDs(t *testing.T) {
	term := newTerminal(t, newFakeServer())

	if _, err := term.console.Advance(context.Background(), 99, domain.OrderStatusAccepted); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := term.console.ConfirmPayment(context.Background(), 99); !errors.Is(err, ErrPaymentNotFound) {
		t.Errorf("expected ErrPaymentNotFound, got %v", err)
	}
	if err := term.console.Reprint(context.Background(), 99); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestConsole_ReprintDoesNotChangeState(t *testing.T) {
	server := newFakeServer()
	o := manualOrder(7)
	o.Status = domain.OrderStatusCompleted
	server.addOrder(o)
	term := newTerminal(t, server)

	if err := term.console.Reprint(context.Background(), 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if term.printer.count() != 1 {
		t.Errorf("expected one receipt, got %d", term.printer.count())
	}
	if server.writeCount() != 0 {
		t.Error("reprint must not write to the backend")
	}
}
