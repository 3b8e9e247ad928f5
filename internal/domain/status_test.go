package domain

import (
	"errors"
	"testing"
)

func TestCheckOrderTransition(t *testing.T) {
	allowed := map[[2]OrderStatus]bool{
		{OrderStatusPending, OrderStatusAccepted}:    true,
		{OrderStatusAccepted, OrderStatusPreparing}:  true,
		{OrderStatusAccepted, OrderStatusCompleted}:  true,
		{OrderStatusPreparing, OrderStatusReady}:     true,
		{OrderStatusPreparing, OrderStatusCompleted}: true,
		{OrderStatusReady, OrderStatusCompleted}:     true,
	}

	all := []OrderStatus{
		OrderStatusPending,
		OrderStatusAccepted,
		OrderStatusPreparing,
		OrderStatusReady,
		OrderStatusCompleted,
	}

	for _, from := range all {
		for _, to := range all {
			err := CheckOrderTransition(from, to)
			if allowed[[2]OrderStatus{from, to}] {
				if err != nil {
					t.Errorf("%s -> %s: unexpected error: %v", from, to, err)
				}
				continue
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", from, to, err)
			}
		}
	}
}

func TestCheckOrderTransition_UnknownStatus(t *testing.T) {
	if err := CheckOrderTransition("cooking", OrderStatusReady); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := CheckOrderTransition(OrderStatusPending, "cancelled"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransitionError_Message(t *testing.T) {
	err := CheckOrderTransition(OrderStatusPending, OrderStatusReady)

	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransitionError, got %T", err)
	}
	if te.Error() != "invalid order status transition pending -> ready" {
		t.Errorf("unexpected message: %s", te.Error())
	}
}

func TestOrderStatus_NextStatuses(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   []OrderStatus
	}{
		{OrderStatusPending, []OrderStatus{OrderStatusAccepted}},
		{OrderStatusAccepted, []OrderStatus{OrderStatusPreparing, OrderStatusCompleted}},
		{OrderStatusPreparing, []OrderStatus{OrderStatusReady, OrderStatusCompleted}},
		{OrderStatusReady, []OrderStatus{OrderStatusCompleted}},
		{OrderStatusCompleted, []OrderStatus{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			got := tt.status.NextStatuses()
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}

	t.Run("returned slice is a copy", func(t *testing.T) {
		next := OrderStatusAccepted.NextStatuses()
		next[0] = OrderStatusPending
		if OrderStatusAccepted.NextStatuses()[0] != OrderStatusPreparing {
			t.Error("transition table was mutated through NextStatuses")
		}
	})
}

func TestCheckPaymentTransition(t *testing.T) {
	if err := CheckPaymentTransition(PaymentStatusPending, PaymentStatusPaid); err != nil {
		t.Fatalf("pending -> paid: unexpected error: %v", err)
	}
	for _, tc := range [][2]PaymentStatus{
		{PaymentStatusPaid, PaymentStatusPending},
		{PaymentStatusPaid, PaymentStatusPaid},
		{PaymentStatusPending, PaymentStatusPending},
	} {
		if err := CheckPaymentTransition(tc[0], tc[1]); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", tc[0], tc[1], err)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	if s, ok := ParseOrderStatus("ready"); !ok || s != OrderStatusReady {
		t.Errorf("expected ready, got %q %v", s, ok)
	}
	if _, ok := ParseOrderStatus("paid"); ok {
		t.Error("expected paid to be rejected as an order status")
	}
}
