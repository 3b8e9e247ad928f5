package domain

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid status transition")

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
)

// orderTransitions is the only place the order lifecycle graph is defined.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusAccepted},
	OrderStatusAccepted:  {OrderStatusPreparing, OrderStatusCompleted},
	OrderStatusPreparing: {OrderStatusReady, OrderStatusCompleted},
	OrderStatusReady:     {OrderStatusCompleted},
	OrderStatusCompleted: nil,
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(s)
	if _, ok := orderTransitions[st]; ok {
		return st, true
	}
	return "", false
}

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted
}

// NextStatuses lists the statuses a staff action may move s to, in display order.
func (s OrderStatus) NextStatuses() []OrderStatus {
	next := orderTransitions[s]
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, n := range orderTransitions[s] {
		if n == target {
			return true
		}
	}
	return false
}

// TransitionError reports a rejected order transition. It matches ErrInvalidTransition.
type TransitionError struct {
	Kind string
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid %s status transition %s -> %s", e.Kind, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// CheckOrderTransition returns a *TransitionError unless from -> to is in the lifecycle graph.
func CheckOrderTransition(from, to OrderStatus) error {
	if !from.CanTransitionTo(to) {
		return &TransitionError{Kind: "order", From: string(from), To: string(to)}
	}
	return nil
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch PaymentStatus(s) {
	case PaymentStatusPending, PaymentStatusPaid:
		return PaymentStatus(s), true
	}
	return "", false
}

func (s PaymentStatus) String() string {
	return string(s)
}

// CheckPaymentTransition allows only pending -> paid.
func CheckPaymentTransition(from, to PaymentStatus) error {
	if from == PaymentStatusPending && to == PaymentStatusPaid {
		return nil
	}
	return &TransitionError{Kind: "payment", From: string(from), To: string(to)}
}
