package domain

import "time"

type OrderStatusChangedEvent struct {
	OrderID   int64       `json:"order_id"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	Timestamp time.Time   `json:"timestamp"`
}

type PaymentStatusChangedEvent struct {
	PaymentID int64         `json:"payment_id"`
	OrderID   int64         `json:"order_id"`
	Status    PaymentStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}
