package domain

import "time"

type PaymentMethod string

const (
	PaymentMethodQRIS   PaymentMethod = "qris"
	PaymentMethodManual PaymentMethod = "manual"
)

// ParsePaymentMethod accepts the two canonical methods. Anything else is rejected.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case PaymentMethodQRIS, PaymentMethodManual:
		return PaymentMethod(s), true
	}
	return "", false
}

// IsDigital reports whether the method is settled through the payment widget.
func (m PaymentMethod) IsDigital() bool {
	return m == PaymentMethodQRIS
}

// CartLine is a guest's selection before checkout. Price is never sent by the client.
type CartLine struct {
	MenuItemID int64 `json:"menuItemId"`
	Quantity   int   `json:"quantity"`
}

type OrderLine struct {
	MenuItemID int64  `json:"menuItemId"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unitPrice"`
}

func (l OrderLine) Subtotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

type Order struct {
	ID            int64         `json:"id"`
	TableNumber   int           `json:"tableNumber"`
	CustomerName  string        `json:"customerName"`
	Status        OrderStatus   `json:"status"`
	Items         []OrderLine   `json:"items"`
	TotalAmount   int64         `json:"totalAmount"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// LinesTotal sums line subtotals. For any order produced by checkout it equals TotalAmount.
func LinesTotal(lines []OrderLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.Subtotal()
	}
	return total
}

type Payment struct {
	ID            int64         `json:"id"`
	OrderID       int64         `json:"orderId"`
	Amount        int64         `json:"amount"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Status        PaymentStatus `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// CheckoutResult is the single outcome handed back to the guest UI.
type CheckoutResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	SnapToken   string `json:"snapToken,omitempty"`
	OrderID     int64  `json:"orderId,omitempty"`
	PaymentID   int64  `json:"paymentId,omitempty"`
}
