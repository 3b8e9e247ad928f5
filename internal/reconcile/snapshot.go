package reconcile

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joao-fontenele/tableorder/internal/domain"
)

// Snapshot is one complete pull of orders and payments. It is replaced wholesale, never
// merged, except for the single order or payment returned by a staff action.
type Snapshot struct {
	Orders    []domain.Order   `json:"orders"`
	Payments  []domain.Payment `json:"payments"`
	FetchedAt time.Time        `json:"fetchedAt"`
}

func (s Snapshot) Order(id int64) (domain.Order, bool) {
	for _, o := range s.Orders {
		if o.ID == id {
			return o, true
		}
	}
	return domain.Order{}, false
}

// PaymentFor returns the payment recorded for an order, or nil.
func (s Snapshot) PaymentFor(orderID int64) *domain.Payment {
	for i := range s.Payments {
		if s.Payments[i].OrderID == orderID {
			p := s.Payments[i]
			return &p
		}
	}
	return nil
}

func (s Snapshot) Payment(id int64) (domain.Payment, bool) {
	for _, p := range s.Payments {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Payment{}, false
}

// Filter selects orders from the local snapshot. Zero fields match everything.
type Filter struct {
	Status domain.OrderStatus
	// Date matches orders created on the same calendar day in Location.
	Date     time.Time
	Location *time.Location
	// Query matches a case-insensitive substring of the customer name, or the order id.
	Query string
}

func (f Filter) matches(o domain.Order) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if !f.Date.IsZero() && !sameDay(o.CreatedAt, f.Date, f.location()) {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		q = strings.TrimPrefix(q, "#")
		byName := strings.Contains(strings.ToLower(o.CustomerName), strings.ToLower(q))
		byID := strings.Contains(strconv.FormatInt(o.ID, 10), q)
		if !byName && !byID {
			return false
		}
	}
	return true
}

func (f Filter) location() *time.Location {
	if f.Location != nil {
		return f.Location
	}
	return time.Local
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// Filter returns matching orders, newest first.
func (s Snapshot) Filter(f Filter) []domain.Order {
	out := make([]domain.Order, 0, len(s.Orders))
	for _, o := range s.Orders {
		if f.matches(o) {
			out = append(out, o)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// PendingOrders are orders waiting for staff acceptance, oldest first.
func (s Snapshot) PendingOrders() []domain.Order {
	out := s.Filter(Filter{Status: domain.OrderStatusPending})
	slices.Reverse(out)
	return out
}

// CashierQueue lists manual payments still waiting to be collected, oldest first.
func (s Snapshot) CashierQueue() []domain.Payment {
	var out []domain.Payment
	for _, p := range s.Payments {
		if p.PaymentMethod == domain.PaymentMethodManual && p.Status == domain.PaymentStatusPending {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Payment) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

type Stats struct {
	PendingOrders         int `json:"pendingOrders"`
	ActiveCooking         int `json:"activeCooking"`
	PendingManualPayments int `json:"pendingManualPayments"`
	OrdersToday           int `json:"ordersToday"`
}

// Stats summarizes the snapshot as of now in loc.
func (s Snapshot) Stats(now time.Time, loc *time.Location) Stats {
	if loc == nil {
		loc = time.Local
	}

	var st Stats
	for _, o := range s.Orders {
		switch o.Status {
		case domain.OrderStatusPending:
			st.PendingOrders++
		case domain.OrderStatusAccepted, domain.OrderStatusPreparing:
			st.ActiveCooking++
		}
		if sameDay(o.CreatedAt, now, loc) {
			st.OrdersToday++
		}
	}
	st.PendingManualPayments = len(s.CashierQueue())
	return st
}

func (s Snapshot) withOrder(o domain.Order) Snapshot {
	orders := slices.Clone(s.Orders)
	for i := range orders {
		if orders[i].ID == o.ID {
			if len(o.Items) == 0 {
				o.Items = orders[i].Items
			}
			orders[i] = o
			s.Orders = orders
			return s
		}
	}
	s.Orders = append(orders, o)
	return s
}

func (s Snapshot) withPayment(p domain.Payment) Snapshot {
	payments := slices.Clone(s.Payments)
	for i := range payments {
		if payments[i].ID == p.ID {
			payments[i] = p
			s.Payments = payments
			return s
		}
	}
	s.Payments = append(payments, p)
	return s
}
