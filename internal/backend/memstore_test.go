package backend_test

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/joao-fontenele/tableorder/internal/backend"
	"github.com/joao-fontenele/tableorder/internal/domain"
)

// memStore mirrors Repository semantics in memory.
type memStore struct {
	mu       sync.Mutex
	menu     map[int64]domain.OrderLine
	orders   []*domain.Order
	keys     map[string]int64
	payments []*domain.Payment
	tokens   map[int64]string
}

func newMemStore() *memStore {
	return &memStore{
		menu: map[int64]domain.OrderLine{
			1: {MenuItemID: 1, Name: "Nasi Goreng", UnitPrice: 15000},
			2: {MenuItemID: 2, Name: "Es Teh Manis", UnitPrice: 8000},
		},
		keys:   make(map[string]int64),
		tokens: make(map[int64]string),
	}
}

func (s *memStore) CreateOrder(_ context.Context, req backend.NewOrder) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.keys[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		o := *s.orders[id-1]
		return &o, nil
	}

	o := &domain.Order{
		ID:            int64(len(s.orders) + 1),
		TableNumber:   req.TableNumber,
		CustomerName:  req.CustomerName,
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodManual,
		CreatedAt:     time.Now().UTC(),
	}
	for _, line := range req.Items {
		item, ok := s.menu[line.MenuItemID]
		if !ok {
			return nil, &backend.MenuItemError{MenuItemID: line.MenuItemID}
		}
		item.Quantity = line.Quantity
		o.Items = append(o.Items, item)
	}
	o.TotalAmount = domain.LinesTotal(o.Items)
	s.orders = append(s.orders, o)
	if req.IdempotencyKey != "" {
		s.keys[req.IdempotencyKey] = o.ID
	}

	out := *o
	return &out, nil
}

func (s *memStore) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 1 || int(id) > len(s.orders) {
		return nil, backend.ErrNotFound
	}
	o := *s.orders[id-1]
	return &o, nil
}

func (s *memStore) ListOrders(context.Context) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	slices.Reverse(out)
	return out, nil
}

func (s *memStore) UpdateOrderStatus(_ context.Context, id int64, status domain.OrderStatus) (*domain.Order, domain.OrderStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 1 || int(id) > len(s.orders) {
		return nil, "", backend.ErrNotFound
	}
	o := s.orders[id-1]
	from := o.Status
	if err := domain.CheckOrderTransition(from, status); err != nil {
		return nil, from, err
	}
	o.Status = status
	out := *o
	return &out, from, nil
}

func (s *memStore) CreatePayment(_ context.Context, orderID int64, method domain.PaymentMethod, token string) (*domain.Payment, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if orderID < 1 || int(orderID) > len(s.orders) {
		return nil, "", backend.ErrNotFound
	}
	for _, p := range s.payments {
		if p.OrderID == orderID {
			out := *p
			return &out, s.tokens[p.ID], nil
		}
	}

	o := s.orders[orderID-1]
	o.PaymentMethod = method
	p := &domain.Payment{
		ID:            int64(len(s.payments) + 1),
		OrderID:       orderID,
		Amount:        o.TotalAmount,
		PaymentMethod: method,
		Status:        domain.PaymentStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	s.payments = append(s.payments, p)
	s.tokens[p.ID] = token
	out := *p
	return &out, token, nil
}

func (s *memStore) ListPayments(context.Context) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, *p)
	}
	return out, nil
}

func (s *memStore) UpdatePaymentStatus(_ context.Context, id int64, status domain.PaymentStatus) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 1 || int(id) > len(s.payments) {
		return nil, backend.ErrNotFound
	}
	p := s.payments[id-1]
	if err := domain.CheckPaymentTransition(p.Status, status); err != nil {
		return nil, err
	}
	p.Status = status
	out := *p
	return &out, nil
}

func (s *memStore) paymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

type recordingPublisher struct {
	mu       sync.Mutex
	orders   []domain.OrderStatusChangedEvent
	payments []domain.PaymentStatusChangedEvent
}

func (p *recordingPublisher) OrderStatusChanged(_ context.Context, e domain.OrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, e)
	return nil
}

func (p *recordingPublisher) PaymentStatusChanged(_ context.Context, e domain.PaymentStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payments = append(p.payments, e)
	return nil
}
