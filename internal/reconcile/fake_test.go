package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/joao-fontenele/tableorder/internal/backendapi"
	"github.com/joao-fontenele/tableorder/internal/domain"
	"github.com/joao-fontenele/tableorder/internal/receipt"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeServer is an in-memory backend that enforces transitions the way the real one does.
type fakeServer struct {
	mu       sync.Mutex
	orders   map[int64]domain.Order
	payments map[int64]domain.Payment
	writes   int
	gets     int

	ordersErr   error
	paymentsErr error
	getErr      error
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		orders:   make(map[int64]domain.Order),
		payments: make(map[int64]domain.Payment),
	}
}

func (s *fakeServer) addOrder(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

func (s *fakeServer) addPayment(p domain.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = p
}

func (s *fakeServer) order(id int64) domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *fakeServer) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *fakeServer) setStatus(id int64, status domain.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[id]
	o.Status = status
	s.orders[id] = o
}

func (s *fakeServer) ListOrders(context.Context) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ordersErr != nil {
		return nil, s.ordersErr
	}
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	slices.SortFunc(out, func(a, b domain.Order) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *fakeServer) ListPayments(context.Context) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paymentsErr != nil {
		return nil, s.paymentsErr
	}
	out := make([]domain.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Payment) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *fakeServer) GetOrder(_ context.Context, id int64) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return domain.Order{}, s.getErr
	}
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, &backendapi.Error{StatusCode: http.StatusNotFound, Message: "order not found"}
	}
	return o, nil
}

func (s *fakeServer) UpdateOrderStatus(_ context.Context, id int64, status domain.OrderStatus) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, &backendapi.Error{StatusCode: http.StatusNotFound, Message: "order not found"}
	}
	if err := domain.CheckOrderTransition(o.Status, status); err != nil {
		return domain.Order{}, &backendapi.Error{StatusCode: http.StatusConflict, Message: err.Error()}
	}
	s.writes++
	o.Status = status
	s.orders[id] = o
	return o, nil
}

func (s *fakeServer) UpdatePaymentStatus(_ context.Context, id int64, status domain.PaymentStatus) (domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return domain.Payment{}, &backendapi.Error{StatusCode: http.StatusNotFound, Message: "payment not found"}
	}
	if err := domain.CheckPaymentTransition(p.Status, status); err != nil {
		return domain.Payment{}, &backendapi.Error{StatusCode: http.StatusConflict, Message: err.Error()}
	}
	s.writes++
	p.Status = status
	s.payments[id] = p
	return p, nil
}

type recordingPrinter struct {
	mu       sync.Mutex
	receipts []receipt.Receipt
	err      error
}

func (p *recordingPrinter) Print(_ context.Context, r receipt.Receipt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.receipts = append(p.receipts, r)
	return nil
}

func (p *recordingPrinter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.receipts)
}

var errBackendDown = errors.New("connection refused")
