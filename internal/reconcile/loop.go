// Package reconcile keeps a staff console's view of orders and payments in line with the
// backend by periodically pulling both lists and replacing the local snapshot.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/tableorder/internal/domain"
	"github.com/joao-fontenele/tableorder/internal/telemetry"
)

var tracer = otel.Tracer("reconcile")

const DefaultInterval = 10 * time.Second

// Source is the read side of the backend the loop polls.
type Source interface {
	ListOrders(ctx context.Context) ([]domain.Order, error)
	ListPayments(ctx context.Context) ([]domain.Payment, error)
}

type Loop struct {
	source   Source
	interval time.Duration
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	mu       sync.RWMutex
	snapshot Snapshot
	lastErr  error
	// gen counts locally applied action results; applied holds those not yet covered by a
	// cycle whose fetch started after them.
	gen     uint64
	applied []appliedResult

	// refreshMu serializes cycles so a poll never overwrites a newer one.
	refreshMu sync.Mutex
	wake      chan struct{}
}

func NewLoop(source Source, interval time.Duration, metrics *telemetry.Metrics, logger *slog.Logger) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{
		source:   source,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
		wake:     make(chan struct{}, 1),
	}
}

type appliedResult struct {
	gen     uint64
	order   *domain.Order
	payment *domain.Payment
}

// Run polls until ctx is done. The first cycle runs immediately.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		if err := l.Refresh(ctx); err != nil && ctx.Err() == nil {
			l.logger.Error("reconcile cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-l.wake:
			ticker.Reset(l.interval)
		}
	}
}

// Trigger asks Run to start a cycle now instead of waiting for the next tick.
func (l *Loop) Trigger() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Refresh fetches orders and payments concurrently and replaces the snapshot only when both
// succeed. On failure the previous snapshot stays in place.
func (l *Loop) Refresh(ctx context.Context) error {
	l.refreshMu.Lock()
	defer l.refreshMu.Unlock()

	ctx, span := tracer.Start(ctx, "reconcile.refresh")
	defer span.End()

	l.mu.RLock()
	startGen := l.gen
	l.mu.RUnlock()

	var (
		orders   []domain.Order
		payments []domain.Payment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = l.source.ListOrders(gctx)
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		payments, err = l.source.ListPayments(gctx)
		if err != nil {
			return fmt.Errorf("list payments: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.mu.Lock()
		l.lastErr = err
		l.mu.Unlock()
		l.metrics.ReconcileCycle(ctx, "error")
		return err
	}

	next := Snapshot{Orders: orders, Payments: payments, FetchedAt: time.Now().UTC()}
	l.mu.Lock()
	// Action results that landed while this cycle was fetching are newer than what it read.
	for _, a := range l.applied {
		if a.gen <= startGen {
			continue
		}
		if a.order != nil {
			next = next.withOrder(*a.order)
		}
		if a.payment != nil {
			next = next.withPayment(*a.payment)
		}
	}
	l.applied = nil
	l.snapshot = next
	l.lastErr = nil
	l.mu.Unlock()

	span.SetAttributes(
		attribute.Int("reconcile.orders", len(orders)),
		attribute.Int("reconcile.payments", len(payments)),
	)
	l.metrics.ReconcileCycle(ctx, "ok")
	l.logger.Debug("snapshot replaced", "orders", len(orders), "payments", len(payments))
	return nil
}

func (l *Loop) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot
}

// LastError is the error of the most recent cycle, nil when it succeeded.
func (l *Loop) LastError() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastErr
}

func (l *Loop) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.snapshot.Orders)
}

// applyOrder folds an action's response into the snapshot ahead of the next cycle.
func (l *Loop) applyOrder(o domain.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.applied = append(l.applied, appliedResult{gen: l.gen, order: &o})
	l.snapshot = l.snapshot.withOrder(o)
}

func (l *Loop) applyPayment(p domain.Payment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.applied = append(l.applied, appliedResult{gen: l.gen, payment: &p})
	l.snapshot = l.snapshot.withPayment(p)
}

// OnOrderStatusChanged reacts to a backend status event by pulling a fresh snapshot early.
// The event itself is not applied; the next cycle carries the authoritative state.
func (l *Loop) OnOrderStatusChanged(_ context.Context, event domain.OrderStatusChangedEvent) error {
	l.logger.Debug("order status event received", "order_id", event.OrderID, "from", event.From, "to", event.To)
	l.Trigger()
	return nil
}
