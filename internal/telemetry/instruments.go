package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the domain instruments. A nil *Metrics records nothing.
type Metrics struct {
	meter           metric.Meter
	checkoutResults metric.Int64Counter
	reconcileCycles metric.Int64Counter
	staffActions    metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	checkoutResults, err := meter.Int64Counter("checkout.results",
		metric.WithDescription("Checkout attempts by outcome"),
	)
	if err != nil {
		return nil, err
	}

	reconcileCycles, err := meter.Int64Counter("reconcile.cycles",
		metric.WithDescription("Reconciliation poll cycles by result"),
	)
	if err != nil {
		return nil, err
	}

	staffActions, err := meter.Int64Counter("staff.actions",
		metric.WithDescription("Staff actions by kind and result"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		meter:           meter,
		checkoutResults: checkoutResults,
		reconcileCycles: reconcileCycles,
		staffActions:    staffActions,
	}, nil
}

func (m *Metrics) CheckoutResult(ctx context.Context, method, outcome string) {
	if m == nil {
		return
	}
	m.checkoutResults.Add(ctx, 1, metric.WithAttributes(
		attribute.String("payment_method", method),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) ReconcileCycle(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.reconcileCycles.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) StaffAction(ctx context.Context, action, result string) {
	if m == nil {
		return
	}
	m.staffActions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("result", result),
	))
}

// ObserveSnapshotSize registers a gauge reporting the number of orders held locally.
func (m *Metrics) ObserveSnapshotSize(size func() int) error {
	if m == nil {
		return nil
	}
	_, err := m.meter.Int64ObservableGauge("reconcile.snapshot.orders",
		metric.WithDescription("Orders held in the local reconciliation snapshot"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(size()))
			return nil
		}),
	)
	return err
}
