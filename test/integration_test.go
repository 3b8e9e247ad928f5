//go:build integration

package test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/joao-fontenele/tableorder/internal/backendapi"
	"github.com/joao-fontenele/tableorder/internal/checkout"
	"github.com/joao-fontenele/tableorder/internal/domain"
	"github.com/joao-fontenele/tableorder/internal/messaging"
	"github.com/joao-fontenele/tableorder/internal/payment/paymenttest"
	"github.com/joao-fontenele/tableorder/internal/receipt"
	"github.com/joao-fontenele/tableorder/internal/reconcile"
)

func TestManualCheckoutPersistsOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	server, repo := StartBackend(ctx, t, pg.ConnStr, nil)
	client := backendapi.NewClient(server.URL, server.Client())
	service := checkout.NewService(client, checkout.SingleGateway(&paymenttest.Gateway{}), nil, discardLogger())

	result := service.Checkout(ctx, checkout.Request{
		Cart:          []domain.CartLine{{MenuItemID: 1, Quantity: 2}},
		TableNumber:   5,
		CustomerName:  "Budi",
		PaymentMethod: "manual",
	})
	if !result.Success {
		t.Fatalf("checkout failed: %s", result.Message)
	}

	order, err := repo.GetOrder(ctx, result.OrderID)
	if err != nil {
		t.Fatalf("failed to fetch order from DB: %v", err)
	}
	if order.TotalAmount != 30000 {
		t.Fatalf("expected total 30000, got %d", order.TotalAmount)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected status pending, got %s", order.Status)
	}
	if len(order.Items) != 1 || order.Items[0].Name != "Nasi Goreng" || order.Items[0].UnitPrice != 15000 {
		t.Fatalf("unexpected order lines: %+v", order.Items)
	}

	payments, err := repo.ListPayments(ctx)
	if err != nil {
		t.Fatalf("failed to list payments: %v", err)
	}
	if len(payments) != 1 || payments[0].OrderID != order.ID || payments[0].PaymentMethod != domain.PaymentMethodManual {
		t.Fatalf("unexpected payments: %+v", payments)
	}
}

func TestDigitalCheckoutRecordsOnePayment(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	server, repo := StartBackend(ctx, t, pg.ConnStr, nil)
	client := backendapi.NewClient(server.URL, server.Client())
	gw := &paymenttest.Gateway{Outcome: paymenttest.OutcomePaid}
	service := checkout.NewService(client, checkout.SingleGateway(gw), nil, discardLogger())

	result := service.Checkout(ctx, checkout.Request{
		Cart:          []domain.CartLine{{MenuItemID: 2, Quantity: 3}},
		TableNumber:   2,
		CustomerName:  "Sari",
		PaymentMethod: "qris",
	})
	if !result.Success || result.SnapToken == "" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if tokens := gw.Tokens(); len(tokens) != 1 || tokens[0] != result.SnapToken {
		t.Fatalf("gateway opened with %v, want %s", tokens, result.SnapToken)
	}

	again, err := client.InitDigitalPayment(ctx, result.OrderID, "Sari")
	if err != nil {
		t.Fatalf("failed to re-init payment: %v", err)
	}
	if again.Payment.ID != result.PaymentID || again.Token != result.SnapToken {
		t.Fatalf("retry created a new payment: %+v", again)
	}

	order, err := repo.GetOrder(ctx, result.OrderID)
	if err != nil {
		t.Fatalf("failed to fetch order: %v", err)
	}
	if order.PaymentMethod != domain.PaymentMethodQRIS || order.TotalAmount != 24000 {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestIdempotencyKeyDeduplicatesOrders(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	server, repo := StartBackend(ctx, t, pg.ConnStr, nil)
	client := backendapi.NewClient(server.URL, server.Client())

	req := backendapi.CreateGuestOrderRequest{
		TableNumber:  7,
		CustomerName: "Ayu",
		Items:        []backendapi.GuestOrderItem{{MenuID: 3, Quantity: 1}},
	}
	first, err := client.CreateGuestOrder(ctx, req, "key-ayu")
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	second, err := client.CreateGuestOrder(ctx, req, "key-ayu")
	if err != nil {
		t.Fatalf("failed to repeat order: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected one order, got %d and %d", first.ID, second.ID)
	}

	orders, err := repo.ListOrders(ctx)
	if err != nil {
		t.Fatalf("failed to list orders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}

	_, err = client.CreateGuestOrder(ctx, backendapi.CreateGuestOrderRequest{
		TableNumber:  7,
		CustomerName: "Ayu",
		Items:        []backendapi.GuestOrderItem{{MenuID: 404, Quantity: 1}},
	}, "")
	var apiErr *backendapi.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 422 {
		t.Fatalf("expected 422 for unknown menu item, got %v", err)
	}
}

func TestConsolesConvergeOnBackendState(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	server, repo := StartBackend(ctx, t, pg.ConnStr, nil)
	client := backendapi.NewClient(server.URL, server.Client())
	logger := discardLogger()

	order, err := client.CreateGuestOrder(ctx, backendapi.CreateGuestOrderRequest{
		TableNumber:  5,
		CustomerName: "Budi",
		Items:        []backendapi.GuestOrderItem{{MenuID: 1, Quantity: 2}},
	}, "")
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	if _, err := client.CreateManualPayment(ctx, order.ID); err != nil {
		t.Fatalf("failed to create payment: %v", err)
	}

	loopA := reconcile.NewLoop(client, time.Hour, nil, logger)
	loopB := reconcile.NewLoop(client, time.Hour, nil, logger)
	for _, l := range []*reconcile.Loop{loopA, loopB} {
		if err := l.Refresh(ctx); err != nil {
			t.Fatalf("initial refresh failed: %v", err)
		}
	}

	printer := &capturePrinter{}
	consoleA := reconcile.NewConsole(client, loopA, printer, nil, logger)
	consoleB := reconcile.NewConsole(client, loopB, receipt.NewLogPrinter(logger), nil, logger)

	if _, err := consoleA.Advance(ctx, order.ID, domain.OrderStatusReady); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected pending -> ready to be rejected, got %v", err)
	}

	res, err := consoleA.Accept(ctx, order.ID, domain.AcceptAndPrint)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if res.Order.Status != domain.OrderStatusAccepted || !res.ReceiptIssued {
		t.Fatalf("unexpected accept result: %+v", res)
	}
	if printer.count() != 1 {
		t.Fatalf("expected one receipt, got %d", printer.count())
	}

	// B still believes the order is pending; the backend rejects its stale accept.
	if _, err := consoleB.Accept(ctx, order.ID, domain.AcceptOnly); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected stale accept to be rejected, got %v", err)
	}

	if err := loopB.Refresh(ctx); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	a, _ := loopA.Snapshot().Order(order.ID)
	b, _ := loopB.Snapshot().Order(order.ID)
	if a.Status != domain.OrderStatusAccepted || b.Status != domain.OrderStatusAccepted {
		t.Fatalf("consoles disagree: A=%s B=%s", a.Status, b.Status)
	}

	stored, err := repo.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to fetch order: %v", err)
	}
	if stored.Status != domain.OrderStatusAccepted {
		t.Fatalf("expected accepted in DB, got %s", stored.Status)
	}
}

func TestKafkaConnection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	brokers, cleanup := SetupKafka(ctx, t)
	defer cleanup()

	if len(brokers) == 0 {
		t.Fatal("expected at least one broker")
	}
	t.Logf("kafka brokers: %v", brokers)
}

func TestOrderStatusEventsReachConsole(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	brokers, cleanupKafka := SetupKafka(ctx, t)
	defer cleanupKafka()
	CreateTopics(t, brokers[0], messaging.TopicOrderStatusChanged, messaging.TopicPaymentStatusChanged)

	producer := messaging.NewProducer(brokers)
	defer func() { _ = producer.Close() }()

	server, _ := StartBackend(ctx, t, pg.ConnStr, producer)
	client := backendapi.NewClient(server.URL, server.Client())

	consumer := messaging.NewConsumer(brokers, messaging.TopicOrderStatusChanged, "it-console", discardLogger(),
		messaging.WithStartOffset(kafkago.FirstOffset))
	defer func() { _ = consumer.Close() }()

	events := make(chan domain.OrderStatusChangedEvent, 4)
	consumeCtx, stopConsume := context.WithCancel(ctx)
	defer stopConsume()
	go func() {
		_ = consumer.Consume(consumeCtx, messaging.OrderStatusChanged(func(_ context.Context, e domain.OrderStatusChangedEvent) error {
			events <- e
			return nil
		}))
	}()

	order, err := client.CreateGuestOrder(ctx, backendapi.CreateGuestOrderRequest{
		TableNumber:  1,
		CustomerName: "Dewi",
		Items:        []backendapi.GuestOrderItem{{MenuID: 5, Quantity: 1}},
	}, "")
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	if _, err := client.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusAccepted); err != nil {
		t.Fatalf("failed to accept order: %v", err)
	}

	select {
	case e := <-events:
		if e.OrderID != order.ID || e.From != domain.OrderStatusPending || e.To != domain.OrderStatusAccepted {
			t.Fatalf("unexpected event: %+v", e)
		}
	case <-time.After(60 * time.Second):
		t.Fatal("order status event not delivered")
	}
}

type capturePrinter struct {
	mu       sync.Mutex
	receipts []receipt.Receipt
}

func (p *capturePrinter) Print(_ context.Context, r receipt.Receipt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receipts = append(p.receipts, r)
	return nil
}

func (p *capturePrinter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.receipts)
}
