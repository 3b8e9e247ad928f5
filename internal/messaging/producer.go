package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/tableorder/internal/domain"
)

const (
	TopicOrderStatusChanged   = "order.status_changed"
	TopicPaymentStatusChanged = "payment.status_changed"
)

var producerTracer = otel.Tracer("messaging/producer")

// Producer writes status-change events. One writer serves every topic; the topic is set per message.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
		},
	}
}

// OrderStatusChanged is keyed by order id so every change of one order lands on one partition, in order.
func (p *Producer) OrderStatusChanged(ctx context.Context, event domain.OrderStatusChangedEvent) error {
	return p.publish(ctx, TopicOrderStatusChanged, strconv.FormatInt(event.OrderID, 10), event)
}

func (p *Producer) PaymentStatusChanged(ctx context.Context, event domain.PaymentStatusChangedEvent) error {
	return p.publish(ctx, TopicPaymentStatusChanged, strconv.FormatInt(event.OrderID, 10), event)
}

func (p *Producer) publish(ctx context.Context, topic, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	}

	ctx, span := producerTracer.Start(ctx, "send "+topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(topic),
			semconv.MessagingKafkaMessageKey(key),
		),
	)
	defer span.End()

	injectTraceContext(ctx, &msg)

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
