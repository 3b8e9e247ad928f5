package messaging

import (
	"context"
	"slices"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// headerCarrier lets a propagator read and write trace context on kafka record headers.
// The last header wins when a key repeats.
type headerCarrier []kafka.Header

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)

func (h *headerCarrier) index(key string) int {
	hs := *h
	for i := len(hs) - 1; i >= 0; i-- {
		if hs[i].Key == key {
			return i
		}
	}
	return -1
}

func (h *headerCarrier) Get(key string) string {
	if i := h.index(key); i >= 0 {
		return string((*h)[i].Value)
	}
	return ""
}

func (h *headerCarrier) Set(key, value string) {
	if i := h.index(key); i >= 0 {
		(*h)[i].Value = []byte(value)
		return
	}
	*h = append(*h, kafka.Header{Key: key, Value: []byte(value)})
}

func (h *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*h))
	for _, hdr := range *h {
		if !slices.Contains(keys, hdr.Key) {
			keys = append(keys, hdr.Key)
		}
	}
	return keys
}

// injectTraceContext stamps the span in ctx onto msg's headers.
func injectTraceContext(ctx context.Context, msg *kafka.Message) {
	carrier := headerCarrier(msg.Headers)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	msg.Headers = carrier
}

// extractTraceContext returns ctx with the remote span carried by msg, if any.
func extractTraceContext(ctx context.Context, msg kafka.Message) context.Context {
	carrier := headerCarrier(msg.Headers)
	return otel.GetTextMapPropagator().Extract(ctx, &carrier)
}
