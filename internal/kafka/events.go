package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ariefcatur/go-apparel-checkout/internal/orders"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
)

const eventVersion = 1

// OrderEvents publishes order lifecycle envelopes keyed by order id.
type OrderEvents struct {
	Producer *Producer
	Service  string
}

func (e *OrderEvents) Emit(ctx context.Context, eventType string, o *orders.Order) error {
	topic := orders.TopicFor(eventType)
	if topic == "" {
		return fmt.Errorf("kafka: no topic for event %q", eventType)
	}
	payload, err := json.Marshal(orders.Snapshot(o))
	if err != nil {
		return fmt.Errorf("kafka: encode %s payload: %w", eventType, err)
	}
	b, err := json.Marshal(e.envelope(ctx, eventType, o.ID, payload))
	if err != nil {
		return fmt.Errorf("kafka: encode %s envelope: %w", eventType, err)
	}
	return e.Producer.Publish(topic, orders.PartitionKey(o.ID), b, headers(eventType)...)
}

// EmitPaymentResult queues a gateway notification for cmd/settlement.
func (e *OrderEvents) EmitPaymentResult(ctx context.Context, p orders.PaymentResultPayload) error {
	key := p.OrderID
	if key == "" {
		key = p.GatewayOrderID
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	b, err := json.Marshal(e.envelope(ctx, orders.EventPaymentResult, key, payload))
	if err != nil {
		return err
	}
	return e.Producer.Publish(orders.TopicPaymentResult, orders.PartitionKey(key), b, headers(orders.EventPaymentResult)...)
}

func (e *OrderEvents) envelope(ctx context.Context, eventType, correlationID string, payload []byte) orders.Envelope {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.Service,
		CorrelationID: correlationID,
		Payload:       payload,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		ev.TraceID = sc.TraceID().String()
	}
	return ev
}

func headers(eventType string) []kafka.Header {
	return []kafka.Header{
		{Key: "x-event-type", Value: []byte(eventType)},
		{Key: "x-event-version", Value: []byte(strconv.Itoa(eventVersion))},
	}
}
