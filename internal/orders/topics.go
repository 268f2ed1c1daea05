package orders

const (
	TopicOrderPlaced     = "order.placed"
	TopicPaymentSettled  = "order.payment.settled"
	TopicPaymentFailed   = "order.payment.failed"
	TopicOrderCanceled   = "order.canceled"
	TopicStatusChanged   = "order.status.changed"
	TopicRefundUpdated   = "order.refund.updated"
	TopicDeliveryUpdated = "order.delivery.updated"

	// consumed by cmd/settlement
	TopicPaymentResult = "payment.result"
)

// Partition key = order id, so every event of one order stays ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }

var eventTopics = map[string]string{
	EventOrderPlaced:     TopicOrderPlaced,
	EventPaymentSettled:  TopicPaymentSettled,
	EventPaymentFailed:   TopicPaymentFailed,
	EventOrderCanceled:   TopicOrderCanceled,
	EventStatusChanged:   TopicStatusChanged,
	EventRefundUpdated:   TopicRefundUpdated,
	EventDeliveryUpdated: TopicDeliveryUpdated,
	EventPaymentResult:   TopicPaymentResult,
}

func TopicFor(eventType string) string { return eventTopics[eventType] }
