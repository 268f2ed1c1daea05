package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced     = "OrderPlaced"
	EventPaymentSettled  = "PaymentSettled"
	EventPaymentFailed   = "PaymentFailed"
	EventOrderCanceled   = "OrderCanceled"
	EventStatusChanged   = "OrderStatusChanged"
	EventRefundUpdated   = "OrderRefundUpdated"
	EventDeliveryUpdated = "OrderDeliveryUpdated"
	EventPaymentResult   = "PaymentResult"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// OrderSnapshot is the payload of every lifecycle event.
type OrderSnapshot struct {
	OrderID           string          `json:"order_id"`
	UserID            string          `json:"user_id"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	Status            Status          `json:"status"`
	Payment           bool            `json:"payment"`
	Refunded          bool            `json:"refunded"`
	Amount            decimal.Decimal `json:"amount"`
	Items             []LineItem      `json:"items,omitempty"`
	EstimatedDelivery time.Time       `json:"estimated_delivery"`
}

func Snapshot(o *Order) OrderSnapshot {
	return OrderSnapshot{
		OrderID:           o.ID,
		UserID:            o.UserID,
		PaymentMethod:     o.PaymentMethod,
		Status:            o.Status,
		Payment:           o.Payment,
		Refunded:          o.Refunded,
		Amount:            o.Amount,
		Items:             o.Items,
		EstimatedDelivery: o.EstimatedDelivery,
	}
}

// PaymentResultPayload is what POST /webhooks/payments relays from gateway notifications.
// Exactly one of OrderID (hosted checkout) or GatewayOrderID (gateway order) is set.
type PaymentResultPayload struct {
	OrderID        string `json:"order_id,omitempty"`
	GatewayOrderID string `json:"gateway_order_id,omitempty"`
	Success        bool   `json:"success"`
}
