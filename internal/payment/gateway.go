package payment

import (
	"context"

	"github.com/ariefcatur/go-apparel-checkout/internal/orders"
	"github.com/shopspring/decimal"
)

// Request is what a gateway needs to open a payment for a freshly built order.
type Request struct {
	OrderID     string
	Items       []orders.LineItem
	DeliveryFee decimal.Decimal
	Amount      decimal.Decimal
	// Origin is the storefront base URL the hosted checkout returns to.
	Origin string
}

// Handle is returned to the client so it can complete payment.
type Handle struct {
	RedirectURL    string `json:"redirect_url,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	GatewayOrderID string `json:"gateway_order_id,omitempty"`
	AmountMinor    int64  `json:"amount,omitempty"`
	Currency       string `json:"currency,omitempty"`
}

// Ref is the provider reference persisted on the order.
func (h *Handle) Ref() string {
	if h == nil {
		return ""
	}
	if h.GatewayOrderID != "" {
		return h.GatewayOrderID
	}
	return h.SessionID
}

// Gateway is one payment method. The checkout orchestrator only looks at
// these properties, never at the method name.
type Gateway interface {
	Method() orders.PaymentMethod
	// ReserveBeforeCreate: stock is taken at checkout. Otherwise it is taken
	// when the settlement callback arrives.
	ReserveBeforeCreate() bool
	// SettledOnCreate: the order is recorded as paid the moment it is placed.
	SettledOnCreate() bool
	Begin(ctx context.Context, req Request) (*Handle, error)
}

// Status is a polled gateway order.
type Status struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Receipt string `json:"receipt"`
}

func (s Status) Paid() bool { return s.Status == "paid" }

// Poller is implemented by create-then-poll gateways.
type Poller interface {
	FetchStatus(ctx context.Context, gatewayOrderID string) (*Status, error)
}
