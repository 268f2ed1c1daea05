package payment

import (
	"context"

	"github.com/ariefcatur/go-apparel-checkout/internal/orders"
)

// CashOnDelivery places the order at checkout. No provider is called and the
// order counts as settled immediately; there is never anything to refund.
type CashOnDelivery struct{}

func (CashOnDelivery) Method() orders.PaymentMethod { return orders.MethodCOD }
func (CashOnDelivery) ReserveBeforeCreate() bool { return true }
func (CashOnDelivery) SettledOnCreate() bool { return true }

func (CashOnDelivery) Begin(context.Context, Request) (*Handle, error) { return nil, nil }
