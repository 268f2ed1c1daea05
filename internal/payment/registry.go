package payment

import (
	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
	"github.com/ariefcatur/go-apparel-checkout/internal/orders"
)

// Registry resolves a payment method to its gateway once per checkout.
type Registry struct {
	gateways map[orders.PaymentMethod]Gateway
}

func NewRegistry(gws ...Gateway) *Registry {
	r := &Registry{gateways: make(map[orders.PaymentMethod]Gateway, len(gws))}
	for _, g := range gws {
		r.gateways[g.Method()] = g
	}
	return r
}

func (r *Registry) Resolve(method orders.PaymentMethod) (Gateway, error) {
	g, ok := r.gateways[method]
	if !ok {
		return nil, apperr.Validation("unsupported payment method %q", method)
	}
	return g, nil
}

// Poller returns the gateway for method if it supports status polling.
func (r *Registry) Poller(method orders.PaymentMethod) (Poller, error) {
	g, err := r.Resolve(method)
	if err != nil {
		return nil, err
	}
	p, ok := g.(Poller)
	if !ok {
		return nil, apperr.Validation("payment method %q cannot be polled", method)
	}
	return p, nil
}
