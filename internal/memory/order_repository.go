package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
	"github.com/ariefcatur/go-apparel-checkout/internal/orders"
)

type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*orders.Order
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[string]*orders.Order)}
}

func (r *OrderRepository) Insert(_ context.Context, o *orders.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[o.ID]; ok {
		return apperr.Validation("order %s already exists", o.ID)
	}
	r.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *OrderRepository) Get(_ context.Context, id string) (*orders.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, apperr.NotFound("order %s not found", id)
	}
	return cloneOrder(o), nil
}

func (r *OrderRepository) ListByUser(_ context.Context, userID string) ([]orders.Order, error) {
	return r.list(func(o *orders.Order) bool { return o.UserID == userID })
}

func (r *OrderRepository) ListAll(context.Context) ([]orders.Order, error) {
	return r.list(func(*orders.Order) bool { return true })
}

func (r *OrderRepository) list(keep func(*orders.Order) bool) ([]orders.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []orders.Order
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *OrderRepository) Update(_ context.Context, o *orders.Order, expectVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.orders[o.ID]
	if !ok {
		return apperr.NotFound("order %s not found", o.ID)
	}
	if cur.Version != expectVersion {
		return apperr.InvalidTransition("order %s was modified concurrently", o.ID)
	}

	next := cloneOrder(cur)
	next.Status = o.Status
	next.Payment = o.Payment
	next.Refunded = o.Refunded
	next.GatewayRef = o.GatewayRef
	next.EstimatedDelivery = o.EstimatedDelivery
	next.UpdatedAt = time.Now().UTC()
	next.Version = expectVersion + 1
	r.orders[o.ID] = next

	o.Version = next.Version
	o.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *OrderRepository) Delete(_ context.Context, id string, expectVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.orders[id]
	if !ok {
		return apperr.NotFound("order %s not found", id)
	}
	if cur.Version != expectVersion {
		return apperr.InvalidTransition("order %s was modified concurrently", id)
	}
	delete(r.orders, id)
	return nil
}

func cloneOrder(o *orders.Order) *orders.Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]orders.LineItem(nil), o.Items...)
	return &c
}
