package checkout

import (
	"context"
	"time"

	"github.com/ariefcatur/go-apparel-checkout/internal/orders"
	"github.com/ariefcatur/go-apparel-checkout/internal/payment"
)

// Publisher emits order lifecycle events. Publishing is best effort; a
// failure is logged and never undoes the state change.
type Publisher interface {
	Emit(ctx context.Context, eventType string, o *orders.Order) error
}

// Receipt is what a completed checkout leaves under its idempotency key.
type Receipt struct {
	OrderID string          `json:"order_id"`
	Payment *payment.Handle `json:"payment,omitempty"`
}

// Idempotency guards POST /checkout against client retries.
type Idempotency interface {
	// Claim reserves key for userID. When the key was already completed it
	// returns the stored receipt and claimed=false. A claim still in flight
	// returns claimed=false with a nil receipt.
	Claim(ctx context.Context, userID, key string) (prev *Receipt, claimed bool, err error)
	Complete(ctx context.Context, userID, key string, r Receipt) error
	Release(ctx context.Context, userID, key string) error
}

// StatusEntry is the cached view served by the order status endpoint.
type StatusEntry struct {
	UserID    string        `json:"user_id"`
	Status    orders.Status `json:"status"`
	Payment   bool          `json:"payment"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type StatusCache interface {
	Get(ctx context.Context, orderID string) (*StatusEntry, bool, error)
	Put(ctx context.Context, orderID string, e StatusEntry) error
	Drop(ctx context.Context, orderID string) error
}

// CartClearer empties the buyer's cart once an order is placed.
type CartClearer interface {
	Clear(ctx context.Context, userID string) error
}

type noopCart struct{}

func (noopCart) Clear(context.Context, string) error { return nil }
