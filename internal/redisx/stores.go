package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-apparel-checkout/internal/checkout"
	"github.com/redis/go-redis/v9"
)

const pending = "pending"

// Idempotency implements checkout.Idempotency with SETNX. A claim is held as
// "pending" for a short TTL so a crashed request does not lock the key for a day.
type Idempotency struct{ RDB *redis.Client }

func (s *Idempotency) Claim(ctx context.Context, userID, key string) (*checkout.Receipt, bool, error) {
	k := fmt.Sprintf(KeyIdemCheckout, userID, key)
	ok, err := s.RDB.SetNX(ctx, k, pending, TTLIdemPending).Result()
	if err != nil {
		return nil, false, err
	}
	if ok {
		return nil, true, nil
	}
	v, err := s.RDB.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls; report as in flight
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if v == pending {
		return nil, false, nil
	}
	var r checkout.Receipt
	if err := json.Unmarshal([]byte(v), &r); err != nil {
		return nil, false, fmt.Errorf("idempotency: decode %s: %w", k, err)
	}
	return &r, false, nil
}

func (s *Idempotency) Complete(ctx context.Context, userID, key string, r checkout.Receipt) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.RDB.Set(ctx, fmt.Sprintf(KeyIdemCheckout, userID, key), b, TTLIdempotency).Err()
}

func (s *Idempotency) Release(ctx context.Context, userID, key string) error {
	return s.RDB.Del(ctx, fmt.Sprintf(KeyIdemCheckout, userID, key)).Err()
}

// StatusCache implements checkout.StatusCache.
type StatusCache struct{ RDB *redis.Client }

func (c *StatusCache) Get(ctx context.Context, orderID string) (*checkout.StatusEntry, bool, error) {
	raw, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var e checkout.StatusEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, false, fmt.Errorf("decode status %s: %w", orderID, err)
	}
	return &e, true, nil
}

func (c *StatusCache) Put(ctx context.Context, orderID string, e checkout.StatusEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.RDB.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), string(b), TTLStatusCache).Err()
}

func (c *StatusCache) Drop(ctx context.Context, orderID string) error {
	return c.RDB.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err()
}

// Dedup remembers processed event ids per consuming service.
type Dedup struct {
	RDB     *redis.Client
	Service string
}

// Mark records eventID and reports whether it had been seen before.
func (d *Dedup) Mark(ctx context.Context, eventID string) (seen bool, err error) {
	ok, err := d.RDB.SetNX(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID), "1", TTLDedup).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Forget drops the mark so a failed event can be processed on redelivery.
func (d *Dedup) Forget(ctx context.Context, eventID string) error {
	return d.RDB.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID)).Err()
}

// Carts clears the storefront cart kept by the web tier.
type Carts struct{ RDB *redis.Client }

func (c *Carts) Clear(ctx context.Context, userID string) error {
	return c.RDB.Del(ctx, fmt.Sprintf(KeyCart, userID)).Err()
}
