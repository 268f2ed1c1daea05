// Package checkout turns a cart into an order: it prices the lines, checks and
// reserves stock at the point the payment method requires, opens the payment
// and records the order. It also fronts the lifecycle operations so every
// state change is cached and published the same way.
package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
	"github.com/ariefcatur/go-apparel-checkout/internal/catalog"
	"github.com/ariefcatur/go-apparel-checkout/internal/inventory"
	"github.com/ariefcatur/go-apparel-checkout/internal/logging"
	"github.com/ariefcatur/go-apparel-checkout/internal/metrics"
	"github.com/ariefcatur/go-apparel-checkout/internal/money"
	"github.com/ariefcatur/go-apparel-checkout/internal/orders"
	"github.com/ariefcatur/go-apparel-checkout/internal/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("apparel.checkout")

type Service struct {
	Catalog  catalog.Lookup
	Checker  *inventory.Checker
	Stock    orders.Stock
	Orders   *orders.Manager
	Gateways *payment.Registry

	// optional
	Events Publisher
	Idem   Idempotency
	Status StatusCache
	Carts  CartClearer

	DeliveryFee  decimal.Decimal
	DeliveryDays int

	Log     *zap.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

type Input struct {
	UserID string
	Items  []Item
	// Cart is used when Items is empty.
	Cart    Cart
	Address orders.Address
	// Amount is the total the client expects to pay. Zero means "whatever it costs".
	Amount         decimal.Decimal
	Method         orders.PaymentMethod
	Origin         string
	IdempotencyKey string
}

type Result struct {
	OrderID  string          `json:"order_id"`
	Status   orders.Status   `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Payment  *payment.Handle `json:"payment,omitempty"`
	Replayed bool            `json:"replayed,omitempty"`
}

// Checkout places an order. Cash and gateway orders take stock before the
// order is recorded; hosted checkout orders are recorded unsettled and take
// stock when the payment callback confirms them.
func (s *Service) Checkout(ctx context.Context, in Input) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "checkout.Checkout",
		trace.WithAttributes(
			attribute.String("user.id", in.UserID),
			attribute.String("payment.method", string(in.Method)),
		),
	)
	start := time.Now()
	outcome := "success"

	defer func() {
		if err != nil {
			outcome = string(apperr.KindOf(err))
		}
		endSpan(span, err, outcome)
		s.Metrics.ObserveCheckout(string(in.Method), outcome, time.Since(start))

		fields := []zap.Field{
			zap.String("user_id", in.UserID),
			zap.String("method", string(in.Method)),
			zap.String("outcome", outcome),
			zap.Duration("latency", time.Since(start)),
		}
		if res != nil {
			fields = append(fields, zap.String("order_id", res.OrderID))
		}
		if sc := span.SpanContext(); sc.IsValid() {
			fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		s.logger(ctx).Info("checkout_done", fields...)
	}()

	if in.UserID == "" {
		return nil, apperr.Unauthorized("user id is required")
	}
	if err := in.Address.Validate(); err != nil {
		return nil, err
	}
	gw, err := s.Gateways.Resolve(in.Method)
	if err != nil {
		return nil, err
	}
	items := in.Items
	if len(items) == 0 {
		items = in.Cart.Flatten()
	}
	if len(items) == 0 {
		return nil, apperr.Validation("cart is empty")
	}

	if in.IdempotencyKey != "" && s.Idem != nil {
		prev, cerr := s.claim(ctx, in)
		if cerr != nil {
			return nil, cerr
		}
		if prev != nil {
			outcome = "replay"
			span.AddEvent("checkout.idempotent_replay", trace.WithAttributes(attribute.String("order.id", prev.OrderID)))
			return prev, nil
		}
		defer func() {
			bg := context.WithoutCancel(ctx)
			if err != nil {
				if rerr := s.Idem.Release(bg, in.UserID, in.IdempotencyKey); rerr != nil {
					s.logger(ctx).Warn("idempotency_release_failed", zap.Error(rerr))
				}
				return
			}
			if cerr := s.Idem.Complete(bg, in.UserID, in.IdempotencyKey, Receipt{OrderID: res.OrderID, Payment: res.Payment}); cerr != nil {
				s.logger(ctx).Warn("idempotency_complete_failed", zap.String("order_id", res.OrderID), zap.Error(cerr))
			}
		}()
	}

	lines, err := s.price(ctx, items)
	if err != nil {
		return nil, err
	}
	total := orders.ItemsTotal(lines).Add(s.DeliveryFee)
	if !in.Amount.IsZero() && !in.Amount.Equal(total) {
		return nil, apperr.Validation("amount %s does not match order total %s", in.Amount.StringFixed(2), total.StringFixed(2))
	}

	now := s.now()
	o := &orders.Order{
		ID:                uuid.NewString(),
		UserID:            in.UserID,
		Items:             lines,
		Address:           in.Address,
		Amount:            total,
		PaymentMethod:     in.Method,
		Payment:           gw.SettledOnCreate(),
		Status:            orders.StatusAwaitingPayment,
		CreatedAt:         now,
		UpdatedAt:         now,
		EstimatedDelivery: now.AddDate(0, 0, s.DeliveryDays),
	}
	span.SetAttributes(attribute.String("order.id", o.ID))

	if err := s.Checker.Check(ctx, o.Lines()); err != nil {
		return nil, err
	}

	reserved := gw.ReserveBeforeCreate()
	if reserved {
		if err := s.Stock.Reserve(ctx, o.Lines()); err != nil {
			return nil, err
		}
		o.Status = orders.StatusPlaced
	}

	handle, err := gw.Begin(ctx, payment.Request{
		OrderID:     o.ID,
		Items:       o.Items,
		DeliveryFee: s.DeliveryFee,
		Amount:      o.Amount,
		Origin:      in.Origin,
	})
	if err != nil {
		return nil, s.rollback(ctx, o, reserved, err)
	}
	o.GatewayRef = handle.Ref()

	if err := s.Orders.Create(ctx, o); err != nil {
		return nil, s.rollback(ctx, o, reserved, err)
	}

	s.cache(ctx, o)
	if o.Status == orders.StatusPlaced {
		s.emit(ctx, orders.EventOrderPlaced, o)
	}
	// nothing left for the buyer to do
	if handle == nil {
		s.clearCart(ctx, o.UserID)
	}
	span.AddEvent("order.created", trace.WithAttributes(attribute.String("order.status", string(o.Status))))

	return &Result{OrderID: o.ID, Status: o.Status, Amount: o.Amount, Payment: handle}, nil
}

// claim takes the idempotency key for this call. It returns the earlier
// result when the key was already completed, or nil once the key is held. A
// key whose order was purged after a failed payment is claimed afresh.
func (s *Service) claim(ctx context.Context, in Input) (*Result, error) {
	for range 2 {
		prev, claimed, err := s.Idem.Claim(ctx, in.UserID, in.IdempotencyKey)
		if err != nil {
			return nil, apperr.Internal(err, "idempotency claim")
		}
		if claimed {
			return nil, nil
		}
		if prev == nil {
			break
		}

		o, err := s.Orders.Get(ctx, prev.OrderID)
		if errors.Is(err, apperr.ErrNotFound) {
			s.logger(ctx).Info("idempotency_key_reopened", zap.String("order_id", prev.OrderID))
			if rerr := s.Idem.Release(ctx, in.UserID, in.IdempotencyKey); rerr != nil {
				return nil, apperr.Internal(rerr, "idempotency release")
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		res := &Result{OrderID: o.ID, Status: o.Status, Amount: o.Amount, Replayed: true}
		// the buyer may still need the redirect or gateway order to pay
		if !o.Payment && o.Status != orders.StatusCanceled {
			res.Payment = prev.Payment
		}
		return res, nil
	}
	return nil, apperr.InvalidTransition("checkout %q is already in progress", in.IdempotencyKey)
}

// price snapshots name and unit price of every requested line.
func (s *Service) price(ctx context.Context, items []Item) ([]orders.LineItem, error) {
	out := make([]orders.LineItem, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, apperr.Validation("quantity for %s (%s) %s must be positive", it.ProductID, it.Color, it.Size)
		}
		p, err := s.Catalog.GetProduct(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		v, ok := p.Variant(it.Color)
		if !ok {
			return nil, apperr.NotFound("%s has no color %s", p.Name, it.Color)
		}
		if _, ok := v.Size(it.Size); !ok {
			return nil, apperr.NotFound("%s (%s) has no size %s", p.Name, v.Color, it.Size)
		}
		out = append(out, orders.LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Color:     v.Color,
			Size:      it.Size,
			Quantity:  it.Quantity,
			Price:     money.Cents(v.Price),
		})
	}
	return out, nil
}

// rollback gives back stock taken for an order that never got recorded.
func (s *Service) rollback(ctx context.Context, o *orders.Order, reserved bool, cause error) error {
	if !reserved {
		return cause
	}
	if err := s.Stock.Restore(context.WithoutCancel(ctx), o.Lines()); err != nil {
		s.logger(ctx).Error("checkout_rollback_failed",
			zap.String("order_id", o.ID),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return errors.Join(cause, err)
	}
	return cause
}

func (s *Service) logger(ctx context.Context) *zap.Logger {
	l := s.Log
	if l == nil {
		l = zap.NewNop()
	}
	return logging.FromContext(ctx, l)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) emit(ctx context.Context, eventType string, o *orders.Order) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Emit(ctx, eventType, o); err != nil {
		s.logger(ctx).Warn("event_publish_failed",
			zap.String("event_type", eventType),
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}

func (s *Service) cache(ctx context.Context, o *orders.Order) {
	if s.Status == nil {
		return
	}
	e := StatusEntry{UserID: o.UserID, Status: o.Status, Payment: o.Payment, UpdatedAt: o.UpdatedAt}
	if err := s.Status.Put(ctx, o.ID, e); err != nil {
		s.logger(ctx).Warn("status_cache_put_failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func (s *Service) uncache(ctx context.Context, orderID string) {
	if s.Status == nil {
		return
	}
	if err := s.Status.Drop(ctx, orderID); err != nil {
		s.logger(ctx).Warn("status_cache_drop_failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (s *Service) clearCart(ctx context.Context, userID string) {
	carts := s.Carts
	if carts == nil {
		carts = noopCart{}
	}
	if err := carts.Clear(ctx, userID); err != nil {
		s.logger(ctx).Warn("cart_clear_failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func endSpan(span trace.Span, err error, status string) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
	} else {
		span.SetStatus(codes.Ok, status)
	}
	span.End()
}
