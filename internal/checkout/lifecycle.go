package checkout

import (
	"context"
	"time"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
	"github.com/ariefcatur/go-apparel-checkout/internal/orders"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ConfirmPayment applies the hosted checkout callback. Success takes the
// stock and places the order; failure purges it.
func (s *Service) ConfirmPayment(ctx context.Context, orderID string, success bool) (o *orders.Order, err error) {
	ctx, span := tracer.Start(ctx, "checkout.ConfirmPayment",
		trace.WithAttributes(attribute.String("order.id", orderID), attribute.Bool("payment.success", success)))
	defer func() { endSpan(span, err, outcomeOf(err)) }()

	o, err = s.Orders.ConfirmSettlement(ctx, orderID, success)
	if err != nil {
		return nil, err
	}
	if !success {
		s.uncache(ctx, o.ID)
		s.emit(ctx, orders.EventPaymentFailed, o)
		s.logger(ctx).Info("payment_abandoned", zap.String("order_id", o.ID))
		return o, nil
	}
	s.cache(ctx, o)
	s.emit(ctx, orders.EventPaymentSettled, o)
	s.clearCart(ctx, o.UserID)
	return o, nil
}

// Verification is the outcome of polling a gateway order.
type Verification struct {
	OrderID string `json:"order_id"`
	Paid    bool   `json:"paid"`
}

// VerifyGatewayPayment polls the provider on behalf of the buyer.
func (s *Service) VerifyGatewayPayment(ctx context.Context, userID, gatewayOrderID string) (*Verification, error) {
	if userID == "" {
		return nil, apperr.Unauthorized("user id is required")
	}
	return s.verifyGateway(ctx, userID, gatewayOrderID)
}

// SettleGatewayOrder is the system-side variant used by the settlement
// consumer; it has no buyer to check against.
func (s *Service) SettleGatewayOrder(ctx context.Context, gatewayOrderID string) (*Verification, error) {
	return s.verifyGateway(ctx, "", gatewayOrderID)
}

func (s *Service) verifyGateway(ctx context.Context, userID, gatewayOrderID string) (v *Verification, err error) {
	ctx, span := tracer.Start(ctx, "checkout.VerifyGatewayPayment",
		trace.WithAttributes(attribute.String("gateway.order_id", gatewayOrderID)))
	defer func() { endSpan(span, err, outcomeOf(err)) }()

	poller, err := s.Gateways.Poller(orders.MethodGatewayOrder)
	if err != nil {
		return nil, err
	}
	st, err := poller.FetchStatus(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if st.Receipt == "" {
		return nil, apperr.Gateway(nil, "gateway order %s carries no receipt", gatewayOrderID)
	}

	o, err := s.Orders.Get(ctx, st.Receipt)
	if err != nil {
		return nil, err
	}
	if userID != "" && o.UserID != userID {
		return nil, apperr.Unauthorized("order %s does not belong to the requester", o.ID)
	}
	if o.GatewayRef != "" && o.GatewayRef != gatewayOrderID {
		return nil, apperr.Validation("gateway order %s does not belong to order %s", gatewayOrderID, o.ID)
	}
	span.SetAttributes(attribute.String("order.id", o.ID), attribute.String("gateway.status", st.Status))

	if !st.Paid() {
		return &Verification{OrderID: o.ID, Paid: false}, nil
	}

	o, err = s.Orders.MarkPaid(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, o)
	s.emit(ctx, orders.EventPaymentSettled, o)
	s.clearCart(ctx, o.UserID)
	return &Verification{OrderID: o.ID, Paid: true}, nil
}

// CancelOrder cancels on behalf of the buyer. When the stock restore fails
// the cancellation still stands and the error is returned for alerting.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID string) (o *orders.Order, err error) {
	ctx, span := tracer.Start(ctx, "checkout.CancelOrder",
		trace.WithAttributes(attribute.String("order.id", orderID), attribute.String("user.id", userID)))
	defer func() { endSpan(span, err, outcomeOf(err)) }()

	if userID == "" {
		return nil, apperr.Unauthorized("user id is required")
	}
	o, err = s.Orders.Cancel(ctx, orderID, userID)
	if o != nil {
		s.cache(ctx, o)
		s.emit(ctx, orders.EventOrderCanceled, o)
	}
	return o, err
}

func (s *Service) UpdateStatus(ctx context.Context, orderID string, status orders.Status) (*orders.Order, error) {
	o, err := s.Orders.UpdateStatus(ctx, orderID, status)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, o)
	s.emit(ctx, orders.EventStatusChanged, o)
	return o, nil
}

func (s *Service) SetRefunded(ctx context.Context, orderID string, refunded bool) (*orders.Order, error) {
	o, err := s.Orders.SetRefunded(ctx, orderID, refunded)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, o)
	s.emit(ctx, orders.EventRefundUpdated, o)
	return o, nil
}

func (s *Service) SetEstimatedDelivery(ctx context.Context, orderID string, at time.Time) (*orders.Order, error) {
	o, err := s.Orders.SetEstimatedDelivery(ctx, orderID, at)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, orders.EventDeliveryUpdated, o)
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, userID string) ([]orders.Order, error) {
	return s.Orders.ListByUser(ctx, userID)
}

func (s *Service) ListAllOrders(ctx context.Context) ([]orders.Order, error) {
	return s.Orders.ListAll(ctx)
}

// OrderStatus serves the buyer's status view, from cache when possible.
func (s *Service) OrderStatus(ctx context.Context, userID, orderID string) (*StatusEntry, error) {
	if userID == "" {
		return nil, apperr.Unauthorized("user id is required")
	}
	if s.Status != nil {
		e, ok, err := s.Status.Get(ctx, orderID)
		if err != nil {
			s.logger(ctx).Warn("status_cache_get_failed", zap.String("order_id", orderID), zap.Error(err))
		}
		if ok {
			if e.UserID != userID {
				return nil, apperr.Unauthorized("order %s does not belong to the requester", orderID)
			}
			return e, nil
		}
	}

	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, apperr.Unauthorized("order %s does not belong to the requester", orderID)
	}
	s.cache(ctx, o)
	return &StatusEntry{UserID: o.UserID, Status: o.Status, Payment: o.Payment, UpdatedAt: o.UpdatedAt}, nil
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	return string(apperr.KindOf(err))
}
