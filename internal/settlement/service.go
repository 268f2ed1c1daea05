// Package settlement applies payment results relayed from gateway webhooks.
package settlement

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
	"github.com/ariefcatur/go-apparel-checkout/internal/checkout"
	kafkax "github.com/ariefcatur/go-apparel-checkout/internal/kafka"
	"github.com/ariefcatur/go-apparel-checkout/internal/logging"
	"github.com/ariefcatur/go-apparel-checkout/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Settler is the part of the checkout service this consumer drives.
type Settler interface {
	ConfirmPayment(ctx context.Context, orderID string, success bool) (*orders.Order, error)
	SettleGatewayOrder(ctx context.Context, gatewayOrderID string) (*checkout.Verification, error)
}

type Deduper interface {
	Mark(ctx context.Context, eventID string) (seen bool, err error)
	Forget(ctx context.Context, eventID string) error
}

type Service struct {
	Checkout Settler
	Dedup    Deduper // optional
	Log      *zap.Logger
}

// HandlePaymentResult is installed as the consumer handler. A nil return
// commits the offset.
func (s *Service) HandlePaymentResult(ctx context.Context, m kafkago.Message) error {
	log := s.logger()

	// 1) decode envelope; poison messages are logged and skipped
	var env orders.Envelope
	if err := kafkax.DecodeEnvelope(m.Value, &env); err != nil {
		log.Error("settlement_bad_message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventPaymentResult {
		return nil
	}
	log = log.With(zap.String("event_id", env.EventID), zap.String("trace_id", env.TraceID))
	ctx = logging.WithContext(ctx, log)

	// 2) dedup via Redis on event id
	if s.Dedup != nil && env.EventID != "" {
		seen, err := s.Dedup.Mark(ctx, env.EventID)
		if err != nil {
			return err
		}
		if seen {
			log.Debug("settlement_duplicate")
			return nil
		}
	}

	// 3) decode payload and apply
	p, err := kafkax.UnwrapPayload[orders.PaymentResultPayload](env.Payload)
	if err != nil {
		log.Error("settlement_bad_payload", zap.Error(err))
		return nil
	}

	err = s.apply(ctx, p)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperr.ErrInsufficientStock):
		// paid but the stock is gone; a refund or restock has to be done by hand
		log.Error("settlement_oversold",
			zap.String("order_id", p.OrderID),
			zap.String("gateway_order_id", p.GatewayOrderID),
			zap.Error(err),
		)
		return nil
	case errors.Is(err, apperr.ErrInvalidTransition), errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrUnauthorized):
		// already settled, purged, or not ours: nothing to retry
		log.Info("settlement_skipped", zap.String("order_id", p.OrderID), zap.Error(err))
		return nil
	default:
		if s.Dedup != nil && env.EventID != "" {
			if ferr := s.Dedup.Forget(context.WithoutCancel(ctx), env.EventID); ferr != nil {
				log.Warn("dedup_forget_failed", zap.Error(ferr))
			}
		}
		return err
	}
}

func (s *Service) apply(ctx context.Context, p orders.PaymentResultPayload) error {
	log := logging.FromContext(ctx, s.logger())

	switch {
	case p.GatewayOrderID != "":
		if !p.Success {
			log.Info("gateway_payment_unpaid", zap.String("gateway_order_id", p.GatewayOrderID))
			return nil
		}
		v, err := s.Checkout.SettleGatewayOrder(ctx, p.GatewayOrderID)
		if err != nil {
			return err
		}
		log.Info("gateway_payment_verified",
			zap.String("order_id", v.OrderID),
			zap.String("gateway_order_id", p.GatewayOrderID),
			zap.Bool("paid", v.Paid),
		)
		return nil

	case p.OrderID != "":
		o, err := s.Checkout.ConfirmPayment(ctx, p.OrderID, p.Success)
		if err != nil {
			return err
		}
		log.Info("hosted_payment_confirmed",
			zap.String("order_id", o.ID),
			zap.Bool("success", p.Success),
			zap.String("status", string(o.Status)),
		)
		return nil

	default:
		return apperr.Validation("payment result carries no order reference")
	}
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
