package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
	"github.com/ariefcatur/go-apparel-checkout/internal/inventory"
	"github.com/ariefcatur/go-apparel-checkout/internal/logging"
	"github.com/ariefcatur/go-apparel-checkout/internal/metrics"
	"go.uber.org/zap"
)

// Stock is the reservation side the manager needs; *inventory.Applier satisfies it.
type Stock interface {
	Reserve(ctx context.Context, lines []inventory.Line) error
	Restore(ctx context.Context, lines []inventory.Line) error
}

// Manager owns order status, settlement, cancellation and refund bookkeeping.
type Manager struct {
	repo    Repository
	stock   Stock
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewManager(repo Repository, stock Stock, log *zap.Logger, m *metrics.Metrics) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		repo:    repo,
		stock:   stock,
		log:     log,
		metrics: m,
	}
}

// Create persists a freshly built order. The caller checks the amount against
// its delivery fee; only the structural rules apply here.
func (m *Manager) Create(ctx context.Context, o *Order) error {
	if o.ID == "" || o.UserID == "" {
		return apperr.Validation("order id and user id are required")
	}
	if len(o.Items) == 0 {
		return apperr.Validation("order has no items")
	}
	if !o.PaymentMethod.Valid() {
		return apperr.Validation("unsupported payment method %q", o.PaymentMethod)
	}
	if o.Status != StatusPlaced && o.Status != StatusAwaitingPayment {
		return apperr.InvalidTransition("order cannot be created in status %q", o.Status)
	}
	if err := m.repo.Insert(ctx, o); err != nil {
		return fmt.Errorf("orders: insert: %w", err)
	}
	m.metrics.Transition(string(o.Status))
	return nil
}

func (m *Manager) Get(ctx context.Context, id string) (*Order, error) {
	if id == "" {
		return nil, apperr.Validation("order id is required")
	}
	return m.repo.Get(ctx, id)
}

func (m *Manager) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	if userID == "" {
		return nil, apperr.Unauthorized("user id is required")
	}
	return m.repo.ListByUser(ctx, userID)
}

func (m *Manager) ListAll(ctx context.Context) ([]Order, error) {
	return m.repo.ListAll(ctx)
}

// ConfirmSettlement resolves a hosted-checkout order. On success the stock is
// reserved and the order becomes placed and paid; on failure the order is
// purged, it never held stock.
func (m *Manager) ConfirmSettlement(ctx context.Context, orderID string, success bool) (*Order, error) {
	o, err := m.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusAwaitingPayment {
		return nil, apperr.InvalidTransition("order %s is already settled (%s)", o.ID, o.Status)
	}

	if !success {
		if err := m.repo.Delete(ctx, o.ID, o.Version); err != nil {
			return nil, fmt.Errorf("orders: purge unsettled: %w", err)
		}
		return o, nil
	}

	lines := o.Lines()
	if err := m.stock.Reserve(ctx, lines); err != nil {
		return nil, err
	}

	expect := o.Version
	o.Status = StatusPlaced
	o.Payment = true
	if err := m.repo.Update(ctx, o, expect); err != nil {
		// someone else settled it first; give our reservation back
		if rerr := m.stock.Restore(ctx, lines); rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		return nil, err
	}
	m.metrics.Transition(string(o.Status))
	return o, nil
}

// MarkPaid records settlement of a gateway order whose stock was reserved
// at checkout.
func (m *Manager) MarkPaid(ctx context.Context, orderID string) (*Order, error) {
	o, err := m.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch {
	case o.Payment:
		return nil, apperr.InvalidTransition("order %s is already paid", o.ID)
	case o.Status == StatusCanceled:
		return nil, apperr.InvalidTransition("order %s is canceled", o.ID)
	case o.Status == StatusAwaitingPayment:
		return nil, apperr.InvalidTransition("order %s must be confirmed through its checkout", o.ID)
	}
	expect := o.Version
	o.Payment = true
	if err := m.repo.Update(ctx, o, expect); err != nil {
		return nil, err
	}
	return o, nil
}

// Cancel moves a placed order to Canceled and gives its stock back.
// The status flip is committed first so two concurrent cancels cannot both
// restore.
func (m *Manager) Cancel(ctx context.Context, orderID, requester string) (*Order, error) {
	o, err := m.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != requester {
		return nil, apperr.Unauthorized("order %s does not belong to the requester", o.ID)
	}
	if !CanTransition(o.Status, StatusCanceled) {
		return nil, apperr.InvalidTransition("order %s cannot be canceled after processing (%s)", o.ID, o.Status)
	}

	held := o.HoldsStock()
	expect := o.Version
	o.Status = StatusCanceled
	if err := m.repo.Update(ctx, o, expect); err != nil {
		return nil, err
	}
	m.metrics.Transition(string(o.Status))

	if !held {
		return o, nil
	}
	if err := m.stock.Restore(ctx, o.Lines()); err != nil {
		logging.FromContext(ctx, m.log).Error("cancel_restore_failed",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
		return o, err
	}
	return o, nil
}

// SetRefunded flips the refund flag of a canceled, non-cash order and clears
// its payment flag. Setting the flag to its current value is rejected.
func (m *Manager) SetRefunded(ctx context.Context, orderID string, refunded bool) (*Order, error) {
	o, err := m.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch {
	case o.Status != StatusCanceled:
		return nil, apperr.InvalidTransition("order %s is not canceled (%s)", o.ID, o.Status)
	case o.PaymentMethod.IsCash():
		return nil, apperr.InvalidTransition("cash order %s has nothing to refund", o.ID)
	case o.Refunded == refunded:
		return nil, apperr.InvalidTransition("order %s refunded is already %t", o.ID, refunded)
	}

	expect := o.Version
	o.Refunded = refunded
	o.Payment = false
	if err := m.repo.Update(ctx, o, expect); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateStatus is the administrative move between fulfillment statuses.
func (m *Manager) UpdateStatus(ctx context.Context, orderID string, status Status) (*Order, error) {
	if !status.Known() {
		return nil, apperr.Validation("unknown status %q", status)
	}
	o, err := m.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanAdminSet(o.Status, status) {
		return nil, apperr.InvalidTransition("order %s cannot move from %q to %q", o.ID, o.Status, status)
	}

	expect := o.Version
	o.Status = status
	if err := m.repo.Update(ctx, o, expect); err != nil {
		return nil, err
	}
	m.metrics.Transition(string(o.Status))
	return o, nil
}

func (m *Manager) SetEstimatedDelivery(ctx context.Context, orderID string, at time.Time) (*Order, error) {
	if at.IsZero() {
		return nil, apperr.Validation("estimated delivery is required")
	}
	o, err := m.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == StatusCanceled || o.Status == StatusDelivered {
		return nil, apperr.InvalidTransition("order %s is %s", o.ID, o.Status)
	}
	if at.Before(o.CreatedAt) {
		return nil, apperr.Validation("estimated delivery precedes order creation")
	}

	expect := o.Version
	o.EstimatedDelivery = at.UTC()
	if err := m.repo.Update(ctx, o, expect); err != nil {
		return nil, err
	}
	return o, nil
}
