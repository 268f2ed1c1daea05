package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
	"github.com/ariefcatur/go-apparel-checkout/internal/logging"
	"github.com/ariefcatur/go-apparel-checkout/internal/metrics"
	"go.uber.org/zap"
)

// Applier turns order lines into ledger deltas.
type Applier struct {
	Ledger  Ledger
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

// Reserve decrements every line. When line k fails, lines 0..k-1 are
// restored before the error is returned, so a failed Reserve leaves the
// ledger as it found it.
func (a *Applier) Reserve(ctx context.Context, lines []Line) error {
	for i, ln := range lines {
		err := a.Ledger.ApplyDelta(ctx, ln.ProductID, ln.Color, ln.Size, -ln.Quantity)
		if err == nil {
			a.Metrics.StockDelta("reserve", "success")
			continue
		}
		a.Metrics.StockDelta("reserve", string(apperr.KindOf(err)))
		if errors.Is(err, apperr.ErrInsufficientStock) {
			err = apperr.Wrap(apperr.KindInsufficientStock, err, "insufficient stock for %s", ln.label())
		}
		if cerr := a.compensate(ctx, lines[:i]); cerr != nil {
			return apperr.Internal(errors.Join(err, cerr), "reservation rollback failed")
		}
		return err
	}
	return nil
}

// Restore increments every line. Any failure means the ledger no longer
// matches the orders and is reported as Internal.
func (a *Applier) Restore(ctx context.Context, lines []Line) error {
	var failed []error
	for _, ln := range lines {
		if err := a.Ledger.ApplyDelta(ctx, ln.ProductID, ln.Color, ln.Size, ln.Quantity); err != nil {
			a.Metrics.StockDelta("restore", "error")
			logging.FromContext(ctx, a.Log).Error("stock_restore_failed",
				zap.String("product_id", ln.ProductID),
				zap.String("color", ln.Color),
				zap.String("size", ln.Size),
				zap.Int("quantity", ln.Quantity),
				zap.Error(err),
			)
			failed = append(failed, fmt.Errorf("%s/%s: %w", ln.label(), ln.Size, err))
			continue
		}
		a.Metrics.StockDelta("restore", "success")
	}
	if len(failed) > 0 {
		return apperr.Internal(errors.Join(failed...), "stock restore failed")
	}
	return nil
}

func (a *Applier) compensate(ctx context.Context, applied []Line) error {
	if len(applied) == 0 {
		return nil
	}
	logging.FromContext(ctx, a.Log).Warn("reservation_compensating", zap.Int("lines", len(applied)))
	return a.Restore(ctx, applied)
}
