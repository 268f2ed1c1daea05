package inventory

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
)

// Checker is the read-only pre-flight. It narrows the oversell window but
// ApplyDelta stays the enforcement point.
type Checker struct{ Ledger Ledger }

// Check fails with InsufficientStock on the first line whose quantity
// exceeds the current stock. Lines for the same (product, color, size) are
// summed before comparing.
func (c *Checker) Check(ctx context.Context, lines []Line) error {
	type key struct{ p, c, s string }
	want := make(map[key]int, len(lines))
	for _, ln := range lines {
		if ln.Quantity <= 0 {
			return apperr.Validation("quantity for %s must be greater than zero", ln.label())
		}
		want[key{ln.ProductID, ln.Color, ln.Size}] += ln.Quantity
	}

	for _, ln := range lines {
		stock, err := c.Ledger.ReadStock(ctx, ln.ProductID, ln.Color, ln.Size)
		if err != nil {
			return fmt.Errorf("read stock %s: %w", ln.label(), err)
		}
		if stock < want[key{ln.ProductID, ln.Color, ln.Size}] {
			return apperr.InsufficientStock("insufficient stock for %s", ln.label())
		}
	}
	return nil
}
