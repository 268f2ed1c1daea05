package inventory

import (
	"context"
	"fmt"
)

// Ledger owns the stock counter of every (product, color, size).
//
// ApplyDelta must be a single conditional update against the backing store:
// the delta is applied only if the resulting stock is >= 0, otherwise it fails
// with apperr InsufficientStock and the stored value is unchanged.
type Ledger interface {
	ReadStock(ctx context.Context, productID, color, size string) (int, error)
	ApplyDelta(ctx context.Context, productID, color, size string, delta int) error
}

// Line is one requested (product, color, size, quantity).
// Name is only used in error messages.
type Line struct {
	ProductID string
	Name      string
	Color     string
	Size      string
	Quantity  int
}

func (l Line) label() string {
	name := l.Name
	if name == "" {
		name = l.ProductID
	}
	return fmt.Sprintf("%s (%s)", name, l.Color)
}
