package inventory

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGLedger keeps stock in size_entries. The CHECK (stock >= 0) constraint
// backs up the conditional update.
type PGLedger struct{ DB *pgxpool.Pool }

func (l *PGLedger) ReadStock(ctx context.Context, productID, color, size string) (int, error) {
	var stock int
	err := l.DB.QueryRow(ctx, `
		SELECT stock FROM size_entries
		WHERE product_id=$1 AND color=$2 AND size=$3`, productID, color, size).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.NotFound("no stock entry for %s/%s/%s", productID, color, size)
	}
	if err != nil {
		return 0, err
	}
	return stock, nil
}

func (l *PGLedger) ApplyDelta(ctx context.Context, productID, color, size string, delta int) error {
	ct, err := l.DB.Exec(ctx, `
		UPDATE size_entries SET stock = stock + $4
		WHERE product_id=$1 AND color=$2 AND size=$3 AND stock + $4 >= 0`,
		productID, color, size, delta)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	// zero rows: either the entry is missing or the condition failed
	stock, err := l.ReadStock(ctx, productID, color, size)
	if err != nil {
		return err
	}
	return apperr.InsufficientStock("%s/%s/%s has %d, requested %d", productID, color, size, stock, -delta)
}
