package orders

import "context"

// Repository persists orders. Update and Delete are conditional on the
// version the caller read; a stale version yields InvalidTransition, a
// missing order NotFound.
type Repository interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	Update(ctx context.Context, o *Order, expectVersion int) error
	Delete(ctx context.Context, id string, expectVersion int) error
}
