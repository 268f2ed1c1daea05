package orders_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
	"github.com/ariefcatur/go-apparel-checkout/internal/catalog"
	"github.com/ariefcatur/go-apparel-checkout/internal/inventory"
	"github.com/ariefcatur/go-apparel-checkout/internal/memory"
	"github.com/ariefcatur/go-apparel-checkout/internal/orders"
	"github.com/shopspring/decimal"
)

type fixture struct {
	store   *memory.Store
	repo    *memory.OrderRepository
	manager *orders.Manager
}

func newFixture(stock int) *fixture {
	store := memory.NewStore(catalog.Product{
		ID:   "hoodie",
		Name: "Zip Hoodie",
		Variants: []catalog.ColorVariant{{
			Color: "Blue",
			Price: decimal.NewFromInt(40),
			Sizes: []catalog.SizeEntry{{Size: "M", Stock: stock}},
		}},
	})
	repo := memory.NewOrderRepository()
	return &fixture{
		store:   store,
		repo:    repo,
		manager: orders.NewManager(repo, &inventory.Applier{Ledger: store}, nil, nil),
	}
}

func (f *fixture) stock(t *testing.T) int {
	t.Helper()
	n, err := f.store.ReadStock(context.Background(), "hoodie", "Blue", "M")
	if err != nil {
		t.Fatal(err)
	}
	return n
}

// place inserts an order; when status is Placed its stock is reserved first.
func (f *fixture) place(t *testing.T, id string, method orders.PaymentMethod, status orders.Status, qty int) *orders.Order {
	t.Helper()
	now := time.Now().UTC()
	o := &orders.Order{
		ID:     id,
		UserID: "alice",
		Items: []orders.LineItem{{
			ProductID: "hoodie", Name: "Zip Hoodie", Color: "Blue", Size: "M",
			Quantity: qty, Price: decimal.NewFromInt(40),
		}},
		PaymentMethod:     method,
		Status:            status,
		CreatedAt:         now,
		UpdatedAt:         now,
		EstimatedDelivery: now.Add(7 * 24 * time.Hour),
	}
	o.Amount = orders.ItemsTotal(o.Items).Add(decimal.NewFromInt(10))
	if status == orders.StatusPlaced {
		if err := f.store.ApplyDelta(context.Background(), "hoodie", "Blue", "M", -qty); err != nil {
			t.Fatalf("reserve: %v", err)
		}
	}
	if err := f.manager.Create(context.Background(), o); err != nil {
		t.Fatalf("create: %v", err)
	}
	return o
}

func TestCancelRestoresStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(3)
	o := f.place(t, "o1", orders.MethodCOD, orders.StatusPlaced, 3)

	if f.stock(t) != 0 {
		t.Fatalf("expected reserved stock")
	}

	if _, err := f.manager.Cancel(ctx, o.ID, "mallory"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	got, _ := f.manager.Get(ctx, o.ID)
	if got.Status != orders.StatusPlaced {
		t.Fatalf("unauthorized cancel must not change status, got %s", got.Status)
	}

	canceled, err := f.manager.Cancel(ctx, o.ID, "alice")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if canceled.Status != orders.StatusCanceled {
		t.Errorf("expected canceled, got %s", canceled.Status)
	}
	if f.stock(t) != 3 {
		t.Errorf("expected stock restored to 3, got %d", f.stock(t))
	}

	if _, err := f.manager.Cancel(ctx, o.ID, "alice"); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("second cancel must be rejected, got %v", err)
	}
	if f.stock(t) != 3 {
		t.Errorf("second cancel must not restore twice, got %d", f.stock(t))
	}
}

func TestConcurrentCancelRestoresOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(4)
	o := f.place(t, "o1", orders.MethodCOD, orders.StatusPlaced, 4)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.manager.Cancel(ctx, o.ID, "alice")
		}()
	}
	wg.Wait()

	if f.stock(t) != 4 {
		t.Fatalf("expected exactly one restore, stock=%d", f.stock(t))
	}
}

func TestCancelAfterPackingRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(3)
	o := f.place(t, "o1", orders.MethodCOD, orders.StatusPlaced, 1)

	if _, err := f.manager.UpdateStatus(ctx, o.ID, orders.StatusPacking); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if _, err := f.manager.Cancel(ctx, o.ID, "alice"); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if f.stock(t) != 2 {
		t.Errorf("stock must stay reserved, got %d", f.stock(t))
	}
}

func TestSetRefunded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(5)
	o := f.place(t, "o1", orders.MethodGatewayOrder, orders.StatusPlaced, 1)
	if _, err := f.manager.MarkPaid(ctx, o.ID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	if _, err := f.manager.SetRefunded(ctx, o.ID, true); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("refund of a placed order must fail, got %v", err)
	}

	if _, err := f.manager.Cancel(ctx, o.ID, "alice"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	refunded, err := f.manager.SetRefunded(ctx, o.ID, true)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if !refunded.Refunded || refunded.Payment {
		t.Errorf("expected refunded and payment cleared, got refunded=%t payment=%t", refunded.Refunded, refunded.Payment)
	}

	if _, err := f.manager.SetRefunded(ctx, o.ID, true); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("second refund must be rejected, got %v", err)
	}
}

func TestSetRefundedCashRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(5)
	o := f.place(t, "o1", orders.MethodCOD, orders.StatusPlaced, 1)
	if _, err := f.manager.Cancel(ctx, o.ID, "alice"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.manager.SetRefunded(ctx, o.ID, true); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("cash order refund must fail, got %v", err)
	}
}

func TestConfirmSettlement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(2)

	ok := f.place(t, "paid", orders.MethodHostedCheckout, orders.StatusAwaitingPayment, 2)
	if f.stock(t) != 2 {
		t.Fatalf("unsettled order must not hold stock")
	}
	if _, err := f.manager.Cancel(ctx, ok.ID, "alice"); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("unsettled order cannot be canceled, got %v", err)
	}

	settled, err := f.manager.ConfirmSettlement(ctx, ok.ID, true)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if settled.Status != orders.StatusPlaced || !settled.Payment {
		t.Errorf("expected placed and paid, got %s payment=%t", settled.Status, settled.Payment)
	}
	if f.stock(t) != 0 {
		t.Errorf("expected stock reserved on settlement, got %d", f.stock(t))
	}
	if _, err := f.manager.ConfirmSettlement(ctx, ok.ID, true); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("double settlement must fail, got %v", err)
	}

	failed := f.place(t, "abandoned", orders.MethodHostedCheckout, orders.StatusAwaitingPayment, 1)
	if _, err := f.manager.ConfirmSettlement(ctx, failed.ID, false); err != nil {
		t.Fatalf("confirm failure: %v", err)
	}
	if _, err := f.manager.Get(ctx, failed.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("failed settlement must purge the order, got %v", err)
	}

	if _, err := f.manager.ConfirmSettlement(ctx, "missing", true); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// barrierRepo holds every Update until n callers have arrived, so both
// settlements read the same version and reserve before either writes.
type barrierRepo struct {
	*memory.OrderRepository
	arrived sync.WaitGroup
}

func (r *barrierRepo) Update(ctx context.Context, o *orders.Order, expectVersion int) error {
	r.arrived.Done()
	r.arrived.Wait()
	return r.OrderRepository.Update(ctx, o, expectVersion)
}

func TestConcurrentConfirmSettlementReservesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(10)
	o := f.place(t, "o1", orders.MethodHostedCheckout, orders.StatusAwaitingPayment, 3)

	repo := &barrierRepo{OrderRepository: f.repo}
	repo.arrived.Add(2)
	manager := orders.NewManager(repo, &inventory.Applier{Ledger: f.store}, nil, nil)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := manager.ConfirmSettlement(ctx, o.ID, true)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, apperr.ErrInvalidTransition):
			lost++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if won != 1 || lost != 1 {
		t.Fatalf("expected one settlement to win, got won=%d lost=%d", won, lost)
	}
	if f.stock(t) != 7 {
		t.Errorf("expected stock reserved exactly once, got %d", f.stock(t))
	}
	got, err := f.manager.Get(ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != orders.StatusPlaced || !got.Payment {
		t.Errorf("expected placed and paid, got %s payment=%t", got.Status, got.Payment)
	}
}

func TestConfirmSettlementOutOfStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(1)
	o := f.place(t, "o1", orders.MethodHostedCheckout, orders.StatusAwaitingPayment, 2)

	if _, err := f.manager.ConfirmSettlement(ctx, o.ID, true); !errors.Is(err, apperr.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	got, err := f.manager.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != orders.StatusAwaitingPayment || got.Payment {
		t.Errorf("settlement must not be marked, got %s payment=%t", got.Status, got.Payment)
	}
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(5)
	o := f.place(t, "o1", orders.MethodCOD, orders.StatusPlaced, 1)

	for _, s := range []orders.Status{orders.StatusPacking, orders.StatusShipped, orders.StatusOutForDelivery, orders.StatusDelivered} {
		if _, err := f.manager.UpdateStatus(ctx, o.ID, s); err != nil {
			t.Fatalf("update to %s: %v", s, err)
		}
	}
	if _, err := f.manager.UpdateStatus(ctx, o.ID, orders.StatusDelivered); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("same status must be rejected, got %v", err)
	}
	if _, err := f.manager.UpdateStatus(ctx, o.ID, "Lost"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("unknown status must be rejected, got %v", err)
	}

	c := f.place(t, "o2", orders.MethodCOD, orders.StatusPlaced, 1)
	if _, err := f.manager.Cancel(ctx, c.ID, "alice"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.manager.UpdateStatus(ctx, c.ID, orders.StatusPacking); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("leaving canceled must be rejected, got %v", err)
	}
	if _, err := f.manager.UpdateStatus(ctx, o.ID, orders.StatusCanceled); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("admin cancel bypassing restore must be rejected, got %v", err)
	}
}

func TestSetEstimatedDelivery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(5)
	o := f.place(t, "o1", orders.MethodCOD, orders.StatusPlaced, 1)

	at := o.CreatedAt.Add(72 * time.Hour)
	got, err := f.manager.SetEstimatedDelivery(ctx, o.ID, at)
	if err != nil {
		t.Fatalf("set delivery: %v", err)
	}
	if !got.EstimatedDelivery.Equal(at) {
		t.Errorf("expected %s, got %s", at, got.EstimatedDelivery)
	}
	if _, err := f.manager.SetEstimatedDelivery(ctx, o.ID, o.CreatedAt.Add(-time.Hour)); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
