package orders

import (
	"errors"
	"testing"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
	"github.com/shopspring/decimal"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusAwaitingPayment, StatusPlaced, true},
		{StatusAwaitingPayment, StatusCanceled, false},
		{StatusPlaced, StatusCanceled, true},
		{StatusPlaced, StatusPacking, true},
		{StatusPacking, StatusCanceled, false},
		{StatusShipped, StatusOutForDelivery, true},
		{StatusOutForDelivery, StatusDelivered, true},
		{StatusCanceled, StatusPlaced, false},
		{StatusDelivered, StatusPlaced, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("%s -> %s: expected %t, got %t", c.from, c.to, c.want, got)
		}
	}
}

func TestHoldsStock(t *testing.T) {
	cases := map[Status]bool{
		StatusAwaitingPayment: false,
		StatusPlaced:          true,
		StatusPacking:         true,
		StatusDelivered:       true,
		StatusCanceled:        false,
	}
	for status, want := range cases {
		o := &Order{Status: status}
		if got := o.HoldsStock(); got != want {
			t.Errorf("%s: expected %t, got %t", status, want, got)
		}
	}
}

func TestCanAdminSet(t *testing.T) {
	if !CanAdminSet(StatusShipped, StatusPacking) {
		t.Errorf("admin corrections backwards should be allowed")
	}
	if CanAdminSet(StatusCanceled, StatusPlaced) {
		t.Errorf("canceled is terminal")
	}
	if CanAdminSet(StatusAwaitingPayment, StatusPlaced) {
		t.Errorf("unsettled orders are moved by settlement only")
	}
	if CanAdminSet(StatusPlaced, StatusCanceled) {
		t.Errorf("admin cannot cancel without restoring stock")
	}
	if CanAdminSet(StatusPacking, StatusPacking) {
		t.Errorf("same status is not a transition")
	}
}

func TestAddressValidate(t *testing.T) {
	ok := Address{
		FirstName: "Asha", LastName: "Rao", Email: "asha@example.com", Street: "1 MG Road",
		City: "Pune", State: "MH", Zipcode: "411001", Country: "IN", Phone: "9999999999",
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid address, got %v", err)
	}

	missing := ok
	missing.City = "  "
	if err := missing.Validate(); !errors.Is(err, apperr.ErrInvalidAddress) {
		t.Fatalf("expected invalid address, got %v", err)
	}

	badEmail := ok
	badEmail.Email = "asha.example.com"
	if err := badEmail.Validate(); !errors.Is(err, apperr.ErrInvalidAddress) {
		t.Fatalf("expected invalid address for email, got %v", err)
	}
}

func TestItemsTotalAndLines(t *testing.T) {
	o := &Order{Items: []LineItem{
		{ProductID: "tee", Name: "Tee", Color: "Blue", Size: "M", Quantity: 2, Price: decimal.RequireFromString("19.99")},
		{ProductID: "cap", Name: "Cap", Color: "Red", Size: "OS", Quantity: 1, Price: decimal.NewFromInt(5)},
	}}
	if got := ItemsTotal(o.Items).StringFixed(2); got != "44.98" {
		t.Errorf("expected 44.98, got %s", got)
	}
	lines := o.Lines()
	if len(lines) != 2 || lines[0].Quantity != 2 || lines[1].Size != "OS" {
		t.Errorf("unexpected lines %+v", lines)
	}
}
