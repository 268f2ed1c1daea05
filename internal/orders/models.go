package orders

import (
	"strings"
	"time"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
	"github.com/ariefcatur/go-apparel-checkout/internal/inventory"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodCOD            PaymentMethod = "cod"
	MethodHostedCheckout PaymentMethod = "hosted_checkout"
	MethodGatewayOrder   PaymentMethod = "gateway_order"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCOD, MethodHostedCheckout, MethodGatewayOrder:
		return true
	}
	return false
}

// IsCash is true for methods where no payment is captured up front.
func (m PaymentMethod) IsCash() bool { return m == MethodCOD }

type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zipcode   string `json:"zipcode"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

func (a Address) Validate() error {
	required := []struct{ name, value string }{
		{"first_name", a.FirstName},
		{"last_name", a.LastName},
		{"street", a.Street},
		{"city", a.City},
		{"zipcode", a.Zipcode},
		{"country", a.Country},
		{"phone", a.Phone},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return apperr.InvalidAddress("%s is required", f.name)
		}
	}
	if a.Email != "" && !strings.Contains(a.Email, "@") {
		return apperr.InvalidAddress("email %q is malformed", a.Email)
	}
	return nil
}

// LineItem is snapshotted at order time and never changes afterwards.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type Order struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	Items             []LineItem      `json:"items"`
	Address           Address         `json:"address"`
	Amount            decimal.Decimal `json:"amount"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	Payment           bool            `json:"payment"`
	Status            Status          `json:"status"`
	Refunded          bool            `json:"refunded"`
	GatewayRef        string          `json:"gateway_ref,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	EstimatedDelivery time.Time       `json:"estimated_delivery"`
	UpdatedAt         time.Time       `json:"updated_at"`
	// Version guards every update (optimistic locking).
	Version int `json:"-"`
}

// ItemsTotal is Σ price × quantity.
func ItemsTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// Lines projects the items onto ledger lines.
func (o *Order) Lines() []inventory.Line {
	out := make([]inventory.Line, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, inventory.Line{
			ProductID: it.ProductID,
			Name:      it.Name,
			Color:     it.Color,
			Size:      it.Size,
			Quantity:  it.Quantity,
		})
	}
	return out
}

// HoldsStock reports whether the order's items are currently reserved.
func (o *Order) HoldsStock() bool {
	return o.Status != StatusAwaitingPayment && o.Status != StatusCanceled
}
