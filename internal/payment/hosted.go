package payment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
	"github.com/ariefcatur/go-apparel-checkout/internal/money"
	"github.com/ariefcatur/go-apparel-checkout/internal/orders"
	"github.com/shopspring/decimal"
)

// HostedCheckout opens a provider-hosted checkout session and redirects the
// buyer there. Settlement is learned later through the verify callback, so
// stock is only taken once the callback reports success.
type HostedCheckout struct {
	c        *client
	currency string
}

type HostedConfig struct {
	BaseURL   string
	SecretKey string
	Currency  string
	Timeout   time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

func NewHostedCheckout(cfg HostedConfig) *HostedCheckout {
	return &HostedCheckout{
		c:        newClient(cfg.BaseURL, cfg.SecretKey, "", cfg.Timeout, cfg.HTTPClient),
		currency: strings.ToLower(cfg.Currency),
	}
}

func (*HostedCheckout) Method() orders.PaymentMethod { return orders.MethodHostedCheckout }
func (*HostedCheckout) ReserveBeforeCreate() bool { return false }
func (*HostedCheckout) SettledOnCreate() bool { return false }

type sessionLine struct {
	Name       string `json:"name"`
	Currency   string `json:"currency"`
	UnitAmount int64  `json:"unit_amount"`
	Quantity   int    `json:"quantity"`
}

type sessionRequest struct {
	Mode       string        `json:"mode"`
	SuccessURL string        `json:"success_url"`
	CancelURL  string        `json:"cancel_url"`
	Reference  string        `json:"client_reference_id"`
	LineItems  []sessionLine `json:"line_items"`
}

type sessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (h *HostedCheckout) Begin(ctx context.Context, req Request) (*Handle, error) {
	if req.Origin == "" {
		return nil, apperr.Validation("origin is required for hosted checkout")
	}

	body := sessionRequest{
		Mode:       "payment",
		SuccessURL: VerifyURL(req.Origin, req.OrderID, true),
		CancelURL:  VerifyURL(req.Origin, req.OrderID, false),
		Reference:  req.OrderID,
		LineItems:  h.lines(req.Items, req.DeliveryFee),
	}

	var out sessionResponse
	if err := h.c.do(ctx, http.MethodPost, "/checkout/sessions", body, &out); err != nil {
		return nil, err
	}
	if out.URL == "" {
		return nil, apperr.Gateway(fmt.Errorf("empty session url"), "create checkout session for order %s", req.OrderID)
	}
	return &Handle{
		RedirectURL: out.URL,
		SessionID:   out.ID,
		AmountMinor: money.Minor(req.Amount),
		Currency:    h.currency,
	}, nil
}

// lines renders the items plus the delivery surcharge as session lines.
func (h *HostedCheckout) lines(items []orders.LineItem, fee decimal.Decimal) []sessionLine {
	out := make([]sessionLine, 0, len(items)+1)
	for _, it := range items {
		out = append(out, sessionLine{
			Name:       it.Name,
			Currency:   h.currency,
			UnitAmount: money.Minor(it.Price),
			Quantity:   it.Quantity,
		})
	}
	if fee.IsPositive() {
		out = append(out, sessionLine{
			Name:       "Delivery Charges",
			Currency:   h.currency,
			UnitAmount: money.Minor(fee),
			Quantity:   1,
		})
	}
	return out
}

// VerifyURL is the storefront page the provider returns the buyer to.
func VerifyURL(origin, orderID string, success bool) string {
	q := url.Values{}
	q.Set("success", fmt.Sprintf("%t", success))
	q.Set("orderId", orderID)
	return strings.TrimRight(origin, "/") + "/verify?" + q.Encode()
}
