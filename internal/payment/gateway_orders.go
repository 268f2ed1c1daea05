package payment

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
	"github.com/ariefcatur/go-apparel-checkout/internal/money"
	"github.com/ariefcatur/go-apparel-checkout/internal/orders"
)

// GatewayOrders creates an order at the payment provider and lets the client
// poll its status. Stock is reserved before the provider order exists.
type GatewayOrders struct {
	c        *client
	currency string
}

type GatewayOrdersConfig struct {
	BaseURL    string
	KeyID      string
	KeySecret  string
	Currency   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func NewGatewayOrders(cfg GatewayOrdersConfig) *GatewayOrders {
	return &GatewayOrders{
		c:        newClient(cfg.BaseURL, cfg.KeyID, cfg.KeySecret, cfg.Timeout, cfg.HTTPClient),
		currency: strings.ToUpper(cfg.Currency),
	}
}

func (*GatewayOrders) Method() orders.PaymentMethod { return orders.MethodGatewayOrder }
func (*GatewayOrders) ReserveBeforeCreate() bool { return true }
func (*GatewayOrders) SettledOnCreate() bool { return false }

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type gatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

func (g *GatewayOrders) Begin(ctx context.Context, req Request) (*Handle, error) {
	body := createOrderRequest{
		Amount:   money.Minor(req.Amount),
		Currency: g.currency,
		Receipt:  req.OrderID,
	}
	var out gatewayOrder
	if err := g.c.do(ctx, http.MethodPost, "/orders", body, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, apperr.Gateway(nil, "gateway returned no order id for %s", req.OrderID)
	}
	return &Handle{
		GatewayOrderID: out.ID,
		AmountMinor:    out.Amount,
		Currency:       out.Currency,
	}, nil
}

func (g *GatewayOrders) FetchStatus(ctx context.Context, gatewayOrderID string) (*Status, error) {
	if gatewayOrderID == "" {
		return nil, apperr.Validation("gateway order id is required")
	}
	var out gatewayOrder
	if err := g.c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(gatewayOrderID), nil, &out); err != nil {
		return nil, err
	}
	return &Status{ID: out.ID, Status: out.Status, Receipt: out.Receipt}, nil
}
