package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
	"github.com/ariefcatur/go-apparel-checkout/internal/orders"
	"github.com/shopspring/decimal"
)

func sampleRequest() Request {
	return Request{
		OrderID: "ord-1",
		Items: []orders.LineItem{
			{ProductID: "tee", Name: "Classic Tee", Color: "Blue", Size: "M", Quantity: 2, Price: decimal.RequireFromString("19.50")},
		},
		DeliveryFee: decimal.NewFromInt(10),
		Amount:      decimal.RequireFromString("49.00"),
		Origin:      "https://shop.example.com/",
	}
}

func TestGatewayOrdersBegin(t *testing.T) {
	var got createOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			t.Errorf("missing basic auth")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(gatewayOrder{ID: "gw_123", Amount: got.Amount, Currency: got.Currency, Receipt: got.Receipt, Status: "created"})
	}))
	defer srv.Close()

	g := NewGatewayOrders(GatewayOrdersConfig{BaseURL: srv.URL, KeyID: "key", KeySecret: "secret", Currency: "inr", Timeout: time.Second})
	h, err := g.Begin(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if got.Amount != 4900 || got.Currency != "INR" || got.Receipt != "ord-1" {
		t.Errorf("unexpected request %+v", got)
	}
	if h.GatewayOrderID != "gw_123" || h.Ref() != "gw_123" || h.AmountMinor != 4900 {
		t.Errorf("unexpected handle %+v", h)
	}
}

func TestGatewayOrdersFetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orders/gw_paid":
			_ = json.NewEncoder(w).Encode(gatewayOrder{ID: "gw_paid", Receipt: "ord-1", Status: "paid"})
		case "/orders/gw_open":
			_ = json.NewEncoder(w).Encode(gatewayOrder{ID: "gw_open", Receipt: "ord-2", Status: "attempted"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	g := NewGatewayOrders(GatewayOrdersConfig{BaseURL: srv.URL, Currency: "inr", Timeout: time.Second})
	ctx := context.Background()

	st, err := g.FetchStatus(ctx, "gw_paid")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !st.Paid() || st.Receipt != "ord-1" {
		t.Errorf("unexpected status %+v", st)
	}

	st, err = g.FetchStatus(ctx, "gw_open")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if st.Paid() {
		t.Errorf("attempted order must not count as paid")
	}

	if _, err := g.FetchStatus(ctx, "gw_missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGatewayFailureIsGatewayKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := NewGatewayOrders(GatewayOrdersConfig{BaseURL: srv.URL, Currency: "inr", Timeout: time.Second})
	_, err := g.Begin(context.Background(), sampleRequest())
	if !errors.Is(err, apperr.ErrGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestGatewayTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	g := NewGatewayOrders(GatewayOrdersConfig{BaseURL: srv.URL, Currency: "inr", Timeout: 20 * time.Millisecond})
	_, err := g.Begin(context.Background(), sampleRequest())
	if !errors.Is(err, apperr.ErrGateway) {
		t.Fatalf("expected gateway error on timeout, got %v", err)
	}
}

func TestHostedCheckoutBegin(t *testing.T) {
	var got sessionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkout/sessions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(sessionResponse{ID: "cs_1", URL: "https://pay.example.com/cs_1"})
	}))
	defer srv.Close()

	h := NewHostedCheckout(HostedConfig{BaseURL: srv.URL, SecretKey: "sk", Currency: "INR", Timeout: time.Second})
	handle, err := h.Begin(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if handle.RedirectURL != "https://pay.example.com/cs_1" || handle.Ref() != "cs_1" {
		t.Errorf("unexpected handle %+v", handle)
	}
	if got.SuccessURL != "https://shop.example.com/verify?orderId=ord-1&success=true" {
		t.Errorf("unexpected success url %s", got.SuccessURL)
	}
	if !strings.Contains(got.CancelURL, "success=false") {
		t.Errorf("unexpected cancel url %s", got.CancelURL)
	}
	if len(got.LineItems) != 2 {
		t.Fatalf("expected item plus delivery line, got %d", len(got.LineItems))
	}
	if got.LineItems[0].UnitAmount != 1950 || got.LineItems[0].Quantity != 2 || got.LineItems[0].Currency != "inr" {
		t.Errorf("unexpected item line %+v", got.LineItems[0])
	}
	if got.LineItems[1].Name != "Delivery Charges" || got.LineItems[1].UnitAmount != 1000 {
		t.Errorf("unexpected delivery line %+v", got.LineItems[1])
	}
}

func TestHostedCheckoutRequiresOrigin(t *testing.T) {
	h := NewHostedCheckout(HostedConfig{BaseURL: "http://unused", Currency: "inr"})
	req := sampleRequest()
	req.Origin = ""
	if _, err := h.Begin(context.Background(), req); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(CashOnDelivery{}, NewGatewayOrders(GatewayOrdersConfig{BaseURL: "http://unused"}))

	g, err := r.Resolve(orders.MethodCOD)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !g.ReserveBeforeCreate() || !g.SettledOnCreate() {
		t.Errorf("cash on delivery reserves and settles at checkout")
	}

	if _, err := r.Resolve(orders.MethodHostedCheckout); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("unregistered method must be rejected, got %v", err)
	}
	if _, err := r.Poller(orders.MethodCOD); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("cash cannot be polled, got %v", err)
	}
	if _, err := r.Poller(orders.MethodGatewayOrder); err != nil {
		t.Fatalf("gateway orders should poll: %v", err)
	}
}
