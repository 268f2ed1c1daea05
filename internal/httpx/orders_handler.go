package httpx

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
	"github.com/ariefcatur/go-apparel-checkout/internal/checkout"
	"github.com/ariefcatur/go-apparel-checkout/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const maxBody = 1 << 20

type CheckoutReq struct {
	Items   []checkout.Item      `json:"items"`
	Cart    checkout.Cart        `json:"cart"`
	Address orders.Address       `json:"address"`
	Amount  decimal.Decimal      `json:"amount"`
	Method  orders.PaymentMethod `json:"method"`
}

type ConfirmReq struct {
	Success bool `json:"success"`
}

type VerifyReq struct {
	GatewayOrderID string `json:"gateway_order_id"`
}

type StatusReq struct {
	Status orders.Status `json:"status"`
}

type RefundReq struct {
	Refunded bool `json:"refunded"`
}

type DeliveryReq struct {
	EstimatedDelivery time.Time `json:"estimated_delivery"`
}

type OrdersHandler struct {
	Checkout   *checkout.Service
	AdminToken string
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(requireUser)
		r.Post("/checkout", h.checkout)
		r.Get("/orders", h.listOrders)
		r.Post("/orders/{id}/confirm", h.confirm)
		r.Post("/orders/{id}/cancel", h.cancel)
		r.Get("/orders/{id}/status", h.status)
		r.Post("/payments/verify", h.verify)
	})
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Get("/orders", h.adminList)
		r.Post("/orders/{id}/status", h.adminStatus)
		r.Post("/orders/{id}/refund", h.adminRefund)
		r.Post("/orders/{id}/estimated-delivery", h.adminDelivery)
	})
}

type userKey struct{}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-User-Id")
		if id == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: apperr.KindUnauthorized, Message: "missing X-User-Id"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, id)))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userKey{}).(string)
	return id
}

// requireAdmin rejects everything when no admin token is configured.
func (h *OrdersHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-Admin-Token")
		if h.AdminToken == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.AdminToken)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: apperr.KindUnauthorized, Message: "admin token required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		return apperr.Validation("invalid json: %v", err)
	}
	return nil
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	// covers the gateway round trip
	ctx, cancel := context.WithTimeout(r.Context(), 12*time.Second)
	defer cancel()

	res, err := h.Checkout.Checkout(ctx, checkout.Input{
		UserID:         userID(r),
		Items:          req.Items,
		Cart:           req.Cart,
		Address:        req.Address,
		Amount:         req.Amount,
		Method:         req.Method,
		Origin:         r.Header.Get("Origin"),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
	}
	writeJSON(w, code, res)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Checkout.ListOrders(ctx, userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// confirm is hit by the storefront's verify page after the hosted checkout
// redirect. Only the buyer may confirm their own order.
func (h *OrdersHandler) confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orderID := chi.URLParam(r, "id")
	if _, err := h.Checkout.OrderStatus(ctx, userID(r), orderID); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.Checkout.ConfirmPayment(ctx, orderID, req.Success)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.GatewayOrderID == "" {
		writeError(w, r, apperr.Validation("gateway_order_id is required"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 12*time.Second)
	defer cancel()

	v, err := h.Checkout.VerifyGatewayPayment(ctx, userID(r), req.GatewayOrderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Checkout.CancelOrder(ctx, userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	e, err := h.Checkout.OrderStatus(ctx, userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *OrdersHandler) adminList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Checkout.ListAllOrders(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) adminStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.adminWrite(w, r, func(ctx context.Context, id string) (*orders.Order, error) {
		return h.Checkout.UpdateStatus(ctx, id, req.Status)
	})
}

func (h *OrdersHandler) adminRefund(w http.ResponseWriter, r *http.Request) {
	var req RefundReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.adminWrite(w, r, func(ctx context.Context, id string) (*orders.Order, error) {
		return h.Checkout.SetRefunded(ctx, id, req.Refunded)
	})
}

func (h *OrdersHandler) adminDelivery(w http.ResponseWriter, r *http.Request) {
	var req DeliveryReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.adminWrite(w, r, func(ctx context.Context, id string) (*orders.Order, error) {
		return h.Checkout.SetEstimatedDelivery(ctx, id, req.EstimatedDelivery)
	})
}

func (h *OrdersHandler) adminWrite(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*orders.Order, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := fn(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
