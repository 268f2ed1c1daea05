package httpx

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
	"github.com/ariefcatur/go-apparel-checkout/internal/orders"
	"github.com/go-chi/chi/v5"
)

// PaymentRelay hands a provider notification to the settlement consumer.
type PaymentRelay interface {
	EmitPaymentResult(ctx context.Context, p orders.PaymentResultPayload) error
}

// WebhookHandler accepts payment notifications and queues them; settlement
// happens asynchronously in cmd/settlement.
type WebhookHandler struct {
	Relay PaymentRelay
	Token string
}

func (h *WebhookHandler) Register(r chi.Router) {
	r.Post("/webhooks/payments", h.payment)
}

func (h *WebhookHandler) payment(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get("X-Webhook-Token")
	if h.Token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.Token)) != 1 {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: apperr.KindUnauthorized, Message: "webhook token required"})
		return
	}

	var p orders.PaymentResultPayload
	if err := decode(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	if p.OrderID == "" && p.GatewayOrderID == "" {
		writeError(w, r, apperr.Validation("order_id or gateway_order_id is required"))
		return
	}

	if err := h.Relay.EmitPaymentResult(r.Context(), p); err != nil {
		// the provider retries on 5xx
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: apperr.KindInternal, Message: "could not queue notification"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}
