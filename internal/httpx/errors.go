package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
	"github.com/ariefcatur/go-apparel-checkout/internal/logging"
	"go.uber.org/zap"
)

type errorBody struct {
	Error   apperr.Kind `json:"error"`
	Message string      `json:"message,omitempty"`
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInsufficientStock, apperr.KindInvalidTransition:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusForbidden
	case apperr.KindInvalidAddress, apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code. Internal errors are logged and
// their message is not echoed back.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	code := statusOf(kind)
	body := errorBody{Error: kind, Message: apperr.Message(err)}
	if code == http.StatusInternalServerError {
		logging.FromContext(r.Context(), nil).Error("request_failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		body.Message = "internal error"
	}
	writeJSON(w, code, body)
}
