package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/mihaimyh/pixbridge/pkg/api/internal"
	"github.com/mihaimyh/pixbridge/pkg/billing"
)

const (
	maxBodyBytes        = 64 * 1024
	maxWebhookBodyBytes = 256 * 1024

	webhookRateLimit  = 60
	webhookRateWindow = time.Minute
)

// Handler provides the HTTP endpoints.
type Handler struct {
	billing       BillingService
	pix           PixService
	reconciler    Reconciler
	webhookSecret string
	validate      *validator.Validate
	log           zerolog.Logger
	metrics       billing.Metrics

	// authLimiter throttles failed webhook authentication attempts per IP.
	// Authenticated deliveries are never throttled; the webhook answers 200
	// to them regardless of volume so the provider does not retry-storm.
	authLimiter *internal.RateLimiter
}

// Routes returns the HTTP routes for all endpoints. Every business endpoint
// is POST with a JSON body; OPTIONS preflight is answered with 204.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Post("/customer/lookup", h.Lookup)
	r.Post("/invoice/mark-paid", h.MarkPaid)
	r.Post("/pix/create", h.PixIssue)
	r.Post("/pix/status", h.PixStatus)
	r.Post("/subscription/change-quantity", h.ChangeQuantity)
	r.Post("/subscription/preview", h.PreviewQuantity)
	r.Post("/subscription/create", h.NewSubscription)

	r.Post("/webhook/pix", h.Webhook)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// decode reads, parses, and validates the request body into dst. On failure
// it writes the 400 response itself and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := internal.ReadBodyStrict(w, r, maxBodyBytes)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		h.writeError(w, r, http.StatusBadRequest, errors.New("invalid JSON body"))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, data any) {
	if err := internal.WriteJSON(w, code, data); err != nil {
		h.log.Error().Err(err).Msg("failed to write response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	event := h.log.Warn()
	if code >= http.StatusInternalServerError {
		event = h.log.Error()
	}
	event.Err(err).
		Int("status", code).
		Str("path", r.URL.Path).
		Msg("request failed")
	h.writeJSON(w, code, errorResponse{Error: err.Error()})
}

// handleError translates service errors into HTTP responses. Not-found
// sentinels map to 404; everything else is a 500 with the provider's message
// forwarded.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, billing.ErrCustomerNotFound),
		errors.Is(err, billing.ErrSubscriptionNotFound),
		errors.Is(err, billing.ErrSubscriptionItemNotFound),
		errors.Is(err, billing.ErrInvoiceNotFound),
		errors.Is(err, billing.ErrChargeNotFound):
		code = http.StatusNotFound
	}
	h.writeError(w, r, code, err)
}
