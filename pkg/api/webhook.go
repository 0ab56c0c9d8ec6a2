package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mihaimyh/pixbridge/pkg/api/internal"
	"github.com/mihaimyh/pixbridge/pkg/pix"
)

// Webhook handles PIX provider deliveries. The shared secret travels in the
// webhookSecret query parameter. Apart from a bad secret (401, rate limited
// per IP against brute-forcing), every outcome answers 200 so the provider
// does not retry-storm; failures are logged and reported in the body only.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	secret := r.URL.Query().Get("webhookSecret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.webhookSecret)) != 1 {
		if !h.authLimiter.Allow(internal.ClientIP(r)) {
			h.metrics.RecordWebhookError("pix", "rate_limited")
			h.writeError(w, r, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}
		h.metrics.RecordWebhookError("pix", "bad_secret")
		h.writeError(w, r, http.StatusUnauthorized, errors.New("invalid webhook secret"))
		return
	}

	body, err := internal.ReadBodyStrict(w, r, maxWebhookBodyBytes)
	if err != nil {
		h.log.Warn().Err(err).Msg("webhook: unreadable body")
		h.metrics.RecordWebhookError("pix", "bad_body")
		h.writeJSON(w, http.StatusOK, map[string]any{"received": true, "error": err.Error()})
		return
	}

	var event pix.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.log.Warn().Err(err).Msg("webhook: unparseable payload")
		h.metrics.RecordWebhookError("pix", "bad_json")
		h.writeJSON(w, http.StatusOK, map[string]any{"received": true, "error": "invalid payload"})
		return
	}

	result := h.reconciler.ProcessWebhook(r.Context(), &event)
	h.metrics.RecordWebhookProcessingDuration("pix", event.Event, time.Since(start))

	h.log.Info().
		Str("event", event.Event).
		Bool("ignored", result.Ignored).
		Bool("invoice_updated", result.InvoiceUpdated).
		Str("invoice_id", result.InvoiceID).
		Msg("webhook processed")
	h.writeJSON(w, http.StatusOK, result)
}
