package api

import (
	"net/http"

	"github.com/mihaimyh/pixbridge/pkg/billing"
)

// ChangeQuantity updates a subscription item's quantity. Upgrades void the
// subscription's open invoices and bill the new amount on a fresh invoice;
// downgrades only update the quantity.
func (h *Handler) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	var req QuantityChangeRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.billing.ChangeQuantity(r.Context(), req.SubscriptionID, req.SubscriptionItemID, req.NewQuantity)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.log.Info().
		Str("subscription_id", req.SubscriptionID).
		Int64("previous_quantity", result.PreviousQuantity).
		Int64("new_quantity", result.NewQuantity).
		Bool("changed", result.Changed).
		Msg("quantity change")
	h.writeJSON(w, http.StatusOK, result)
}

// PreviewQuantity simulates a quantity change. Nothing is mutated; the
// provider's preview total is the authoritative prorated amount.
func (h *Handler) PreviewQuantity(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !h.decode(w, r, &req) {
		return
	}

	preview, err := h.billing.PreviewQuantity(r.Context(), req.SubscriptionID, req.NewQuantity)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, preview)
}

// NewSubscription creates a subscription billed by invoice, resolving or
// creating the customer first.
func (h *Handler) NewSubscription(w http.ResponseWriter, r *http.Request) {
	var req NewSubscriptionRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.billing.CreateSubscription(r.Context(), billing.CreateSubscriptionParams{
		Email:      req.Email,
		Name:       req.Name,
		Quantity:   req.Quantity,
		CustomerID: req.CustomerID,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.log.Info().
		Str("customer_id", result.Customer.ID).
		Str("subscription_id", result.Subscription.ID).
		Msg("subscription created")
	h.writeJSON(w, http.StatusOK, result)
}
