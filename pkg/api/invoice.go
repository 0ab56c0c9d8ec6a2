package api

import "net/http"

// MarkPaid is the operator override path: mark one open invoice paid
// out-of-band without any PIX charge involved.
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	var req MarkPaidRequest
	if !h.decode(w, r, &req) {
		return
	}

	inv, err := h.billing.MarkPaidOutOfBand(r.Context(), req.InvoiceID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.log.Info().Str("invoice_id", inv.ID).Msg("invoice marked paid manually")
	h.writeJSON(w, http.StatusOK, map[string]any{"invoice": inv})
}
