package api

import "net/http"

// Lookup returns the grouped customer view for an email: the customer, every
// subscription with its invoices bucketed underneath, and invoice totals.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	var req LookupRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.billing.CustomerView(r.Context(), req.Email)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}
