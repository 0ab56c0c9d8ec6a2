package api

import (
	"fmt"
	"net/http"

	"github.com/mihaimyh/pixbridge/pkg/billing"
	"github.com/mihaimyh/pixbridge/pkg/pix"
)

const (
	defaultPayerName  = "Cliente"
	defaultPayerEmail = "nao-informado@example.com"
)

// PixIssue creates a PIX QR code for one open invoice. The charge is tagged
// with the invoice id (as external reference and as invoice metadata) so the
// payment can be reconciled later.
func (h *Handler) PixIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PixIssueRequest
	if !h.decode(w, r, &req) {
		return
	}

	// 1. Validate and normalize the payer tax id before any upstream call.
	cpf, err := normalizeCPF(req.CPF)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	// 2. Fetch the invoice and require it to be open.
	inv, err := h.billing.Invoice(ctx, req.InvoiceID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if inv.Status != billing.InvoiceStatusOpen {
		h.writeError(w, r, http.StatusInternalServerError,
			fmt.Errorf("%w: invoice status is %q", billing.ErrInvoiceNotOpen, inv.Status))
		return
	}

	// 3. Resolve payer contact fields: request body, then the invoice's
	// customer record, then hardcoded defaults.
	name := firstNonEmpty(req.CustomerName, inv.CustomerName, defaultPayerName)
	email := firstNonEmpty(req.CustomerEmail, inv.CustomerEmail, defaultPayerEmail)
	phone := formatPhone(firstNonEmpty(req.CustomerPhone, inv.CustomerPhone))

	// 4. Issue the charge, tagging the invoice id as the external reference.
	charge, err := h.pix.CreateCharge(ctx, pix.CreateChargeParams{
		Amount:      inv.AmountDue,
		Description: fmt.Sprintf("Fatura %s", inv.ID),
		ExternalID:  inv.ID,
		Customer: pix.ChargeCustomer{
			Name:      name,
			Email:     email,
			Cellphone: phone,
			TaxID:     formatCPF(cpf),
		},
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	// 5. Stamp the charge id on the invoice for webhook reconciliation. The
	// charge already exists, so a tagging failure is logged, not fatal.
	if err := h.billing.TagInvoicePixCharge(ctx, inv.ID, charge.ID); err != nil {
		h.log.Warn().Err(err).
			Str("invoice_id", inv.ID).
			Str("pix_id", charge.ID).
			Msg("could not tag invoice with pix charge id")
	}

	h.log.Info().
		Str("invoice_id", inv.ID).
		Str("pix_id", charge.ID).
		Int64("amount", inv.AmountDue).
		Msg("pix charge issued")

	h.writeJSON(w, http.StatusOK, PixIssueResponse{
		PixID:           charge.ID,
		QRCodeURL:       charge.QRCodeImage,
		PixCode:         charge.BRCode,
		Amount:          inv.AmountDue,
		AmountFormatted: formatBRL(inv.AmountDue),
		InvoiceID:       inv.ID,
		Customer: PixPayer{
			Name:      name,
			Email:     email,
			CPFMasked: maskCPF(cpf),
		},
	})
}

// PixStatus polls one charge and settles the invoice when the charge is paid.
// Safe to call repeatedly; after settlement it reports already_paid.
func (h *Handler) PixStatus(w http.ResponseWriter, r *http.Request) {
	var req PixStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.reconciler.Poll(r.Context(), req.InvoiceID, req.PixID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, PixStatusResponse{
		Paid:           result.Paid,
		Status:         result.Status,
		InvoiceUpdated: result.InvoiceUpdated,
		InvoiceStatus:  result.InvoiceStatus,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
