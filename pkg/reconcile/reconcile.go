// Package reconcile settles PIX charges against billing invoices. A charge
// that the PIX provider reports as paid gets its linked invoice marked paid
// out-of-band on the billing provider, either on demand (client polling) or
// on a provider webhook.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mihaimyh/pixbridge/pkg/billing"
	"github.com/mihaimyh/pixbridge/pkg/pix"
)

// Invoice outcomes reported by Poll and ProcessWebhook.
const (
	OutcomeUpdated     = "updated"
	OutcomeAlreadyPaid = "already_paid"
	OutcomePending     = "pending"
	OutcomeNotOpen     = "not_open"
	OutcomeIgnored     = "ignored"
	OutcomeUnmatched   = "unmatched"
)

// InvoiceService is the slice of the billing provider that reconciliation
// needs.
type InvoiceService interface {
	Invoice(ctx context.Context, id string) (*billing.Invoice, error)
	MarkPaidOutOfBand(ctx context.Context, id string) (*billing.Invoice, error)
	FindInvoiceByPixCharge(ctx context.Context, chargeID string) (*billing.Invoice, error)
}

// ChargeService is the slice of the PIX provider that reconciliation needs.
type ChargeService interface {
	Charge(ctx context.Context, id string) (*pix.Charge, error)
	ListCharges(ctx context.Context) ([]*pix.Charge, error)
}

// Config holds the configuration for a Reconciler.
type Config struct {
	Billing InvoiceService
	Pix     ChargeService

	// Logger is used for structured logging. Optional.
	Logger zerolog.Logger

	// Metrics is an optional metrics collector. If nil, metrics are dropped.
	Metrics billing.Metrics
}

// Reconciler links PIX charge state to billing invoice state.
type Reconciler struct {
	billing InvoiceService
	pix     ChargeService
	log     zerolog.Logger
	metrics billing.Metrics
}

// NewReconciler creates a Reconciler from cfg.
func NewReconciler(cfg Config) (*Reconciler, error) {
	if cfg.Billing == nil {
		return nil, errors.New("billing service is required")
	}
	if cfg.Pix == nil {
		return nil, errors.New("pix service is required")
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &billing.NoopMetrics{}
	}
	return &Reconciler{
		billing: cfg.Billing,
		pix:     cfg.Pix,
		log:     cfg.Logger,
		metrics: metrics,
	}, nil
}

// PollResult reports the outcome of one reconciliation poll.
type PollResult struct {
	// Paid is true when the PIX provider reports the charge as settled.
	Paid bool

	// Status is the raw charge status from the PIX provider.
	Status string

	// InvoiceUpdated is true when this call marked the invoice paid.
	InvoiceUpdated bool

	// InvoiceStatus is one of the Outcome constants.
	InvoiceStatus string
}

// Poll checks the PIX charge status and, when paid, marks the linked invoice
// paid out-of-band. Repeated calls after the invoice is settled report
// already_paid without error.
func (r *Reconciler) Poll(ctx context.Context, invoiceID, chargeID string) (*PollResult, error) {
	charge, err := r.lookupCharge(ctx, invoiceID, chargeID)
	if err != nil {
		r.metrics.RecordReconciliation("poll", "charge_lookup_failed")
		return nil, err
	}

	result := &PollResult{Status: charge.Status}
	if !pix.IsPaid(charge.Status) {
		result.InvoiceStatus = OutcomePending
		r.metrics.RecordReconciliation("poll", OutcomePending)
		return result, nil
	}
	result.Paid = true

	outcome, updated, err := r.settle(ctx, invoiceID)
	if err != nil {
		r.metrics.RecordReconciliation("poll", "settle_failed")
		return nil, err
	}
	result.InvoiceStatus = outcome
	result.InvoiceUpdated = updated
	r.metrics.RecordReconciliation("poll", outcome)
	return result, nil
}

// lookupCharge tries the direct status endpoint first and falls back to
// scanning the full charge list. The provider's check endpoint is eventually
// consistent and sometimes misses freshly created charges.
func (r *Reconciler) lookupCharge(ctx context.Context, invoiceID, chargeID string) (*pix.Charge, error) {
	charge, err := r.pix.Charge(ctx, chargeID)
	if err == nil {
		return charge, nil
	}

	r.log.Warn().Err(err).
		Str("pix_id", chargeID).
		Msg("direct charge lookup failed, scanning charge list")

	charges, listErr := r.pix.ListCharges(ctx)
	if listErr != nil {
		return nil, fmt.Errorf("failed to look up charge %s: %w", chargeID, err)
	}
	for _, c := range charges {
		if c.ID == chargeID {
			return c, nil
		}
	}
	if invoiceID != "" {
		for _, c := range charges {
			if c.ExternalID == invoiceID {
				return c, nil
			}
		}
	}
	return nil, fmt.Errorf("charge %s: %w", chargeID, billing.ErrChargeNotFound)
}

// settle marks invoiceID paid out-of-band unless it is already paid or no
// longer open.
func (r *Reconciler) settle(ctx context.Context, invoiceID string) (outcome string, updated bool, err error) {
	inv, err := r.billing.Invoice(ctx, invoiceID)
	if err != nil {
		return "", false, fmt.Errorf("failed to fetch invoice %s: %w", invoiceID, err)
	}

	switch inv.Status {
	case billing.InvoiceStatusPaid:
		return OutcomeAlreadyPaid, false, nil
	case billing.InvoiceStatusOpen:
		if _, err := r.billing.MarkPaidOutOfBand(ctx, invoiceID); err != nil {
			if errors.Is(err, billing.ErrInvoiceNotOpen) {
				// Lost a race with the webhook. Settled either way.
				return OutcomeAlreadyPaid, false, nil
			}
			return "", false, fmt.Errorf("failed to mark invoice %s paid: %w", invoiceID, err)
		}
		r.log.Info().Str("invoice_id", invoiceID).Msg("invoice marked paid from pix charge")
		return OutcomeUpdated, true, nil
	default:
		r.log.Warn().
			Str("invoice_id", invoiceID).
			Str("status", inv.Status).
			Msg("pix charge paid but invoice is neither open nor paid")
		return OutcomeNotOpen, false, nil
	}
}

// WebhookResult reports the outcome of one webhook delivery. It is always
// acknowledged to the sender regardless of outcome.
type WebhookResult struct {
	Received       bool   `json:"received"`
	Ignored        bool   `json:"ignored,omitempty"`
	InvoiceUpdated bool   `json:"invoice_updated"`
	InvoiceID      string `json:"invoice_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ProcessWebhook handles one PIX provider event. Only billing.paid triggers
// reconciliation; every other event is acknowledged and ignored. Failures are
// reported in the result, never as an error, so the HTTP layer can always
// answer 200 and the provider does not retry-storm.
func (r *Reconciler) ProcessWebhook(ctx context.Context, event *pix.WebhookEvent) *WebhookResult {
	result := &WebhookResult{Received: true}

	if event.Event != pix.EventBillingPaid {
		result.Ignored = true
		r.metrics.RecordWebhookEvent("pix", event.Event, "ignored")
		r.metrics.RecordReconciliation("webhook", OutcomeIgnored)
		return result
	}

	inv, err := r.locateInvoice(ctx, event)
	if err != nil {
		r.log.Error().Err(err).
			Str("pix_id", event.ChargeID()).
			Msg("webhook: failed to locate invoice for charge")
		result.Error = err.Error()
		r.metrics.RecordWebhookEvent("pix", event.Event, "error")
		r.metrics.RecordWebhookError("pix", "invoice_lookup")
		r.metrics.RecordReconciliation("webhook", OutcomeUnmatched)
		return result
	}
	result.InvoiceID = inv.ID

	outcome, updated, err := r.settleInvoice(ctx, inv)
	if err != nil {
		r.log.Error().Err(err).
			Str("invoice_id", inv.ID).
			Msg("webhook: failed to settle invoice")
		result.Error = err.Error()
		r.metrics.RecordWebhookEvent("pix", event.Event, "error")
		r.metrics.RecordWebhookError("pix", "settle")
		r.metrics.RecordReconciliation("webhook", "settle_failed")
		return result
	}
	result.InvoiceUpdated = updated
	r.metrics.RecordWebhookEvent("pix", event.Event, "success")
	r.metrics.RecordReconciliation("webhook", outcome)
	return result
}

// locateInvoice resolves the invoice a webhook event refers to. The external
// reference stamped at issuance is authoritative; the metadata tag search is
// the fallback for charges created before tagging or by other tooling.
func (r *Reconciler) locateInvoice(ctx context.Context, event *pix.WebhookEvent) (*billing.Invoice, error) {
	if externalID := event.ExternalID(); externalID != "" {
		inv, err := r.billing.Invoice(ctx, externalID)
		if err == nil {
			return inv, nil
		}
		r.log.Warn().Err(err).
			Str("invoice_id", externalID).
			Msg("webhook: external reference did not resolve, trying metadata search")
	}

	chargeID := event.ChargeID()
	if chargeID == "" {
		return nil, errors.New("event payload has no charge id")
	}
	return r.billing.FindInvoiceByPixCharge(ctx, chargeID)
}

func (r *Reconciler) settleInvoice(ctx context.Context, inv *billing.Invoice) (outcome string, updated bool, err error) {
	switch inv.Status {
	case billing.InvoiceStatusPaid:
		return OutcomeAlreadyPaid, false, nil
	case billing.InvoiceStatusOpen:
		if _, err := r.billing.MarkPaidOutOfBand(ctx, inv.ID); err != nil {
			if errors.Is(err, billing.ErrInvoiceNotOpen) {
				return OutcomeAlreadyPaid, false, nil
			}
			return "", false, err
		}
		r.log.Info().Str("invoice_id", inv.ID).Msg("invoice marked paid from webhook")
		return OutcomeUpdated, true, nil
	default:
		return OutcomeNotOpen, false, nil
	}
}
