// Package api exposes the HTTP endpoints bridging the billing provider and
// the PIX QR-code provider: customer lookup, subscription mutation, PIX
// issuance, and payment reconciliation.
package api

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/mihaimyh/pixbridge/pkg/api/internal"
	"github.com/mihaimyh/pixbridge/pkg/billing"
	"github.com/mihaimyh/pixbridge/pkg/pix"
	"github.com/mihaimyh/pixbridge/pkg/reconcile"
)

// BillingService is the slice of the billing provider the handlers call.
type BillingService interface {
	CustomerView(ctx context.Context, email string) (*billing.CustomerView, error)
	Invoice(ctx context.Context, id string) (*billing.Invoice, error)
	MarkPaidOutOfBand(ctx context.Context, id string) (*billing.Invoice, error)
	TagInvoicePixCharge(ctx context.Context, invoiceID, chargeID string) error
	ChangeQuantity(ctx context.Context, subscriptionID, itemID string, newQuantity int64) (*billing.QuantityChange, error)
	PreviewQuantity(ctx context.Context, subscriptionID string, newQuantity int64) (*billing.ProrationPreview, error)
	CreateSubscription(ctx context.Context, params billing.CreateSubscriptionParams) (*billing.NewSubscription, error)
}

// PixService is the slice of the PIX provider the handlers call.
type PixService interface {
	CreateCharge(ctx context.Context, params pix.CreateChargeParams) (*pix.Charge, error)
}

// Reconciler settles PIX charges against invoices.
type Reconciler interface {
	Poll(ctx context.Context, invoiceID, chargeID string) (*reconcile.PollResult, error)
	ProcessWebhook(ctx context.Context, event *pix.WebhookEvent) *reconcile.WebhookResult
}

// Config holds the configuration for the API handler.
type Config struct {
	// Billing is the billing provider client (required).
	Billing BillingService

	// Pix is the PIX provider client (required).
	Pix PixService

	// Reconciler links charge state to invoice state (required).
	Reconciler Reconciler

	// WebhookSecret is compared against the webhookSecret query parameter on
	// webhook deliveries (required).
	WebhookSecret string

	// Logger is used for structured logging. Optional.
	Logger zerolog.Logger

	// Metrics is an optional metrics collector. If nil, metrics are dropped.
	Metrics billing.Metrics
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Billing == nil {
		return fmt.Errorf("billing service is required")
	}
	if c.Pix == nil {
		return fmt.Errorf("pix service is required")
	}
	if c.Reconciler == nil {
		return fmt.Errorf("reconciler is required")
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("webhook secret is required")
	}
	return nil
}

// NewHandler creates a new API handler with the given configuration.
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = &billing.NoopMetrics{}
	}
	return &Handler{
		billing:       config.Billing,
		pix:           config.Pix,
		reconciler:    config.Reconciler,
		webhookSecret: config.WebhookSecret,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		log:           config.Logger,
		metrics:       metrics,
		authLimiter:   internal.NewRateLimiter(webhookRateLimit, webhookRateWindow),
	}, nil
}
