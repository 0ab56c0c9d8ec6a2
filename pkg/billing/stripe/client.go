package stripe

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v83"

	"github.com/mihaimyh/pixbridge/pkg/billing"
)

const (
	providerName = "stripe"

	invoiceStatusOpen  = "open"
	invoiceStatusPaid  = "paid"
	invoiceStatusDraft = "draft"

	// Proration on quantity changes is disabled at the item update and handled
	// explicitly by voiding open invoices and issuing a fresh one. Letting the
	// provider auto-invoice prorations while we void invoices produced
	// conflicting partial amounts.
	prorationBehaviorNone = "none"

	collectionMethodSendInvoice = "send_invoice"
	defaultDaysUntilDue         = 7
)

// Config holds the configuration for the billing provider client.
type Config struct {
	// APIKey is the provider secret credential (sk_test_... / sk_live_...).
	APIKey string

	// DefaultPriceID is the price used when creating new subscriptions.
	DefaultPriceID string

	// Logger is used for structured logging. Optional.
	Logger zerolog.Logger

	// Metrics is an optional metrics collector. If nil, metrics are dropped.
	Metrics billing.Metrics
}

// Client wraps the billing provider's API behind the operations this service
// needs: lookup, quantity changes, proration preview, invoicing and
// out-of-band payment.
type Client struct {
	api            backend
	defaultPriceID string
	log            zerolog.Logger
	metrics        billing.Metrics
}

// NewClient creates a new billing provider client.
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("stripe API key not configured")
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &billing.NoopMetrics{}
	}

	sc := stripe.NewClient(apiKey)

	return &Client{
		api:            &liveBackend{sc: sc},
		defaultPriceID: strings.TrimSpace(cfg.DefaultPriceID),
		log:            cfg.Logger,
		metrics:        metrics,
	}, nil
}

// record tracks a completed provider call the way all client methods do.
func (c *Client) record(endpoint string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordAPICall(providerName, endpoint, status)
	c.metrics.RecordAPICallDuration(providerName, endpoint, time.Since(start))
}

// isNotFound reports whether err is the provider's resource-missing error.
func isNotFound(err error) bool {
	var se *stripe.Error
	if errors.As(err, &se) {
		return se.HTTPStatusCode == 404 || se.Code == stripe.ErrorCodeResourceMissing
	}
	return false
}

// backend is the narrow slice of the provider API the client uses. The live
// implementation delegates to the official SDK; tests substitute a fake.
type backend interface {
	CustomersByEmail(ctx context.Context, email string) ([]*stripe.Customer, error)
	Customer(ctx context.Context, id string) (*stripe.Customer, error)
	CreateCustomer(ctx context.Context, params *stripe.CustomerCreateParams) (*stripe.Customer, error)

	Subscription(ctx context.Context, id string) (*stripe.Subscription, error)
	SubscriptionsByCustomer(ctx context.Context, customerID string) ([]*stripe.Subscription, error)
	CreateSubscription(ctx context.Context, params *stripe.SubscriptionCreateParams) (*stripe.Subscription, error)
	UpdateItemQuantity(ctx context.Context, itemID string, quantity int64) (*stripe.SubscriptionItem, error)

	Invoice(ctx context.Context, id string) (*stripe.Invoice, error)
	InvoicesByCustomer(ctx context.Context, customerID string) ([]*stripe.Invoice, error)
	OpenInvoicesBySubscription(ctx context.Context, subscriptionID string) ([]*stripe.Invoice, error)
	CreateInvoice(ctx context.Context, params *stripe.InvoiceCreateParams) (*stripe.Invoice, error)
	FinalizeInvoice(ctx context.Context, id string) (*stripe.Invoice, error)
	VoidInvoice(ctx context.Context, id string) (*stripe.Invoice, error)
	PayOutOfBand(ctx context.Context, id string) (*stripe.Invoice, error)
	SetInvoiceMetadata(ctx context.Context, id string, metadata map[string]string) (*stripe.Invoice, error)
	SearchInvoices(ctx context.Context, query string) ([]*stripe.Invoice, error)

	Price(ctx context.Context, id string) (*stripe.Price, error)
	Product(ctx context.Context, id string) (*stripe.Product, error)
	PreviewInvoice(ctx context.Context, params *stripe.InvoiceCreatePreviewParams) (*stripe.Invoice, error)
}

// liveBackend implements backend over the official SDK's V1 client.
type liveBackend struct {
	sc *stripe.Client
}

func (b *liveBackend) CustomersByEmail(ctx context.Context, email string) ([]*stripe.Customer, error) {
	params := &stripe.CustomerListParams{}
	params.Email = stripe.String(email)

	var customers []*stripe.Customer
	for cust, err := range b.sc.V1Customers.List(ctx, params) {
		if err != nil {
			return nil, err
		}
		customers = append(customers, cust)
	}
	return customers, nil
}

func (b *liveBackend) Customer(ctx context.Context, id string) (*stripe.Customer, error) {
	return b.sc.V1Customers.Retrieve(ctx, id, nil)
}

func (b *liveBackend) CreateCustomer(ctx context.Context, params *stripe.CustomerCreateParams) (*stripe.Customer, error) {
	return b.sc.V1Customers.Create(ctx, params)
}

func (b *liveBackend) Subscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	return b.sc.V1Subscriptions.Retrieve(ctx, id, nil)
}

func (b *liveBackend) SubscriptionsByCustomer(ctx context.Context, customerID string) ([]*stripe.Subscription, error) {
	params := &stripe.SubscriptionListParams{}
	params.Customer = stripe.String(customerID)
	params.Status = stripe.String("all")

	var subs []*stripe.Subscription
	for sub, err := range b.sc.V1Subscriptions.List(ctx, params) {
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (b *liveBackend) CreateSubscription(ctx context.Context, params *stripe.SubscriptionCreateParams) (*stripe.Subscription, error) {
	return b.sc.V1Subscriptions.Create(ctx, params)
}

func (b *liveBackend) UpdateItemQuantity(ctx context.Context, itemID string, quantity int64) (*stripe.SubscriptionItem, error) {
	params := &stripe.SubscriptionItemUpdateParams{
		Quantity:          stripe.Int64(quantity),
		ProrationBehavior: stripe.String(prorationBehaviorNone),
	}
	return b.sc.V1SubscriptionItems.Update(ctx, itemID, params)
}

func (b *liveBackend) Invoice(ctx context.Context, id string) (*stripe.Invoice, error) {
	params := &stripe.InvoiceRetrieveParams{}
	params.AddExpand("customer")
	return b.sc.V1Invoices.Retrieve(ctx, id, params)
}

func (b *liveBackend) InvoicesByCustomer(ctx context.Context, customerID string) ([]*stripe.Invoice, error) {
	params := &stripe.InvoiceListParams{}
	params.Customer = stripe.String(customerID)

	var invoices []*stripe.Invoice
	for inv, err := range b.sc.V1Invoices.List(ctx, params) {
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

func (b *liveBackend) OpenInvoicesBySubscription(ctx context.Context, subscriptionID string) ([]*stripe.Invoice, error) {
	params := &stripe.InvoiceListParams{}
	params.Subscription = stripe.String(subscriptionID)
	params.Status = stripe.String(invoiceStatusOpen)

	var invoices []*stripe.Invoice
	for inv, err := range b.sc.V1Invoices.List(ctx, params) {
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

func (b *liveBackend) CreateInvoice(ctx context.Context, params *stripe.InvoiceCreateParams) (*stripe.Invoice, error) {
	return b.sc.V1Invoices.Create(ctx, params)
}

func (b *liveBackend) FinalizeInvoice(ctx context.Context, id string) (*stripe.Invoice, error) {
	return b.sc.V1Invoices.FinalizeInvoice(ctx, id, nil)
}

func (b *liveBackend) VoidInvoice(ctx context.Context, id string) (*stripe.Invoice, error) {
	return b.sc.V1Invoices.VoidInvoice(ctx, id, nil)
}

func (b *liveBackend) PayOutOfBand(ctx context.Context, id string) (*stripe.Invoice, error) {
	params := &stripe.InvoicePayParams{
		PaidOutOfBand: stripe.Bool(true),
	}
	return b.sc.V1Invoices.Pay(ctx, id, params)
}

func (b *liveBackend) SetInvoiceMetadata(ctx context.Context, id string, metadata map[string]string) (*stripe.Invoice, error) {
	params := &stripe.InvoiceUpdateParams{}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	return b.sc.V1Invoices.Update(ctx, id, params)
}

func (b *liveBackend) SearchInvoices(ctx context.Context, query string) ([]*stripe.Invoice, error) {
	params := &stripe.InvoiceSearchParams{}
	params.Query = query

	var invoices []*stripe.Invoice
	for inv, err := range b.sc.V1Invoices.Search(ctx, params) {
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

func (b *liveBackend) Price(ctx context.Context, id string) (*stripe.Price, error) {
	params := &stripe.PriceRetrieveParams{}
	params.AddExpand("tiers")
	return b.sc.V1Prices.Retrieve(ctx, id, params)
}

func (b *liveBackend) Product(ctx context.Context, id string) (*stripe.Product, error) {
	return b.sc.V1Products.Retrieve(ctx, id, nil)
}

func (b *liveBackend) PreviewInvoice(ctx context.Context, params *stripe.InvoiceCreatePreviewParams) (*stripe.Invoice, error) {
	return b.sc.V1Invoices.CreatePreview(ctx, params)
}
