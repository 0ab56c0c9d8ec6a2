package billing

import "time"

// CreateSubscriptionParams are the inputs for creating a subscription. When
// CustomerID is empty, the customer is looked up by email and created if
// missing.
type CreateSubscriptionParams struct {
	Email      string
	Name       string
	Quantity   int64
	CustomerID string
}

// Invoice statuses as reported by the billing provider.
const (
	InvoiceStatusOpen = "open"
	InvoiceStatusPaid = "paid"
)

// NoSubscriptionBucket is the synthetic group id for invoices that do not
// belong to any subscription (one-off invoices, deleted subscriptions).
const NoSubscriptionBucket = "no_subscription"

// Customer is the transient view of a provider customer. No entity here is
// persisted; everything is reshaped per request from the provider's response.
type Customer struct {
	ID      string    `json:"id"`
	Email   string    `json:"email"`
	Name    string    `json:"name"`
	Phone   string    `json:"phone,omitempty"`
	Created time.Time `json:"created"`
}

// Subscription is the transient view of a provider subscription. Only the
// first line item is represented; the billing model is single-item.
type Subscription struct {
	ID                 string    `json:"id"`
	Status             string    `json:"status"`
	ItemID             string    `json:"item_id"`
	Quantity           int64     `json:"quantity"`
	UnitAmount         int64     `json:"unit_amount"`
	ProductName        string    `json:"product_name"`
	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`
	Created            time.Time `json:"created"`
}

// Invoice is the transient view of a provider invoice.
type Invoice struct {
	ID             string            `json:"id"`
	Status         string            `json:"status"`
	AmountDue      int64             `json:"amount_due"`
	AmountPaid     int64             `json:"amount_paid"`
	SubscriptionID string            `json:"subscription_id,omitempty"`
	Created        time.Time         `json:"created"`
	DueDate        time.Time         `json:"due_date,omitzero"`
	HostedURL      string            `json:"hosted_url,omitempty"`
	CustomerID     string            `json:"-"`
	CustomerName   string            `json:"-"`
	CustomerEmail  string            `json:"-"`
	CustomerPhone  string            `json:"-"`
	Metadata       map[string]string `json:"-"`
}

// InvoiceSummary is the short invoice shape returned by mutation endpoints.
type InvoiceSummary struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	AmountDue int64  `json:"amount_due"`
	HostedURL string `json:"hosted_url,omitempty"`
}

// SubscriptionGroup buckets a subscription together with its invoices,
// newest invoice first.
type SubscriptionGroup struct {
	SubscriptionID string        `json:"subscription_id"`
	Subscription   *Subscription `json:"subscription,omitempty"`
	Invoices       []Invoice     `json:"invoices"`
}

// InvoiceTotals summarizes the invoices across all groups of a CustomerView.
type InvoiceTotals struct {
	Invoices int `json:"invoices"`
	Open     int `json:"open"`
}

// CustomerView is the grouped lookup result for one customer.
type CustomerView struct {
	Customer      Customer            `json:"customer"`
	Subscriptions []SubscriptionGroup `json:"subscriptions"`
	Totals        InvoiceTotals       `json:"totals"`
}

// VoidedInvoice records one invoice voided during an upgrade.
type VoidedInvoice struct {
	ID        string `json:"id"`
	AmountDue int64  `json:"amount_due"`
}

// QuantityChange is the result of a subscription quantity mutation.
// Invoice is nil for downgrades and no-ops.
type QuantityChange struct {
	Changed          bool            `json:"changed"`
	IsUpgrade        bool            `json:"is_upgrade"`
	PreviousQuantity int64           `json:"previous_quantity"`
	NewQuantity      int64           `json:"new_quantity"`
	VoidedInvoices   []VoidedInvoice `json:"voided_invoices"`
	Invoice          *InvoiceSummary `json:"invoice"`
}

// PreviewLine is one line of the provider's proration preview.
type PreviewLine struct {
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
}

// ProrationPreview is the read-only upgrade simulation result. NaiveDifference
// is informational only; PreviewTotal from the provider's preview endpoint is
// the source of truth. A negative PreviewTotal denotes a credit.
type ProrationPreview struct {
	SubscriptionID  string           `json:"subscription_id"`
	ProductName     string           `json:"product_name"`
	CurrentQuantity int64            `json:"current_quantity"`
	NewQuantity     int64            `json:"new_quantity"`
	UnitAmount      int64            `json:"unit_amount"`
	NaiveDifference int64            `json:"naive_difference"`
	PreviewTotal    int64            `json:"preview_total"`
	ProRataAmount   int64            `json:"pro_rata_amount"`
	DiscountAmount  int64            `json:"discount_amount,omitempty"`
	IsCredit        bool             `json:"is_credit"`
	ProrationLines  []PreviewLine    `json:"proration_lines"`
	OpenInvoices    []InvoiceSummary `json:"open_invoices"`
}

// NewSubscription is the result of creating a subscription for a customer.
type NewSubscription struct {
	Customer     Customer        `json:"customer"`
	Subscription Subscription    `json:"subscription"`
	Invoice      *InvoiceSummary `json:"invoice"`
}
