package stripe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/mihaimyh/pixbridge/pkg/billing"
)

// Subscription fetches a subscription and resolves its first item's product name.
func (c *Client) Subscription(ctx context.Context, id string) (*billing.Subscription, error) {
	start := time.Now()
	raw, err := c.api.Subscription(ctx, id)
	c.record("/subscriptions/retrieve", start, err)
	if err != nil {
		if isNotFound(err) {
			return nil, billing.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}

	name, err := c.productNameForItem(ctx, firstItem(raw))
	if err != nil {
		c.log.Warn().Err(err).Str("subscription_id", id).Msg("could not resolve product name")
	}
	sub := subscriptionFromStripe(raw, name)
	return &sub, nil
}

// ChangeQuantity applies a quantity change to a subscription item.
//
// An upgrade (target > current) first voids every currently-open invoice of
// the subscription, applies the quantity with proration disabled, then issues
// and finalizes a single fresh invoice whose amount_due is the pro-rata
// charge. A downgrade only applies the quantity; the provider keeps the
// negative proration as a balance credit for the next cycle. Equal quantity
// is a no-op that issues no mutating call.
func (c *Client) ChangeQuantity(ctx context.Context, subscriptionID, itemID string, newQuantity int64) (*billing.QuantityChange, error) {
	start := time.Now()
	sub, err := c.api.Subscription(ctx, subscriptionID)
	c.record("/subscriptions/retrieve", start, err)
	if err != nil {
		if isNotFound(err) {
			return nil, billing.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}

	item := findItem(sub, itemID)
	if item == nil {
		return nil, billing.ErrSubscriptionItemNotFound
	}
	current := item.Quantity

	if newQuantity == current {
		return &billing.QuantityChange{
			Changed:          false,
			PreviousQuantity: current,
			NewQuantity:      current,
			VoidedInvoices:   []billing.VoidedInvoice{},
		}, nil
	}

	isUpgrade := newQuantity > current
	voided := []billing.VoidedInvoice{}

	if isUpgrade {
		voided, err = c.voidOpenInvoices(ctx, subscriptionID)
		if err != nil {
			return nil, err
		}
	}

	start = time.Now()
	_, err = c.api.UpdateItemQuantity(ctx, itemID, newQuantity)
	c.record("/subscription_items/update", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to update quantity: %w", err)
	}

	var summary *billing.InvoiceSummary
	if isUpgrade {
		summary, err = c.createProrationInvoice(ctx, customerID(sub), subscriptionID)
		if err != nil {
			return nil, err
		}
	}

	c.log.Info().
		Str("subscription_id", subscriptionID).
		Int64("previous_quantity", current).
		Int64("new_quantity", newQuantity).
		Bool("is_upgrade", isUpgrade).
		Int("voided_invoices", len(voided)).
		Msg("subscription quantity changed")

	return &billing.QuantityChange{
		Changed:          true,
		IsUpgrade:        isUpgrade,
		PreviousQuantity: current,
		NewQuantity:      newQuantity,
		VoidedInvoices:   voided,
		Invoice:          summary,
	}, nil
}

// voidOpenInvoices voids every open invoice of the subscription. Each void is
// independent: a failed void is logged and skipped, never fatal.
func (c *Client) voidOpenInvoices(ctx context.Context, subscriptionID string) ([]billing.VoidedInvoice, error) {
	start := time.Now()
	open, err := c.api.OpenInvoicesBySubscription(ctx, subscriptionID)
	c.record("/invoices/list", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list open invoices: %w", err)
	}

	voided := make([]billing.VoidedInvoice, 0, len(open))
	for _, inv := range open {
		start = time.Now()
		_, err := c.api.VoidInvoice(ctx, inv.ID)
		c.record("/invoices/void", start, err)
		if err != nil {
			c.log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("could not void invoice, skipping")
			continue
		}
		voided = append(voided, billing.VoidedInvoice{ID: inv.ID, AmountDue: inv.AmountDue})
	}
	return voided, nil
}

// createProrationInvoice creates a fresh invoice for the subscription and
// finalizes it if the provider leaves it in draft.
func (c *Client) createProrationInvoice(ctx context.Context, custID, subscriptionID string) (*billing.InvoiceSummary, error) {
	params := &stripe.InvoiceCreateParams{
		Customer:     stripe.String(custID),
		Subscription: stripe.String(subscriptionID),
	}

	start := time.Now()
	inv, err := c.api.CreateInvoice(ctx, params)
	c.record("/invoices/create", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	if inv.Status == invoiceStatusDraft {
		start = time.Now()
		inv, err = c.api.FinalizeInvoice(ctx, inv.ID)
		c.record("/invoices/finalize", start, err)
		if err != nil {
			return nil, fmt.Errorf("failed to finalize invoice: %w", err)
		}
	}

	return invoiceSummaryFromStripe(inv), nil
}

// PreviewQuantity simulates a quantity change without mutating anything. The
// naive unit-price difference is for display; the provider's invoice preview
// is the authoritative prorated amount. A negative total is a credit.
func (c *Client) PreviewQuantity(ctx context.Context, subscriptionID string, newQuantity int64) (*billing.ProrationPreview, error) {
	start := time.Now()
	sub, err := c.api.Subscription(ctx, subscriptionID)
	c.record("/subscriptions/retrieve", start, err)
	if err != nil {
		if isNotFound(err) {
			return nil, billing.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}

	item := firstItem(sub)
	if item == nil || item.Price == nil {
		return nil, billing.ErrSubscriptionItemNotFound
	}

	start = time.Now()
	price, err := c.api.Price(ctx, item.Price.ID)
	c.record("/prices/retrieve", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price: %w", err)
	}
	unitAmount := resolveUnitAmount(price)

	productName, err := c.productNameForItem(ctx, item)
	if err != nil {
		c.log.Warn().Err(err).Str("subscription_id", subscriptionID).Msg("could not resolve product name")
	}

	previewParams := &stripe.InvoiceCreatePreviewParams{
		Customer:     stripe.String(customerID(sub)),
		Subscription: stripe.String(subscriptionID),
		SubscriptionDetails: &stripe.InvoiceCreatePreviewSubscriptionDetailsParams{
			Items: []*stripe.InvoiceCreatePreviewSubscriptionDetailsItemParams{
				{
					ID:       stripe.String(item.ID),
					Quantity: stripe.Int64(newQuantity),
				},
			},
			ProrationBehavior: stripe.String("create_prorations"),
		},
	}

	start = time.Now()
	preview, err := c.api.PreviewInvoice(ctx, previewParams)
	c.record("/invoices/preview", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to preview invoice: %w", err)
	}

	lines := make([]billing.PreviewLine, 0)
	if preview.Lines != nil {
		for _, line := range preview.Lines.Data {
			lines = append(lines, billing.PreviewLine{
				Description: line.Description,
				Amount:      line.Amount,
			})
		}
	}

	var discount int64
	for _, d := range preview.TotalDiscountAmounts {
		discount += d.Amount
	}

	open, err := c.openInvoiceSummaries(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	return &billing.ProrationPreview{
		SubscriptionID:  subscriptionID,
		ProductName:     productName,
		CurrentQuantity: item.Quantity,
		NewQuantity:     newQuantity,
		UnitAmount:      unitAmount,
		NaiveDifference: newQuantity*unitAmount - item.Quantity*unitAmount,
		PreviewTotal:    preview.Total,
		ProRataAmount:   preview.AmountDue,
		DiscountAmount:  discount,
		IsCredit:        preview.Total < 0,
		ProrationLines:  lines,
		OpenInvoices:    open,
	}, nil
}

// resolveUnitAmount returns the flat unit amount, or the first tier's for
// tiered pricing.
func resolveUnitAmount(price *stripe.Price) int64 {
	if price.BillingScheme == stripe.PriceBillingSchemeTiered && len(price.Tiers) > 0 {
		return price.Tiers[0].UnitAmount
	}
	return price.UnitAmount
}

func (c *Client) openInvoiceSummaries(ctx context.Context, subscriptionID string) ([]billing.InvoiceSummary, error) {
	start := time.Now()
	open, err := c.api.OpenInvoicesBySubscription(ctx, subscriptionID)
	c.record("/invoices/list", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list open invoices: %w", err)
	}

	out := make([]billing.InvoiceSummary, 0, len(open))
	for _, inv := range open {
		out = append(out, *invoiceSummaryFromStripe(inv))
	}
	return out, nil
}

// CreateSubscription creates a subscription on the configured default price,
// billed by invoice so the resulting invoice can be settled through PIX.
func (c *Client) CreateSubscription(ctx context.Context, params billing.CreateSubscriptionParams) (*billing.NewSubscription, error) {
	if c.defaultPriceID == "" {
		return nil, fmt.Errorf("no default price configured")
	}

	quantity := params.Quantity
	if quantity < 1 {
		quantity = 1
	}

	cust, err := c.resolveOrCreateCustomer(ctx, params)
	if err != nil {
		return nil, err
	}

	subParams := &stripe.SubscriptionCreateParams{
		Customer: stripe.String(cust.ID),
		Items: []*stripe.SubscriptionCreateItemParams{
			{
				Price:    stripe.String(c.defaultPriceID),
				Quantity: stripe.Int64(quantity),
			},
		},
		CollectionMethod: stripe.String(collectionMethodSendInvoice),
		DaysUntilDue:     stripe.Int64(defaultDaysUntilDue),
	}
	subParams.AddExpand("latest_invoice")

	start := time.Now()
	raw, err := c.api.CreateSubscription(ctx, subParams)
	c.record("/subscriptions/create", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	name, err := c.productNameForItem(ctx, firstItem(raw))
	if err != nil {
		c.log.Warn().Err(err).Str("subscription_id", raw.ID).Msg("could not resolve product name")
	}

	out := &billing.NewSubscription{
		Customer:     *cust,
		Subscription: subscriptionFromStripe(raw, name),
	}
	if raw.LatestInvoice != nil {
		out.Invoice = invoiceSummaryFromStripe(raw.LatestInvoice)
	}
	return out, nil
}

func (c *Client) resolveOrCreateCustomer(ctx context.Context, params billing.CreateSubscriptionParams) (*billing.Customer, error) {
	if id := strings.TrimSpace(params.CustomerID); id != "" {
		start := time.Now()
		raw, err := c.api.Customer(ctx, id)
		c.record("/customers/retrieve", start, err)
		if err != nil {
			if isNotFound(err) {
				return nil, billing.ErrCustomerNotFound
			}
			return nil, fmt.Errorf("failed to fetch customer: %w", err)
		}
		cust := customerFromStripe(raw)
		return &cust, nil
	}

	cust, err := c.CustomerByEmail(ctx, params.Email)
	if err == nil {
		return cust, nil
	}
	if err != billing.ErrCustomerNotFound {
		return nil, err
	}

	createParams := &stripe.CustomerCreateParams{
		Email: stripe.String(strings.ToLower(strings.TrimSpace(params.Email))),
	}
	if params.Name != "" {
		createParams.Name = stripe.String(params.Name)
	}

	start := time.Now()
	raw, err := c.api.CreateCustomer(ctx, createParams)
	c.record("/customers/create", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	created := customerFromStripe(raw)
	return &created, nil
}

func customerID(sub *stripe.Subscription) string {
	if sub.Customer == nil {
		return ""
	}
	return sub.Customer.ID
}
