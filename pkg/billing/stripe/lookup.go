package stripe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/mihaimyh/pixbridge/pkg/billing"
)

// CustomerByEmail looks up a customer by email, lowercased and trimmed.
// When several customers share the email, the most recently created one wins;
// relying on upstream list ordering proved too fragile to leave implicit.
func (c *Client) CustomerByEmail(ctx context.Context, email string) (*billing.Customer, error) {
	start := time.Now()
	normalized := strings.ToLower(strings.TrimSpace(email))

	customers, err := c.api.CustomersByEmail(ctx, normalized)
	c.record("/customers/list", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	if len(customers) == 0 {
		return nil, billing.ErrCustomerNotFound
	}

	picked := pickCustomer(customers)
	cust := customerFromStripe(picked)
	return &cust, nil
}

// pickCustomer selects the most recently created customer from a non-empty list.
func pickCustomer(customers []*stripe.Customer) *stripe.Customer {
	picked := customers[0]
	for _, cust := range customers[1:] {
		if cust.Created > picked.Created {
			picked = cust
		}
	}
	return picked
}

// CustomerView builds the grouped lookup result for the customer matching the
// email: all invoices bucketed under their subscription (or the synthetic
// no_subscription bucket), each bucket sorted newest first, plus totals.
func (c *Client) CustomerView(ctx context.Context, email string) (*billing.CustomerView, error) {
	cust, err := c.CustomerByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rawInvoices, err := c.api.InvoicesByCustomer(ctx, cust.ID)
	c.record("/invoices/list", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	start = time.Now()
	rawSubs, err := c.api.SubscriptionsByCustomer(ctx, cust.ID)
	c.record("/subscriptions/list", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	subs := make([]billing.Subscription, 0, len(rawSubs))
	for _, raw := range rawSubs {
		name, err := c.productNameForItem(ctx, firstItem(raw))
		if err != nil {
			// Display name only; the subscription is still listed.
			c.log.Warn().Err(err).Str("subscription_id", raw.ID).Msg("could not resolve product name")
		}
		subs = append(subs, subscriptionFromStripe(raw, name))
	}

	invoices := make([]billing.Invoice, 0, len(rawInvoices))
	for _, raw := range rawInvoices {
		invoices = append(invoices, invoiceFromStripe(raw))
	}

	groups, totals := groupInvoices(subs, invoices)

	return &billing.CustomerView{
		Customer:      *cust,
		Subscriptions: groups,
		Totals:        totals,
	}, nil
}

// productNameForItem resolves the display name of an item's product through
// the price -> product chain.
func (c *Client) productNameForItem(ctx context.Context, item *stripe.SubscriptionItem) (string, error) {
	if item == nil || item.Price == nil {
		return "", nil
	}

	// The nested product may already carry a name when expanded.
	if item.Price.Product != nil && item.Price.Product.Name != "" {
		return item.Price.Product.Name, nil
	}

	start := time.Now()
	price, err := c.api.Price(ctx, item.Price.ID)
	c.record("/prices/retrieve", start, err)
	if err != nil {
		return "", fmt.Errorf("failed to fetch price %s: %w", item.Price.ID, err)
	}
	if price.Product == nil {
		return "", nil
	}
	if price.Product.Name != "" {
		return price.Product.Name, nil
	}

	start = time.Now()
	product, err := c.api.Product(ctx, price.Product.ID)
	c.record("/products/retrieve", start, err)
	if err != nil {
		return "", fmt.Errorf("failed to fetch product %s: %w", price.Product.ID, err)
	}
	return product.Name, nil
}

// groupInvoices buckets invoices under their subscription id, falling back to
// the synthetic no_subscription bucket. Subscriptions without invoices still
// get a group. Invoices inside each bucket are sorted by creation descending.
func groupInvoices(subs []billing.Subscription, invoices []billing.Invoice) ([]billing.SubscriptionGroup, billing.InvoiceTotals) {
	byID := make(map[string]int, len(subs)+1)
	groups := make([]billing.SubscriptionGroup, 0, len(subs)+1)

	for i := range subs {
		byID[subs[i].ID] = len(groups)
		groups = append(groups, billing.SubscriptionGroup{
			SubscriptionID: subs[i].ID,
			Subscription:   &subs[i],
			Invoices:       []billing.Invoice{},
		})
	}

	var totals billing.InvoiceTotals
	orphanIdx := -1

	for _, inv := range invoices {
		totals.Invoices++
		if inv.Status == invoiceStatusOpen {
			totals.Open++
		}

		idx, ok := byID[inv.SubscriptionID]
		if inv.SubscriptionID == "" || !ok {
			if orphanIdx == -1 {
				orphanIdx = len(groups)
				groups = append(groups, billing.SubscriptionGroup{
					SubscriptionID: billing.NoSubscriptionBucket,
					Invoices:       []billing.Invoice{},
				})
			}
			idx = orphanIdx
		}
		groups[idx].Invoices = append(groups[idx].Invoices, inv)
	}

	for i := range groups {
		invs := groups[i].Invoices
		sort.SliceStable(invs, func(a, b int) bool {
			return invs[a].Created.After(invs[b].Created)
		})
	}

	return groups, totals
}
