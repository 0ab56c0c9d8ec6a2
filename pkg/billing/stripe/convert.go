package stripe

import (
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/mihaimyh/pixbridge/pkg/billing"
)

func customerFromStripe(cust *stripe.Customer) billing.Customer {
	return billing.Customer{
		ID:      cust.ID,
		Email:   cust.Email,
		Name:    cust.Name,
		Phone:   cust.Phone,
		Created: time.Unix(cust.Created, 0).UTC(),
	}
}

func invoiceFromStripe(inv *stripe.Invoice) billing.Invoice {
	out := billing.Invoice{
		ID:             inv.ID,
		Status:         string(inv.Status),
		AmountDue:      inv.AmountDue,
		AmountPaid:     inv.AmountPaid,
		SubscriptionID: invoiceSubscriptionID(inv),
		Created:        time.Unix(inv.Created, 0).UTC(),
		HostedURL:      inv.HostedInvoiceURL,
		Metadata:       inv.Metadata,
	}
	if inv.DueDate > 0 {
		out.DueDate = time.Unix(inv.DueDate, 0).UTC()
	}
	if inv.Customer != nil {
		out.CustomerID = inv.Customer.ID
		out.CustomerName = inv.Customer.Name
		out.CustomerEmail = inv.Customer.Email
		out.CustomerPhone = inv.Customer.Phone
	}
	return out
}

// invoiceSubscriptionID digs the owning subscription id out of the invoice.
// The SDK moved the link under invoice.parent.subscription_details.
func invoiceSubscriptionID(inv *stripe.Invoice) string {
	if inv.Parent == nil || inv.Parent.SubscriptionDetails == nil {
		return ""
	}
	if sub := inv.Parent.SubscriptionDetails.Subscription; sub != nil {
		return sub.ID
	}
	return ""
}

func invoiceSummaryFromStripe(inv *stripe.Invoice) *billing.InvoiceSummary {
	return &billing.InvoiceSummary{
		ID:        inv.ID,
		Status:    string(inv.Status),
		AmountDue: inv.AmountDue,
		HostedURL: inv.HostedInvoiceURL,
	}
}

// subscriptionFromStripe converts a subscription using its first line item.
// The product name is resolved separately because the nested product is not
// expanded on list responses.
func subscriptionFromStripe(sub *stripe.Subscription, productName string) billing.Subscription {
	out := billing.Subscription{
		ID:          sub.ID,
		Status:      string(sub.Status),
		ProductName: productName,
		Created:     time.Unix(sub.Created, 0).UTC(),
	}
	if item := firstItem(sub); item != nil {
		out.ItemID = item.ID
		out.Quantity = item.Quantity
		if item.Price != nil {
			out.UnitAmount = item.Price.UnitAmount
		}
		if item.CurrentPeriodStart > 0 {
			out.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
		}
		if item.CurrentPeriodEnd > 0 {
			out.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		}
	}
	return out
}

func firstItem(sub *stripe.Subscription) *stripe.SubscriptionItem {
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	return sub.Items.Data[0]
}

func findItem(sub *stripe.Subscription, itemID string) *stripe.SubscriptionItem {
	if sub.Items == nil {
		return nil
	}
	for _, item := range sub.Items.Data {
		if item.ID == itemID {
			return item
		}
	}
	return nil
}
