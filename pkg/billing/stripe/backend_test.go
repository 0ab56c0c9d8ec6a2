package stripe

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v83"

	"github.com/mihaimyh/pixbridge/pkg/billing"
)

// fakeBackend implements backend against in-memory fixtures and records every
// mutating call so tests can assert on the exact upstream call sequence.
type fakeBackend struct {
	customers     []*stripe.Customer
	subscriptions map[string]*stripe.Subscription
	invoices      map[string]*stripe.Invoice
	openBySub     map[string][]*stripe.Invoice
	prices        map[string]*stripe.Price
	products      map[string]*stripe.Product
	preview       *stripe.Invoice

	failVoid map[string]bool

	calls []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		subscriptions: make(map[string]*stripe.Subscription),
		invoices:      make(map[string]*stripe.Invoice),
		openBySub:     make(map[string][]*stripe.Invoice),
		prices:        make(map[string]*stripe.Price),
		products:      make(map[string]*stripe.Product),
		failVoid:      make(map[string]bool),
	}
}

func (f *fakeBackend) called(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeBackend) CustomersByEmail(_ context.Context, email string) ([]*stripe.Customer, error) {
	f.called("customers.list %s", email)
	var out []*stripe.Customer
	for _, c := range f.customers {
		if c.Email == email {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeBackend) Customer(_ context.Context, id string) (*stripe.Customer, error) {
	f.called("customers.retrieve %s", id)
	for _, c := range f.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, &stripe.Error{HTTPStatusCode: 404}
}

func (f *fakeBackend) CreateCustomer(_ context.Context, params *stripe.CustomerCreateParams) (*stripe.Customer, error) {
	f.called("customers.create")
	cust := &stripe.Customer{ID: fmt.Sprintf("cus_new_%d", len(f.customers)+1)}
	if params.Email != nil {
		cust.Email = *params.Email
	}
	if params.Name != nil {
		cust.Name = *params.Name
	}
	f.customers = append(f.customers, cust)
	return cust, nil
}

func (f *fakeBackend) Subscription(_ context.Context, id string) (*stripe.Subscription, error) {
	f.called("subscriptions.retrieve %s", id)
	sub, ok := f.subscriptions[id]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: 404}
	}
	return sub, nil
}

func (f *fakeBackend) SubscriptionsByCustomer(_ context.Context, customerID string) ([]*stripe.Subscription, error) {
	f.called("subscriptions.list %s", customerID)
	var out []*stripe.Subscription
	for _, sub := range f.subscriptions {
		if sub.Customer != nil && sub.Customer.ID == customerID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (f *fakeBackend) CreateSubscription(_ context.Context, params *stripe.SubscriptionCreateParams) (*stripe.Subscription, error) {
	f.called("subscriptions.create")
	sub := &stripe.Subscription{
		ID:     "sub_new",
		Status: "active",
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{ID: "si_new", Quantity: *params.Items[0].Quantity},
			},
		},
		LatestInvoice: &stripe.Invoice{ID: "in_new", Status: "open", AmountDue: 5000},
	}
	if params.Customer != nil {
		sub.Customer = &stripe.Customer{ID: *params.Customer}
	}
	f.subscriptions[sub.ID] = sub
	return sub, nil
}

func (f *fakeBackend) UpdateItemQuantity(_ context.Context, itemID string, quantity int64) (*stripe.SubscriptionItem, error) {
	f.called("subscription_items.update %s qty=%d", itemID, quantity)
	for _, sub := range f.subscriptions {
		if item := findItem(sub, itemID); item != nil {
			item.Quantity = quantity
			return item, nil
		}
	}
	return nil, &stripe.Error{HTTPStatusCode: 404}
}

func (f *fakeBackend) Invoice(_ context.Context, id string) (*stripe.Invoice, error) {
	f.called("invoices.retrieve %s", id)
	inv, ok := f.invoices[id]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: 404}
	}
	return inv, nil
}

func (f *fakeBackend) InvoicesByCustomer(_ context.Context, customerID string) ([]*stripe.Invoice, error) {
	f.called("invoices.list customer=%s", customerID)
	var out []*stripe.Invoice
	for _, inv := range f.invoices {
		if inv.Customer != nil && inv.Customer.ID == customerID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeBackend) OpenInvoicesBySubscription(_ context.Context, subscriptionID string) ([]*stripe.Invoice, error) {
	f.called("invoices.list subscription=%s status=open", subscriptionID)
	return f.openBySub[subscriptionID], nil
}

func (f *fakeBackend) CreateInvoice(_ context.Context, params *stripe.InvoiceCreateParams) (*stripe.Invoice, error) {
	f.called("invoices.create")
	inv := &stripe.Invoice{ID: "in_created", Status: "draft", AmountDue: 2500}
	if params.Customer != nil && inv.Customer == nil {
		inv.Customer = &stripe.Customer{ID: *params.Customer}
	}
	f.invoices[inv.ID] = inv
	return inv, nil
}

func (f *fakeBackend) FinalizeInvoice(_ context.Context, id string) (*stripe.Invoice, error) {
	f.called("invoices.finalize %s", id)
	inv, ok := f.invoices[id]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: 404}
	}
	inv.Status = "open"
	return inv, nil
}

func (f *fakeBackend) VoidInvoice(_ context.Context, id string) (*stripe.Invoice, error) {
	f.called("invoices.void %s", id)
	if f.failVoid[id] {
		return nil, &stripe.Error{HTTPStatusCode: 400, Msg: "cannot void"}
	}
	if inv, ok := f.invoices[id]; ok {
		inv.Status = "void"
		return inv, nil
	}
	return &stripe.Invoice{ID: id, Status: "void"}, nil
}

func (f *fakeBackend) PayOutOfBand(_ context.Context, id string) (*stripe.Invoice, error) {
	f.called("invoices.pay %s", id)
	inv, ok := f.invoices[id]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: 404}
	}
	inv.Status = "paid"
	inv.AmountPaid = inv.AmountDue
	return inv, nil
}

func (f *fakeBackend) SetInvoiceMetadata(_ context.Context, id string, metadata map[string]string) (*stripe.Invoice, error) {
	f.called("invoices.update %s", id)
	inv, ok := f.invoices[id]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: 404}
	}
	if inv.Metadata == nil {
		inv.Metadata = make(map[string]string)
	}
	for k, v := range metadata {
		inv.Metadata[k] = v
	}
	return inv, nil
}

func (f *fakeBackend) SearchInvoices(_ context.Context, query string) ([]*stripe.Invoice, error) {
	f.called("invoices.search")
	var out []*stripe.Invoice
	for _, inv := range f.invoices {
		out = append(out, inv)
	}
	return out, nil
}

func (f *fakeBackend) Price(_ context.Context, id string) (*stripe.Price, error) {
	f.called("prices.retrieve %s", id)
	price, ok := f.prices[id]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: 404}
	}
	return price, nil
}

func (f *fakeBackend) Product(_ context.Context, id string) (*stripe.Product, error) {
	f.called("products.retrieve %s", id)
	product, ok := f.products[id]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: 404}
	}
	return product, nil
}

func (f *fakeBackend) PreviewInvoice(_ context.Context, _ *stripe.InvoiceCreatePreviewParams) (*stripe.Invoice, error) {
	f.called("invoices.preview")
	if f.preview == nil {
		return nil, &stripe.Error{HTTPStatusCode: 400}
	}
	return f.preview, nil
}

func (f *fakeBackend) mutatingCalls() []string {
	var out []string
	for _, call := range f.calls {
		switch {
		case strings.Contains(call, "update"), strings.Contains(call, "create"),
			strings.Contains(call, "void"), strings.Contains(call, "pay"),
			strings.Contains(call, "finalize"):
			out = append(out, call)
		}
	}
	return out
}

func newTestClient(t *testing.T, api backend) *Client {
	t.Helper()
	return &Client{
		api:            api,
		defaultPriceID: "price_default",
		log:            zerolog.Nop(),
		metrics:        &billing.NoopMetrics{},
	}
}
