package stripe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"

	"github.com/mihaimyh/pixbridge/pkg/billing"
)

func subscriptionFixture(id, itemID string, quantity int64) *stripe.Subscription {
	return &stripe.Subscription{
		ID:       id,
		Status:   "active",
		Customer: &stripe.Customer{ID: "cus_1"},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{
					ID:       itemID,
					Quantity: quantity,
					Price:    &stripe.Price{ID: "price_1", UnitAmount: 1000},
				},
			},
		},
	}
}

func TestChangeQuantity_NoOp(t *testing.T) {
	api := newFakeBackend()
	api.subscriptions["sub_1"] = subscriptionFixture("sub_1", "si_1", 3)
	client := newTestClient(t, api)

	result, err := client.ChangeQuantity(context.Background(), "sub_1", "si_1", 3)
	require.NoError(t, err)

	assert.False(t, result.Changed)
	assert.Equal(t, int64(3), result.PreviousQuantity)
	assert.Equal(t, int64(3), result.NewQuantity)
	assert.Empty(t, api.mutatingCalls(), "no-op must not issue mutating calls")
}

func TestChangeQuantity_Upgrade(t *testing.T) {
	api := newFakeBackend()
	api.subscriptions["sub_1"] = subscriptionFixture("sub_1", "si_1", 2)
	api.invoices["in_open_1"] = &stripe.Invoice{ID: "in_open_1", Status: "open", AmountDue: 1500}
	api.invoices["in_open_2"] = &stripe.Invoice{ID: "in_open_2", Status: "open", AmountDue: 700}
	api.openBySub["sub_1"] = []*stripe.Invoice{api.invoices["in_open_1"], api.invoices["in_open_2"]}
	client := newTestClient(t, api)

	result, err := client.ChangeQuantity(context.Background(), "sub_1", "si_1", 5)
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.True(t, result.IsUpgrade)
	assert.Equal(t, int64(2), result.PreviousQuantity)
	assert.Equal(t, int64(5), result.NewQuantity)

	// Every open invoice is voided before the quantity is applied.
	require.Len(t, result.VoidedInvoices, 2)
	assert.Equal(t, "in_open_1", result.VoidedInvoices[0].ID)
	assert.Equal(t, int64(1500), result.VoidedInvoices[0].AmountDue)

	// Exactly one fresh invoice, finalized out of draft.
	require.NotNil(t, result.Invoice)
	assert.Equal(t, "in_created", result.Invoice.ID)
	assert.Equal(t, "open", result.Invoice.Status)
	assert.Greater(t, result.Invoice.AmountDue, int64(0))

	calls := api.mutatingCalls()
	require.Len(t, calls, 5)
	assert.Equal(t, "invoices.void in_open_1", calls[0])
	assert.Equal(t, "invoices.void in_open_2", calls[1])
	assert.Equal(t, "subscription_items.update si_1 qty=5", calls[2])
	assert.Equal(t, "invoices.create", calls[3])
	assert.Equal(t, "invoices.finalize in_created", calls[4])
}

func TestChangeQuantity_UpgradeSkipsFailedVoid(t *testing.T) {
	api := newFakeBackend()
	api.subscriptions["sub_1"] = subscriptionFixture("sub_1", "si_1", 1)
	api.invoices["in_a"] = &stripe.Invoice{ID: "in_a", Status: "open", AmountDue: 100}
	api.invoices["in_b"] = &stripe.Invoice{ID: "in_b", Status: "open", AmountDue: 200}
	api.openBySub["sub_1"] = []*stripe.Invoice{api.invoices["in_a"], api.invoices["in_b"]}
	api.failVoid["in_a"] = true
	client := newTestClient(t, api)

	result, err := client.ChangeQuantity(context.Background(), "sub_1", "si_1", 2)
	require.NoError(t, err, "a failed void is skipped, not fatal")

	require.Len(t, result.VoidedInvoices, 1)
	assert.Equal(t, "in_b", result.VoidedInvoices[0].ID)
	require.NotNil(t, result.Invoice)
}

func TestChangeQuantity_Downgrade(t *testing.T) {
	api := newFakeBackend()
	api.subscriptions["sub_1"] = subscriptionFixture("sub_1", "si_1", 5)
	api.invoices["in_open"] = &stripe.Invoice{ID: "in_open", Status: "open", AmountDue: 900}
	api.openBySub["sub_1"] = []*stripe.Invoice{api.invoices["in_open"]}
	client := newTestClient(t, api)

	result, err := client.ChangeQuantity(context.Background(), "sub_1", "si_1", 2)
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.False(t, result.IsUpgrade)
	assert.Nil(t, result.Invoice, "downgrade never creates an invoice")
	assert.Empty(t, result.VoidedInvoices, "downgrade never voids invoices")

	calls := api.mutatingCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "subscription_items.update si_1 qty=2", calls[0])
}

func TestChangeQuantity_ItemNotFound(t *testing.T) {
	api := newFakeBackend()
	api.subscriptions["sub_1"] = subscriptionFixture("sub_1", "si_1", 2)
	client := newTestClient(t, api)

	_, err := client.ChangeQuantity(context.Background(), "sub_1", "si_other", 4)
	assert.ErrorIs(t, err, billing.ErrSubscriptionItemNotFound)
}

func TestChangeQuantity_SubscriptionNotFound(t *testing.T) {
	client := newTestClient(t, newFakeBackend())

	_, err := client.ChangeQuantity(context.Background(), "sub_missing", "si_1", 4)
	assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)
}

func TestPreviewQuantity(t *testing.T) {
	api := newFakeBackend()
	api.subscriptions["sub_1"] = subscriptionFixture("sub_1", "si_1", 2)
	api.prices["price_1"] = &stripe.Price{
		ID:         "price_1",
		UnitAmount: 1000,
		Product:    &stripe.Product{ID: "prod_1"},
	}
	api.products["prod_1"] = &stripe.Product{ID: "prod_1", Name: "Team Plan"}
	api.preview = &stripe.Invoice{
		ID:        "in_preview",
		Total:     2750,
		AmountDue: 2750,
		Lines: &stripe.InvoiceLineItemList{
			Data: []*stripe.InvoiceLineItem{
				{Description: "Remaining time on 5 seats", Amount: 3000},
				{Description: "Unused time on 2 seats", Amount: -250},
			},
		},
	}
	client := newTestClient(t, api)

	preview, err := client.PreviewQuantity(context.Background(), "sub_1", 5)
	require.NoError(t, err)

	assert.Equal(t, "Team Plan", preview.ProductName)
	assert.Equal(t, int64(2), preview.CurrentQuantity)
	assert.Equal(t, int64(5), preview.NewQuantity)
	assert.Equal(t, int64(3000), preview.NaiveDifference, "naive difference is display only")
	assert.Equal(t, int64(2750), preview.PreviewTotal, "preview endpoint is the source of truth")
	assert.Equal(t, int64(2750), preview.ProRataAmount)
	assert.False(t, preview.IsCredit)
	assert.Len(t, preview.ProrationLines, 2)

	assert.Empty(t, api.mutatingCalls(), "preview is read-only")
}

func TestPreviewQuantity_CreditOnDowngrade(t *testing.T) {
	api := newFakeBackend()
	api.subscriptions["sub_1"] = subscriptionFixture("sub_1", "si_1", 5)
	api.prices["price_1"] = &stripe.Price{ID: "price_1", UnitAmount: 1000, Product: &stripe.Product{ID: "prod_1", Name: "Team Plan"}}
	api.preview = &stripe.Invoice{ID: "in_preview", Total: -1800, AmountDue: 0}
	client := newTestClient(t, api)

	preview, err := client.PreviewQuantity(context.Background(), "sub_1", 2)
	require.NoError(t, err)

	assert.True(t, preview.IsCredit)
	assert.Equal(t, int64(-3000), preview.NaiveDifference)
}

func TestResolveUnitAmount(t *testing.T) {
	t.Run("flat", func(t *testing.T) {
		price := &stripe.Price{UnitAmount: 990}
		assert.Equal(t, int64(990), resolveUnitAmount(price))
	})

	t.Run("tiered defaults to first tier", func(t *testing.T) {
		price := &stripe.Price{
			BillingScheme: stripe.PriceBillingSchemeTiered,
			Tiers: []*stripe.PriceTier{
				{UnitAmount: 800},
				{UnitAmount: 600},
			},
		}
		assert.Equal(t, int64(800), resolveUnitAmount(price))
	})
}

func TestCreateSubscription(t *testing.T) {
	t.Run("existing customer by email", func(t *testing.T) {
		api := newFakeBackend()
		api.customers = append(api.customers, &stripe.Customer{ID: "cus_1", Email: "a@b.com", Created: 100})
		client := newTestClient(t, api)

		result, err := client.CreateSubscription(context.Background(), billing.CreateSubscriptionParams{Email: " A@B.com "})
		require.NoError(t, err)

		assert.Equal(t, "cus_1", result.Customer.ID)
		assert.Equal(t, "sub_new", result.Subscription.ID)
		assert.Equal(t, int64(1), result.Subscription.Quantity)
		require.NotNil(t, result.Invoice)
		assert.Equal(t, int64(5000), result.Invoice.AmountDue)
	})

	t.Run("creates customer when missing", func(t *testing.T) {
		api := newFakeBackend()
		client := newTestClient(t, api)

		result, err := client.CreateSubscription(context.Background(), billing.CreateSubscriptionParams{
			Email:    "new@b.com",
			Name:     "New Customer",
			Quantity: 3,
		})
		require.NoError(t, err)

		assert.Equal(t, "new@b.com", result.Customer.Email)
		assert.Equal(t, int64(3), result.Subscription.Quantity)
		assert.Contains(t, api.calls, "customers.create")
	})
}
