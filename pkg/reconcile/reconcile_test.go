package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/pixbridge/pkg/billing"
	"github.com/mihaimyh/pixbridge/pkg/pix"
)

type fakeBilling struct {
	invoices  map[string]*billing.Invoice
	byCharge  map[string]*billing.Invoice
	markCalls []string
}

func (f *fakeBilling) Invoice(_ context.Context, id string) (*billing.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, billing.ErrInvoiceNotFound
	}
	return inv, nil
}

func (f *fakeBilling) MarkPaidOutOfBand(_ context.Context, id string) (*billing.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, billing.ErrInvoiceNotFound
	}
	if inv.Status != billing.InvoiceStatusOpen {
		return nil, billing.ErrInvoiceNotOpen
	}
	f.markCalls = append(f.markCalls, id)
	inv.Status = billing.InvoiceStatusPaid
	return inv, nil
}

func (f *fakeBilling) FindInvoiceByPixCharge(_ context.Context, chargeID string) (*billing.Invoice, error) {
	inv, ok := f.byCharge[chargeID]
	if !ok {
		return nil, billing.ErrInvoiceNotFound
	}
	return inv, nil
}

type fakePix struct {
	charges   map[string]*pix.Charge
	list      []*pix.Charge
	checkErr  error
	listCalls int
}

func (f *fakePix) Charge(_ context.Context, id string) (*pix.Charge, error) {
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	charge, ok := f.charges[id]
	if !ok {
		return nil, billing.ErrChargeNotFound
	}
	return charge, nil
}

func (f *fakePix) ListCharges(_ context.Context) ([]*pix.Charge, error) {
	f.listCalls++
	return f.list, nil
}

func newTestReconciler(t *testing.T, b *fakeBilling, p *fakePix) *Reconciler {
	t.Helper()
	r, err := NewReconciler(Config{
		Billing: b,
		Pix:     p,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	return r
}

func TestPoll_Pending(t *testing.T) {
	b := &fakeBilling{invoices: map[string]*billing.Invoice{
		"in_1": {ID: "in_1", Status: billing.InvoiceStatusOpen},
	}}
	p := &fakePix{charges: map[string]*pix.Charge{
		"pix_1": {ID: "pix_1", Status: "PENDING"},
	}}
	r := newTestReconciler(t, b, p)

	result, err := r.Poll(context.Background(), "in_1", "pix_1")
	require.NoError(t, err)
	assert.False(t, result.Paid)
	assert.Equal(t, "PENDING", result.Status)
	assert.False(t, result.InvoiceUpdated)
	assert.Equal(t, OutcomePending, result.InvoiceStatus)
	assert.Empty(t, b.markCalls, "pending charge must not touch the invoice")
}

func TestPoll_PaidMarksInvoice(t *testing.T) {
	b := &fakeBilling{invoices: map[string]*billing.Invoice{
		"in_1": {ID: "in_1", Status: billing.InvoiceStatusOpen},
	}}
	p := &fakePix{charges: map[string]*pix.Charge{
		"pix_1": {ID: "pix_1", Status: "PAID"},
	}}
	r := newTestReconciler(t, b, p)

	result, err := r.Poll(context.Background(), "in_1", "pix_1")
	require.NoError(t, err)
	assert.True(t, result.Paid)
	assert.True(t, result.InvoiceUpdated)
	assert.Equal(t, OutcomeUpdated, result.InvoiceStatus)
	assert.Equal(t, []string{"in_1"}, b.markCalls)
}

func TestPoll_Idempotent(t *testing.T) {
	b := &fakeBilling{invoices: map[string]*billing.Invoice{
		"in_1": {ID: "in_1", Status: billing.InvoiceStatusOpen},
	}}
	p := &fakePix{charges: map[string]*pix.Charge{
		"pix_1": {ID: "pix_1", Status: "PAID"},
	}}
	r := newTestReconciler(t, b, p)

	first, err := r.Poll(context.Background(), "in_1", "pix_1")
	require.NoError(t, err)
	require.True(t, first.InvoiceUpdated)

	second, err := r.Poll(context.Background(), "in_1", "pix_1")
	require.NoError(t, err)
	assert.True(t, second.Paid)
	assert.False(t, second.InvoiceUpdated)
	assert.Equal(t, OutcomeAlreadyPaid, second.InvoiceStatus)
	assert.Len(t, b.markCalls, 1, "only the first call mutates")
}

func TestPoll_VoidInvoiceLeftUntouched(t *testing.T) {
	b := &fakeBilling{invoices: map[string]*billing.Invoice{
		"in_1": {ID: "in_1", Status: "void"},
	}}
	p := &fakePix{charges: map[string]*pix.Charge{
		"pix_1": {ID: "pix_1", Status: "PAID"},
	}}
	r := newTestReconciler(t, b, p)

	result, err := r.Poll(context.Background(), "in_1", "pix_1")
	require.NoError(t, err)
	assert.True(t, result.Paid)
	assert.False(t, result.InvoiceUpdated)
	assert.Equal(t, OutcomeNotOpen, result.InvoiceStatus)
	assert.Empty(t, b.markCalls)
}

func TestPoll_ListFallback(t *testing.T) {
	b := &fakeBilling{invoices: map[string]*billing.Invoice{
		"in_1": {ID: "in_1", Status: billing.InvoiceStatusOpen},
	}}

	t.Run("match by charge id", func(t *testing.T) {
		p := &fakePix{
			checkErr: billing.ErrChargeNotFound,
			list: []*pix.Charge{
				{ID: "pix_other", Status: "PENDING"},
				{ID: "pix_1", Status: "PENDING"},
			},
		}
		r := newTestReconciler(t, b, p)

		result, err := r.Poll(context.Background(), "in_1", "pix_1")
		require.NoError(t, err)
		assert.Equal(t, 1, p.listCalls)
		assert.Equal(t, OutcomePending, result.InvoiceStatus)
	})

	t.Run("match by external reference", func(t *testing.T) {
		p := &fakePix{
			checkErr: billing.ErrChargeNotFound,
			list: []*pix.Charge{
				{ID: "pix_renamed", Status: "PENDING", ExternalID: "in_1"},
			},
		}
		r := newTestReconciler(t, b, p)

		result, err := r.Poll(context.Background(), "in_1", "pix_1")
		require.NoError(t, err)
		assert.Equal(t, OutcomePending, result.InvoiceStatus)
	})

	t.Run("no match", func(t *testing.T) {
		p := &fakePix{checkErr: errors.New("boom")}
		r := newTestReconciler(t, b, p)

		_, err := r.Poll(context.Background(), "in_1", "pix_1")
		assert.Error(t, err)
	})
}

func TestProcessWebhook_IgnoresOtherEvents(t *testing.T) {
	b := &fakeBilling{invoices: map[string]*billing.Invoice{
		"in_1": {ID: "in_1", Status: billing.InvoiceStatusOpen},
	}}
	r := newTestReconciler(t, b, &fakePix{})

	result := r.ProcessWebhook(context.Background(), &pix.WebhookEvent{
		Event: "billing.expired",
		Data:  map[string]any{"id": "pix_1"},
	})

	assert.True(t, result.Received)
	assert.True(t, result.Ignored)
	assert.False(t, result.InvoiceUpdated)
	assert.Empty(t, b.markCalls)
}

func TestProcessWebhook_ExternalReference(t *testing.T) {
	b := &fakeBilling{invoices: map[string]*billing.Invoice{
		"in_1": {ID: "in_1", Status: billing.InvoiceStatusOpen},
	}}
	r := newTestReconciler(t, b, &fakePix{})

	result := r.ProcessWebhook(context.Background(), &pix.WebhookEvent{
		Event: pix.EventBillingPaid,
		Data: map[string]any{
			"pixQrCode": map[string]any{
				"id":       "pix_1",
				"metadata": map[string]any{"externalId": "in_1"},
			},
		},
	})

	assert.True(t, result.Received)
	assert.True(t, result.InvoiceUpdated)
	assert.Equal(t, "in_1", result.InvoiceID)
	assert.Equal(t, []string{"in_1"}, b.markCalls)
}

func TestProcessWebhook_MetadataSearchFallback(t *testing.T) {
	inv := &billing.Invoice{ID: "in_2", Status: billing.InvoiceStatusOpen}
	b := &fakeBilling{
		invoices: map[string]*billing.Invoice{"in_2": inv},
		byCharge: map[string]*billing.Invoice{"pix_2": inv},
	}
	r := newTestReconciler(t, b, &fakePix{})

	result := r.ProcessWebhook(context.Background(), &pix.WebhookEvent{
		Event: pix.EventBillingPaid,
		Data:  map[string]any{"id": "pix_2"},
	})

	assert.True(t, result.InvoiceUpdated)
	assert.Equal(t, "in_2", result.InvoiceID)
}

func TestProcessWebhook_UnmatchedChargeStillAcknowledged(t *testing.T) {
	b := &fakeBilling{invoices: map[string]*billing.Invoice{}}
	r := newTestReconciler(t, b, &fakePix{})

	result := r.ProcessWebhook(context.Background(), &pix.WebhookEvent{
		Event: pix.EventBillingPaid,
		Data:  map[string]any{"id": "pix_unknown"},
	})

	assert.True(t, result.Received)
	assert.False(t, result.InvoiceUpdated)
	assert.NotEmpty(t, result.Error)
}

func TestProcessWebhook_AlreadyPaid(t *testing.T) {
	b := &fakeBilling{invoices: map[string]*billing.Invoice{
		"in_1": {ID: "in_1", Status: billing.InvoiceStatusPaid},
	}}
	r := newTestReconciler(t, b, &fakePix{})

	result := r.ProcessWebhook(context.Background(), &pix.WebhookEvent{
		Event: pix.EventBillingPaid,
		Data:  map[string]any{"externalId": "in_1", "id": "pix_1"},
	})

	assert.True(t, result.Received)
	assert.False(t, result.InvoiceUpdated)
	assert.Empty(t, result.Error)
	assert.Empty(t, b.markCalls)
}
