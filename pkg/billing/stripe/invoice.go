package stripe

import (
	"context"
	"fmt"
	"time"

	"github.com/mihaimyh/pixbridge/pkg/billing"
)

// MetadataKeyPixCharge is the invoice metadata key linking an invoice to the
// PIX charge issued for it. The webhook reconciliation path searches on it.
const MetadataKeyPixCharge = "pix_charge_id"

// Invoice fetches a single invoice with its customer contact fields resolved.
func (c *Client) Invoice(ctx context.Context, id string) (*billing.Invoice, error) {
	start := time.Now()
	raw, err := c.api.Invoice(ctx, id)
	c.record("/invoices/retrieve", start, err)
	if err != nil {
		if isNotFound(err) {
			return nil, billing.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to fetch invoice: %w", err)
	}
	inv := invoiceFromStripe(raw)
	return &inv, nil
}

// MarkPaidOutOfBand marks an open invoice as paid without the provider
// collecting the charge. The invoice must currently be open; the returned
// error names the actual status otherwise.
func (c *Client) MarkPaidOutOfBand(ctx context.Context, id string) (*billing.Invoice, error) {
	inv, err := c.Invoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != invoiceStatusOpen {
		return nil, fmt.Errorf("%w: status is %q", billing.ErrInvoiceNotOpen, inv.Status)
	}

	start := time.Now()
	raw, err := c.api.PayOutOfBand(ctx, id)
	c.record("/invoices/pay", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to mark invoice paid: %w", err)
	}

	c.log.Info().Str("invoice_id", id).Msg("invoice marked paid out-of-band")
	paid := invoiceFromStripe(raw)
	return &paid, nil
}

// TagInvoicePixCharge stamps the invoice metadata with the PIX charge id so
// the webhook can find the invoice from the charge alone.
func (c *Client) TagInvoicePixCharge(ctx context.Context, invoiceID, chargeID string) error {
	start := time.Now()
	_, err := c.api.SetInvoiceMetadata(ctx, invoiceID, map[string]string{
		MetadataKeyPixCharge: chargeID,
	})
	c.record("/invoices/update", start, err)
	if err != nil {
		return fmt.Errorf("failed to tag invoice: %w", err)
	}
	return nil
}

// FindInvoiceByPixCharge locates the invoice whose metadata carries the given
// PIX charge id.
func (c *Client) FindInvoiceByPixCharge(ctx context.Context, chargeID string) (*billing.Invoice, error) {
	query := fmt.Sprintf("metadata['%s']:'%s'", MetadataKeyPixCharge, chargeID)

	start := time.Now()
	results, err := c.api.SearchInvoices(ctx, query)
	c.record("/invoices/search", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to search invoices: %w", err)
	}

	for _, raw := range results {
		// The search API can return partial matches; verify exactly.
		if raw.Metadata != nil && raw.Metadata[MetadataKeyPixCharge] == chargeID {
			inv := invoiceFromStripe(raw)
			return &inv, nil
		}
	}
	return nil, billing.ErrInvoiceNotFound
}
