package pix

// EventBillingPaid is the only webhook event type that triggers invoice
// reconciliation. Every other event is acknowledged and ignored.
const EventBillingPaid = "billing.paid"

// WebhookEvent is a provider webhook payload. Data is kept loosely typed
// because the nesting differs between charge kinds and API revisions.
type WebhookEvent struct {
	Event   string         `json:"event"`
	DevMode bool           `json:"devMode"`
	Data    map[string]any `json:"data"`
}

// ChargeID extracts the PIX charge id from the payload, trying the known
// nesting variants in order.
func (e *WebhookEvent) ChargeID() string {
	return stringAt(e.Data,
		"pixQrCode.id",
		"billing.id",
		"payment.id",
		"id",
	)
}

// ExternalID extracts the caller-supplied external reference (the invoice id
// the charge was tagged with), when the payload carries one.
func (e *WebhookEvent) ExternalID() string {
	return stringAt(e.Data,
		"pixQrCode.metadata.externalId",
		"billing.metadata.externalId",
		"metadata.externalId",
		"externalId",
	)
}

// Status extracts the charge status from the payload, if present.
func (e *WebhookEvent) Status() string {
	return stringAt(e.Data,
		"pixQrCode.status",
		"billing.status",
		"status",
	)
}
