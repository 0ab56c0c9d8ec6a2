package billing

import "time"

// Metrics defines the interface for tracking provider operations.
// All methods are optional - callers should pass NoopMetrics when unused.
type Metrics interface {
	// RecordAPICall records an outbound API call to a provider.
	// endpoint: the logical endpoint called (e.g., "/invoices/void")
	// status: "success", "error", or an HTTP status code as string
	RecordAPICall(provider, endpoint, status string)

	// RecordAPICallDuration records how long an outbound API call took.
	RecordAPICallDuration(provider, endpoint string, duration time.Duration)

	// RecordWebhookEvent records a webhook event received from the PIX provider.
	// status: "success", "ignored", or "error"
	RecordWebhookEvent(provider, eventType, status string)

	// RecordWebhookError records a webhook processing error.
	// errorType: e.g., "auth_failed", "invalid_payload", "processing_error"
	RecordWebhookError(provider, errorType string)

	// RecordWebhookProcessingDuration records how long webhook processing took.
	RecordWebhookProcessingDuration(provider, eventType string, duration time.Duration)

	// RecordReconciliation records the outcome of a payment reconciliation
	// attempt. outcome: "updated", "already_paid", "pending", "mismatch"
	RecordReconciliation(provider, outcome string)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordAPICall(_, _, _ string)                                 {}
func (n *NoopMetrics) RecordAPICallDuration(_, _ string, _ time.Duration)           {}
func (n *NoopMetrics) RecordWebhookEvent(_, _, _ string)                            {}
func (n *NoopMetrics) RecordWebhookError(_, _ string)                               {}
func (n *NoopMetrics) RecordWebhookProcessingDuration(_, _ string, _ time.Duration) {}
func (n *NoopMetrics) RecordReconciliation(_, _ string)                             {}
