package billing

import "errors"

var (
	// ErrCustomerNotFound is returned when no customer matches the given email.
	ErrCustomerNotFound = errors.New("customer not found in billing provider")

	// ErrSubscriptionNotFound is returned when a subscription id does not resolve.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrSubscriptionItemNotFound is returned when a subscription does not
	// contain the requested item.
	ErrSubscriptionItemNotFound = errors.New("subscription item not found")

	// ErrInvoiceNotFound is returned when an invoice id does not resolve.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrInvoiceNotOpen is returned when an operation requires an open invoice.
	// Callers wrap it with the invoice's actual status.
	ErrInvoiceNotOpen = errors.New("invoice is not open")

	// ErrChargeNotFound is returned when a PIX charge id cannot be resolved
	// through any lookup strategy.
	ErrChargeNotFound = errors.New("pix charge not found")

	// ErrProviderAPIError is returned when a provider API call fails.
	ErrProviderAPIError = errors.New("billing provider API error")
)
