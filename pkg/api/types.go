package api

// Request shapes for the JSON endpoints. Validation tags are enforced before
// any upstream call is made.

// LookupRequest asks for the grouped customer view by email.
type LookupRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// MarkPaidRequest marks one open invoice paid out-of-band.
type MarkPaidRequest struct {
	InvoiceID string `json:"invoice_id" validate:"required"`
}

// PixIssueRequest creates a PIX QR code for one open invoice.
type PixIssueRequest struct {
	InvoiceID     string `json:"invoice_id" validate:"required"`
	CPF           string `json:"cpf" validate:"required"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty" validate:"omitempty,email"`
	CustomerPhone string `json:"customer_phone,omitempty"`
}

// PixStatusRequest polls the payment status of an issued charge.
type PixStatusRequest struct {
	InvoiceID string `json:"invoice_id" validate:"required"`
	PixID     string `json:"pix_id" validate:"required"`
}

// QuantityChangeRequest changes a subscription item's quantity.
type QuantityChangeRequest struct {
	SubscriptionID     string `json:"subscription_id" validate:"required"`
	SubscriptionItemID string `json:"subscription_item_id" validate:"required"`
	NewQuantity        int64  `json:"new_quantity" validate:"required,min=1"`
}

// PreviewRequest simulates a quantity change without mutating anything.
type PreviewRequest struct {
	SubscriptionID string `json:"subscription_id" validate:"required"`
	NewQuantity    int64  `json:"new_quantity" validate:"required,min=1"`
}

// NewSubscriptionRequest creates a subscription, creating the customer first
// when neither an existing customer id nor a known email matches.
type NewSubscriptionRequest struct {
	Email      string `json:"email" validate:"required_without=CustomerID,omitempty,email"`
	Name       string `json:"name,omitempty"`
	Quantity   int64  `json:"quantity,omitempty" validate:"omitempty,min=1"`
	CustomerID string `json:"customer_id,omitempty"`
}

// PixPayer is the payer echo in a PixIssueResponse. The tax id is masked.
type PixPayer struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	CPFMasked string `json:"cpf"`
}

// PixIssueResponse carries the QR code and the charge id used for later
// reconciliation.
type PixIssueResponse struct {
	PixID           string   `json:"pix_id"`
	QRCodeURL       string   `json:"qr_code_url"`
	PixCode         string   `json:"pix_code"`
	Amount          int64    `json:"amount"`
	AmountFormatted string   `json:"amount_formatted"`
	InvoiceID       string   `json:"invoice_id"`
	Customer        PixPayer `json:"customer"`
}

// PixStatusResponse reports one reconciliation poll.
type PixStatusResponse struct {
	Paid           bool   `json:"paid"`
	Status         string `json:"status"`
	InvoiceUpdated bool   `json:"invoice_updated"`
	InvoiceStatus  string `json:"stripe_status"`
}

type errorResponse struct {
	Error string `json:"error"`
}
