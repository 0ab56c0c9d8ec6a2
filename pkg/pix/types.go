package pix

import "strings"

// Charge is the transient view of a PIX QR-code charge. The provider response
// shape drifts between API revisions, so fields are extracted through
// prioritized fallbacks (see extract.go) rather than strict decoding.
type Charge struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	BRCode      string `json:"br_code"`
	QRCodeImage string `json:"qr_code_image"`
	ExternalID  string `json:"external_id"`
}

// ChargeCustomer is the payer attached to a charge.
type ChargeCustomer struct {
	Name      string `json:"name"`
	Cellphone string `json:"cellphone"`
	Email     string `json:"email"`
	TaxID     string `json:"taxId"`
}

// CreateChargeParams are the inputs for issuing a PIX QR code. ExternalID is
// the invoice id; it links the charge back to the invoice during
// reconciliation.
type CreateChargeParams struct {
	Amount      int64
	Description string
	ExpiresIn   int
	ExternalID  string
	Customer    ChargeCustomer
}

// paidStatuses is the set of provider statuses that all mean "the money
// arrived". Different provider revisions report different words for it.
var paidStatuses = map[string]bool{
	"PAID":      true,
	"COMPLETED": true,
	"CONFIRMED": true,
	"APPROVED":  true,
	"RECEIVED":  true,
	"SETTLED":   true,
	"SUCCESS":   true,
}

// IsPaid reports whether a charge status denotes a settled payment. The
// status is normalized to uppercase before the set lookup.
func IsPaid(status string) bool {
	return paidStatuses[strings.ToUpper(strings.TrimSpace(status))]
}
