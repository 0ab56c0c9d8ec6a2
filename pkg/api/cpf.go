package api

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCPF is returned when a payer tax id fails validation.
var ErrInvalidCPF = errors.New("invalid CPF")

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeCPF strips formatting and validates the CPF check digits.
// Returns the bare 11-digit form.
func normalizeCPF(s string) (string, error) {
	digits := onlyDigits(s)
	if len(digits) != 11 {
		return "", fmt.Errorf("%w: expected 11 digits, got %d", ErrInvalidCPF, len(digits))
	}
	if strings.Count(digits, digits[:1]) == 11 {
		return "", fmt.Errorf("%w: repeated digits", ErrInvalidCPF)
	}
	if cpfCheckDigit(digits, 9) != int(digits[9]-'0') ||
		cpfCheckDigit(digits, 10) != int(digits[10]-'0') {
		return "", fmt.Errorf("%w: check digits do not match", ErrInvalidCPF)
	}
	return digits, nil
}

// cpfCheckDigit computes the mod-11 verifier over the first n digits.
func cpfCheckDigit(digits string, n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += int(digits[i]-'0') * (n + 1 - i)
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		return 0
	}
	return rest
}

// formatCPF renders an 11-digit CPF as xxx.xxx.xxx-xx.
func formatCPF(digits string) string {
	if len(digits) != 11 {
		return digits
	}
	return fmt.Sprintf("%s.%s.%s-%s", digits[:3], digits[3:6], digits[6:9], digits[9:])
}

// maskCPF renders an 11-digit CPF as xxx.***.***-xx, keeping only the first
// three and last two digits visible.
func maskCPF(digits string) string {
	if len(digits) != 11 {
		return digits
	}
	return fmt.Sprintf("%s.***.***-%s", digits[:3], digits[9:])
}

// placeholderPhone is sent to the PIX provider when the payer record has no
// usable phone number. The provider requires the field but does not verify it.
const placeholderPhone = "(11) 99999-9999"

// formatPhone renders a Brazilian phone number as (xx) xxxxx-xxxx. Numbers
// with fewer than 10 digits fall back to the placeholder.
func formatPhone(s string) string {
	digits := onlyDigits(s)
	// Strip the country code when present.
	if len(digits) >= 12 && strings.HasPrefix(digits, "55") {
		digits = digits[2:]
	}
	switch {
	case len(digits) == 11:
		return fmt.Sprintf("(%s) %s-%s", digits[:2], digits[2:7], digits[7:])
	case len(digits) == 10:
		return fmt.Sprintf("(%s) %s-%s", digits[:2], digits[2:6], digits[6:])
	default:
		return placeholderPhone
	}
}
