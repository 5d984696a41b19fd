package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateAmount checks that a money amount is strictly positive and has at
// most two decimal places
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive: %s", amount.String())
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("amount has more than 2 decimal places: %s", amount.String())
	}
	return nil
}

// ParseAmount parses a decimal string as sent by API clients
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return amount, ValidateAmount(amount)
}

// maxReferenceLength bounds stored file references
const maxReferenceLength = 2048

// ValidateReference checks a file reference returned by document storage: a
// URL, a path or an object key. It must be non-empty, printable and bounded.
func ValidateReference(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fmt.Errorf("reference is empty")
	}
	if len(ref) > maxReferenceLength {
		return fmt.Errorf("reference exceeds %d bytes", maxReferenceLength)
	}
	if controlChars.MatchString(ref) {
		return fmt.Errorf("reference contains control characters")
	}
	return nil
}

// SanitizeString removes control characters and surrounding spaces
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}
