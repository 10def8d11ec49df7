package utils

import (
	"strings"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NormalizeCardNumber strips spaces and dashes from a card number.
func NormalizeCardNumber(number string) string {
	clean := strings.ReplaceAll(number, " ", "")
	return strings.ReplaceAll(clean, "-", "")
}

// ValidateCardNumber checks length, digits and the Luhn checksum of a
// normalised card number.
func ValidateCardNumber(number string) bool {
	if len(number) < 12 || len(number) > 19 {
		return false
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return false
		}
	}
	return passesLuhn(number)
}

// passesLuhn implements the Mod 10 check used by card schemes
func passesLuhn(number string) bool {
	sum := 0
	alternate := false
	for i := len(number) - 1; i >= 0; i-- {
		n := int(number[i] - '0')
		if alternate {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		alternate = !alternate
	}
	return sum%10 == 0
}

// MaskCardNumber renders a card number as "**** **** **** 1234".
func MaskCardNumber(number string) string {
	clean := NormalizeCardNumber(number)
	last4 := clean
	if len(clean) > 4 {
		last4 = clean[len(clean)-4:]
	}
	return "**** **** **** " + last4
}

// NormalizePage clamps page/size query values. Pages are zero-based.
func NormalizePage(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}
