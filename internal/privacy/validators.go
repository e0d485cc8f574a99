package privacy

import (
	"strconv"
	"strings"
)

// validCreditCard strips separators, checks the 13-19 digit length and the Luhn checksum
func validCreditCard(candidate string) bool {
	digits := strings.NewReplacer("-", "", " ", "").Replace(candidate)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	return Luhn(digits)
}

// Luhn reports whether a string of ASCII digits passes the Luhn checksum.
// Non-digit input fails.
func Luhn(digits string) bool {
	if digits == "" {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}

	return sum%10 == 0
}

// ValidIPv4 reports whether s is four dot-separated octets in [0, 255]
func ValidIPv4(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}

	for _, part := range parts {
		if part == "" || len(part) > 3 {
			return false
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}

	return true
}
