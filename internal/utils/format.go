package utils

import (
	"fmt"
	"strconv"
)

// FormatNumber renders an integer with thin-space thousands separators,
// e.g. 1234567 -> "1 234 567".
func FormatNumber(value int64) string {
	digits := strconv.FormatInt(value, 10)
	negative := false
	if len(digits) > 0 && digits[0] == '-' {
		negative = true
		digits = digits[1:]
	}

	var out []byte
	for i, d := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ' ')
		}
		out = append(out, d)
	}
	if negative {
		return "-" + string(out)
	}
	return string(out)
}

// FormatExperience renders the ×100 scaled experience with two decimals.
func FormatExperience(scaled int64) string {
	return fmt.Sprintf("%.2f", float64(scaled)/100)
}
