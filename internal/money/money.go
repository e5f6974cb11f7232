// Package money converts between naira and kobo and formats amounts for display.
package money

import (
	"math"
	"strconv"
	"strings"
)

// Currency is the ISO code of every amount handled by the storefront.
const Currency = "NGN"

const symbol = "₦"

// ToMinor converts a naira amount to kobo, rounding half away from zero.
func ToMinor(major float64) int64 {
	return int64(math.Round(major * 100))
}

// ToMajor converts kobo to naira.
func ToMajor(minor int64) float64 {
	return float64(minor) / 100
}

// Format renders a kobo amount as naira, e.g. 123456 -> "₦1,234.56".
func Format(minor int64) string {
	neg := minor < 0
	if neg {
		minor = -minor
	}
	whole := strconv.FormatInt(minor/100, 10)
	frac := minor % 100

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(symbol)
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	if frac < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(frac, 10))
	return b.String()
}
