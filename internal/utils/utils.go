package utils

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// Value dereferences v, returning the zero value of T when v is nil.
func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

func Ptr[T any](v T) *T {
	return &v
}

// Money renders an amount the way the storefront displays prices: "$12.50".
func Money(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}

// Percent renders a discount badge value rounded to the nearest whole percent, e.g. "-13%".
func Percent(pct float64) string {
	return fmt.Sprintf("-%d%%", int(math.Round(pct)))
}

// Digits strips everything but ASCII digits from s and truncates the result to max runes.
// A max of zero or less means no limit.
func Digits(s string, max int) string {
	var b strings.Builder
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			continue
		}
		if max > 0 && b.Len() >= max {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}
