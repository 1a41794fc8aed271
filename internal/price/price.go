// Package price turns locale-formatted price and percentage text into numbers.
package price

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount parses a price such as "12,34 €", "€1.299,99" or "1 299.00" into a float.
// Everything but digits, separators and a minus sign is stripped first. When both "," and
// "." appear, the rightmost one is the decimal separator. A lone separator is decimal, a
// repeated one is a thousands separator. ok is false for empty or unparsable text.
func ParseAmount(raw string) (value float64, ok bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, raw)
	cleaned = strings.Trim(cleaned, ",.")
	if !strings.ContainsAny(cleaned, "0123456789") {
		return 0, false
	}

	cleaned = normalizeSeparators(cleaned)

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			return strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}

// ParsePercent parses a discount badge such as "-75 %" or "Économisez 30%" and returns the
// magnitude, so both "-75%" and "75%" give 75. Text without a percent sign is not a discount.
func ParsePercent(raw string) (float64, bool) {
	i := strings.Index(raw, "%")
	if i < 0 {
		return 0, false
	}
	raw = raw[:i]
	// only the number right before the sign counts
	fields := strings.FieldsFunc(raw, unicode.IsSpace)
	if len(fields) == 0 {
		return 0, false
	}
	value, ok := ParseAmount(fields[len(fields)-1])
	if !ok {
		return 0, false
	}
	return math.Abs(value), true
}

// DiscountPercent returns (reference - current) / reference * 100.
// ok is false when reference <= 0 or current < 0. The result is not clamped:
// a price increase gives a negative value and a bogus reference can exceed 100.
func DiscountPercent(current, reference float64) (float64, bool) {
	if reference <= 0 || current < 0 || math.IsNaN(current) || math.IsNaN(reference) {
		return 0, false
	}
	return (reference - current) / reference * 100, true
}

// Plausible reports whether a discount lies in [0, 100].
func Plausible(discount float64) bool {
	return discount >= 0 && discount <= 100
}
