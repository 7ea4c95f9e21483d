package normalize

import (
	"math"
	"strconv"
	"strings"
)

// Float coerces numbers and numeric strings. NaN and infinities are
// unresolved.
func Float(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case []byte:
		return Float(string(n))
	default:
		var ok bool
		if f, ok = numeric(v); !ok {
			return 0, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FloatIn is Float with an inclusive bound; out-of-range values are
// unresolved, never clamped.
func FloatIn(v any, lo, hi float64) (float64, bool) {
	f, ok := Float(v)
	if !ok || f < lo || f > hi {
		return 0, false
	}
	return f, true
}

// maxIntFloat is 2^63, the first float64 beyond the int64 range.
// float64(math.MaxInt64) rounds up to it, so bounds checks use >=.
const maxIntFloat = 1 << 63

// Int converts through Float so "123.0" yields 123.
func Int(v any) (int64, bool) {
	f, ok := Float(v)
	if !ok || f >= maxIntFloat || f < -maxIntFloat {
		return 0, false
	}
	return int64(f), true
}

var currencyReplacer = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", ",", "", " ", "", "\u00a0", "")

// Currency strips currency symbols and thousands separators before coercion.
func Currency(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		cleaned := strings.TrimSpace(s)
		cleaned = strings.TrimSuffix(strings.TrimPrefix(cleaned, "USD"), "USD")
		return Float(currencyReplacer.Replace(cleaned))
	}
	return Float(v)
}

// Quantity parses counts written with thousands separators ("12,345,678").
func Quantity(v any) (int64, bool) {
	if s, ok := v.(string); ok {
		return Int(strings.NewReplacer(",", "", " ", "", "_", "").Replace(s))
	}
	return Int(v)
}

var textRatings = map[string]float64{
	"did not like it": 1,
	"it was ok":       2,
	"liked it":        3,
	"really liked it": 4,
	"it was amazing":  5,
}

// BookRating accepts 0–5 numbers and the Goodreads textual labels.
func BookRating(v any) (float64, bool) {
	if f, ok := FloatIn(v, 0, 5); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, found := textRatings[strings.ToLower(strings.TrimSpace(s))]
		return f, found
	}
	return 0, false
}

// MovieRating accepts 0–10 numbers. Values outside the scale are rejected
// rather than rescaled.
func MovieRating(v any) (float64, bool) {
	return FloatIn(v, 0, 10)
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
