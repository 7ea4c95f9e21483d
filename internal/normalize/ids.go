package normalize

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var movieKeyPattern = regexp.MustCompile(`tt?(\d+)`)

// MovieKey extracts the digit run of an IMDb-style title id ("tt0133093",
// "t0133093", an imdb.com URL). A string made only of digits is already a key.
// Runs shorter than seven digits are zero-padded to IMDb width so numeric
// sources meet the string ids. Non-string input is unresolved.
func MovieKey(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	if m := movieKeyPattern.FindStringSubmatch(s); m != nil {
		return padMovieKey(m[1]), true
	}
	if isDigits(s) {
		return padMovieKey(s), true
	}
	return "", false
}

const movieKeyWidth = 7

func padMovieKey(digits string) string {
	if len(digits) >= movieKeyWidth {
		return digits
	}
	return strings.Repeat("0", movieKeyWidth-len(digits)) + digits
}

// MovieKeyFromNumber accepts integer-valued numeric ids used as a fallback
// when a movie row carries no IMDb string.
func MovieKeyFromNumber(v any) (string, bool) {
	switch n := v.(type) {
	case string:
		s := strings.TrimSpace(n)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "", false
		}
		return movieKeyFromFloat(f)
	default:
		f, ok := numeric(v)
		if !ok {
			return "", false
		}
		return movieKeyFromFloat(f)
	}
}

func movieKeyFromFloat(f float64) (string, bool) {
	digits, ok := integralString(f)
	if !ok {
		return "", false
	}
	return padMovieKey(digits), true
}

// BookKey canonicalizes numeric and string book ids: integer-valued numbers
// and digit strings ("123", "123.0") become "123"; other non-empty strings are
// kept trimmed.
func BookKey(v any) (string, bool) {
	switch n := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return "", false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			if key, ok := integralString(f); ok {
				return key, true
			}
		}
		return s, true
	case []byte:
		return BookKey(string(n))
	default:
		f, ok := numeric(v)
		if !ok {
			return "", false
		}
		return integralString(f)
	}
}

// ActorKey canonicalizes a person id to its trimmed lower-case form
// ("nm0000206").
func ActorKey(v any) (string, bool) {
	switch n := v.(type) {
	case string:
		s := strings.ToLower(strings.TrimSpace(n))
		return s, s != ""
	case []byte:
		return ActorKey(string(n))
	default:
		f, ok := numeric(v)
		if !ok {
			return "", false
		}
		return integralString(f)
	}
}

// Kind names the remote entity type an external id refers to.
type Kind string

const (
	KindMovie  Kind = "tt"
	KindPerson Kind = "nm"
)

// ErrPrefixMismatch reports a natural key whose existing prefix names a
// different entity type than the lookup expects.
var ErrPrefixMismatch = errors.New("external id prefix does not match entity type")

// RemoteID derives the IMDb-style external id for a natural key: the kind's
// prefix followed by the digit run zero-padded to seven places.
func RemoteID(kind Kind, key string) (string, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	split := strings.IndexFunc(key, func(r rune) bool { return r >= '0' && r <= '9' })
	if split < 0 {
		return "", fmt.Errorf("external id %q: no digits", key)
	}
	prefix, digits := key[:split], key[split:]
	if !isDigits(digits) {
		return "", fmt.Errorf("external id %q: unexpected characters", key)
	}
	if prefix != "" && prefix != string(kind) {
		return "", fmt.Errorf("%w: %q is not a %s id", ErrPrefixMismatch, key, kind)
	}
	if len(digits) < 7 {
		digits = strings.Repeat("0", 7-len(digits)) + digits
	}
	return string(kind) + digits, nil
}

func integralString(f float64) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < 0 || f >= maxIntFloat {
		return "", false
	}
	return strconv.FormatInt(int64(f), 10), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
