package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Column widths enforced before every warehouse write. Clipping is lossy.
const (
	MaxTitle   = 500
	MaxName    = 255
	MaxAuthors = 500
	MaxGenre   = 500
	MaxCode    = 3
	MaxISBN    = 13
)

// Text returns the trimmed NFC form of a string-like value. Integer-valued
// numbers render without exponent so spreadsheet-typed ISBNs survive.
func Text(v any) (string, bool) {
	var s string
	switch n := v.(type) {
	case nil:
		return "", false
	case string:
		s = n
	case []byte:
		s = string(n)
	default:
		f, ok := numeric(v)
		if !ok {
			return "", false
		}
		if key, ok := integralString(f); ok {
			s = key
		} else {
			s = strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	s = strings.TrimSpace(norm.NFC.String(s))
	return s, s != ""
}

// ClippedText is Text followed by Clip.
func ClippedText(v any, max int) (string, bool) {
	s, ok := Text(v)
	if !ok {
		return "", false
	}
	return Clip(s, max), true
}

// Clip truncates s to at most max runes.
func Clip(s string, max int) string {
	if max <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}

var folder = cases.Fold()

// TitleKey is the comparison form used for title+year matching: NFC, Unicode
// case folding, and collapsed whitespace.
func TitleKey(title string) string {
	folded := folder.String(norm.NFC.String(title))
	return strings.Join(strings.Fields(folded), " ")
}

var authorSeparators = regexp.MustCompile(`\s*(?:,|/|;)\s*`)

// Authors splits a delimited author list, drops empty and case-insensitive
// duplicate names, and joins the remainder with ", ".
func Authors(v any) (string, bool) {
	raw, ok := Text(v)
	if !ok {
		return "", false
	}
	seen := make(map[string]struct{})
	names := make([]string, 0, 2)
	for _, part := range authorSeparators.Split(raw, -1) {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		lowered := strings.ToLower(name)
		if _, dup := seen[lowered]; dup {
			continue
		}
		seen[lowered] = struct{}{}
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", false
	}
	return Clip(strings.Join(names, ", "), MaxAuthors), true
}

// ISBN keeps digits and the X check character.
func ISBN(v any) (string, bool) {
	raw, ok := Text(v)
	if !ok {
		return "", false
	}
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteRune('X')
		}
	}
	if b.Len() == 0 {
		return "", false
	}
	return Clip(b.String(), MaxISBN), true
}

// LanguageCode lower-cases and clips to the code width.
func LanguageCode(v any) (string, bool) {
	raw, ok := Text(v)
	if !ok {
		return "", false
	}
	return Clip(strings.ToLower(raw), MaxCode), true
}
