package adaptation

import (
	"time"

	"reelshelf/internal/normalize"
)

func textOf(v any, max int) *string {
	s, ok := normalize.ClippedText(v, max)
	if !ok {
		return nil
	}
	return &s
}

func floatOf(v any, parse func(any) (float64, bool)) *float64 {
	f, ok := parse(v)
	if !ok {
		return nil
	}
	return &f
}

func intOf(v any, parse func(any) (int64, bool)) *int64 {
	n, ok := parse(v)
	if !ok {
		return nil
	}
	return &n
}

func dateOf(v any) *time.Time {
	d, ok := normalize.Date(v)
	if !ok {
		return nil
	}
	return &d
}

// amountOf treats zero and negative amounts as unknown.
func amountOf(v any) *float64 {
	f, ok := normalize.Currency(v)
	if !ok || f <= 0 {
		return nil
	}
	return &f
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func first[T any](values ...*T) *T {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
