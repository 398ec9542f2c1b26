// Package money carries currency amounts as integer cents so parsed values
// survive formatting round trips without float drift.
package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrMalformed = errors.New("malformed currency amount")

// ParseCents parses a currency token into non-negative cents. Dollar signs,
// commas and surrounding noise are stripped; anything that does not reduce to
// an unsigned decimal with at most two fraction digits is rejected.
func ParseCents(token string) (int64, error) {
	var b strings.Builder
	for _, r := range token {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, token)
	}

	whole := cleaned
	frac := ""
	if i := strings.IndexByte(cleaned, '.'); i >= 0 {
		whole, frac = cleaned[:i], cleaned[i+1:]
		if strings.ContainsRune(frac, '.') {
			return 0, fmt.Errorf("%w: %q", ErrMalformed, token)
		}
	}
	if whole == "" {
		whole = "0"
	}
	switch len(frac) {
	case 0:
		frac = "00"
	case 1:
		frac += "0"
	case 2:
	default:
		return 0, fmt.Errorf("%w: %q", ErrMalformed, token)
	}

	dollars, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, token)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, token)
	}
	return dollars*100 + cents, nil
}

// FormatCents renders cents as a thousands-separated two-decimal amount,
// e.g. 693000 -> "6,930.00".
func FormatCents(cents int64) string {
	if cents < 0 {
		cents = 0
	}
	dollars := cents / 100
	rem := cents % 100

	s := strconv.FormatInt(dollars, 10)
	groups := []string{}
	for len(s) > 3 {
		groups = append([]string{s[len(s)-3:]}, groups...)
		s = s[:len(s)-3]
	}
	groups = append([]string{s}, groups...)
	return fmt.Sprintf("%s.%02d", strings.Join(groups, ","), rem)
}

// FormatUSD is FormatCents with a leading dollar sign.
func FormatUSD(cents int64) string {
	return "$" + FormatCents(cents)
}
