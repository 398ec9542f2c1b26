package parser

import (
	"regexp"
	"strings"

	"github.com/blue-scarf/paystamp/internal/money"
)

// Candidate currency tokens may carry recognition confusions (O for 0, l for
// 1), so the raw token pattern admits the look-alikes and repair happens
// before numeric parsing. A token must still contain a real digit.
var (
	reCurrencyToken = regexp.MustCompile(`\$?\s?[0-9OoIl|][0-9OoIl|,]*(?:\.[0-9OoIl|]{1,2})?`)
	reDigit         = regexp.MustCompile(`[0-9]`)
	reDateToken     = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	reIntegerToken  = regexp.MustCompile(`\b\d{1,5}\b`)
)

// look-alike repairs applied only inside numeric value tokens, never inside
// the vendor name.
var confusionRepairs = strings.NewReplacer(
	"O", "0",
	"o", "0",
	"l", "1",
	"I", "1",
	"|", "1",
)

// repairNumeric fixes letter/digit confusions in a token already judged to
// sit in numeric context.
func repairNumeric(token string) string {
	return confusionRepairs.Replace(token)
}

// currencyCandidates returns the parsed cent values of every plausible
// currency token in s at or after byte offset from, in reading order.
// Malformed or digit-free tokens are dropped.
func currencyCandidates(s string, from int) []int64 {
	if from < 0 || from > len(s) {
		return nil
	}
	var out []int64
	for _, tok := range reCurrencyToken.FindAllString(s[from:], -1) {
		if !reDigit.MatchString(tok) {
			continue
		}
		// Require a separator or enough length so stray digits (form line
		// numbers, phone fragments) do not count as amounts.
		bare := strings.TrimLeft(tok, "$ ")
		if !strings.ContainsAny(bare, ".,") && len(bare) < 3 {
			continue
		}
		cents, err := money.ParseCents(repairNumeric(tok))
		if err != nil {
			continue
		}
		out = append(out, cents)
	}
	return out
}

// dateCandidates returns date tokens (m/d/y) in s at or after from.
func dateCandidates(s string, from int) []string {
	if from < 0 || from > len(s) {
		return nil
	}
	return reDateToken.FindAllString(s[from:], -1)
}

// integerCandidates returns short integer tokens in s at or after from.
func integerCandidates(s string, from int) []string {
	if from < 0 || from > len(s) {
		return nil
	}
	return reIntegerToken.FindAllString(s[from:], -1)
}
