package parser

import (
	"regexp"
	"strings"

	"github.com/blue-scarf/paystamp/internal/money"
)

// A document that went through approval before carries a prior stamp whose
// lines are themselves recognizable text. Scavenging them pre-fills the
// commitment id and cost code, and makes stamped output round-trippable
// through re-extraction.
var (
	reStampCOM  = regexp.MustCompile(`(?i)\bCOM:\s*([A-Za-z0-9-]+)`)
	reStampCC   = regexp.MustCompile(`\b[Cc]\.?[Cc]\.?:\s*([0-9-]+)`)
	reStampDUE  = regexp.MustCompile(`(?i)\bDUE:\s*(\$?[\d,]+\.?\d*)`)
	reStampRET  = regexp.MustCompile(`(?i)\bRET:\s*(\$?[\d,]+\.?\d*)`)
	reStampBy   = regexp.MustCompile(`(?i)\bBy:\s*(.+)`)
	reStampDate = regexp.MustCompile(`(?i)\bDate:\s*(\d{1,2}/\d{1,2}/\d{2,4})`)
)

// StampData is the content of a prior approval stamp read back from text.
type StampData struct {
	CommitmentID   string
	CostCode       string
	AmountDueCents int64
	RetainageCents int64
	Approver       string
	Date           string
}

// ScanStamp reads a prior stamp's fields out of recognized lines. ok is true
// when at least the commitment id or cost code was found.
func ScanStamp(lines []string) (StampData, bool) {
	var d StampData
	found := false

	for _, line := range lines {
		if m := reStampCOM.FindStringSubmatch(line); m != nil && d.CommitmentID == "" {
			d.CommitmentID = strings.TrimSpace(m[1])
			found = true
		}
		if m := reStampCC.FindStringSubmatch(line); m != nil && d.CostCode == "" {
			d.CostCode = strings.TrimSpace(m[1])
			found = true
		}
		if m := reStampDUE.FindStringSubmatch(line); m != nil && d.AmountDueCents == 0 {
			if cents, err := money.ParseCents(m[1]); err == nil {
				d.AmountDueCents = cents
			}
		}
		if m := reStampRET.FindStringSubmatch(line); m != nil && d.RetainageCents == 0 {
			if cents, err := money.ParseCents(m[1]); err == nil {
				d.RetainageCents = cents
			}
		}
		if m := reStampBy.FindStringSubmatch(line); m != nil && d.Approver == "" {
			d.Approver = normalizeSpace(m[1])
		}
		if m := reStampDate.FindStringSubmatch(line); m != nil && d.Date == "" {
			d.Date = m[1]
		}
	}
	return d, found
}

// isStampLine reports whether a line belongs to a prior approval stamp.
func isStampLine(line string) bool {
	return reStampCOM.MatchString(line) ||
		reStampCC.MatchString(line) ||
		reStampDUE.MatchString(line) ||
		reStampRET.MatchString(line)
}
