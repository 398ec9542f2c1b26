// Package parser recovers structured payment-application fields from noisy
// recognized text. Extraction is anchored label scanning: a value is only
// captured near a known label synonym, which sharply reduces false positives
// over a blind regex sweep of the whole page.
package parser

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/blue-scarf/paystamp/constants"
	"github.com/blue-scarf/paystamp/internal/extract"
)

// valueWindow is how many lines below an anchor a value may sit.
const valueWindow = 2

// anchorSpec binds a field to its label synonyms. Labels are uppercase
// substrings; a line containing any exclude string is not an anchor.
type anchorSpec struct {
	field   constants.Field
	labels  []string
	exclude []string
}

var amountAnchors = []anchorSpec{
	{
		field:  constants.FieldTotalCompleted,
		labels: []string{"TOTAL COMPLETED & STORED TO DATE", "TOTAL COMPLETED AND STORED", "TOTAL COMPLETED"},
	},
	{
		field:  constants.FieldAmountDue,
		labels: []string{"CURRENT PAYMENT DUE", "TOTAL AMOUNT DUE", "AMOUNT DUE", "PAYMENT DUE", "DUE:"},
	},
	{
		field:   constants.FieldRetainage,
		labels:  []string{"TOTAL RETAINAGE", "LESS RETAINAGE", "RETAINAGE", "RET:"},
		exclude: []string{"EARNED LESS RETAINAGE"},
	},
}

// earnedLessRetainage is scanned only to derive retainage; it is not an
// exposed field.
var earnedLessAnchor = anchorSpec{
	labels: []string{"TOTAL EARNED LESS RETAINAGE"},
}

var (
	periodLabels = []string{"PERIOD TO", "PERIOD ENDING"}
	appNoLabels  = []string{"APPLICATION NO", "APPLICATION NUMBER", "APPLICATION #", "APPLICATION FOR PAYMENT NO"}
)

var reSpace = regexp.MustCompile(`\s+`)

func normalizeSpace(s string) string {
	return strings.TrimSpace(reSpace.ReplaceAllString(s, " "))
}

// Parser converts a RawExtraction into Fields.
type Parser struct {
	ownerName string
	logger    *slog.Logger
}

// New creates a Parser. ownerName, when non-empty, names the owner company
// whose lines are never vendor candidates.
func New(ownerName string, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{ownerName: ownerName, logger: logger}
}

// amountHit is one candidate value found near an anchor.
type amountHit struct {
	cents    int64
	sameLine bool
}

// Parse extracts fields from raw. It returns ParseFailure only when no
// required field could be recovered at all; partial recovery returns Fields
// with missing markers for the checkpoint state to resolve.
func (p *Parser) Parse(raw extract.RawExtraction) (*Fields, error) {
	lines := make([]string, len(raw.Lines))
	for i, l := range raw.Lines {
		lines[i] = normalizeSpace(l.Text)
	}

	f := &Fields{Confidence: make(map[constants.Field]constants.Confidence)}

	p.parseVendor(lines, f)
	for _, spec := range amountAnchors {
		p.parseAmount(lines, spec, f)
	}
	p.parsePeriod(lines, f)
	p.parseAppNumber(lines, f)
	p.deriveFallbacks(lines, f)

	if stamp, ok := ScanStamp(lines); ok {
		f.SuggestedCommitmentID = stamp.CommitmentID
		f.SuggestedCostCode = stamp.CostCode
	}

	missing := f.MissingRequired()
	if len(missing) == len(constants.RequiredFields) {
		p.logger.Warn("parser.total_failure", "missing", len(missing))
		return nil, &ParseFailure{Fields: missing}
	}

	p.logger.Info("parser.ok",
		"vendor", f.VendorName,
		"amount_due_cents", f.AmountDueCents,
		"retainage_cents", f.RetainageCents,
		"missing", len(f.Missing),
		"needs_review", f.NeedsReview(),
	)
	return f, nil
}

// parseAmount runs the anchored scan for one currency field.
func (p *Parser) parseAmount(lines []string, spec anchorSpec, f *Fields) {
	hits := scanAmounts(lines, spec)
	if len(hits) == 0 {
		f.markMissing(spec.field)
		return
	}

	// Anchors that agree on one value are trustworthy; competing distinct
	// values flag the field for manual review instead of guessing.
	best := pickAmount(hits)
	conf := constants.ConfidenceHigh
	if distinctCents(hits) > 1 {
		conf = constants.ConfidenceLow
	}

	switch spec.field {
	case constants.FieldTotalCompleted:
		f.TotalCompletedCents = best
	case constants.FieldAmountDue:
		f.AmountDueCents = best
	case constants.FieldRetainage:
		f.RetainageCents = best
	}
	f.markPresent(spec.field, conf)
}

// scanAmounts collects candidate values near every anchor line for spec.
func scanAmounts(lines []string, spec anchorSpec) []amountHit {
	var hits []amountHit

	for i, line := range lines {
		upper := strings.ToUpper(line)
		from := anchorOffset(upper, spec)
		if from < 0 {
			continue
		}

		found := false
		for _, cents := range currencyCandidates(line, from) {
			hits = append(hits, amountHit{cents: cents, sameLine: true})
			found = true
		}
		if found {
			continue
		}
		// Nothing on the anchor line; look a small window below. Stop at
		// the first line that yields a value for THIS anchor; hits carried
		// over from an earlier anchor occurrence must not end the scan.
		for j := i + 1; j <= i+valueWindow && j < len(lines) && !found; j++ {
			for _, cents := range currencyCandidates(lines[j], 0) {
				hits = append(hits, amountHit{cents: cents})
				found = true
			}
		}
	}
	return hits
}

// anchorOffset returns the byte offset just past the first matching label in
// the uppercased line, or -1 when the line is not an anchor.
func anchorOffset(upper string, spec anchorSpec) int {
	for _, ex := range spec.exclude {
		if strings.Contains(upper, ex) {
			return -1
		}
	}
	for _, label := range spec.labels {
		if i := strings.Index(upper, label); i >= 0 {
			return i + len(label)
		}
	}
	return -1
}

// pickAmount prefers the first same-line candidate, then the first overall.
func pickAmount(hits []amountHit) int64 {
	for _, h := range hits {
		if h.sameLine {
			return h.cents
		}
	}
	return hits[0].cents
}

func distinctCents(hits []amountHit) int {
	seen := make(map[int64]struct{}, len(hits))
	for _, h := range hits {
		seen[h.cents] = struct{}{}
	}
	return len(seen)
}

func (p *Parser) parsePeriod(lines []string, f *Fields) {
	for i, line := range lines {
		upper := strings.ToUpper(line)
		from := labelOffset(upper, periodLabels)
		if from < 0 {
			continue
		}
		if dates := dateCandidates(line, from); len(dates) > 0 {
			f.PeriodTo = dates[0]
			f.markPresent(constants.FieldPeriodTo, constants.ConfidenceHigh)
			return
		}
		for j := i + 1; j <= i+valueWindow && j < len(lines); j++ {
			if dates := dateCandidates(lines[j], 0); len(dates) > 0 {
				f.PeriodTo = dates[0]
				f.markPresent(constants.FieldPeriodTo, constants.ConfidenceLow)
				return
			}
		}
	}
}

func (p *Parser) parseAppNumber(lines []string, f *Fields) {
	for _, line := range lines {
		upper := strings.ToUpper(line)
		from := labelOffset(upper, appNoLabels)
		if from < 0 {
			continue
		}
		if nums := integerCandidates(line, from); len(nums) > 0 {
			f.ApplicationNumber = nums[0]
			conf := constants.ConfidenceHigh
			if len(nums) > 1 {
				conf = constants.ConfidenceLow
			}
			f.markPresent(constants.FieldApplicationNumber, conf)
			return
		}
	}
}

func labelOffset(upper string, labels []string) int {
	for _, label := range labels {
		if i := strings.Index(upper, label); i >= 0 {
			return i + len(label)
		}
	}
	return -1
}

// deriveFallbacks fills amount_due and retainage from the form's arithmetic
// when direct anchors failed: retainage = total - earned-less-retainage, or
// 10% of total; amount due = total - retainage, or 90% of total. Derived
// values are low-confidence so the checkpoint flags them for review.
func (p *Parser) deriveFallbacks(lines []string, f *Fields) {
	if f.IsMissing(constants.FieldTotalCompleted) {
		return
	}
	total := f.TotalCompletedCents

	if f.IsMissing(constants.FieldRetainage) {
		if hits := scanAmounts(lines, earnedLessAnchor); len(hits) > 0 {
			if earned := pickAmount(hits); total > earned {
				f.RetainageCents = total - earned
				f.markPresent(constants.FieldRetainage, constants.ConfidenceLow)
			}
		}
		if f.IsMissing(constants.FieldRetainage) && total > 0 {
			f.RetainageCents = total / 10
			f.markPresent(constants.FieldRetainage, constants.ConfidenceLow)
		}
	}

	if f.IsMissing(constants.FieldAmountDue) && total > 0 {
		if !f.IsMissing(constants.FieldRetainage) && total > f.RetainageCents {
			f.AmountDueCents = total - f.RetainageCents
		} else {
			f.AmountDueCents = total - total/10
		}
		f.markPresent(constants.FieldAmountDue, constants.ConfidenceLow)
	}
}
