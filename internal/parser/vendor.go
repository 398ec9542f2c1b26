package parser

import (
	"regexp"
	"strings"

	"github.com/blue-scarf/paystamp/constants"
)

// Vendor-name extraction uses its own anchor set (form header / signature
// block) and passes the value through with only whitespace normalization:
// case and punctuation are preserved for the matcher to normalize on its own
// terms, and look-alike repair never runs inside a name.
var (
	reCompanyName = regexp.MustCompile(`\b([A-Z][\w&.'-]*(?: [A-Z&][\w&.'-]*)* (?:Corp\.?|Corporation|Inc\.?|LLC|Co\.?|Company|Management|Construction|Electric|Plumbing|Mechanical|Air))\b`)
	reContractor  = regexp.MustCompile(`(?i)(?:FROM )?(?:SUB)?CONTRACTOR:?\s*(.*)`)
	rePhone       = regexp.MustCompile(`[\d()\-. ]{7,}`)
)

// parseVendor fills f.VendorName from the header/signature block.
func (p *Parser) parseVendor(lines []string, f *Fields) {
	candidates := p.companyCandidates(lines)

	if len(candidates) == 0 {
		if name, ok := p.contractorFallback(lines); ok {
			f.VendorName = name
			f.markPresent(constants.FieldVendorName, constants.ConfidenceLow)
			return
		}
		f.markMissing(constants.FieldVendorName)
		return
	}

	// The longest candidate is usually the full company name; a single
	// candidate is trustworthy, several mean review.
	best := candidates[0]
	for _, c := range candidates[1:] {
		if len(c) > len(best) {
			best = c
		}
	}
	conf := constants.ConfidenceHigh
	if distinctStrings(candidates) > 1 {
		conf = constants.ConfidenceLow
	}
	f.VendorName = best
	f.markPresent(constants.FieldVendorName, conf)
}

// companyCandidates finds legal-entity-shaped names anywhere on the page,
// skipping the owner company and stamp lines.
func (p *Parser) companyCandidates(lines []string) []string {
	var out []string
	for _, line := range lines {
		if isStampLine(line) {
			continue
		}
		for _, m := range reCompanyName.FindAllString(line, -1) {
			name := normalizeSpace(m)
			if len(name) <= 5 {
				continue
			}
			if p.isOwner(name) {
				continue
			}
			out = append(out, name)
		}
	}
	return out
}

// contractorFallback takes the text after a CONTRACTOR: label, or the next
// non-empty line, with phone-number noise stripped.
func (p *Parser) contractorFallback(lines []string) (string, bool) {
	for i, line := range lines {
		m := reContractor.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		candidate := normalizeSpace(m[1])
		if candidate == "" && i+1 < len(lines) {
			candidate = normalizeSpace(lines[i+1])
		}
		candidate = normalizeSpace(rePhone.ReplaceAllString(candidate, " "))
		if len(candidate) > 3 && !p.isOwner(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func (p *Parser) isOwner(name string) bool {
	return p.ownerName != "" && strings.Contains(strings.ToLower(name), strings.ToLower(p.ownerName))
}

func distinctStrings(values []string) int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[strings.ToLower(v)] = struct{}{}
	}
	return len(seen)
}
