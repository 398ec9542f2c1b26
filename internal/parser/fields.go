package parser

import (
	"fmt"
	"strings"

	"github.com/blue-scarf/paystamp/constants"
	"github.com/blue-scarf/paystamp/internal/money"
)

// Fields is the structured, partially-validated record recovered from one
// RawExtraction. Amounts are integer cents and are only meaningful when the
// field is not listed in Missing. Mutable only through SetField (human
// override) before stamping.
type Fields struct {
	VendorName        string `json:"vendor_name,omitempty"`
	ApplicationNumber string `json:"application_number,omitempty"`
	PeriodTo          string `json:"period_to,omitempty"`

	TotalCompletedCents int64 `json:"total_completed_cents"`
	AmountDueCents      int64 `json:"amount_due_cents"`
	RetainageCents      int64 `json:"retainage_cents"`

	Confidence map[constants.Field]constants.Confidence `json:"confidence"`
	Missing    []constants.Field                        `json:"missing,omitempty"`

	// Pre-filled from a prior stamp on the document, if one was readable.
	SuggestedCommitmentID string `json:"suggested_commitment_id,omitempty"`
	SuggestedCostCode     string `json:"suggested_cost_code,omitempty"`
}

// IsMissing reports whether f was not recovered and has not been entered.
func (f *Fields) IsMissing(field constants.Field) bool {
	for _, m := range f.Missing {
		if m == field {
			return true
		}
	}
	return false
}

// MissingRequired returns the required fields still missing.
func (f *Fields) MissingRequired() []constants.Field {
	var out []constants.Field
	for _, field := range constants.RequiredFields {
		if f.IsMissing(field) {
			out = append(out, field)
		}
	}
	return out
}

// NeedsReview reports whether any field carries low confidence or any
// required field is missing.
func (f *Fields) NeedsReview() bool {
	if len(f.MissingRequired()) > 0 {
		return true
	}
	for _, c := range f.Confidence {
		if c == constants.ConfidenceLow {
			return true
		}
	}
	return false
}

// SetField applies a human override. Amount fields must parse to a
// non-negative decimal; a successful override clears the missing marker and
// records high confidence.
func (f *Fields) SetField(field constants.Field, value string) error {
	value = strings.TrimSpace(value)
	switch field {
	case constants.FieldVendorName:
		if value == "" {
			return fmt.Errorf("vendor name cannot be blank")
		}
		f.VendorName = normalizeSpace(value)
	case constants.FieldApplicationNumber:
		f.ApplicationNumber = value
	case constants.FieldPeriodTo:
		f.PeriodTo = value
	case constants.FieldTotalCompleted, constants.FieldAmountDue, constants.FieldRetainage:
		cents, err := money.ParseCents(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", field, err)
		}
		switch field {
		case constants.FieldTotalCompleted:
			f.TotalCompletedCents = cents
		case constants.FieldAmountDue:
			f.AmountDueCents = cents
		case constants.FieldRetainage:
			f.RetainageCents = cents
		}
	default:
		return fmt.Errorf("unknown field %q", field)
	}

	f.markPresent(field, constants.ConfidenceHigh)
	return nil
}

// FillFromFallback applies a model-recovered value to a field that anchored
// parsing left missing. The value goes through the same validation as a
// human override but stays low-confidence, so review is still required.
func (f *Fields) FillFromFallback(field constants.Field, value string) error {
	if !f.IsMissing(field) {
		return fmt.Errorf("field %s already has a value", field)
	}
	if err := f.SetField(field, value); err != nil {
		return err
	}
	f.Confidence[field] = constants.ConfidenceLow
	return nil
}

func (f *Fields) markPresent(field constants.Field, conf constants.Confidence) {
	if f.Confidence == nil {
		f.Confidence = make(map[constants.Field]constants.Confidence)
	}
	f.Confidence[field] = conf
	for i, m := range f.Missing {
		if m == field {
			f.Missing = append(f.Missing[:i], f.Missing[i+1:]...)
			break
		}
	}
}

func (f *Fields) markMissing(field constants.Field) {
	if f.IsMissing(field) {
		return
	}
	f.Missing = append(f.Missing, field)
}

// ParseFailure names the required fields for which no usable candidate was
// found at all.
type ParseFailure struct {
	Fields []constants.Field
}

func (e *ParseFailure) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return "no usable candidate for required fields: " + strings.Join(names, ", ")
}
