package constants

// Field names the parser recovers from a payment application.
type Field string

const (
	FieldVendorName        Field = "vendor_name"
	FieldApplicationNumber Field = "application_number"
	FieldPeriodTo          Field = "period_to"
	FieldTotalCompleted    Field = "total_completed"
	FieldAmountDue         Field = "amount_due"
	FieldRetainage         Field = "retainage"
)

// RequiredFields must be present (parsed or manually entered) before a stamp
// can be composed.
var RequiredFields = []Field{FieldVendorName, FieldAmountDue, FieldRetainage}

// Confidence is the parser's per-field confidence level.
type Confidence string

const (
	ConfidenceHigh Confidence = "HIGH" // one anchor, one candidate value
	ConfidenceLow  Confidence = "LOW"  // competing candidates or derived value; review needed
)

// Valid reports whether f is one of the canonical field names.
func (f Field) Valid() bool {
	switch f {
	case FieldVendorName, FieldApplicationNumber, FieldPeriodTo,
		FieldTotalCompleted, FieldAmountDue, FieldRetainage:
		return true
	}
	return false
}

// IsRequired reports whether f is one of RequiredFields.
func IsRequired(f Field) bool {
	for _, r := range RequiredFields {
		if r == f {
			return true
		}
	}
	return false
}
