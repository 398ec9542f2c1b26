// Package llm defines the optional model-assisted fallback for field
// recovery. It only runs when anchored extraction leaves required fields
// missing or low-confidence; the pipeline works without any provider
// configured.
package llm

import "context"

// ApplicationFields is the normalized shape we want back from the model.
// Amounts are decimal strings; the pipeline converts them to cents and
// marks everything model-sourced as low confidence.
type ApplicationFields struct {
	VendorName        string `json:"vendor_name"`
	ApplicationNumber string `json:"application_number,omitempty"`
	PeriodTo          string `json:"period_to,omitempty"` // M/D/YYYY
	TotalCompleted    string `json:"total_completed,omitempty"`
	AmountDue         string `json:"amount_due"`
	Retainage         string `json:"retainage"`
}

// ExtractRequest carries the recognized text plus hints for the prompt.
type ExtractRequest struct {
	RecognizedText string
	FilenameHint   string
	// MissingFields narrows the prompt to what anchored extraction could
	// not recover; empty means ask for everything.
	MissingFields []string
	// KnownVendors lets the model snap a mangled name to the catalog.
	KnownVendors []string
}

// FieldExtractor is the interface the pipeline depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (ApplicationFields, []byte /*rawJSON*/, error)
}
