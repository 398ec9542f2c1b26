package llm

import "strings"

// BuildSystemPrompt composes the system message: role, output contract, and
// the catalog nudge when known vendors are supplied.
func BuildSystemPrompt(req ExtractRequest) string {
	parts := []string{
		"You are a construction pay-application parser. Return ONLY JSON that matches the provided JSON Schema.",
		"Amounts are plain decimals with up to two fraction digits, no currency symbols or thousands separators.",
		"Dates use M/D/YYYY.",
		"The document is an AIA G702-style application for payment from a subcontractor.",
		"Never output null. If a field is not present, omit it unless the schema requires it.",
	}
	if len(req.KnownVendors) > 0 {
		parts = append(parts,
			"If the contractor name closely matches one of these known vendors, return the known spelling exactly: "+
				strings.Join(req.KnownVendors, "; ")+".")
	}
	if len(req.MissingFields) > 0 {
		parts = append(parts,
			"Focus on recovering these fields, which a first pass could not read: "+
				strings.Join(req.MissingFields, ", ")+".")
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt wraps the recognized text with its filename hint.
func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	if req.FilenameHint != "" {
		b.WriteString("Filename: " + req.FilenameHint + "\n\n")
	}
	b.WriteString("Recognized text:\n")
	b.WriteString(req.RecognizedText)
	return b.String()
}
