package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildFieldsJSONSchema returns the JSON-Schema constraint for model output
// as a generic map. It is sent with the prompt and enforced locally on the
// response.
func BuildFieldsJSONSchema(knownVendors []string) map[string]any {
	vendor := map[string]any{"type": "string", "minLength": 1}
	if len(knownVendors) > 0 {
		// anyOf keeps free text legal while nudging toward the catalog.
		vendor = map[string]any{
			"anyOf": []any{
				map[string]any{"type": "string", "enum": knownVendors},
				map[string]any{"type": "string", "minLength": 1},
			},
		}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"vendor_name":        vendor,
			"application_number": map[string]any{"type": "string"},
			"period_to":          map[string]any{"type": "string", "pattern": `^\d{1,2}/\d{1,2}/\d{2,4}$`},
			"total_completed":    decimalProp(),
			"amount_due":         decimalProp(),
			"retainage":          decimalProp(),
		},
		"required": []string{"vendor_name", "amount_due", "retainage"},
	}
}

func decimalProp() map[string]any {
	return map[string]any{"type": "string", "pattern": `^\d+(\.\d{1,2})?$`}
}

// ValidateJSONAgainstSchema compiles the generic-map schema and checks raw
// against it.
func ValidateJSONAgainstSchema(schema map[string]any, raw []byte) error {
	sb, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("fields.json", bytes.NewReader(sb)); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile("fields.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("response violates schema: %w", err)
	}
	return nil
}
