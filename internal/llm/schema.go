package llm

// FieldKeys are the only keys kept from a model response.
var FieldKeys = []string{"biller_name", "biller_address", "total_amount", "due_date"}

// BuildFieldsJSONSchema returns the JSON-Schema the normalized model output
// must satisfy before it is decoded into entity.Fields.
func BuildFieldsJSONSchema() map[string]any {
	nullableString := func() map[string]any {
		return map[string]any{"type": []any{"string", "null"}}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"biller_name":    nullableString(),
			"biller_address": nullableString(),
			// unparseable amounts stay text so validation can report them
			"total_amount": map[string]any{"type": []any{"number", "string", "null"}},
			"due_date":     nullableString(),
		},
		"required": []any{"biller_name", "biller_address", "total_amount", "due_date"},
	}
}
