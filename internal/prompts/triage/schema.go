package triage

// Schema is the structural contract for compact triage output.
var Schema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"r": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"n": map[string]any{"type": []string{"string", "integer"}},
					"c": map[string]any{"type": []string{"boolean", "string", "null"}},
					"p": map[string]any{"type": []string{"number", "string"}},
				},
				"required": []string{"n"},
			},
		},
	},
	"required": []string{"r"},
}
