package marks

// Schema is the structural contract for mark detector output.
var Schema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"marks": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"itemNumber": map[string]any{"type": []string{"string", "integer"}},
					"markType":   map[string]any{"type": "string"},
					"symbol":     map[string]any{"type": []string{"string", "null"}},
					"position":   map[string]any{"type": []string{"string", "null"}},
					"color":      map[string]any{"type": []string{"string", "null"}},
					"verdict":    map[string]any{"type": "string"},
					"confidence": map[string]any{"type": []string{"number", "string"}},
					"score":      map[string]any{"type": []string{"number", "string", "null"}},
				},
				"required": []string{"itemNumber", "verdict"},
			},
		},
	},
	"required": []string{"marks"},
}
