package classify

// Schema is the structural contract for classifier output. Enum values are
// normalized by the caller, so they are not constrained here.
var Schema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"paperType":     map[string]any{"type": "string"},
		"gradingStatus": map[string]any{"type": "string"},
		"confidence":    map[string]any{"type": []string{"number", "string"}},
		"indicators": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required": []string{"paperType", "gradingStatus"},
}
