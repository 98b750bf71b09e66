package analyze

// Schema is the structural contract for analysis output. Field domains
// (tiers, item types, topics) are coerced after parsing, so only the shape
// is enforced here.
var Schema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"questions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"itemNumber":     map[string]any{"type": []string{"string", "integer"}},
					"difficultyTier": map[string]any{"type": []string{"string", "null"}},
					"itemType":       map[string]any{"type": []string{"string", "null"}},
					"topicPath":      map[string]any{"type": []string{"string", "null"}},
					"points":         map[string]any{"type": []string{"number", "string", "null"}},
					"confidence":     map[string]any{"type": []string{"number", "string", "null"}},
					"studentAnswer":  map[string]any{"type": []string{"string", "number", "null"}},
					"isCorrect":      map[string]any{"type": []string{"boolean", "string", "null"}},
					"earnedPoints":   map[string]any{"type": []string{"number", "string", "null"}},
					"errorCategory":  map[string]any{"type": []string{"string", "null"}},
					"rationale":      map[string]any{"type": []string{"string", "null"}},
					"ambiguous":      map[string]any{"type": []string{"boolean", "null"}},
				},
				"required": []string{"itemNumber"},
			},
		},
	},
	"required": []string{"questions"},
}
