package providers

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseStructuredJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"plain object", `{"ok":true}`, `{"ok":true}`},
		{"json fence", "```json\n{\"ok\":true}\n```", `{"ok":true}`},
		{"bare fence with prose after", "```\n{\"ok\":true}\n```\nHope this helps!", `{"ok":true}`},
		{"surrounding prose", "Here is the result: {\"ok\": true} done.", `{"ok":true}`},
		{"trailing commas", "{\"items\": [{\"n\": \"1\",}, {\"n\": \"2\"},],}", `{"items":[{"n":"1"},{"n":"2"}]}`},
		{"comma inside string kept", `{"topic": "a, b",}`, `{"topic":"a, b"}`},
		{"fenced with trailing comma", "```json\n{\"a\": 1,}\n```", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStructuredJSON(tt.content)
			if err != nil {
				t.Fatalf("ParseStructuredJSON() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("ParseStructuredJSON() = %s, want %s", got, tt.want)
			}
		})
	}

	t.Run("no json", func(t *testing.T) {
		_, err := ParseStructuredJSON("I could not read the page.")
		if !errors.Is(err, ErrNoJSON) {
			t.Errorf("err = %v, want ErrNoJSON", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseStructuredJSON("   ")
		if !errors.Is(err, ErrNoJSON) {
			t.Errorf("err = %v, want ErrNoJSON", err)
		}
	})
}

func TestStripTrailingCommas_EscapedQuotes(t *testing.T) {
	in := `{"s": "say \"hi\",]", "t": 1,}`
	want := `{"s": "say \"hi\",]", "t": 1}`
	if got := stripTrailingCommas(in); got != want {
		t.Errorf("stripTrailingCommas() = %s, want %s", got, want)
	}
}

func TestValidateStructuredJSON(t *testing.T) {
	schema := json.RawMessage(`{
		"name":"marks",
		"strict":true,
		"schema":{
			"type":"object",
			"properties":{
				"confidence":{"type":"number","minimum":0,"maximum":1}
			},
			"required":["confidence"]
		}
	}`)

	if err := ValidateStructuredJSON(schema, json.RawMessage(`{"confidence":0.5}`)); err != nil {
		t.Fatalf("ValidateStructuredJSON(valid) error = %v", err)
	}
	if err := ValidateStructuredJSON(schema, json.RawMessage(`{"confidence":5}`)); err == nil {
		t.Fatal("ValidateStructuredJSON(out of range) expected error")
	}
	if err := ValidateStructuredJSON(schema, json.RawMessage(`{}`)); err == nil {
		t.Fatal("ValidateStructuredJSON(missing field) expected error")
	}
}

func TestJSONSchemaFormat(t *testing.T) {
	rf := JSONSchemaFormat("paper", json.RawMessage(`{"type":"object"}`))
	if rf.Type != "json_schema" {
		t.Errorf("Type = %q", rf.Type)
	}
	inner, err := extractValidationSchema(rf.JSONSchema)
	if err != nil {
		t.Fatalf("extractValidationSchema() error = %v", err)
	}
	if string(inner) != `{"type":"object"}` {
		t.Errorf("inner schema = %s", inner)
	}
}
