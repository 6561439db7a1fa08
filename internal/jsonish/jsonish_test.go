package jsonish

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]any
	}{
		{
			name: "fenced json",
			text: "```json\n{\"score\": 0.8, \"reasoning\": \"ok\"}\n```",
			want: map[string]any{"score": 0.8, "reasoning": "ok"},
		},
		{
			name: "single quotes and trailing comma via repair",
			text: `It says: {'score': 0.6, 'reasoning': 'fine',}`,
			want: map[string]any{"score": 0.6, "reasoning": "fine"},
		},
		{
			name: "no object at all",
			text: "no braces here at all",
			want: nil,
		},
		{
			name: "nested object with trailing junk via brace balance",
			text: `{"score": 0.9, "nested": {"a": 1}} trailing junk`,
			want: map[string]any{"score": 0.9, "nested": map[string]any{"a": 1.0}},
		},
		{
			name: "object buried in prose",
			text: `The moderator concluded. {"score": 0.2, "summary": "agreement"} Hope that helps!`,
			want: map[string]any{"score": 0.2, "summary": "agreement"},
		},
		{
			name: "smart quotes normalized",
			text: "{“score”: 0.4, “reasoning”: “mixed”}",
			want: map[string]any{"score": 0.4, "reasoning": "mixed"},
		},
		{
			name: "field-level extraction when braces are broken",
			text: `discrepancy_score: 0.75 and "reasoning": "imaging conflicts with audio" but the { is never closed`,
			want: map[string]any{"score": 0.75, "reasoning": "imaging conflicts with audio"},
		},
		{
			name: "empty input",
			text: "",
			want: nil,
		},
		{
			name: "braces holding no fields of interest",
			text: "here {is} nothing useful",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseNeverPanicsOnAdversarialInput(t *testing.T) {
	inputs := []string{
		"{{{{{{",
		"}}}}}",
		`{"a": "\"}`,
		"```json\n{",
		`{'a': }`,
		"{\"a\": \"unterminated",
	}
	for _, in := range inputs {
		// any non-panicking result is acceptable here
		_ = Parse(in)
	}
}

func TestParseArray(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []any
	}{
		{
			name: "fenced array",
			text: "```json\n[\"[ACTIVE] cough\", \"[RISK] smoker\"]\n```",
			want: []any{"[ACTIVE] cough", "[RISK] smoker"},
		},
		{
			name: "array in prose with trailing comma",
			text: `Findings: ["[ACTIVE] weight loss",] done`,
			want: []any{"[ACTIVE] weight loss"},
		},
		{
			name: "no array",
			text: "nothing structured",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseArray(tt.text))
		})
	}
}
