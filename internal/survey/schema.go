package survey

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ResponseSchema returns the JSON schema enforced via structured outputs for
// providers that support array length constraints.
func ResponseSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"scores": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "integer"},
				"minItems":    NumQuestions,
				"maxItems":    NumQuestions,
				"description": fmt.Sprintf("Array of exactly %d scores for questions Q1-Q%d", NumQuestions, NumQuestions),
			},
			"manipulation_check": map[string]any{
				"type":        "string",
				"enum":        []string{ManipulationYes, ManipulationNo},
				"description": "Does the resume mention any criminal record information?",
			},
			"thought_process": map[string]any{
				"type":        "string",
				"description": "Brief 2-3 sentence explanation of evaluation reasoning",
			},
		},
		"required":             []string{"scores", "manipulation_check", "thought_process"},
		"additionalProperties": false,
	}
}

// ClaudeResponseSchema is ResponseSchema without minItems/maxItems, which the
// Anthropic API rejects on array properties.
func ClaudeResponseSchema() map[string]any {
	schema := ResponseSchema()
	props := schema["properties"].(map[string]any)
	scores := props["scores"].(map[string]any)
	delete(scores, "minItems")
	delete(scores, "maxItems")
	return schema
}

// PerQuestionResponseSchema spells out one integer property per question with
// explicit minimum/maximum bounds. Used for Mistral, whose schema enforcement
// honors numeric bounds but not array length.
func PerQuestionResponseSchema() map[string]any {
	props := make(map[string]any, NumQuestions+2)
	required := make([]string, 0, NumQuestions+2)

	for i := 1; i <= NumQuestions; i++ {
		key := fmt.Sprintf("q%d", i)
		r := questionRanges[i-1]
		props[key] = map[string]any{
			"type":        "integer",
			"minimum":     r.Min,
			"maximum":     r.Max,
			"description": fmt.Sprintf("Score for Q%d (%d-%d)", i, r.Min, r.Max),
		}
		required = append(required, key)
	}

	props["manipulation_check"] = map[string]any{
		"type":        "string",
		"enum":        []string{ManipulationYes, ManipulationNo},
		"description": "Does the resume mention any criminal record information?",
	}
	props["thought_process"] = map[string]any{
		"type":        "string",
		"description": "Brief 2-3 sentence explanation of evaluation reasoning",
	}
	required = append(required, "manipulation_check", "thought_process")

	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// CheckSchema validates a raw response against the known response shapes.
// A response conforming to either the array form or the per-question form
// passes. The returned error lists the violations of the closest match and is
// meant for logging; callers still run the lenient parser afterwards.
func CheckSchema(raw string) error {
	doc := gojsonschema.NewStringLoader(ExtractJSON(raw))

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(ResponseSchema()), doc)
	if err != nil {
		return fmt.Errorf("validate response: %w", err)
	}
	if result.Valid() {
		return nil
	}

	perQuestion, err := gojsonschema.Validate(gojsonschema.NewGoLoader(PerQuestionResponseSchema()), doc)
	if err != nil {
		return fmt.Errorf("validate response: %w", err)
	}
	if perQuestion.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}

	return fmt.Errorf("response does not match survey schema: %s", strings.Join(violations, "; "))
}
