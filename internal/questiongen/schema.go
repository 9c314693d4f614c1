package questiongen

import "github.com/abhisek/quizloop/internal/llm"

// ItemSchema is the shape each generated item must have before it is
// normalized. Enumerated fields are left open here so that unknown values
// fall back to defaults instead of dropping the item.
var ItemSchema = &llm.Schema{
	Name:        "quiz-question-item",
	Description: "One generated quiz question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question_text": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
			"question_type": map[string]any{
				"type": []any{"string", "null"},
			},
			"choices": map[string]any{
				"type":  []any{"array", "null"},
				"items": map[string]any{"type": []any{"string", "number", "boolean"}},
			},
			"correct_answer": map[string]any{
				"type": []any{"string", "number", "boolean"},
			},
			"difficulty": map[string]any{
				"type": []any{"string", "null"},
			},
			"concepts": map[string]any{
				"type":  []any{"array", "null"},
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []any{"question_text", "correct_answer"},
	},
}
