package questiongen

import (
	"fmt"
	"strings"

	"github.com/abhisek/quizloop/internal/quiz"
)

// Choice count bounds for multiple choice questions.
const (
	MinChoices = 3
	MaxChoices = 5
)

// ChoicesValidator checks multiple choice constraints: 3-5 distinct,
// non-empty options with the correct answer among them. Short answer
// questions pass unchecked.
type ChoicesValidator struct{}

func (v *ChoicesValidator) Name() string { return "choices" }

func (v *ChoicesValidator) Validate(q *quiz.Question) *ValidationError {
	if q.QuestionType != quiz.TypeMCQ {
		return nil
	}
	if n := len(q.Choices); n < MinChoices || n > MaxChoices {
		return &ValidationError{
			Validator: v.Name(),
			Message:   fmt.Sprintf("multiple choice needs %d-%d choices, got %d", MinChoices, MaxChoices, n),
		}
	}

	seen := make(map[string]bool, len(q.Choices))
	for i, c := range q.Choices {
		key := strings.ToLower(strings.TrimSpace(c))
		if key == "" {
			return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("choice %d is empty", i+1)}
		}
		if seen[key] {
			return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("duplicate choice %q", c)}
		}
		seen[key] = true
	}

	if !seen[strings.ToLower(q.CorrectAnswer)] {
		return &ValidationError{
			Validator: v.Name(),
			Message:   fmt.Sprintf("correct answer %q is not one of the choices", q.CorrectAnswer),
		}
	}
	return nil
}
