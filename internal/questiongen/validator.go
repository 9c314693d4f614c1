package questiongen

import (
	"fmt"

	"github.com/abhisek/quizloop/internal/quiz"
)

// Validator checks a normalized generated question.
// Implementations should be stateless and safe for concurrent use.
type Validator interface {
	// Name returns a short identifier used in errors and logs, e.g.
	// "structural" or "choices".
	Name() string

	// Validate returns nil if q passes.
	Validate(q *quiz.Question) *ValidationError
}

// ValidationError describes why a generated item was dropped.
type ValidationError struct {
	Validator string // Name of the validator that failed
	Index     int    // Position of the item in the model output
	Message   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("item %d: validator %q: %s", e.Index, e.Validator, e.Message)
}
