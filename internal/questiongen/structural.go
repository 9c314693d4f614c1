package questiongen

import "github.com/abhisek/quizloop/internal/quiz"

// Length limits for generated text.
const (
	MaxQuestionChars = 1000
	MaxAnswerChars   = 1000
)

// StructuralValidator checks that the question and answer are present and
// within length limits.
type StructuralValidator struct{}

func (v *StructuralValidator) Name() string { return "structural" }

func (v *StructuralValidator) Validate(q *quiz.Question) *ValidationError {
	if q.QuestionText == "" {
		return &ValidationError{Validator: v.Name(), Message: "question_text is empty"}
	}
	if len(q.QuestionText) > MaxQuestionChars {
		return &ValidationError{Validator: v.Name(), Message: "question_text is too long"}
	}
	if q.CorrectAnswer == "" {
		return &ValidationError{Validator: v.Name(), Message: "correct_answer is empty"}
	}
	if len(q.CorrectAnswer) > MaxAnswerChars {
		return &ValidationError{Validator: v.Name(), Message: "correct_answer is too long"}
	}
	return nil
}
