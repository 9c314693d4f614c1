// Package questiongen turns study text into quiz questions with a language
// model. Unlike grading there is no safe default here: when the model
// output cannot be used the caller gets an error.
package questiongen

import (
	"context"
	"errors"

	"github.com/abhisek/quizloop/internal/quiz"
)

var (
	// ErrEmptyText is returned before any model call when there is nothing
	// to generate from.
	ErrEmptyText = errors.New("study text is empty")

	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("model returned an empty response")

	// ErrNoValidQuestions is returned when every generated item was dropped.
	ErrNoValidQuestions = errors.New("no valid questions in model output")
)

// Generator produces questions from study text.
type Generator interface {
	// Generate returns the valid questions the model produced for input.
	// Questions have no id or creation time; saving assigns them.
	Generate(ctx context.Context, input Input) ([]quiz.Question, error)
}

// Input is one generation request.
type Input struct {
	// Text is the study material questions are drawn from.
	Text string

	// Count is the number of questions to ask for. Zero uses the config
	// default.
	Count int

	// Distribution overrides the default per-difficulty split.
	Distribution *Distribution
}

// Distribution is how many questions of each difficulty to ask for.
type Distribution struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}

// DefaultDistribution splits n questions 40/40/20 across easy, medium and
// hard, rounding each share down.
func DefaultDistribution(n int) Distribution {
	return Distribution{
		Easy:   n * 4 / 10,
		Medium: n * 4 / 10,
		Hard:   n * 2 / 10,
	}
}
