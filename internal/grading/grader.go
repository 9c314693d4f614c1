// Package grading scores a free-text answer with a language model and
// records the attempt. Model problems never surface as errors: output that
// cannot be read and providers that fail both degrade to a zero score.
package grading

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/quizloop/internal/llm"
	"github.com/abhisek/quizloop/internal/logger"
	"github.com/abhisek/quizloop/internal/quiz"
)

// Input is one answer to grade.
type Input struct {
	UserID        string `json:"user_id"`
	QuestionID    string `json:"question_id,omitempty"`
	QuestionText  string `json:"question_text"`
	CorrectAnswer string `json:"correct_answer"`
	StudentAnswer string `json:"answer"`
	Context       string `json:"context,omitempty"`
}

// Result is the grade returned to the caller.
type Result struct {
	Score         float64    `json:"score"`
	Grade         quiz.Grade `json:"grade"`
	Concepts      []string   `json:"concepts"`
	Justification string     `json:"justification"`
	Hints         string     `json:"hints"`

	// Degraded is set when the model output could not be used.
	Degraded  bool   `json:"degraded"`
	AttemptID string `json:"attempt_id,omitempty"`
}

// AttemptAppender persists graded attempts.
type AttemptAppender interface {
	Append(ctx context.Context, a quiz.Attempt) (quiz.Attempt, error)
}

// Config holds generation limits for grading calls.
type Config struct {
	MaxTokens   int
	Temperature float64

	// Timeout bounds the model call only; the attempt is written after it
	// regardless. Zero means no limit beyond the caller's context.
	Timeout time.Duration
}

// DefaultConfig returns the grading defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   600,
		Temperature: 0,
	}
}

// Grader grades answers and appends every outcome to the attempt ledger.
type Grader struct {
	provider llm.Provider
	attempts AttemptAppender
	cfg      Config
	log      *logger.Logger
}

// New creates a Grader. A nil logger discards output.
func New(provider llm.Provider, attempts AttemptAppender, cfg Config, log *logger.Logger) *Grader {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	return &Grader{provider: provider, attempts: attempts, cfg: cfg, log: log}
}

// Evaluate grades in and records an attempt. The only error it returns is
// a failure to persist that attempt, in which case the returned Result is
// still the grade.
//
// Model output that cannot be parsed degrades with the raw text as the
// justification. A provider error or output that is empty after trimming
// whitespace counts as a failed generation instead, and degrades with
// UnavailableReply as the justification.
func (g *Grader) Evaluate(ctx context.Context, in Input) (Result, error) {
	res := g.grade(ctx, in)

	attempt, err := g.attempts.Append(ctx, quiz.Attempt{
		UserID:        in.UserID,
		QuestionID:    in.QuestionID,
		QuestionText:  in.QuestionText,
		AnswerText:    in.StudentAnswer,
		Score:         res.Score,
		Grade:         res.Grade,
		Justification: res.Justification,
		Concepts:      res.Concepts,
	})
	if err != nil {
		return res, fmt.Errorf("record attempt: %w", err)
	}
	res.AttemptID = attempt.ID
	return res, nil
}

func (g *Grader) grade(ctx context.Context, in Input) Result {
	ctx = llm.WithPurpose(ctx, "grading")
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	userMsg, err := buildUserMessage(in)
	if err != nil {
		g.log.Warn("build grading prompt", "error", err)
		return Fallback("")
	}

	resp, err := g.provider.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: userMsg}},
		ExpectJSON:  true,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		g.log.Warn("grading provider failed, degrading",
			"user_id", in.UserID,
			"error", err,
		)
		return Fallback("")
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		g.log.Warn("grading provider returned no text", "user_id", in.UserID)
		return Fallback("")
	}

	res, ok := Parse(text)
	if !ok {
		g.log.Warn("grading output not parseable, degrading",
			"user_id", in.UserID,
			"output_chars", len(text),
		)
	}
	return res
}
