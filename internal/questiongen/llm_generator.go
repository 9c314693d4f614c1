package questiongen

import (
	"context"
	"fmt"
	"strings"

	"github.com/abhisek/quizloop/internal/llm"
	"github.com/abhisek/quizloop/internal/logger"
	"github.com/abhisek/quizloop/internal/question"
	"github.com/abhisek/quizloop/internal/quiz"
)

// LLMGenerator implements Generator using the LLM provider.
type LLMGenerator struct {
	provider llm.Provider
	config   Config
	log      *logger.Logger
}

var _ Generator = (*LLMGenerator)(nil)

// New creates an LLMGenerator. A nil logger discards output.
func New(provider llm.Provider, cfg Config, log *logger.Logger) *LLMGenerator {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.DefaultCount <= 0 {
		cfg.DefaultCount = DefaultConfig().DefaultCount
	}
	return &LLMGenerator{provider: provider, config: cfg, log: log}
}

// Generate asks the model for questions about input.Text and returns the
// items that survive normalization and validation.
func (g *LLMGenerator) Generate(ctx context.Context, input Input) ([]quiz.Question, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, ErrEmptyText
	}
	count, dist := g.plan(input)

	ctx = llm.WithPurpose(ctx, "question-gen")
	resp, err := g.provider.Generate(ctx, llm.Request{
		System: systemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildUserMessage(input.Text, count, dist, g.config.MaxSourceChars)},
		},
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM generation failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, ErrEmptyResponse
	}

	items, err := parseItems(text)
	if err != nil {
		return nil, err
	}

	var (
		out     []quiz.Question
		dropped []*ValidationError
		seen    = make(map[string]bool, len(items))
	)
	for i, item := range items {
		q, verr := g.build(i, item)
		if verr == nil && seen[dedupKey(q.QuestionText)] {
			verr = &ValidationError{Validator: "duplicate", Index: i, Message: "question repeats an earlier item"}
		}
		if verr != nil {
			dropped = append(dropped, verr)
			g.log.Debug("dropped generated question", "index", i, "reason", verr.Error())
			continue
		}
		seen[dedupKey(q.QuestionText)] = true
		out = append(out, q)
	}

	if len(out) == 0 {
		if len(dropped) > 0 {
			return nil, fmt.Errorf("%w: %d dropped, first: %v", ErrNoValidQuestions, len(dropped), dropped[0])
		}
		return nil, ErrNoValidQuestions
	}
	if len(dropped) > 0 {
		g.log.Warn("some generated questions were invalid", "kept", len(out), "dropped", len(dropped))
	}
	return out, nil
}

func (g *LLMGenerator) plan(input Input) (int, Distribution) {
	count := input.Count
	if input.Distribution != nil {
		if count <= 0 {
			count = input.Distribution.Easy + input.Distribution.Medium + input.Distribution.Hard
		}
		return count, *input.Distribution
	}
	if count <= 0 {
		count = g.config.DefaultCount
	}
	return count, DefaultDistribution(count)
}

// build checks item against ItemSchema, normalizes it and runs the
// validator chain.
func (g *LLMGenerator) build(index int, item any) (quiz.Question, *ValidationError) {
	if err := llm.ValidateValue(ItemSchema, item); err != nil {
		return quiz.Question{}, &ValidationError{Validator: "schema", Index: index, Message: err.Error()}
	}
	obj := item.(map[string]any)

	f := question.Normalize(question.Fields{
		QuestionText:  stringField(obj["question_text"]),
		QuestionType:  quiz.QuestionType(strings.ToLower(stringField(obj["question_type"]))),
		Choices:       stringList(obj["choices"]),
		CorrectAnswer: stringField(obj["correct_answer"]),
		Difficulty:    quiz.Difficulty(strings.ToLower(stringField(obj["difficulty"]))),
		Concepts:      stringList(obj["concepts"]),
	})
	q := quiz.Question{
		QuestionText:  f.QuestionText,
		QuestionType:  f.QuestionType,
		Choices:       f.Choices,
		CorrectAnswer: f.CorrectAnswer,
		Difficulty:    f.Difficulty,
		Concepts:      f.Concepts,
	}

	for _, v := range g.config.Validators {
		if verr := v.Validate(&q); verr != nil {
			verr.Index = index
			return quiz.Question{}, verr
		}
	}
	return q, nil
}

// dedupKey folds case and whitespace so trivially reworded repeats match.
func dedupKey(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

func stringField(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func stringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, stringField(e))
	}
	return out
}
