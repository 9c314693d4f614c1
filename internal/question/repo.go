// Package question provides typed access to the question bank and the quiz
// sets that group questions from one generation run.
package question

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/quizloop/internal/quiz"
	"github.com/abhisek/quizloop/internal/store"
)

// ErrEmptyQuestion is returned when saving a record with no question text.
var ErrEmptyQuestion = errors.New("question text is empty")

// Fields are the caller-supplied attributes of a new question. Zero values
// take defaults on Save.
type Fields struct {
	QuestionText  string            `json:"question_text"`
	QuestionType  quiz.QuestionType `json:"question_type"`
	Choices       []string          `json:"choices"`
	CorrectAnswer string            `json:"correct_answer"`
	Difficulty    quiz.Difficulty   `json:"difficulty"`
	Concepts      []string          `json:"concepts"`
	Embedding     []float32         `json:"embedding,omitempty"`
}

// FieldsOf returns the Fields of an existing question.
func FieldsOf(q quiz.Question) Fields {
	return Fields{
		QuestionText:  q.QuestionText,
		QuestionType:  q.QuestionType,
		Choices:       q.Choices,
		CorrectAnswer: q.CorrectAnswer,
		Difficulty:    q.Difficulty,
		Concepts:      q.Concepts,
		Embedding:     q.Embedding,
	}
}

// Filter restricts a question query. Empty fields do not filter.
type Filter struct {
	Difficulty quiz.Difficulty
	ScopeID    string
	Limit      int
}

// Repo reads and writes questions and quiz sets.
type Repo struct {
	docs store.DocumentRepo
	now  func() time.Time
}

// NewRepo creates a question repository over docs.
func NewRepo(docs store.DocumentRepo) *Repo {
	return &Repo{docs: docs, now: time.Now}
}

// Normalize applies the record defaults: type short, difficulty medium,
// empty choices and concepts, concepts trimmed, deduplicated and capped.
func Normalize(f Fields) Fields {
	f.QuestionText = strings.TrimSpace(f.QuestionText)
	f.CorrectAnswer = strings.TrimSpace(f.CorrectAnswer)
	if !f.QuestionType.Valid() {
		f.QuestionType = quiz.TypeShort
	}
	if !f.Difficulty.Valid() {
		f.Difficulty = quiz.Medium
	}
	if f.Choices == nil {
		f.Choices = []string{}
	}
	f.Concepts = CleanConcepts(f.Concepts, quiz.MaxConcepts)
	return f
}

// CleanConcepts trims tags, drops empties and duplicates, and keeps at most
// max entries in first-seen order. A non-positive max keeps all.
func CleanConcepts(in []string, max int) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// Save creates a question from f under scopeID and returns its id.
func (r *Repo) Save(ctx context.Context, f Fields, scopeID string) (string, error) {
	f = Normalize(f)
	if f.QuestionText == "" {
		return "", ErrEmptyQuestion
	}

	q := quiz.Question{
		QuestionText:  f.QuestionText,
		QuestionType:  f.QuestionType,
		Choices:       f.Choices,
		CorrectAnswer: f.CorrectAnswer,
		Difficulty:    f.Difficulty,
		Concepts:      f.Concepts,
		ScopeID:       scopeID,
		Embedding:     f.Embedding,
		CreatedAt:     r.now().UTC(),
	}
	id, err := r.docs.Create(ctx, store.TableQuestions, quiz.QuestionDocument(q))
	if err != nil {
		return "", fmt.Errorf("save question: %w", err)
	}
	return id, nil
}

// Query returns questions matching filter in insertion order.
func (r *Repo) Query(ctx context.Context, filter Filter) ([]quiz.Question, error) {
	equals := map[string]any{}
	if filter.Difficulty != "" {
		equals[quiz.FieldDifficulty] = string(filter.Difficulty)
	}
	if filter.ScopeID != "" {
		equals[quiz.FieldScopeID] = filter.ScopeID
	}

	docs, err := r.docs.Query(ctx, store.TableQuestions, store.Filter{Equals: equals, Limit: filter.Limit})
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	out := make([]quiz.Question, 0, len(docs))
	for _, d := range docs {
		out = append(out, quiz.QuestionFromDocument(d))
	}
	return out, nil
}

// Get returns the question with the given id. The error wraps
// store.ErrNotFound when it does not exist.
func (r *Repo) Get(ctx context.Context, id string) (quiz.Question, error) {
	doc, err := r.docs.Get(ctx, store.TableQuestions, id)
	if err != nil {
		return quiz.Question{}, fmt.Errorf("get question: %w", err)
	}
	return quiz.QuestionFromDocument(doc), nil
}

// BackfillEmbedding stores vector on an existing question. It is the only
// mutation a question receives after creation.
func (r *Repo) BackfillEmbedding(ctx context.Context, id string, vector []float32) error {
	err := r.docs.Upsert(ctx, store.TableQuestions, store.Document{
		store.FieldID:       id,
		quiz.FieldEmbedding: vector,
	})
	if err != nil {
		return fmt.Errorf("backfill embedding %s: %w", id, err)
	}
	return nil
}

// SaveSet records a quiz set and returns its id.
func (r *Repo) SaveSet(ctx context.Context, set quiz.QuizSet) (string, error) {
	if set.CreatedAt.IsZero() {
		set.CreatedAt = r.now().UTC()
	}
	id, err := r.docs.Create(ctx, store.TableQuizSets, quiz.QuizSetDocument(set))
	if err != nil {
		return "", fmt.Errorf("save quiz set: %w", err)
	}
	return id, nil
}

// GetSet returns the quiz set with the given id.
func (r *Repo) GetSet(ctx context.Context, id string) (quiz.QuizSet, error) {
	doc, err := r.docs.Get(ctx, store.TableQuizSets, id)
	if err != nil {
		return quiz.QuizSet{}, fmt.Errorf("get quiz set: %w", err)
	}
	return quiz.QuizSetFromDocument(doc), nil
}
