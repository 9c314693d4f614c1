package quiz

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abhisek/quizloop/internal/store"
)

// Document field names shared with store filters.
const (
	FieldUserID     = "user_id"
	FieldConcept    = "concept"
	FieldDifficulty = "difficulty"
	FieldScopeID    = "scope_id"
	FieldEmbedding  = "embedding"
	FieldScoreEWMA  = "score_ewma"
	FieldUpdatedAt  = "updated_at"
)

// QuestionDocument converts q for storage. An empty id is omitted so the
// store assigns one.
func QuestionDocument(q Question) store.Document {
	doc := store.Document{
		"question_text":  q.QuestionText,
		"question_type":  string(q.QuestionType),
		"choices":        nonNil(q.Choices),
		"correct_answer": q.CorrectAnswer,
		FieldDifficulty:  string(q.Difficulty),
		"concepts":       nonNil(q.Concepts),
		"created_at":     formatTime(q.CreatedAt),
	}
	if q.ID != "" {
		doc[store.FieldID] = q.ID
	}
	if q.ScopeID != "" {
		doc[FieldScopeID] = q.ScopeID
	}
	if len(q.Embedding) > 0 {
		doc[FieldEmbedding] = q.Embedding
	}
	return doc
}

// QuestionFromDocument coerces a stored document into a Question. Missing
// or mistyped fields take zero values; unknown difficulty reads as medium.
func QuestionFromDocument(doc store.Document) Question {
	q := Question{
		ID:            doc.ID(),
		QuestionText:  getString(doc, "question_text"),
		QuestionType:  QuestionType(getString(doc, "question_type")),
		Choices:       getStrings(doc, "choices"),
		CorrectAnswer: getString(doc, "correct_answer"),
		Difficulty:    Difficulty(getString(doc, FieldDifficulty)),
		Concepts:      getStrings(doc, "concepts"),
		ScopeID:       getString(doc, FieldScopeID),
		Embedding:     getVector(doc, FieldEmbedding),
		CreatedAt:     getTime(doc, "created_at"),
	}
	if !q.QuestionType.Valid() {
		q.QuestionType = TypeShort
	}
	if !q.Difficulty.Valid() {
		q.Difficulty = Medium
	}
	return q
}

func ProficiencyDocument(r ProficiencyRecord) store.Document {
	doc := store.Document{
		FieldUserID:    r.UserID,
		FieldConcept:   r.Concept,
		FieldScoreEWMA: r.ScoreEWMA,
		FieldUpdatedAt: formatTime(r.UpdatedAt),
	}
	if r.ID != "" {
		doc[store.FieldID] = r.ID
	}
	return doc
}

func ProficiencyFromDocument(doc store.Document) ProficiencyRecord {
	return ProficiencyRecord{
		ID:        doc.ID(),
		UserID:    getString(doc, FieldUserID),
		Concept:   getString(doc, FieldConcept),
		ScoreEWMA: getFloat(doc, FieldScoreEWMA),
		UpdatedAt: getTime(doc, FieldUpdatedAt),
	}
}

func AttemptDocument(a Attempt) store.Document {
	doc := store.Document{
		FieldUserID:     a.UserID,
		"question_text": a.QuestionText,
		"answer_text":   a.AnswerText,
		"score":         a.Score,
		"grade":         string(a.Grade),
		"justification": a.Justification,
		"concepts":      nonNil(a.Concepts),
		"created_at":    formatTime(a.CreatedAt),
	}
	if a.ID != "" {
		doc[store.FieldID] = a.ID
	}
	if a.QuestionID != "" {
		doc["question_id"] = a.QuestionID
	}
	return doc
}

func AttemptFromDocument(doc store.Document) Attempt {
	return Attempt{
		ID:            doc.ID(),
		UserID:        getString(doc, FieldUserID),
		QuestionID:    getString(doc, "question_id"),
		QuestionText:  getString(doc, "question_text"),
		AnswerText:    getString(doc, "answer_text"),
		Score:         getFloat(doc, "score"),
		Grade:         Grade(getString(doc, "grade")),
		Justification: getString(doc, "justification"),
		Concepts:      getStrings(doc, "concepts"),
		CreatedAt:     getTime(doc, "created_at"),
	}
}

func QuizSetDocument(s QuizSet) store.Document {
	doc := store.Document{
		"question_ids": nonNil(s.QuestionIDs),
		"source_chars": s.SourceChars,
		"created_at":   formatTime(s.CreatedAt),
	}
	if s.ID != "" {
		doc[store.FieldID] = s.ID
	}
	if s.ScopeID != "" {
		doc[FieldScopeID] = s.ScopeID
	}
	return doc
}

func QuizSetFromDocument(doc store.Document) QuizSet {
	return QuizSet{
		ID:          doc.ID(),
		ScopeID:     getString(doc, FieldScopeID),
		QuestionIDs: getStrings(doc, "question_ids"),
		SourceChars: int(getFloat(doc, "source_chars")),
		CreatedAt:   getTime(doc, "created_at"),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func getString(doc store.Document, key string) string {
	switch v := doc[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// getFloat accepts JSON numbers, numeric strings and Go numeric types.
func getFloat(doc store.Document, key string) float64 {
	switch v := doc[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f
	default:
		return 0
	}
}

func getStrings(doc store.Document, key string) []string {
	switch v := doc[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func getVector(doc store.Document, key string) []float32 {
	switch v := doc[key].(type) {
	case []float32:
		return v
	case []float64:
		out := make([]float32, len(v))
		for i, f := range v {
			out[i] = float32(f)
		}
		return out
	case []any:
		out := make([]float32, 0, len(v))
		for _, e := range v {
			if f, ok := e.(float64); ok {
				out = append(out, float32(f))
			}
		}
		return out
	default:
		return nil
	}
}

func getTime(doc store.Document, key string) time.Time {
	s, ok := doc[key].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
