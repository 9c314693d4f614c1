// Package quiz holds the typed records shared by the quiz engine and their
// conversion to and from schemaless store documents.
package quiz

import "time"

// QuestionType is the answer format of a question.
type QuestionType string

const (
	TypeMCQ   QuestionType = "mcq"
	TypeShort QuestionType = "short"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	return t == TypeMCQ || t == TypeShort
}

// Difficulty is the tier a question is authored at. It is set once at
// creation and never changed by selection or grading.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Difficulties lists all tiers from easiest to hardest.
var Difficulties = []Difficulty{Easy, Medium, Hard}

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	return d == Easy || d == Medium || d == Hard
}

// Grade is the categorical outcome of grading an answer.
type Grade string

const (
	Correct          Grade = "correct"
	PartiallyCorrect Grade = "partially_correct"
	Incorrect        Grade = "incorrect"
)

// Valid reports whether g is a known grade.
func (g Grade) Valid() bool {
	return g == Correct || g == PartiallyCorrect || g == Incorrect
}

// MaxConcepts is the most concept tags a question carries.
const MaxConcepts = 5

// Question is an item in the question bank.
type Question struct {
	ID            string       `json:"id"`
	QuestionText  string       `json:"question_text"`
	QuestionType  QuestionType `json:"question_type"`
	Choices       []string     `json:"choices"`
	CorrectAnswer string       `json:"correct_answer"`
	Difficulty    Difficulty   `json:"difficulty"`
	Concepts      []string     `json:"concepts"`
	ScopeID       string       `json:"scope_id,omitempty"`
	Embedding     []float32    `json:"embedding,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// ProficiencyRecord is the running estimate of one user's mastery of one
// concept. At most one exists per (UserID, Concept).
type ProficiencyRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Concept   string    `json:"concept"`
	ScoreEWMA float64   `json:"score_ewma"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Attempt is an immutable record of one graded submission.
type Attempt struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	QuestionID    string    `json:"question_id,omitempty"`
	QuestionText  string    `json:"question_text"`
	AnswerText    string    `json:"answer_text"`
	Score         float64   `json:"score"`
	Grade         Grade     `json:"grade"`
	Justification string    `json:"justification"`
	Concepts      []string  `json:"concepts"`
	CreatedAt     time.Time `json:"created_at"`
}

// QuizSet links the questions produced by one generation run.
type QuizSet struct {
	ID          string    `json:"id"`
	ScopeID     string    `json:"scope_id,omitempty"`
	QuestionIDs []string  `json:"question_ids"`
	SourceChars int       `json:"source_chars"`
	CreatedAt   time.Time `json:"created_at"`
}
