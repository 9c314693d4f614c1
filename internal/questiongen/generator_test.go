package questiongen

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/abhisek/quizloop/internal/llm"
	"github.com/abhisek/quizloop/internal/quiz"
)

const studyText = `Mitochondria are organelles that produce ATP through cellular respiration.
Chloroplasts carry out photosynthesis in plant cells.`

func questionsJSON() json.RawMessage {
	return json.RawMessage(`[
		{
			"question_text": "Which organelle produces most of the cell's ATP?",
			"question_type": "mcq",
			"choices": ["Mitochondrion", "Chloroplast", "Ribosome", "Nucleus"],
			"correct_answer": "Mitochondrion",
			"difficulty": "easy",
			"concepts": ["organelles", "ATP"]
		},
		{
			"question_text": "Explain how photosynthesis and respiration are linked.",
			"question_type": "short",
			"choices": [],
			"correct_answer": "The products of one are the reactants of the other.",
			"difficulty": "hard",
			"concepts": ["photosynthesis", "respiration"]
		}
	]`)
}

func TestGenerate_Array(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: questionsJSON()})
	gen := New(mock, DefaultConfig(), nil)

	qs, err := gen.Generate(context.Background(), Input{Text: studyText, Count: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qs))
	}
	if qs[0].QuestionType != quiz.TypeMCQ || qs[0].Difficulty != quiz.Easy {
		t.Errorf("unexpected first question: %+v", qs[0])
	}
	if qs[1].QuestionType != quiz.TypeShort || qs[1].Difficulty != quiz.Hard {
		t.Errorf("unexpected second question: %+v", qs[1])
	}
	if qs[0].ID != "" || !qs[0].CreatedAt.IsZero() {
		t.Error("generated questions should not carry an id or creation time")
	}

	req := mock.Calls[0]
	if req.MaxTokens != 1500 {
		t.Errorf("expected MaxTokens 1500, got %d", req.MaxTokens)
	}
	msg := req.Messages[0].Content
	if !strings.Contains(msg, "Number of questions: 5") {
		t.Errorf("count missing from prompt: %q", msg)
	}
	if !strings.Contains(msg, "easy=2, medium=2, hard=1") {
		t.Errorf("distribution missing from prompt: %q", msg)
	}
	if !strings.Contains(msg, "Chloroplasts carry out photosynthesis") {
		t.Error("study text missing from prompt")
	}
}

func TestGenerate_WrappedObject(t *testing.T) {
	wrapped := `{"questions": ` + string(questionsJSON()) + `}`
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(wrapped)})
	gen := New(mock, DefaultConfig(), nil)

	qs, err := gen.Generate(context.Background(), Input{Text: studyText})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 2 {
		t.Errorf("expected 2 questions, got %d", len(qs))
	}
}

func TestGenerate_EmbeddedArray(t *testing.T) {
	raw := "Here are your questions:\n```json\n" + string(questionsJSON()) + "\n```\nGood luck!"
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(raw)})
	gen := New(mock, DefaultConfig(), nil)

	qs, err := gen.Generate(context.Background(), Input{Text: studyText})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 2 {
		t.Errorf("expected 2 questions, got %d", len(qs))
	}
}

func TestGenerate_EmptyText(t *testing.T) {
	mock := llm.NewMockProvider()
	gen := New(mock, DefaultConfig(), nil)

	_, err := gen.Generate(context.Background(), Input{Text: "   \n"})
	if !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if mock.CallCount() != 0 {
		t.Error("model should not be called for empty text")
	}
}

func TestGenerate_EmptyResponse(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage("")})
	gen := New(mock, DefaultConfig(), nil)

	_, err := gen.Generate(context.Background(), Input{Text: studyText})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestGenerate_Unparseable(t *testing.T) {
	long := "I could not produce questions because " + strings.Repeat("x", 400)
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(long)})
	gen := New(mock, DefaultConfig(), nil)

	_, err := gen.Generate(context.Background(), Input{Text: studyText})
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if len(perr.Snippet) != parseSnippetChars {
		t.Errorf("snippet length = %d, want %d", len(perr.Snippet), parseSnippetChars)
	}
	if !strings.HasPrefix(err.Error(), "unable to parse question generator response: I could not") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestGenerate_ProviderError(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrRateLimit{}})
	gen := New(mock, DefaultConfig(), nil)

	_, err := gen.Generate(context.Background(), Input{Text: studyText})
	if err == nil {
		t.Fatal("expected error")
	}
	var rl *llm.ErrRateLimit
	if !errors.As(err, &rl) {
		t.Errorf("expected wrapped ErrRateLimit, got %v", err)
	}
}

func TestGenerate_DropsInvalidItems(t *testing.T) {
	raw := `[
		{"question_text": "", "correct_answer": "x"},
		{"question_text": "Pick one", "question_type": "mcq", "choices": ["a", "b"], "correct_answer": "a"},
		{"question_text": "Pick the gas", "question_type": "mcq", "choices": ["O2", "Fe", "NaCl"], "correct_answer": "CO2"},
		{"question_text": "Missing answer"},
		"not an object",
		{"question_text": "What is ATP?", "question_type": "essay", "difficulty": "extreme", "correct_answer": 42,
		 "concepts": ["energy", "energy", " ", "a", "b", "c", "d", "e"]}
	]`
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(raw)})
	gen := New(mock, DefaultConfig(), nil)

	qs, err := gen.Generate(context.Background(), Input{Text: studyText})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 1 {
		t.Fatalf("expected 1 surviving question, got %d: %+v", len(qs), qs)
	}
	q := qs[0]
	if q.QuestionType != quiz.TypeShort {
		t.Errorf("unknown type should default to short, got %q", q.QuestionType)
	}
	if q.Difficulty != quiz.Medium {
		t.Errorf("unknown difficulty should default to medium, got %q", q.Difficulty)
	}
	if q.CorrectAnswer != "42" {
		t.Errorf("numeric answer should be stringified, got %q", q.CorrectAnswer)
	}
	if len(q.Concepts) != quiz.MaxConcepts || q.Concepts[0] != "energy" {
		t.Errorf("concepts not cleaned: %v", q.Concepts)
	}
}

func TestGenerate_DropsDuplicates(t *testing.T) {
	raw := `[
		{"question_text": "What is ATP?", "correct_answer": "An energy carrier"},
		{"question_text": "  what is   ATP? ", "correct_answer": "Adenosine triphosphate"},
		{"question_text": "Where does photosynthesis happen?", "correct_answer": "Chloroplasts"}
	]`
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(raw)})
	gen := New(mock, DefaultConfig(), nil)

	qs, err := gen.Generate(context.Background(), Input{Text: studyText})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("expected 2 questions after dedup, got %d", len(qs))
	}
	if qs[0].CorrectAnswer != "An energy carrier" {
		t.Errorf("first occurrence should win, got %q", qs[0].CorrectAnswer)
	}
	if qs[1].QuestionText != "Where does photosynthesis happen?" {
		t.Errorf("unexpected second question %q", qs[1].QuestionText)
	}
}

func TestGenerate_AllInvalid(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`[{"question_text": "no answer"}]`)})
	gen := New(mock, DefaultConfig(), nil)

	_, err := gen.Generate(context.Background(), Input{Text: studyText})
	if !errors.Is(err, ErrNoValidQuestions) {
		t.Fatalf("expected ErrNoValidQuestions, got %v", err)
	}
}

func TestGenerate_EmptyArray(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`[]`)})
	gen := New(mock, DefaultConfig(), nil)

	_, err := gen.Generate(context.Background(), Input{Text: studyText})
	if !errors.Is(err, ErrNoValidQuestions) {
		t.Fatalf("expected ErrNoValidQuestions, got %v", err)
	}
}

func TestGenerate_CustomDistribution(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: questionsJSON()})
	gen := New(mock, DefaultConfig(), nil)

	_, err := gen.Generate(context.Background(), Input{
		Text:         studyText,
		Distribution: &Distribution{Easy: 1, Medium: 0, Hard: 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg := mock.Calls[0].Messages[0].Content
	if !strings.Contains(msg, "Number of questions: 4") || !strings.Contains(msg, "easy=1, medium=0, hard=3") {
		t.Errorf("custom distribution not in prompt: %q", msg)
	}
}

func TestDefaultDistribution(t *testing.T) {
	tests := []struct {
		n    int
		want Distribution
	}{
		{10, Distribution{4, 4, 2}},
		{5, Distribution{2, 2, 1}},
		{3, Distribution{1, 1, 0}},
		{1, Distribution{0, 0, 0}},
		{0, Distribution{0, 0, 0}},
	}
	for _, tt := range tests {
		if got := DefaultDistribution(tt.n); got != tt.want {
			t.Errorf("DefaultDistribution(%d) = %+v, want %+v", tt.n, got, tt.want)
		}
	}
}

func TestPromptTruncatesSource(t *testing.T) {
	msg := buildUserMessage(strings.Repeat("é", 50), 1, Distribution{}, 10)
	if strings.Count(msg, "é") != 10 {
		t.Errorf("expected 10 runes of source, got %d", strings.Count(msg, "é"))
	}
}
