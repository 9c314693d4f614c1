package questiongen

import (
	"testing"

	"github.com/abhisek/quizloop/internal/quiz"
)

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Validator: "choices", Index: 3, Message: "duplicate choice"}
	expected := `item 3: validator "choices": duplicate choice`
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestDefaultConfig_ValidatorChain(t *testing.T) {
	cfg := DefaultConfig()
	names := []string{"structural", "choices"}
	if len(cfg.Validators) != len(names) {
		t.Fatalf("expected %d validators, got %d", len(names), len(cfg.Validators))
	}
	for i, v := range cfg.Validators {
		if v.Name() != names[i] {
			t.Errorf("validator %d: expected %q, got %q", i, names[i], v.Name())
		}
	}
}

func TestStructuralValidator(t *testing.T) {
	long := make([]byte, MaxQuestionChars+1)
	for i := range long {
		long[i] = 'a'
	}
	tests := []struct {
		name    string
		q       quiz.Question
		wantErr bool
	}{
		{"valid", quiz.Question{QuestionText: "Q?", CorrectAnswer: "A"}, false},
		{"empty text", quiz.Question{CorrectAnswer: "A"}, true},
		{"empty answer", quiz.Question{QuestionText: "Q?"}, true},
		{"long text", quiz.Question{QuestionText: string(long), CorrectAnswer: "A"}, true},
	}
	v := &StructuralValidator{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.q)
			if (err != nil) != tt.wantErr {
				t.Errorf("wantErr=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestChoicesValidator(t *testing.T) {
	mcq := func(answer string, choices ...string) quiz.Question {
		return quiz.Question{QuestionType: quiz.TypeMCQ, QuestionText: "Q?", CorrectAnswer: answer, Choices: choices}
	}
	tests := []struct {
		name    string
		q       quiz.Question
		wantErr bool
	}{
		{"three choices", mcq("b", "a", "b", "c"), false},
		{"five choices", mcq("e", "a", "b", "c", "d", "e"), false},
		{"case insensitive match", mcq("Paris", "paris", "Rome", "Oslo"), false},
		{"too few", mcq("a", "a", "b"), true},
		{"too many", mcq("a", "a", "b", "c", "d", "e", "f"), true},
		{"answer missing", mcq("z", "a", "b", "c"), true},
		{"duplicate", mcq("a", "a", "A", "c"), true},
		{"empty choice", mcq("a", "a", " ", "c"), true},
		{"short ignores choices", quiz.Question{QuestionType: quiz.TypeShort, Choices: []string{"x"}}, false},
	}
	v := &ChoicesValidator{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.q)
			if (err != nil) != tt.wantErr {
				t.Errorf("wantErr=%v, got %v", tt.wantErr, err)
			}
		})
	}
}
