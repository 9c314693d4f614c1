package grading

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/abhisek/quizloop/internal/question"
	"github.com/abhisek/quizloop/internal/quiz"
)

// Score thresholds used to derive a grade the model left out or misspelled.
const (
	CorrectAtLeast   = 0.8
	PartialAtLeast   = 0.4
	UnavailableReply = "grading unavailable"
)

var greedyObject = regexp.MustCompile(`(?s)\{.*\}`)

// Parse turns model output into a Result. It tries the whole text as JSON,
// then the widest {...} span, then the first balanced object. When all
// three fail the result is the synthetic incorrect grade carrying raw as
// its justification, and ok is false.
func Parse(raw string) (res Result, ok bool) {
	for _, candidate := range candidates(raw) {
		var obj map[string]any
		if err := json.Unmarshal([]byte(candidate), &obj); err != nil || obj == nil {
			continue
		}
		return coerce(obj), true
	}
	return Fallback(raw), false
}

func candidates(raw string) []string {
	out := []string{strings.TrimSpace(raw)}
	if m := greedyObject.FindString(raw); m != "" {
		out = append(out, m)
	}
	if m := extractBalanced(raw); m != "" {
		out = append(out, m)
	}
	return out
}

// Fallback is the result used when no grade can be read: zero score,
// incorrect, no concepts, and justification as given (or UnavailableReply
// when empty).
func Fallback(justification string) Result {
	if strings.TrimSpace(justification) == "" {
		justification = UnavailableReply
	}
	return Result{
		Score:         0,
		Grade:         quiz.Incorrect,
		Concepts:      []string{},
		Justification: justification,
		Hints:         "",
		Degraded:      true,
	}
}

// GradeFor derives a grade from a score.
func GradeFor(score float64) quiz.Grade {
	switch {
	case score >= CorrectAtLeast:
		return quiz.Correct
	case score >= PartialAtLeast:
		return quiz.PartiallyCorrect
	default:
		return quiz.Incorrect
	}
}

func coerce(obj map[string]any) Result {
	score := clamp(toFloat(obj["score"]))
	grade := quiz.Grade(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(toString(obj["grade"]))), " ", "_"))
	if !grade.Valid() {
		grade = GradeFor(score)
	}
	return Result{
		Score:         score,
		Grade:         grade,
		Concepts:      question.CleanConcepts(toStrings(obj["concepts"]), 0),
		Justification: toString(obj["justification"]),
		Hints:         joinHints(obj["hints"]),
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	case bool:
		if t {
			return 1
		}
	}
	return 0
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Split(t, ",")
	}
	return nil
}

func joinHints(v any) string {
	if list, ok := v.([]any); ok {
		parts := make([]string, 0, len(list))
		for _, e := range list {
			if s := toString(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	}
	return toString(v)
}

// extractBalanced returns the first brace-balanced object in s, skipping
// braces inside JSON strings, or "" when there is none.
func extractBalanced(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, ch := range s {
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' && start != -1 {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
