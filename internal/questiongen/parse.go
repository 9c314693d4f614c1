package questiongen

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// parseSnippetChars is how much of unparseable output a ParseError keeps.
const parseSnippetChars = 200

var greedyArray = regexp.MustCompile(`(?s)\[.*\]`)

// ParseError reports model output that held no readable question list.
type ParseError struct {
	// Snippet is the start of the output.
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse question generator response: %s...", e.Snippet)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// parseItems extracts the raw item list from model output. It accepts a
// bare array, an object wrapping the array under "questions", or an array
// embedded in surrounding text.
func parseItems(raw string) ([]any, error) {
	raw = strings.TrimSpace(raw)

	var v any
	err := json.Unmarshal([]byte(raw), &v)
	if err == nil {
		if items, ok := unwrapItems(v); ok {
			return items, nil
		}
	}

	if m := greedyArray.FindString(raw); m != "" {
		var items []any
		if err = json.Unmarshal([]byte(m), &items); err == nil {
			return items, nil
		}
	}

	if err == nil {
		err = fmt.Errorf("no question array found")
	}
	return nil, &ParseError{Snippet: snippet(raw), Err: err}
}

func unwrapItems(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case map[string]any:
		items, ok := t["questions"].([]any)
		return items, ok
	}
	return nil, false
}

func snippet(s string) string {
	if utf8.RuneCountInString(s) <= parseSnippetChars {
		return s
	}
	return string([]rune(s)[:parseSnippetChars])
}
