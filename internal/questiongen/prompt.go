package questiongen

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const systemPrompt = `You are an educational question generator. You receive study content and produce quiz questions about it.

Return ONLY a JSON array of objects with keys:
- question_text: the question shown to the learner
- question_type: "mcq" or "short"
- choices: 3-5 plausible options for mcq, [] for short
- correct_answer: the correct answer; for mcq it must be exactly one of the choices
- difficulty: "easy", "medium" or "hard"
- concepts: up to 5 short concept tags

Rules:
- Ask only about the given content.
- Match the requested number of questions and difficulty distribution.
- Output ONLY valid JSON, no commentary and no code fences.`

func buildUserMessage(text string, count int, dist Distribution, maxChars int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Number of questions: %d\n", count)
	fmt.Fprintf(&b, "Difficulty distribution: easy=%d, medium=%d, hard=%d\n", dist.Easy, dist.Medium, dist.Hard)
	b.WriteString("\nCONTENT:\n")
	b.WriteString(truncate(text, maxChars))

	return b.String()
}

// truncate cuts s to at most max runes. A non-positive max keeps s whole.
func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
