package grading

import (
	"bytes"
	"encoding/json"
	"text/template"
)

const systemPrompt = `You are an expert grader for educational answers.

Return EXACTLY one JSON object with keys:
- score: number between 0.0 and 1.0
- grade: one of "correct", "partially_correct", "incorrect"
- concepts: list of the important concept tags the answer covered or missed
- justification: 1-4 sentences on what was right or wrong and the key concept errors
- hints: a short helpful hint if the answer is not fully correct, otherwise ""

Do NOT include any extra text.`

var userTemplate = template.Must(template.New("grading").Funcs(template.FuncMap{
	"json": quoteJSON,
}).Parse(`Input JSON:
{"question": {{json .QuestionText}},
 "correct_answer": {{json .CorrectAnswer}},
 "student_answer": {{json .StudentAnswer}},
 "context": {{json .Context}}
}`))

// quoteJSON encodes s as a JSON string so answers cannot break out of the
// input object.
func quoteJSON(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

func buildUserMessage(in Input) (string, error) {
	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, in); err != nil {
		return "", err
	}
	return buf.String(), nil
}
