package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/quizloop/internal/llm"
	"github.com/abhisek/quizloop/internal/question"
	"github.com/abhisek/quizloop/internal/questiongen"
	"github.com/abhisek/quizloop/internal/quiz"
	"github.com/abhisek/quizloop/internal/store"
)

const generatedJSON = `[
	{"question_text": "What do mitochondria produce?", "question_type": "short", "correct_answer": "ATP", "difficulty": "easy", "concepts": ["ATP"]},
	{"question_text": "Which organelle photosynthesizes?", "question_type": "mcq", "choices": ["Chloroplast", "Ribosome", "Vacuole"], "correct_answer": "Chloroplast", "difficulty": "medium", "concepts": ["photosynthesis"]},
	{"question_text": "Relate respiration to photosynthesis.", "correct_answer": "Each uses the other's products.", "difficulty": "hard"}
]`

func TestGenerateQuestions(t *testing.T) {
	h := newHarness(t, llm.MockResponse{Content: json.RawMessage(generatedJSON)})
	ctx := context.Background()

	res, err := h.svc.GenerateQuestions(ctx, GenerateRequest{
		Text:    "Mitochondria make ATP. Chloroplasts photosynthesize.",
		Count:   3,
		ScopeID: "nb-1",
	})
	require.NoError(t, err)
	require.Len(t, res.Questions, 3)
	assert.Equal(t, 3, res.Embedded)
	assert.Equal(t, 3, h.embedder.CallCount())

	for _, q := range res.Questions {
		assert.NotEmpty(t, q.ID)
		assert.Equal(t, "nb-1", q.ScopeID)
		assert.Len(t, q.Embedding, 4)

		stored, err := h.svc.Question(ctx, q.ID)
		require.NoError(t, err)
		assert.Len(t, stored.Embedding, 4, "embedding should be back-filled in the store")
	}

	set, err := question.NewRepo(h.docs).GetSet(ctx, res.SetID)
	require.NoError(t, err)
	assert.Equal(t, "nb-1", set.ScopeID)
	assert.Len(t, set.QuestionIDs, 3)
	assert.Equal(t, res.Questions[0].ID, set.QuestionIDs[0])
	assert.Greater(t, set.SourceChars, 0)

	q, err := h.svc.SelectNextQuestion(ctx, "u", "nb-1")
	require.NoError(t, err)
	assert.Equal(t, quiz.Medium, q.Difficulty)
}

func TestGenerateQuestions_EmbedFailureIsSkipped(t *testing.T) {
	h := newHarness(t, llm.MockResponse{Content: json.RawMessage(generatedJSON)})
	h.embedder.Err = errors.New("quota exceeded")

	res, err := h.svc.GenerateQuestions(context.Background(), GenerateRequest{Text: "study text"})
	require.NoError(t, err)
	assert.Len(t, res.Questions, 3)
	assert.Equal(t, 0, res.Embedded)
}

func TestGenerateQuestions_NoEmbedder(t *testing.T) {
	svc := New(Deps{
		Docs:     store.NewMemoryRepo(),
		Provider: llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(generatedJSON)}),
	})
	res, err := svc.GenerateQuestions(context.Background(), GenerateRequest{Text: "study text"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Embedded)
	assert.Nil(t, res.Questions[0].Embedding)
}

func TestGenerateQuestions_Errors(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t)
	_, err := h.svc.GenerateQuestions(ctx, GenerateRequest{Text: " "})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, err, questiongen.ErrEmptyText)

	h = newHarness(t, llm.MockResponse{Content: json.RawMessage("sorry, no")})
	_, err = h.svc.GenerateQuestions(ctx, GenerateRequest{Text: "study"})
	var perr *questiongen.ParseError
	assert.ErrorAs(t, err, &perr)

	docs, err := h.docs.Query(ctx, store.TableQuestions, store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, docs, "nothing is saved when generation fails")
}
