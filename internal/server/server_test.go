package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/quizloop/internal/engine"
	"github.com/abhisek/quizloop/internal/llm"
	"github.com/abhisek/quizloop/internal/questiongen"
	"github.com/abhisek/quizloop/internal/store"
)

func newTestServer(t *testing.T, responses ...llm.MockResponse) http.Handler {
	t.Helper()
	svc := engine.New(engine.Deps{
		Docs:     store.NewMemoryRepo(),
		Provider: llm.NewMockProvider(responses...),
		Rand:     rand.New(rand.NewPCG(3, 3)),
	})
	return New(svc, Config{Address: ":0", CORSOrigins: []string{"*"}}, nil).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestNextQuestion_EmptyBank(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodGet, "/api/v1/users/u1/next", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "no questions available", decode(t, w)["error"])
}

func TestSaveAndSelectQuestion(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/questions", map[string]any{
		"question_text":  "What is 7 x 8?",
		"correct_answer": "56",
		"difficulty":     "medium",
		"concepts":       []string{"multiplication"},
		"scope_id":       "math",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["id"].(string)
	require.NotEmpty(t, id)

	w = do(t, h, http.MethodGet, "/api/v1/users/u1/next?scope=math", nil)
	require.Equal(t, http.StatusOK, w.Code)
	q := decode(t, w)
	assert.Equal(t, id, q["id"])
	assert.Equal(t, "short", q["question_type"])

	w = do(t, h, http.MethodGet, "/api/v1/questions/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/questions/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaveQuestion_Empty(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodPost, "/api/v1/questions", map[string]any{"question_text": " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitAnswer(t *testing.T) {
	h := newTestServer(t, llm.MockResponse{
		Content: json.RawMessage(`{"score":0.9,"grade":"correct","concepts":["multiplication"],"justification":"Right.","hints":""}`),
	})

	w := do(t, h, http.MethodPost, "/api/v1/users/u1/answers", map[string]any{
		"question_text":  "What is 7 x 8?",
		"correct_answer": "56",
		"answer":         "56",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	result := body["result"].(map[string]any)
	assert.Equal(t, "correct", result["grade"])
	assert.NotEmpty(t, result["attempt_id"])
	prof := body["proficiency"].([]any)
	require.Len(t, prof, 1)
	assert.Equal(t, 0.9, prof[0].(map[string]any)["score_ewma"])

	w = do(t, h, http.MethodGet, "/api/v1/users/u1/proficiency", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode(t, w)
	assert.Equal(t, "hard", summary["tier"])

	w = do(t, h, http.MethodGet, "/api/v1/users/u1/attempts?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var attempts []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &attempts))
	require.Len(t, attempts, 1)
	assert.Equal(t, "56", attempts[0]["answer_text"])
}

func TestEvaluate_DegradesWithoutError(t *testing.T) {
	h := newTestServer(t, llm.MockResponse{Content: json.RawMessage("not json at all")})

	w := do(t, h, http.MethodPost, "/api/v1/evaluate", map[string]any{
		"user_id":       "u1",
		"question_text": "Define osmosis.",
		"answer":        "water moves",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode(t, w)
	assert.Equal(t, 0.0, res["score"])
	assert.Equal(t, "incorrect", res["grade"])
	assert.Equal(t, "not json at all", res["justification"])
	assert.Equal(t, "", res["hints"])
	assert.Equal(t, []any{}, res["concepts"])

	w = do(t, h, http.MethodGet, "/api/v1/users/u1/proficiency", nil)
	assert.Empty(t, decode(t, w)["records"])
}

func TestEvaluate_RequiresUser(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodPost, "/api/v1/evaluate", map[string]any{"question_text": "q", "answer": "a"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateProficiency(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPut, "/api/v1/users/u1/proficiency/algebra", map[string]any{"score": 0.4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 0.4, decode(t, w)["score_ewma"])

	w = do(t, h, http.MethodPut, "/api/v1/users/u1/proficiency/algebra", map[string]any{"score": 1.0, "alpha": 0.5})
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 0.7, decode(t, w)["score_ewma"], 1e-9)

	tests := []map[string]any{
		{},
		{"score": 1.5},
		{"score": 0.5, "alpha": 2},
	}
	for i, body := range tests {
		w := do(t, h, http.MethodPut, "/api/v1/users/u1/proficiency/algebra", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "case %d", i)
	}
}

func TestAttempts_BadLimit(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodGet, "/api/v1/users/u1/attempts?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateQuestions(t *testing.T) {
	h := newTestServer(t, llm.MockResponse{Content: json.RawMessage(`[
		{"question_text": "What is a prime?", "correct_answer": "A number with exactly two divisors.", "difficulty": "easy"}
	]`)})

	w := do(t, h, http.MethodPost, "/api/v1/questions/generate", map[string]any{"text": "Primes have two divisors.", "count": 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode(t, w)
	assert.NotEmpty(t, res["set_id"])
	assert.Len(t, res["questions"], 1)
}

func TestGenerateQuestions_BadModelOutput(t *testing.T) {
	h := newTestServer(t, llm.MockResponse{Content: json.RawMessage("no questions today")})
	w := do(t, h, http.MethodPost, "/api/v1/questions/generate", map[string]any{"text": "study"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/evaluate", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	newTestServer(t).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad", engine.ErrInvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("get: %w", store.ErrNotFound), http.StatusNotFound},
		{engine.ErrGenerationUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("generate: %w", &questiongen.ParseError{Snippet: "x"}), http.StatusBadGateway},
		{questiongen.ErrEmptyResponse, http.StatusBadGateway},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
