package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/quizloop/internal/engine"
	"github.com/abhisek/quizloop/internal/grading"
	"github.com/abhisek/quizloop/internal/logger"
	"github.com/abhisek/quizloop/internal/question"
	"github.com/abhisek/quizloop/internal/questiongen"
	"github.com/abhisek/quizloop/internal/store"
)

const defaultAttemptLimit = 20

type handler struct {
	svc *engine.Service
	log *logger.Logger
}

type answerRequest struct {
	QuestionID    string `json:"question_id"`
	QuestionText  string `json:"question_text"`
	CorrectAnswer string `json:"correct_answer"`
	Answer        string `json:"answer"`
	Context       string `json:"context"`
}

func (r answerRequest) input(userID string) grading.Input {
	return grading.Input{
		UserID:        userID,
		QuestionID:    r.QuestionID,
		QuestionText:  r.QuestionText,
		CorrectAnswer: r.CorrectAnswer,
		StudentAnswer: r.Answer,
		Context:       r.Context,
	}
}

type evaluateRequest struct {
	answerRequest
	UserID string `json:"user_id" binding:"required"`
}

type proficiencyRequest struct {
	Score *float64 `json:"score" binding:"required"`
	Alpha float64  `json:"alpha"`
}

type saveQuestionRequest struct {
	question.Fields
	ScopeID string `json:"scope_id"`
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) nextQuestion(c *gin.Context) {
	q, err := h.svc.SelectNextQuestion(c.Request.Context(), c.Param("user"), c.Query("scope"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if q == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no questions available"})
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *handler) getQuestion(c *gin.Context) {
	q, err := h.svc.Question(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *handler) submitAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sub, err := h.svc.SubmitAnswer(c.Request.Context(), req.input(c.Param("user")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *handler) evaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.svc.EvaluateAnswer(c.Request.Context(), req.input(req.UserID))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) updateProficiency(c *gin.Context) {
	var req proficiencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.svc.UpdateUserProficiency(c.Request.Context(), c.Param("user"), c.Param("concept"), *req.Score, req.Alpha)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *handler) proficiency(c *gin.Context) {
	summary, err := h.svc.Proficiency(c.Request.Context(), c.Param("user"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *handler) attempts(c *gin.Context) {
	limit := defaultAttemptLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	attempts, err := h.svc.Attempts(c.Request.Context(), c.Param("user"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, attempts)
}

func (h *handler) saveQuestion(c *gin.Context) {
	var req saveQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.svc.SaveQuestionRecord(c.Request.Context(), req.Fields, req.ScopeID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *handler) generateQuestions(c *gin.Context) {
	var req engine.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.svc.GenerateQuestions(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// fail maps engine errors onto HTTP statuses.
func (h *handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	var parseErr *questiongen.ParseError
	switch {
	case errors.Is(err, engine.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrGenerationUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &parseErr),
		errors.Is(err, questiongen.ErrEmptyResponse),
		errors.Is(err, questiongen.ErrNoValidQuestions):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
