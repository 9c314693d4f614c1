package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/quizloop/internal/question"
	"github.com/abhisek/quizloop/internal/questiongen"
	"github.com/abhisek/quizloop/internal/quiz"
)

// GenerateRequest asks for questions drawn from Text.
type GenerateRequest struct {
	Text         string                    `json:"text"`
	Count        int                       `json:"count"`
	Distribution *questiongen.Distribution `json:"distribution,omitempty"`
	ScopeID      string                    `json:"scope_id,omitempty"`
}

// GenerateResult describes one generation run.
type GenerateResult struct {
	SetID     string          `json:"set_id"`
	Questions []quiz.Question `json:"questions"`

	// Embedded counts questions that received an embedding vector.
	Embedded int `json:"embedded"`
}

// GenerateQuestions generates questions from study text, saves each one,
// back-fills embeddings when an embedder is configured, and records the
// run as a quiz set. Embedding failures are logged and skipped; storage
// failures abort the run.
func (s *Service) GenerateQuestions(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	if s.generator == nil {
		return GenerateResult{}, ErrGenerationUnavailable
	}

	generated, err := s.generator.Generate(ctx, questiongen.Input{
		Text:         req.Text,
		Count:        req.Count,
		Distribution: req.Distribution,
	})
	if errors.Is(err, questiongen.ErrEmptyText) {
		return GenerateResult{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if err != nil {
		return GenerateResult{}, fmt.Errorf("generate questions: %w", err)
	}

	saved := make([]quiz.Question, 0, len(generated))
	ids := make([]string, 0, len(generated))
	for _, q := range generated {
		id, err := s.questions.Save(ctx, question.FieldsOf(q), req.ScopeID)
		if err != nil {
			return GenerateResult{}, err
		}
		stored, err := s.questions.Get(ctx, id)
		if err != nil {
			return GenerateResult{}, err
		}
		saved = append(saved, stored)
		ids = append(ids, id)
	}

	embedded, err := s.embedQuestions(ctx, saved)
	if err != nil {
		return GenerateResult{}, err
	}

	setID, err := s.questions.SaveSet(ctx, quiz.QuizSet{
		ScopeID:     req.ScopeID,
		QuestionIDs: ids,
		SourceChars: utf8.RuneCountInString(strings.TrimSpace(req.Text)),
	})
	if err != nil {
		return GenerateResult{}, err
	}

	s.log.Info("questions generated",
		"set_id", setID,
		"scope_id", req.ScopeID,
		"questions", len(saved),
		"embedded", embedded,
	)
	return GenerateResult{SetID: setID, Questions: saved, Embedded: embedded}, nil
}

// embedQuestions back-fills embeddings in place on qs, at most
// EmbedConcurrency at a time, and returns how many succeeded.
func (s *Service) embedQuestions(ctx context.Context, qs []quiz.Question) (int, error) {
	if s.embedder == nil || len(qs) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.EmbedConcurrency)

	var done int32
	for i := range qs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			vec, err := s.embedder.Embed(gctx, qs[i].QuestionText)
			if err != nil {
				s.log.Warn("embed question failed", "question_id", qs[i].ID, "error", err)
				return nil
			}
			if err := s.questions.BackfillEmbedding(gctx, qs[i].ID, vec); err != nil {
				return err
			}
			qs[i].Embedding = vec
			atomic.AddInt32(&done, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return int(atomic.LoadInt32(&done)), nil
}
