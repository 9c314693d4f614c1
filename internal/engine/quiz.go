package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/abhisek/quizloop/internal/events"
	"github.com/abhisek/quizloop/internal/grading"
	"github.com/abhisek/quizloop/internal/proficiency"
	"github.com/abhisek/quizloop/internal/question"
	"github.com/abhisek/quizloop/internal/quiz"
	"github.com/abhisek/quizloop/internal/selector"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return invalid("user id is required")
	}
	return nil
}

// SelectNextQuestion returns the next question for userID, or nil when the
// question bank is empty.
func (s *Service) SelectNextQuestion(ctx context.Context, userID, scopeID string) (*quiz.Question, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.selector.SelectNext(ctx, userID, scopeID)
}

// Question returns a question by id.
func (s *Service) Question(ctx context.Context, id string) (quiz.Question, error) {
	return s.questions.Get(ctx, id)
}

// EvaluateAnswer grades an answer and records the attempt. It does not
// change proficiency. When in.QuestionID is set, missing question text and
// correct answer are filled in from the bank.
func (s *Service) EvaluateAnswer(ctx context.Context, in grading.Input) (grading.Result, error) {
	in, _, err := s.resolveInput(ctx, in)
	if err != nil {
		return grading.Result{}, err
	}
	return s.evaluate(ctx, in)
}

func (s *Service) evaluate(ctx context.Context, in grading.Input) (grading.Result, error) {
	res, err := s.grader.Evaluate(ctx, in)
	if err != nil {
		return res, err
	}
	s.publish(ctx, events.TypeAttemptGraded, events.AttemptGraded{
		UserID:     in.UserID,
		AttemptID:  res.AttemptID,
		QuestionID: in.QuestionID,
		Score:      res.Score,
		Grade:      res.Grade,
		Concepts:   res.Concepts,
		Degraded:   res.Degraded,
	})
	return res, nil
}

func (s *Service) resolveInput(ctx context.Context, in grading.Input) (grading.Input, []string, error) {
	if err := requireUser(in.UserID); err != nil {
		return in, nil, err
	}
	var concepts []string
	if in.QuestionID != "" {
		q, err := s.questions.Get(ctx, in.QuestionID)
		if err != nil {
			return in, nil, err
		}
		if in.QuestionText == "" {
			in.QuestionText = q.QuestionText
		}
		if in.CorrectAnswer == "" {
			in.CorrectAnswer = q.CorrectAnswer
		}
		concepts = q.Concepts
	}
	if strings.TrimSpace(in.QuestionText) == "" {
		return in, nil, invalid("question text or question id is required")
	}
	return in, concepts, nil
}

// UpdateUserProficiency folds score into the user's estimate for concept.
// A non-positive alpha uses the configured default.
func (s *Service) UpdateUserProficiency(ctx context.Context, userID, concept string, score, alpha float64) (quiz.ProficiencyRecord, error) {
	if err := requireUser(userID); err != nil {
		return quiz.ProficiencyRecord{}, err
	}
	concept = strings.TrimSpace(concept)
	if concept == "" {
		return quiz.ProficiencyRecord{}, invalid("concept is required")
	}
	if math.IsNaN(score) || score < 0 || score > 1 {
		return quiz.ProficiencyRecord{}, invalid("score %v outside [0, 1]", score)
	}
	if math.IsNaN(alpha) || alpha > 1 {
		return quiz.ProficiencyRecord{}, invalid("alpha %v outside (0, 1]", alpha)
	}
	if alpha <= 0 {
		alpha = s.cfg.Alpha
	}

	rec, err := s.prof.Update(ctx, userID, concept, score, alpha)
	if err != nil {
		return quiz.ProficiencyRecord{}, err
	}
	s.publish(ctx, events.TypeProficiencyUpdated, events.ProficiencyUpdated{
		UserID:    rec.UserID,
		Concept:   rec.Concept,
		ScoreEWMA: rec.ScoreEWMA,
	})
	return rec, nil
}

// SaveQuestionRecord stores one question under scopeID and returns its id.
func (s *Service) SaveQuestionRecord(ctx context.Context, f question.Fields, scopeID string) (string, error) {
	id, err := s.questions.Save(ctx, f, scopeID)
	if errors.Is(err, question.ErrEmptyQuestion) {
		return "", fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return id, err
}

// Submission is the outcome of SubmitAnswer.
type Submission struct {
	Result      grading.Result           `json:"result"`
	Proficiency []quiz.ProficiencyRecord `json:"proficiency"`
}

// SubmitAnswer grades an answer and then folds the score into the user's
// proficiency for each graded concept. When the grader named no concepts
// the question's own tags are used. A degraded grade updates nothing, so
// an unreachable model does not count against the user.
func (s *Service) SubmitAnswer(ctx context.Context, in grading.Input) (Submission, error) {
	in, questionConcepts, err := s.resolveInput(ctx, in)
	if err != nil {
		return Submission{}, err
	}
	res, err := s.evaluate(ctx, in)
	if err != nil {
		return Submission{Result: res}, err
	}

	sub := Submission{Result: res, Proficiency: []quiz.ProficiencyRecord{}}
	if res.Degraded {
		return sub, nil
	}

	concepts := res.Concepts
	if len(concepts) == 0 {
		concepts = question.CleanConcepts(questionConcepts, quiz.MaxConcepts)
	}
	for _, c := range concepts {
		rec, err := s.UpdateUserProficiency(ctx, in.UserID, c, res.Score, 0)
		if err != nil {
			return sub, fmt.Errorf("update proficiency for %q: %w", c, err)
		}
		sub.Proficiency = append(sub.Proficiency, rec)
	}
	return sub, nil
}

// ProficiencySummary is a user's current standing.
type ProficiencySummary struct {
	UserID  string                   `json:"user_id"`
	Average float64                  `json:"average"`
	Tier    quiz.Difficulty          `json:"tier"`
	Records []quiz.ProficiencyRecord `json:"records"`
}

// Proficiency returns every concept estimate for userID along with the
// average and the tier it selects.
func (s *Service) Proficiency(ctx context.Context, userID string) (ProficiencySummary, error) {
	if err := requireUser(userID); err != nil {
		return ProficiencySummary{}, err
	}
	recs, err := s.prof.Records(ctx, userID)
	if err != nil {
		return ProficiencySummary{}, err
	}
	avg := proficiency.Mean(recs)
	return ProficiencySummary{
		UserID:  userID,
		Average: avg,
		Tier:    selector.TierFor(avg),
		Records: recs,
	}, nil
}

// Attempts returns the user's attempts newest first.
func (s *Service) Attempts(ctx context.Context, userID string, limit int) ([]quiz.Attempt, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.attempts.ListByUser(ctx, userID, limit)
}
