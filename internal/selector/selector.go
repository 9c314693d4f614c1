// Package selector picks the next question for a user from the tier that
// matches their average proficiency.
package selector

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/abhisek/quizloop/internal/logger"
	"github.com/abhisek/quizloop/internal/question"
	"github.com/abhisek/quizloop/internal/quiz"
)

// Tier boundaries on the average proficiency. Both bounds select medium.
const (
	EasyBelow = 0.45
	HardAbove = 0.65
)

// CandidateLimit caps how many questions are considered per query.
const CandidateLimit = 20

// TierFor maps an average proficiency to a difficulty tier.
func TierFor(avg float64) quiz.Difficulty {
	switch {
	case avg < EasyBelow:
		return quiz.Easy
	case avg > HardAbove:
		return quiz.Hard
	default:
		return quiz.Medium
	}
}

// Averager reports a user's mean proficiency and how many records back it.
type Averager interface {
	Average(ctx context.Context, userID string) (float64, int, error)
}

// QuestionQuerier is the question bank read used for candidates.
type QuestionQuerier interface {
	Query(ctx context.Context, filter question.Filter) ([]quiz.Question, error)
}

// Selector implements the selection policy. It never writes.
type Selector struct {
	prof      Averager
	questions QuestionQuerier
	log       *logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Selector.
type Option func(*Selector)

// WithRand sets the random source used to pick among candidates.
func WithRand(r *rand.Rand) Option {
	return func(s *Selector) { s.rng = r }
}

// WithLogger sets the logger used for selection diagnostics.
func WithLogger(l *logger.Logger) Option {
	return func(s *Selector) { s.log = l }
}

func New(prof Averager, questions QuestionQuerier, opts ...Option) *Selector {
	s := &Selector{
		prof:      prof,
		questions: questions,
		log:       logger.Nop(),
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectNext returns a question at the user's tier, falling back to any
// question when the tier (within scopeID, if set) is empty. A nil question
// with a nil error means the bank has nothing to offer.
func (s *Selector) SelectNext(ctx context.Context, userID, scopeID string) (*quiz.Question, error) {
	avg, n, err := s.prof.Average(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("select next question: %w", err)
	}
	tier := TierFor(avg)

	candidates, err := s.questions.Query(ctx, question.Filter{
		Difficulty: tier,
		ScopeID:    scopeID,
		Limit:      CandidateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("select next question: %w", err)
	}

	fallback := false
	if len(candidates) == 0 {
		fallback = true
		candidates, err = s.questions.Query(ctx, question.Filter{Limit: CandidateLimit})
		if err != nil {
			return nil, fmt.Errorf("select next question: fallback: %w", err)
		}
	}

	s.log.Debug("question selection",
		"user_id", userID,
		"avg", avg,
		"records", n,
		"tier", tier,
		"scope_id", scopeID,
		"candidates", len(candidates),
		"fallback", fallback,
	)

	if len(candidates) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	pick := candidates[s.rng.IntN(len(candidates))]
	s.mu.Unlock()
	return &pick, nil
}
