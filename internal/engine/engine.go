// Package engine is the caller-facing quiz API: question selection, answer
// grading, proficiency updates and question bank writes, with user identity
// passed explicitly on every call.
package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/abhisek/quizloop/internal/events"
	"github.com/abhisek/quizloop/internal/grading"
	"github.com/abhisek/quizloop/internal/ledger"
	"github.com/abhisek/quizloop/internal/llm"
	"github.com/abhisek/quizloop/internal/logger"
	"github.com/abhisek/quizloop/internal/proficiency"
	"github.com/abhisek/quizloop/internal/question"
	"github.com/abhisek/quizloop/internal/questiongen"
	"github.com/abhisek/quizloop/internal/selector"
	"github.com/abhisek/quizloop/internal/store"
)

var (
	// ErrInvalidArgument marks caller input errors.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrGenerationUnavailable is returned by operations that need a
	// language model when none is configured.
	ErrGenerationUnavailable = errors.New("no LLM provider configured")
)

// Config tunes the engine.
type Config struct {
	// Alpha is the proficiency smoothing weight used when a caller passes
	// a non-positive alpha.
	Alpha float64

	// GradingTimeout bounds each grading model call.
	GradingTimeout time.Duration

	// EmbedConcurrency caps parallel embedding calls after generation.
	EmbedConcurrency int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Alpha:            proficiency.DefaultAlpha,
		GradingTimeout:   45 * time.Second,
		EmbedConcurrency: 4,
	}
}

// Deps are the collaborators a Service is built from. Docs is required;
// Provider may be nil, in which case grading always degrades and
// generation is unavailable. Embedder and Events are optional.
type Deps struct {
	Docs     store.DocumentRepo
	Provider llm.Provider
	Embedder llm.Embedder
	Events   events.Publisher
	Logger   *logger.Logger
	Rand     *rand.Rand
	Config   Config
}

// Service implements the quiz API.
type Service struct {
	questions *question.Repo
	prof      *proficiency.Estimator
	attempts  *ledger.Ledger
	selector  *selector.Selector
	grader    *grading.Grader
	generator questiongen.Generator
	embedder  llm.Embedder
	events    events.Publisher
	log       *logger.Logger
	cfg       Config
}

// New wires a Service from deps.
func New(deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	cfg := deps.Config
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = proficiency.DefaultAlpha
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = DefaultConfig().EmbedConcurrency
	}
	pub := deps.Events
	if pub == nil {
		pub = events.Noop{}
	}
	provider := deps.Provider
	if provider == nil {
		provider = unavailableProvider{}
	}

	s := &Service{
		questions: question.NewRepo(deps.Docs),
		prof:      proficiency.NewEstimator(deps.Docs),
		attempts:  ledger.New(deps.Docs),
		embedder:  deps.Embedder,
		events:    pub,
		log:       log,
		cfg:       cfg,
	}

	selOpts := []selector.Option{selector.WithLogger(log)}
	if deps.Rand != nil {
		selOpts = append(selOpts, selector.WithRand(deps.Rand))
	}
	s.selector = selector.New(s.prof, s.questions, selOpts...)

	gradingCfg := grading.DefaultConfig()
	gradingCfg.Timeout = cfg.GradingTimeout
	s.grader = grading.New(provider, s.attempts, gradingCfg, log)

	if deps.Provider != nil {
		s.generator = questiongen.New(deps.Provider, questiongen.DefaultConfig(), log)
	}
	return s
}

// WithGenerator replaces the question generator. Used by tests and by
// callers that configure generation separately.
func (s *Service) WithGenerator(g questiongen.Generator) *Service {
	s.generator = g
	return s
}

// Close releases the event publisher.
func (s *Service) Close() error {
	return s.events.Close()
}

func (s *Service) publish(ctx context.Context, eventType string, payload any) {
	if err := s.events.Publish(ctx, events.New(eventType, payload)); err != nil {
		s.log.Warn("publish event failed", "type", eventType, "error", err)
	}
}

// unavailableProvider stands in when no model is configured so grading
// takes its degrade path.
type unavailableProvider struct{}

func (unavailableProvider) Generate(context.Context, llm.Request) (*llm.Response, error) {
	return nil, &llm.ErrProviderUnavailable{Err: ErrGenerationUnavailable}
}

func (unavailableProvider) ModelID() string { return "none" }
