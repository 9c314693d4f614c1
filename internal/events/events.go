// Package events publishes quiz activity to a message broker so that other
// services can follow grading and proficiency changes.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/abhisek/quizloop/internal/quiz"
)

// Event types, also used as routing keys.
const (
	TypeAttemptGraded      = "attempt.graded"
	TypeProficiencyUpdated = "proficiency.updated"
)

// Event is the envelope published for every change.
type Event struct {
	Type       string    `json:"type"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AttemptGraded is the payload of TypeAttemptGraded.
type AttemptGraded struct {
	UserID     string     `json:"user_id"`
	AttemptID  string     `json:"attempt_id"`
	QuestionID string     `json:"question_id,omitempty"`
	Score      float64    `json:"score"`
	Grade      quiz.Grade `json:"grade"`
	Concepts   []string   `json:"concepts"`
	Degraded   bool       `json:"degraded"`
}

// ProficiencyUpdated is the payload of TypeProficiencyUpdated.
type ProficiencyUpdated struct {
	UserID    string  `json:"user_id"`
	Concept   string  `json:"concept"`
	ScoreEWMA float64 `json:"score_ewma"`
}

// Publisher delivers events. Publishing is best effort for callers: a
// failed publish never undoes the change it describes.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// New stamps an event of the given type.
func New(eventType string, payload any) Event {
	return Event{Type: eventType, Payload: payload, OccurredAt: time.Now().UTC()}
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of what has been published.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the published events with the given type.
func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
