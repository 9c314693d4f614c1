// Package ledger is the append-only record of graded attempts.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/abhisek/quizloop/internal/quiz"
	"github.com/abhisek/quizloop/internal/store"
)

// Ledger appends and lists attempts. It never updates or deletes them.
type Ledger struct {
	docs store.DocumentRepo
	now  func() time.Time
}

func New(docs store.DocumentRepo) *Ledger {
	return &Ledger{docs: docs, now: time.Now}
}

// Append stores a as a new attempt and returns it with its id and creation
// time filled in. Any id already set on a is discarded.
func (l *Ledger) Append(ctx context.Context, a quiz.Attempt) (quiz.Attempt, error) {
	a.ID = ""
	a.CreatedAt = l.now().UTC()
	if a.Concepts == nil {
		a.Concepts = []string{}
	}

	id, err := l.docs.Create(ctx, store.TableAttempts, quiz.AttemptDocument(a))
	if err != nil {
		return a, fmt.Errorf("append attempt: %w", err)
	}
	a.ID = id
	return a, nil
}

// ListByUser returns the user's attempts newest first. A non-positive
// limit returns all of them.
func (l *Ledger) ListByUser(ctx context.Context, userID string, limit int) ([]quiz.Attempt, error) {
	docs, err := l.docs.Query(ctx, store.TableAttempts, store.Filter{
		Equals: map[string]any{quiz.FieldUserID: userID},
		Limit:  limit,
		Order:  store.OrderNewest,
	})
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	out := make([]quiz.Attempt, 0, len(docs))
	for _, d := range docs {
		out = append(out, quiz.AttemptFromDocument(d))
	}
	return out, nil
}
