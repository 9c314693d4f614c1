// Package proficiency maintains a running EWMA estimate of how well a user
// knows each concept.
package proficiency

import (
	"context"
	"fmt"
	"time"

	"github.com/abhisek/quizloop/internal/quiz"
	"github.com/abhisek/quizloop/internal/store"
)

// DefaultAlpha is the smoothing weight given to the newest score.
const DefaultAlpha = 0.3

// NeutralScore is the average assumed for a user with no records.
const NeutralScore = 0.5

// Blend folds score into prev with smoothing weight alpha.
func Blend(prev, score, alpha float64) float64 {
	return alpha*score + (1-alpha)*prev
}

// Estimator reads and updates proficiency records.
type Estimator struct {
	docs  store.DocumentRepo
	locks *keyedMutex
	now   func() time.Time
}

func NewEstimator(docs store.DocumentRepo) *Estimator {
	return &Estimator{docs: docs, locks: newKeyedMutex(), now: time.Now}
}

// Update folds score into the (userID, concept) record, creating it with
// score as the seed on first use. Ranges are not validated here.
func (e *Estimator) Update(ctx context.Context, userID, concept string, score, alpha float64) (quiz.ProficiencyRecord, error) {
	unlock := e.locks.Lock(userID + "\x00" + concept)
	defer unlock()

	current, found, err := e.find(ctx, userID, concept)
	if err != nil {
		return quiz.ProficiencyRecord{}, err
	}
	now := e.now().UTC()

	if !found {
		rec := quiz.ProficiencyRecord{
			UserID:    userID,
			Concept:   concept,
			ScoreEWMA: score,
			UpdatedAt: now,
		}
		id, err := e.docs.Create(ctx, store.TableProficiency, quiz.ProficiencyDocument(rec))
		if err != nil {
			return quiz.ProficiencyRecord{}, fmt.Errorf("create proficiency %s/%s: %w", userID, concept, err)
		}
		rec.ID = id
		return rec, nil
	}

	current.ScoreEWMA = Blend(current.ScoreEWMA, score, alpha)
	current.UpdatedAt = now
	err = e.docs.Upsert(ctx, store.TableProficiency, store.Document{
		store.FieldID:       current.ID,
		quiz.FieldScoreEWMA: current.ScoreEWMA,
		quiz.FieldUpdatedAt: now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return quiz.ProficiencyRecord{}, fmt.Errorf("update proficiency %s/%s: %w", userID, concept, err)
	}
	return current, nil
}

func (e *Estimator) find(ctx context.Context, userID, concept string) (quiz.ProficiencyRecord, bool, error) {
	docs, err := e.docs.Query(ctx, store.TableProficiency, store.Filter{
		Equals: map[string]any{quiz.FieldUserID: userID, quiz.FieldConcept: concept},
		Limit:  1,
	})
	if err != nil {
		return quiz.ProficiencyRecord{}, false, fmt.Errorf("find proficiency %s/%s: %w", userID, concept, err)
	}
	if len(docs) == 0 {
		return quiz.ProficiencyRecord{}, false, nil
	}
	return quiz.ProficiencyFromDocument(docs[0]), true, nil
}

// Records returns all of the user's proficiency records in creation order.
func (e *Estimator) Records(ctx context.Context, userID string) ([]quiz.ProficiencyRecord, error) {
	docs, err := e.docs.Query(ctx, store.TableProficiency, store.Filter{
		Equals: map[string]any{quiz.FieldUserID: userID},
	})
	if err != nil {
		return nil, fmt.Errorf("list proficiency for %s: %w", userID, err)
	}
	out := make([]quiz.ProficiencyRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, quiz.ProficiencyFromDocument(d))
	}
	return out, nil
}

// Average returns the unweighted mean score across the user's records and
// how many records it covers. With no records it returns NeutralScore, 0.
func (e *Estimator) Average(ctx context.Context, userID string) (float64, int, error) {
	recs, err := e.Records(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	return Mean(recs), len(recs), nil
}

// Mean is the unweighted mean score of recs, or NeutralScore when empty.
func Mean(recs []quiz.ProficiencyRecord) float64 {
	if len(recs) == 0 {
		return NeutralScore
	}
	var sum float64
	for _, r := range recs {
		sum += r.ScoreEWMA
	}
	return sum / float64(len(recs))
}
