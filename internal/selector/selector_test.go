package selector

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/abhisek/quizloop/internal/proficiency"
	"github.com/abhisek/quizloop/internal/question"
	"github.com/abhisek/quizloop/internal/quiz"
	"github.com/abhisek/quizloop/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	docs      *store.MemoryRepo
	prof      *proficiency.Estimator
	questions *question.Repo
	sel       *Selector
}

func newFixture(t *testing.T, seed uint64) *fixture {
	t.Helper()
	docs := store.NewMemoryRepo()
	f := &fixture{
		docs:      docs,
		prof:      proficiency.NewEstimator(docs),
		questions: question.NewRepo(docs),
	}
	f.sel = New(f.prof, f.questions, WithRand(rand.New(rand.NewPCG(seed, seed))))
	return f
}

func (f *fixture) addQuestion(t *testing.T, text string, d quiz.Difficulty, scope string) {
	t.Helper()
	_, err := f.questions.Save(context.Background(), question.Fields{QuestionText: text, Difficulty: d}, scope)
	require.NoError(t, err)
}

func (f *fixture) setProficiency(t *testing.T, user string, scores map[string]float64) {
	t.Helper()
	for concept, s := range scores {
		_, err := f.prof.Update(context.Background(), user, concept, s, proficiency.DefaultAlpha)
		require.NoError(t, err)
	}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		avg  float64
		want quiz.Difficulty
	}{
		{0, quiz.Easy},
		{0.44999, quiz.Easy},
		{0.45, quiz.Medium},
		{0.5, quiz.Medium},
		{0.65, quiz.Medium},
		{0.65001, quiz.Hard},
		{1, quiz.Hard},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierFor(tt.avg), "avg %v", tt.avg)
	}
}

func TestTierForMonotonic(t *testing.T) {
	rank := map[quiz.Difficulty]int{quiz.Easy: 0, quiz.Medium: 1, quiz.Hard: 2}
	prev := TierFor(0)
	for i := 1; i <= 1000; i++ {
		cur := TierFor(float64(i) / 1000)
		assert.GreaterOrEqual(t, rank[cur], rank[prev])
		prev = cur
	}
}

func TestSelectNext_NoDataPicksMedium(t *testing.T) {
	f := newFixture(t, 1)
	f.addQuestion(t, "easy", quiz.Easy, "")
	f.addQuestion(t, "medium", quiz.Medium, "")
	f.addQuestion(t, "hard", quiz.Hard, "")

	q, err := f.sel.SelectNext(context.Background(), "new-user", "")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, quiz.Medium, q.Difficulty)
}

func TestSelectNext_TierFollowsAverage(t *testing.T) {
	tests := []struct {
		name   string
		scores map[string]float64
		want   quiz.Difficulty
	}{
		{"struggling", map[string]float64{"a": 0.1, "b": 0.3}, quiz.Easy},
		{"boundary low", map[string]float64{"a": 0.45}, quiz.Medium},
		{"boundary high", map[string]float64{"a": 0.65}, quiz.Medium},
		{"strong", map[string]float64{"a": 0.9, "b": 0.7}, quiz.Hard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 2)
			for _, d := range quiz.Difficulties {
				f.addQuestion(t, string(d)+"-1", d, "")
				f.addQuestion(t, string(d)+"-2", d, "")
			}
			f.setProficiency(t, "u", tt.scores)

			for i := 0; i < 10; i++ {
				q, err := f.sel.SelectNext(context.Background(), "u", "")
				require.NoError(t, err)
				require.NotNil(t, q)
				assert.Equal(t, tt.want, q.Difficulty)
			}
		})
	}
}

func TestSelectNext_ScopeFilter(t *testing.T) {
	f := newFixture(t, 3)
	f.addQuestion(t, "in scope", quiz.Medium, "nb-1")
	f.addQuestion(t, "other scope", quiz.Medium, "nb-2")

	for i := 0; i < 10; i++ {
		q, err := f.sel.SelectNext(context.Background(), "u", "nb-1")
		require.NoError(t, err)
		require.NotNil(t, q)
		assert.Equal(t, "in scope", q.QuestionText)
	}
}

func TestSelectNext_FallbackIgnoresTierAndScope(t *testing.T) {
	f := newFixture(t, 4)
	f.addQuestion(t, "only hard, other scope", quiz.Hard, "nb-9")
	f.setProficiency(t, "u", map[string]float64{"a": 0.1})

	q, err := f.sel.SelectNext(context.Background(), "u", "nb-1")
	require.NoError(t, err)
	require.NotNil(t, q, "fallback must return a question whenever the bank is non-empty")
	assert.Equal(t, "only hard, other scope", q.QuestionText)
}

func TestSelectNext_EmptyBank(t *testing.T) {
	f := newFixture(t, 5)
	q, err := f.sel.SelectNext(context.Background(), "u", "")
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestSelectNext_DoesNotMutate(t *testing.T) {
	f := newFixture(t, 6)
	f.addQuestion(t, "q", quiz.Easy, "")
	f.setProficiency(t, "u", map[string]float64{"a": 0.2})
	ctx := context.Background()

	before, err := f.prof.Records(ctx, "u")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := f.sel.SelectNext(ctx, "u", "")
		require.NoError(t, err)
	}
	after, err := f.prof.Records(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	attempts, err := f.docs.Query(ctx, store.TableAttempts, store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, attempts)
}

func TestSelectNext_UniformOverCandidates(t *testing.T) {
	f := newFixture(t, 7)
	for _, text := range []string{"a", "b", "c", "d"} {
		f.addQuestion(t, text, quiz.Medium, "")
	}

	seen := map[string]int{}
	for i := 0; i < 400; i++ {
		q, err := f.sel.SelectNext(context.Background(), "u", "")
		require.NoError(t, err)
		seen[q.QuestionText]++
	}
	require.Len(t, seen, 4)
	for text, n := range seen {
		assert.Greater(t, n, 50, "candidate %q picked too rarely", text)
	}
}

func TestSelectNext_CandidateLimit(t *testing.T) {
	f := newFixture(t, 8)
	for i := 0; i < CandidateLimit+5; i++ {
		f.addQuestion(t, string(rune('A'+i)), quiz.Medium, "")
	}
	late := map[string]bool{}
	for i := CandidateLimit; i < CandidateLimit+5; i++ {
		late[string(rune('A'+i))] = true
	}
	for i := 0; i < 200; i++ {
		q, err := f.sel.SelectNext(context.Background(), "u", "")
		require.NoError(t, err)
		assert.False(t, late[q.QuestionText], "picked a question beyond the candidate window")
	}
}

type failingQuerier struct{ err error }

func (f failingQuerier) Query(context.Context, question.Filter) ([]quiz.Question, error) {
	return nil, f.err
}

type fixedAverager struct {
	avg float64
	err error
}

func (f fixedAverager) Average(context.Context, string) (float64, int, error) {
	return f.avg, 1, f.err
}

func TestSelectNext_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("store down")

	_, err := New(fixedAverager{err: boom}, failingQuerier{}).SelectNext(context.Background(), "u", "")
	assert.ErrorIs(t, err, boom)

	_, err = New(fixedAverager{avg: 0.5}, failingQuerier{err: boom}).SelectNext(context.Background(), "u", "")
	assert.ErrorIs(t, err, boom)
}
