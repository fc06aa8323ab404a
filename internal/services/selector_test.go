package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"dailyquiz/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHistory struct {
	recent IDSet
	today  IDSet
	err    error
	calls  int
}

func (h *stubHistory) RecentlyUsedIDs(context.Context, string, int) (IDSet, error) {
	h.calls++
	if h.err != nil {
		return nil, h.err
	}
	out := make(IDSet)
	out.Merge(h.recent)
	return out, nil
}

func (h *stubHistory) TodayAttemptIDs(context.Context, string) (IDSet, error) {
	return h.today, h.err
}

func assertNoDuplicates(t *testing.T, qs []*models.Question) {
	t.Helper()
	seen := make(IDSet)
	for _, q := range qs {
		require.False(t, seen.Has(q.ID), "duplicate id %s", q.ID)
		seen.Add(q.ID)
	}
}

func difficultyCount(qs []*models.Question, d models.Difficulty) int {
	return countDifficulty(qs, d)
}

func TestSelectQuestions_FullPoolReturnsSixWithOneHardBonus(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		picked := selectQuestions(widePool(4), nil, NewRandomizer(seed))

		require.Len(t, picked, QuizSize)
		assertNoDuplicates(t, picked)
		assert.Equal(t, 1, difficultyCount(picked, models.DifficultyHard))
		assert.Equal(t, models.DifficultyHard, picked[QuizSize-1].Difficulty, "bonus must be last")
		assert.Equal(t, EasyCount, difficultyCount(picked, models.DifficultyEasy))
		assert.Equal(t, MediumCount, difficultyCount(picked, models.DifficultyMedium))
	}
}

func TestSelectQuestions_BiologyPoolUsesEveryQuestion(t *testing.T) {
	picked := selectQuestions(biologyPool(), nil, NewRandomizer(7))

	require.Len(t, picked, 6)
	ids := NewIDSet(questionIDs(picked))
	for _, q := range biologyPool() {
		assert.True(t, ids.Has(q.ID), q.ID)
	}
	assert.Equal(t, "h1", picked[5].ID)
}

func TestSelectQuestions_GracefulShrinkage(t *testing.T) {
	pool := []*models.Question{
		newQuestion("a", "t1", models.DifficultyEasy),
		newQuestion("b", "t2", models.DifficultyEasy),
		newQuestion("c", "t3", models.DifficultyEasy),
		newQuestion("d", "t1", models.DifficultyEasy),
		newQuestion("e", "t2", models.DifficultyEasy),
	}

	for seed := int64(0); seed < 20; seed++ {
		picked := selectQuestions(pool, nil, NewRandomizer(seed))
		require.Len(t, picked, 5)
		assertNoDuplicates(t, picked)
		assert.Zero(t, difficultyCount(picked, models.DifficultyHard))
	}
}

func TestSelectQuestions_EmptyPool(t *testing.T) {
	picked := selectQuestions(nil, nil, NewRandomizer(1))
	assert.NotNil(t, picked)
	assert.Empty(t, picked)
}

func TestSelectQuestions_AvoidsExcludedWhenFreshAlternativesExist(t *testing.T) {
	pool := widePool(6)
	excluded := make(IDSet)
	// exclude half of every band; 3 fresh remain per band which covers 3 easy, 2 medium, 1 hard
	for _, q := range pool {
		var idx int
		_, _ = fmt.Sscanf(q.ID[len(q.ID)-1:], "%d", &idx)
		if idx < 3 {
			excluded.Add(q.ID)
		}
	}

	for seed := int64(0); seed < 50; seed++ {
		picked := selectQuestions(pool, excluded, NewRandomizer(seed))
		require.Len(t, picked, QuizSize)
		for _, q := range picked {
			assert.False(t, excluded.Has(q.ID), "seed %d picked excluded %s", seed, q.ID)
		}
	}
}

func TestSelectQuestions_BackfillsFromUsedWhenFreshRunsOut(t *testing.T) {
	pool := biologyPool()
	excluded := NewIDSet([]string{"e1", "e2", "m1", "h1"})

	picked := selectQuestions(pool, excluded, NewRandomizer(3))

	require.Len(t, picked, 6)
	assertNoDuplicates(t, picked)
	assert.Equal(t, "h1", picked[5].ID, "used hard question is the second bonus tier")
}

func TestSelectQuestions_BackfillsAnyNonHardWhenBandsShort(t *testing.T) {
	// only one medium exists so the fifth regular slot comes from the extra easy questions
	pool := []*models.Question{
		newQuestion("e1", "t1", models.DifficultyEasy),
		newQuestion("e2", "t2", models.DifficultyEasy),
		newQuestion("e3", "t3", models.DifficultyEasy),
		newQuestion("e4", "t4", models.DifficultyEasy),
		newQuestion("m1", "t5", models.DifficultyMedium),
		newQuestion("h1", "t6", models.DifficultyHard),
		newQuestion("h2", "t7", models.DifficultyHard),
	}

	for seed := int64(0); seed < 20; seed++ {
		picked := selectQuestions(pool, nil, NewRandomizer(seed))
		require.Len(t, picked, 6)
		assertNoDuplicates(t, picked)
		assert.Equal(t, 1, difficultyCount(picked, models.DifficultyHard))
		assert.Equal(t, 4, difficultyCount(picked, models.DifficultyEasy))
		assert.Equal(t, models.DifficultyHard, picked[5].Difficulty)
	}
}

func TestSelectQuestions_NoHardFallsBackToAnyRemaining(t *testing.T) {
	var pool []*models.Question
	for i := 0; i < 7; i++ {
		pool = append(pool, newQuestion(fmt.Sprintf("e%d", i), fmt.Sprintf("t%d", i), models.DifficultyEasy))
	}

	picked := selectQuestions(pool, nil, NewRandomizer(5))
	require.Len(t, picked, 6)
	assertNoDuplicates(t, picked)
}

func TestPickByTopic_SpreadsAcrossTopicsFirst(t *testing.T) {
	candidates := []*models.Question{
		newQuestion("a1", "alpha", models.DifficultyEasy),
		newQuestion("a2", "alpha", models.DifficultyEasy),
		newQuestion("a3", "alpha", models.DifficultyEasy),
		newQuestion("b1", "beta", models.DifficultyEasy),
		newQuestion("c1", "gamma", models.DifficultyEasy),
	}

	for seed := int64(0); seed < 30; seed++ {
		picked := pickByTopic(candidates, 3, make(IDSet), NewRandomizer(seed))
		require.Len(t, picked, 3)
		topics := make(map[string]bool)
		for _, q := range picked {
			topics[q.Topic] = true
		}
		assert.Len(t, topics, 3, "three topics exist so three picks must cover all of them")
	}
}

func TestPickByTopic_FillsFromLeftoversAndSkipsChosen(t *testing.T) {
	candidates := []*models.Question{
		newQuestion("a1", "alpha", models.DifficultyEasy),
		newQuestion("a2", "alpha", models.DifficultyEasy),
		newQuestion("a3", "alpha", models.DifficultyEasy),
		newQuestion("b1", "beta", models.DifficultyEasy),
	}
	chosen := NewIDSet([]string{"a1"})

	picked := pickByTopic(candidates, 5, chosen, NewRandomizer(9))

	require.Len(t, picked, 3)
	assertNoDuplicates(t, picked)
	for _, q := range picked {
		assert.NotEqual(t, "a1", q.ID)
	}
	assert.Empty(t, pickByTopic(candidates, 0, nil, NewRandomizer(1)))
}

func TestSelector_SelectMergesRecentUsage(t *testing.T) {
	pool := widePool(2)
	repo := newMemQuestionRepo(pool...)
	// the first question of every band was used recently
	history := &stubHistory{recent: NewIDSet([]string{"easy-0", "medium-0", "hard-0"})}
	s := NewSelector(repo, history, 7, NewRandomizer(11), testLogger())

	picked, err := s.Select(context.Background(), "biology", NewIDSet([]string{"easy-1"}))
	require.NoError(t, err)
	// only two easy questions exist, so the quiz is one short
	require.Len(t, picked, QuizSize-1)

	ids := NewIDSet(questionIDs(picked))
	assert.True(t, ids.Has("medium-1"))
	assert.True(t, ids.Has("hard-1"))
	assert.Equal(t, "hard-1", picked[len(picked)-1].ID)
	assert.Equal(t, 1, history.calls)
}

func TestSelector_EmptyPoolSkipsHistory(t *testing.T) {
	history := &stubHistory{}
	s := NewSelector(newMemQuestionRepo(), history, 0, nil, testLogger())

	picked, err := s.Select(context.Background(), "biology", nil)
	require.NoError(t, err)
	assert.Empty(t, picked)
	assert.Zero(t, history.calls)
}

func TestSelector_PropagatesStoreErrors(t *testing.T) {
	repo := newMemQuestionRepo(widePool(1)...)
	history := &stubHistory{err: errors.New("history down")}
	s := NewSelector(repo, history, 7, NewRandomizer(1), testLogger())

	_, err := s.Select(context.Background(), "biology", nil)
	require.Error(t, err)

	repo.fetchErr = errors.New("bank down")
	_, err = s.Select(context.Background(), "biology", nil)
	require.EqualError(t, err, "bank down")
}
