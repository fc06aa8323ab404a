package services

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"dailyquiz/internal/config"
	"dailyquiz/internal/models"
	"dailyquiz/internal/observability"
)

// Selection policy: 3 easy + 2 medium regular questions, then 1 hard bonus
const (
	EasyCount    = 3
	MediumCount  = 2
	RegularCount = EasyCount + MediumCount
	QuizSize     = RegularCount + 1
)

// QuestionSelector picks the questions for a new assignment
type QuestionSelector interface {
	// Select returns up to QuizSize questions for subject. An empty result is not an error.
	Select(ctx context.Context, subject string, exclude IDSet) ([]*models.Question, error)
}

// Randomizer is the source of randomness used by the selector. Safe for concurrent use.
type Randomizer interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandomizer returns a goroutine-safe Randomizer seeded with seed
func NewRandomizer(seed int64) Randomizer {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *lockedRand) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.Shuffle(n, swap)
}

// Selector implements stratified, topic-diverse selection with recency exclusion
type Selector struct {
	questions    QuestionRepository
	history      UsageHistoryReader
	lookbackDays int
	rng          Randomizer
	logger       *observability.Logger
}

// NewSelector creates a Selector. A nil rng seeds one from the clock and lookbackDays <= 0 uses the default window.
func NewSelector(questions QuestionRepository, history UsageHistoryReader, lookbackDays int, rng Randomizer, logger *observability.Logger) *Selector {
	if lookbackDays <= 0 {
		lookbackDays = config.DefaultRepeatAvoidDays
	}
	if rng == nil {
		rng = NewRandomizer(time.Now().UnixNano())
	}
	return &Selector{
		questions:    questions,
		history:      history,
		lookbackDays: lookbackDays,
		rng:          rng,
		logger:       logger,
	}
}

// Select loads the active pool, merges recent usage into exclude and picks the quiz
func (s *Selector) Select(ctx context.Context, subject string, exclude IDSet) (result0 []*models.Question, err error) {
	ctx, span := observability.TraceSelectionFunction(ctx, "Select",
		observability.AttributeSubject(subject),
		observability.AttributeCount("exclude", len(exclude)),
	)
	defer observability.FinishSpan(span, &err)

	pool, err := s.questions.FetchActive(ctx, subject)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		s.logger.Warn(ctx, "No active questions for subject", map[string]interface{}{"subject": subject})
		return []*models.Question{}, nil
	}

	excluded, err := s.history.RecentlyUsedIDs(ctx, subject, s.lookbackDays)
	if err != nil {
		return nil, err
	}
	if excluded == nil {
		excluded = make(IDSet)
	}
	excluded.Merge(exclude)

	picked := selectQuestions(pool, excluded, s.rng)

	span.SetAttributes(
		observability.AttributeCount("pool", len(pool)),
		observability.AttributeCount("excluded", len(excluded)),
		observability.AttributeCount("selected", len(picked)),
	)
	s.logger.Debug(ctx, "Questions selected", map[string]interface{}{
		"subject":  subject,
		"pool":     len(pool),
		"excluded": len(excluded),
		"selected": len(picked),
	})
	return picked, nil
}

// buckets splits a pool by freshness and difficulty
type buckets struct {
	fresh map[models.Difficulty][]*models.Question
	used  map[models.Difficulty][]*models.Question
}

func partition(pool []*models.Question, excluded IDSet) buckets {
	b := buckets{
		fresh: make(map[models.Difficulty][]*models.Question),
		used:  make(map[models.Difficulty][]*models.Question),
	}
	for _, q := range pool {
		if excluded.Has(q.ID) {
			b.used[q.Difficulty] = append(b.used[q.Difficulty], q)
		} else {
			b.fresh[q.Difficulty] = append(b.fresh[q.Difficulty], q)
		}
	}
	return b
}

// selectQuestions is the pure selection step: 5 shuffled regular questions followed by one bonus.
// It never returns duplicates and never fails; a short pool yields a short quiz.
func selectQuestions(pool []*models.Question, excluded IDSet, rng Randomizer) []*models.Question {
	if len(pool) == 0 {
		return []*models.Question{}
	}

	b := partition(pool, excluded)
	chosen := make(IDSet, QuizSize)
	regular := make([]*models.Question, 0, QuizSize)

	take := func(candidates []*models.Question, count int) {
		for _, q := range pickByTopic(candidates, count, chosen, rng) {
			chosen.Add(q.ID)
			regular = append(regular, q)
		}
	}

	take(b.fresh[models.DifficultyEasy], EasyCount)
	take(b.used[models.DifficultyEasy], EasyCount-countDifficulty(regular, models.DifficultyEasy))

	take(b.fresh[models.DifficultyMedium], MediumCount)
	take(b.used[models.DifficultyMedium], MediumCount-countDifficulty(regular, models.DifficultyMedium))

	if len(regular) < RegularCount {
		var nonHard []*models.Question
		for _, q := range pool {
			if q.Difficulty != models.DifficultyHard {
				nonHard = append(nonHard, q)
			}
		}
		take(nonHard, RegularCount-len(regular))
	}

	rng.Shuffle(len(regular), func(i, j int) { regular[i], regular[j] = regular[j], regular[i] })

	bonus := pickBonus(b, pool, chosen, rng)
	if bonus != nil {
		regular = append(regular, bonus)
	}
	return regular
}

// pickBonus returns a fresh hard question, else a used one, else any hard one not yet chosen.
// With no hard question left it falls back to any remaining question so the quiz can still fill up.
func pickBonus(b buckets, pool []*models.Question, chosen IDSet, rng Randomizer) *models.Question {
	tiers := [][]*models.Question{
		b.fresh[models.DifficultyHard],
		b.used[models.DifficultyHard],
		filter(pool, func(q *models.Question) bool { return q.Difficulty == models.DifficultyHard }),
		pool,
	}
	for _, tier := range tiers {
		if q := pickOne(tier, chosen, rng); q != nil {
			return q
		}
	}
	return nil
}

// pickByTopic takes up to count candidates not already chosen, one per topic in random topic order
// first, then fills from the shuffled leftovers
func pickByTopic(candidates []*models.Question, count int, chosen IDSet, rng Randomizer) []*models.Question {
	if count <= 0 {
		return nil
	}

	byTopic := make(map[string][]*models.Question)
	var topics []string
	for _, q := range candidates {
		if chosen.Has(q.ID) {
			continue
		}
		if _, seen := byTopic[q.Topic]; !seen {
			topics = append(topics, q.Topic)
		}
		byTopic[q.Topic] = append(byTopic[q.Topic], q)
	}
	rng.Shuffle(len(topics), func(i, j int) { topics[i], topics[j] = topics[j], topics[i] })

	picked := make([]*models.Question, 0, count)
	taken := make(IDSet, count)
	for _, topic := range topics {
		if len(picked) == count {
			break
		}
		group := byTopic[topic]
		q := group[rng.Intn(len(group))]
		picked = append(picked, q)
		taken.Add(q.ID)
	}

	if len(picked) < count {
		var rest []*models.Question
		for _, topic := range topics {
			for _, q := range byTopic[topic] {
				if !taken.Has(q.ID) {
					rest = append(rest, q)
				}
			}
		}
		rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
		for _, q := range rest {
			if len(picked) == count {
				break
			}
			if taken.Has(q.ID) {
				continue
			}
			picked = append(picked, q)
			taken.Add(q.ID)
		}
	}
	return picked
}

func pickOne(candidates []*models.Question, chosen IDSet, rng Randomizer) *models.Question {
	open := filter(candidates, func(q *models.Question) bool { return !chosen.Has(q.ID) })
	if len(open) == 0 {
		return nil
	}
	return open[rng.Intn(len(open))]
}

func filter(qs []*models.Question, keep func(*models.Question) bool) []*models.Question {
	var out []*models.Question
	for _, q := range qs {
		if keep(q) {
			out = append(out, q)
		}
	}
	return out
}

func countDifficulty(qs []*models.Question, d models.Difficulty) int {
	n := 0
	for _, q := range qs {
		if q.Difficulty == d {
			n++
		}
	}
	return n
}
