package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dailyquiz/internal/config"
	"dailyquiz/internal/models"
	"dailyquiz/internal/observability"
	contextutils "dailyquiz/internal/utils"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

// testNow is 2025-03-14 10:00 UTC
var testNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func newQuestion(id, topic string, d models.Difficulty) *models.Question {
	return &models.Question{
		ID:           id,
		Stem:         "Stem " + id,
		Options:      []string{"a", "b", "c", "d"},
		CorrectIndex: len(id) % models.OptionCount,
		Explanation:  "Because " + id,
		Topic:        topic,
		Subject:      "biology",
		Difficulty:   d,
		Active:       true,
		CreatedAt:    testNow.Add(-24 * time.Hour),
	}
}

// biologyPool is 3 easy questions across 3 topics, 2 medium across 2 topics and 1 hard
func biologyPool() []*models.Question {
	return []*models.Question{
		newQuestion("e1", "cells", models.DifficultyEasy),
		newQuestion("e2", "genetics", models.DifficultyEasy),
		newQuestion("e3", "ecology", models.DifficultyEasy),
		newQuestion("m1", "evolution", models.DifficultyMedium),
		newQuestion("m2", "anatomy", models.DifficultyMedium),
		newQuestion("h1", "biochemistry", models.DifficultyHard),
	}
}

// widePool has n questions per band, each on its own topic
func widePool(n int) []*models.Question {
	var qs []*models.Question
	for _, d := range []models.Difficulty{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard} {
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("%s-%d", d, i)
			qs = append(qs, newQuestion(id, fmt.Sprintf("%s-topic-%d", d, i), d))
		}
	}
	return qs
}

type memQuestionRepo struct {
	mu        sync.Mutex
	questions map[string]*models.Question
	order     []string
	fetchErr  error
}

func newMemQuestionRepo(qs ...*models.Question) *memQuestionRepo {
	r := &memQuestionRepo{questions: make(map[string]*models.Question)}
	for _, q := range qs {
		r.questions[q.ID] = q
		r.order = append(r.order, q.ID)
	}
	return r
}

func (r *memQuestionRepo) FetchActive(_ context.Context, subject string) ([]*models.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	out := []*models.Question{}
	for _, id := range r.order {
		q := r.questions[id]
		if q.Active && (subject == "" || q.Subject == subject) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *memQuestionRepo) FetchByIDs(_ context.Context, ids []string) ([]*models.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Question{}
	for _, id := range ids {
		if q, ok := r.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *memQuestionRepo) FetchByID(_ context.Context, id string) (*models.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.questions[id], nil
}

func (r *memQuestionRepo) List(ctx context.Context, subject string, includeInactive bool) ([]*models.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Question{}
	for _, id := range r.order {
		q := r.questions[id]
		if (subject == "" || q.Subject == subject) && (includeInactive || q.Active) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *memQuestionRepo) Add(_ context.Context, q *models.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.questions[q.ID]; ok {
		return contextutils.ErrRecordExists
	}
	r.questions[q.ID] = q
	r.order = append(r.order, q.ID)
	return nil
}

func (r *memQuestionRepo) Update(_ context.Context, q *models.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.questions[q.ID]; !ok {
		return questionNotFound(q.ID)
	}
	r.questions[q.ID] = q
	return nil
}

func (r *memQuestionRepo) Deactivate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok {
		return questionNotFound(id)
	}
	q.Active = false
	return nil
}

// remove simulates a hard delete
func (r *memQuestionRepo) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.questions, id)
}

type memAssignmentRepo struct {
	mu      sync.Mutex
	records map[string]*models.DailyAssignment
	inserts int
	upserts int
	getErr  error
}

func newMemAssignmentRepo() *memAssignmentRepo {
	return &memAssignmentRepo{records: make(map[string]*models.DailyAssignment)}
}

func (r *memAssignmentRepo) Get(_ context.Context, date, subject string) (*models.DailyAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	if a, ok := r.records[models.AssignmentKey(date, subject)]; ok {
		return a.Clone(), nil
	}
	return nil, nil
}

func (r *memAssignmentRepo) CreateIfAbsent(_ context.Context, a *models.DailyAssignment) (*models.DailyAssignment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.records[a.Key()]; ok {
		return existing.Clone(), false, nil
	}
	r.records[a.Key()] = a.Clone()
	r.inserts++
	return a.Clone(), true, nil
}

func (r *memAssignmentRepo) Upsert(_ context.Context, a *models.DailyAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[a.Key()] = a.Clone()
	r.upserts++
	return nil
}

func (r *memAssignmentRepo) ListRange(_ context.Context, subject, start, end string) ([]*models.DailyAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.DailyAssignment{}
	for _, a := range r.records {
		if a.Subject == subject && a.Date >= start && a.Date <= end {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (r *memAssignmentRepo) put(a *models.DailyAssignment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[a.Key()] = a.Clone()
}

func (r *memAssignmentRepo) stored(date, subject string) *models.DailyAssignment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[models.AssignmentKey(date, subject)]
}

type memAttemptRepo struct {
	mu        sync.Mutex
	attempts  []*models.Attempt
	createErr error
}

func (r *memAttemptRepo) CountForUser(_ context.Context, userLabel, subject, date string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.attempts {
		if a.UserLabel == userLabel && a.Subject == subject && a.Date == date {
			n++
		}
	}
	return n, nil
}

func (r *memAttemptRepo) Create(_ context.Context, a *models.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.attempts = append(r.attempts, a)
	return nil
}

func (r *memAttemptRepo) QuestionIDsForDate(_ context.Context, subject, date string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := make(IDSet)
	for _, a := range r.attempts {
		if a.Subject == subject && a.Date == date {
			set.AddAll(a.QuestionIDs)
		}
	}
	return set.Sorted(), nil
}

func (r *memAttemptRepo) ListForUser(_ context.Context, userLabel, subject, date string) ([]*models.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Attempt{}
	for _, a := range r.attempts {
		if a.UserLabel == userLabel && a.Subject == subject && a.Date == date {
			out = append(out, a)
		}
	}
	return out, nil
}

type statKey struct{ questionID, userLabel string }

type memStatsRecorder struct {
	mu      sync.Mutex
	stats   map[statKey]*models.QuestionStat
	batches int
}

func newMemStatsRecorder() *memStatsRecorder {
	return &memStatsRecorder{stats: make(map[statKey]*models.QuestionStat)}
}

func (r *memStatsRecorder) Record(_ context.Context, updates []models.StatUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches++
	for _, u := range updates {
		k := statKey{u.QuestionID, u.UserLabel}
		s, ok := r.stats[k]
		if !ok {
			s = &models.QuestionStat{QuestionID: u.QuestionID, UserLabel: u.UserLabel}
			r.stats[k] = s
		}
		s.Attempts++
		if u.IsCorrect {
			s.Correct++
		}
	}
	return nil
}

func (r *memStatsRecorder) ListForUser(_ context.Context, userLabel string) ([]*models.QuestionStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.QuestionStat{}
	for k, s := range r.stats {
		if k.userLabel == userLabel {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memStatsRecorder) DeleteForUser(_ context.Context, userLabel string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k := range r.stats {
		if k.userLabel == userLabel {
			delete(r.stats, k)
			n++
		}
	}
	return n, nil
}

func (r *memStatsRecorder) get(questionID, userLabel string) *models.QuestionStat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats[statKey{questionID, userLabel}]
}

// memCache is an AssignmentCache with SETNX semantics on Fill
type memCache struct {
	mu      sync.Mutex
	entries map[string]*models.DailyAssignment
	hits    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*models.DailyAssignment)}
}

func (c *memCache) Get(_ context.Context, date, subject string) (*models.DailyAssignment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.entries[models.AssignmentKey(date, subject)]
	if ok {
		c.hits++
		return a.Clone(), true
	}
	return nil, false
}

func (c *memCache) Fill(_ context.Context, a *models.DailyAssignment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[a.Key()]; !ok {
		c.entries[a.Key()] = a.Clone()
	}
}

func (c *memCache) Put(_ context.Context, a *models.DailyAssignment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[a.Key()] = a.Clone()
}

func (c *memCache) Close() error { return nil }

// engine bundles the services wired over in-memory stores
type engine struct {
	clock       *contextutils.FixedClock
	day         *contextutils.Day
	questions   *memQuestionRepo
	assignments *memAssignmentRepo
	attempts    *memAttemptRepo
	stats       *memStatsRecorder
	quiz        *DailyQuizService
	submissions *SubmissionService
}

func newEngine(cache AssignmentCache, qs ...*models.Question) *engine {
	e := &engine{
		clock:       contextutils.NewFixedClock(testNow),
		questions:   newMemQuestionRepo(qs...),
		assignments: newMemAssignmentRepo(),
		attempts:    &memAttemptRepo{},
		stats:       newMemStatsRecorder(),
	}
	e.day = contextutils.NewDay(e.clock, time.UTC)
	logger := testLogger()
	history := NewUsageHistory(e.assignments, e.attempts, e.day)
	selector := NewSelector(e.questions, history, config.DefaultRepeatAvoidDays, NewRandomizer(42), logger)
	e.quiz = NewDailyQuizService(e.assignments, e.questions, history, selector, cache, e.day,
		[]string{"biology", "physics"}, logger, nil)
	e.submissions = NewSubmissionService(e.quiz, e.questions, e.attempts, e.stats, e.day, "salt", logger, nil)
	return e
}

func correctAnswers(qs []*models.Question) []models.Answer {
	out := make([]models.Answer, 0, len(qs))
	for _, q := range qs {
		out = append(out, models.Answer{QuestionID: q.ID, SelectedIndex: q.CorrectIndex})
	}
	return out
}

func wrongIndex(q *models.Question) int {
	return (q.CorrectIndex + 1) % models.OptionCount
}
