package models

import "time"

// DailyAssignment is the persisted set of question ids that make up one day's quiz for a subject.
// Only the current version is stored; a retry overwrites it.
type DailyAssignment struct {
	Date        string `json:"date"`
	Subject     string `json:"subject"`
	QuizVersion int    `json:"quiz_version"`
	// GeneratedAt is nil for legacy rows written without a timestamp
	GeneratedAt *time.Time `json:"generated_at"`
	QuestionIDs []string   `json:"question_ids"`
}

// AssignmentKey builds the composite "{date}-{subject}" key
func AssignmentKey(date, subject string) string {
	return date + "-" + subject
}

// Key returns the assignment's composite key
func (a *DailyAssignment) Key() string {
	return AssignmentKey(a.Date, a.Subject)
}

// GeneratedAtOr returns GeneratedAt, or fallback when it is missing. The fallback is display-only.
func (a *DailyAssignment) GeneratedAtOr(fallback time.Time) time.Time {
	if a.GeneratedAt == nil || a.GeneratedAt.IsZero() {
		return fallback
	}
	return *a.GeneratedAt
}

// Contains reports whether id is part of the assignment
func (a *DailyAssignment) Contains(id string) bool {
	for _, qid := range a.QuestionIDs {
		if qid == id {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the assignment has no questions
func (a *DailyAssignment) IsEmpty() bool {
	return len(a.QuestionIDs) == 0
}

// Clone returns a deep copy
func (a *DailyAssignment) Clone() *DailyAssignment {
	if a == nil {
		return nil
	}
	c := *a
	c.QuestionIDs = append([]string(nil), a.QuestionIDs...)
	if a.GeneratedAt != nil {
		t := *a.GeneratedAt
		c.GeneratedAt = &t
	}
	return &c
}

// DailyQuiz is an assignment resolved to full question bodies
type DailyQuiz struct {
	Assignment *DailyAssignment
	// Questions may be shorter than Assignment.QuestionIDs when ids no longer resolve
	Questions []*Question
}

// Preview is the admin view of tomorrow's assignment
type Preview struct {
	Date      string      `json:"date"`
	Subject   string      `json:"subject"`
	Questions []*Question `json:"questions"`
}
