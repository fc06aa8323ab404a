package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Answer is one submitted choice
type Answer struct {
	QuestionID    string `json:"question_id" validate:"required"`
	SelectedIndex int    `json:"selected_index" validate:"min=0,max=3"`
}

// Answers is stored as a JSONB array
type Answers []Answer

// Value implements driver.Valuer
func (a Answers) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *Answers) Scan(src interface{}) error {
	return scanJSON(src, a)
}

// TopicScore counts correct answers out of total for one topic
type TopicScore struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// TopicBreakdown maps topic to its score; stored as a JSONB object
type TopicBreakdown map[string]TopicScore

// Value implements driver.Valuer
func (tb TopicBreakdown) Value() (driver.Value, error) {
	if tb == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(tb)
}

// Scan implements sql.Scanner
func (tb *TopicBreakdown) Scan(src interface{}) error {
	return scanJSON(src, tb)
}

// Totals sums correct and total across topics
func (tb TopicBreakdown) Totals() (correct, total int) {
	for _, s := range tb {
		correct += s.Correct
		total += s.Total
	}
	return correct, total
}

// Attempt is one completed submission. Immutable once written.
type Attempt struct {
	ID              string         `json:"id"`
	Date            string         `json:"date"`
	Subject         string         `json:"subject"`
	UserLabel       string         `json:"user_label"`
	AttemptNumber   int            `json:"attempt_number"`
	QuizVersion     int            `json:"quiz_version"`
	QuestionIDs     []string       `json:"question_ids"`
	Answers         Answers        `json:"answers"`
	Score           int            `json:"score"`
	TopicBreakdown  TopicBreakdown `json:"topic_breakdown"`
	SubmittedAt     time.Time      `json:"submitted_at"`
	DurationSeconds int            `json:"duration_seconds"`
	IPHash          string         `json:"-"`
}

// AnswerResult is the per-question feedback returned after a submission
type AnswerResult struct {
	QuestionID    string `json:"question_id"`
	SelectedIndex *int   `json:"selected_index"`
	CorrectIndex  int    `json:"correct_index"`
	IsCorrect     bool   `json:"is_correct"`
	Explanation   string `json:"explanation"`
}

// Submission is what the scorer hands back: the stored attempt and the questions it was graded against
type Submission struct {
	Attempt   *Attempt
	Questions []*Question
}

// Results derives per-question feedback in question order
func (s *Submission) Results() []AnswerResult {
	byID := make(map[string]int, len(s.Attempt.Answers))
	for _, a := range s.Attempt.Answers {
		if _, dup := byID[a.QuestionID]; !dup {
			byID[a.QuestionID] = a.SelectedIndex
		}
	}

	out := make([]AnswerResult, 0, len(s.Questions))
	for _, q := range s.Questions {
		r := AnswerResult{
			QuestionID:   q.ID,
			CorrectIndex: q.CorrectIndex,
			Explanation:  q.Explanation,
		}
		if sel, ok := byID[q.ID]; ok {
			sel := sel
			r.SelectedIndex = &sel
			r.IsCorrect = sel == q.CorrectIndex
		}
		out = append(out, r)
	}
	return out
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dst)
	}
}
