package models

import "time"

// QuestionStat accumulates a user's attempts on a single question
type QuestionStat struct {
	QuestionID      string    `json:"question_id"`
	UserLabel       string    `json:"user_label"`
	Attempts        int       `json:"attempts"`
	Correct         int       `json:"correct"`
	LastAttemptedAt time.Time `json:"last_attempted_at"`
}

// StatUpdate is one counter increment produced by a graded answer
type StatUpdate struct {
	QuestionID string
	UserLabel  string
	IsCorrect  bool
}
