// Package models defines data structures used throughout the daily quiz engine.
package models

import (
	"strings"
	"time"
)

// OptionCount is the number of answer options every question carries
const OptionCount = 4

// Difficulty is the question difficulty band
type Difficulty int

// Difficulty bands
const (
	DifficultyEasy   Difficulty = 1
	DifficultyMedium Difficulty = 2
	DifficultyHard   Difficulty = 3
)

// IsValid reports whether d is one of the three bands
func (d Difficulty) IsValid() bool {
	return d >= DifficultyEasy && d <= DifficultyHard
}

// String returns the band name
func (d Difficulty) String() string {
	switch d {
	case DifficultyEasy:
		return "easy"
	case DifficultyMedium:
		return "medium"
	case DifficultyHard:
		return "hard"
	default:
		return "unknown"
	}
}

// Question represents a multiple-choice question in the bank
type Question struct {
	ID           string     `json:"id" yaml:"id"`
	Stem         string     `json:"stem" yaml:"stem"`
	Options      []string   `json:"options" yaml:"options"`
	CorrectIndex int        `json:"correct_index" yaml:"correct_index"`
	Explanation  string     `json:"explanation" yaml:"explanation"`
	Topic        string     `json:"topic" yaml:"topic"`
	Subject      string     `json:"subject" yaml:"subject"`
	Difficulty   Difficulty `json:"difficulty" yaml:"difficulty"`
	Active       bool       `json:"active" yaml:"active"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
}

// HasValidShape checks the option count and answer index bounds
func (q *Question) HasValidShape() bool {
	return len(q.Options) == OptionCount && q.CorrectIndex >= 0 && q.CorrectIndex < OptionCount
}

// QuizQuestion is the quiz-taker view of a question: no answer, no explanation
type QuizQuestion struct {
	ID         string     `json:"id"`
	Stem       string     `json:"stem"`
	Options    []string   `json:"options"`
	Topic      string     `json:"topic"`
	Difficulty Difficulty `json:"difficulty"`
}

// QuizView strips the answer key from q
func (q *Question) QuizView() QuizQuestion {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return QuizQuestion{
		ID:         q.ID,
		Stem:       q.Stem,
		Options:    opts,
		Topic:      q.Topic,
		Difficulty: q.Difficulty,
	}
}

// QuizViews converts a slice of questions to quiz-taker views
func QuizViews(questions []*Question) []QuizQuestion {
	out := make([]QuizQuestion, 0, len(questions))
	for _, q := range questions {
		out = append(out, q.QuizView())
	}
	return out
}

// QuestionInput is the admin payload for creating or updating a question
type QuestionInput struct {
	Stem         string   `json:"stem" yaml:"stem" validate:"required"`
	Options      []string `json:"options" yaml:"options" validate:"len=4,dive,required"`
	CorrectIndex *int     `json:"correct_index" yaml:"correct_index" validate:"required,min=0,max=3"`
	Explanation  string   `json:"explanation" yaml:"explanation"`
	Topic        string   `json:"topic" yaml:"topic" validate:"required"`
	Subject      string   `json:"subject" yaml:"subject" validate:"required"`
	Difficulty   int      `json:"difficulty" yaml:"difficulty" validate:"required,min=1,max=3"`
	// Active defaults to true when omitted
	Active *bool `json:"active,omitempty" yaml:"active,omitempty"`
	// CreatedAt is optional on import; accepts any value NormalizeTimestamp understands
	CreatedAt interface{} `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// ToQuestion builds a Question from the input. id and now fill the identity and default creation time.
func (in *QuestionInput) ToQuestion(id string, now time.Time) *Question {
	q := &Question{
		ID:          id,
		Stem:        strings.TrimSpace(in.Stem),
		Options:     append([]string(nil), in.Options...),
		Explanation: in.Explanation,
		Topic:       strings.TrimSpace(in.Topic),
		Subject:     strings.ToLower(strings.TrimSpace(in.Subject)),
		Difficulty:  Difficulty(in.Difficulty),
		Active:      true,
		CreatedAt:   now,
	}
	if in.CorrectIndex != nil {
		q.CorrectIndex = *in.CorrectIndex
	}
	if in.Active != nil {
		q.Active = *in.Active
	}
	if ts, ok := NormalizeTimestamp(in.CreatedAt); ok {
		q.CreatedAt = ts
	}
	return q
}
