package services

import (
	"fmt"

	contextutils "dailyquiz/internal/utils"
)

// NoQuizAvailableError is returned when a subject's assignment for the day has no questions.
type NoQuizAvailableError struct {
	Subject string
	Date    string
}

func (e *NoQuizAvailableError) Error() string {
	return fmt.Sprintf("no quiz available (subject=%s date=%s): the question bank is being revised", e.Subject, e.Date)
}

// Unwrap allows errors.Is(..., contextutils.ErrNoQuizAvailable) to work.
func (e *NoQuizAvailableError) Unwrap() error {
	return contextutils.ErrNoQuizAvailable
}

// NoQuizMessage is shown to quiz takers when a subject has nothing to serve.
const NoQuizMessage = "The question bank for this subject is being revised. Please check back later."
