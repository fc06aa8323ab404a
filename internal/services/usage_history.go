package services

import (
	"context"

	"dailyquiz/internal/observability"
	contextutils "dailyquiz/internal/utils"
)

// UsageHistoryReader answers which questions a subject has used recently
type UsageHistoryReader interface {
	// RecentlyUsedIDs is the union of every assignment in the last lookbackDays days
	// (today included) and every question answered today.
	RecentlyUsedIDs(ctx context.Context, subject string, lookbackDays int) (IDSet, error)
	// TodayAttemptIDs is the set of question ids answered today.
	TodayAttemptIDs(ctx context.Context, subject string) (IDSet, error)
}

// UsageHistory reads usage from the assignment and attempt stores
type UsageHistory struct {
	assignments AssignmentRepository
	attempts    AttemptRepository
	day         *contextutils.Day
}

// NewUsageHistory creates a new UsageHistory
func NewUsageHistory(assignments AssignmentRepository, attempts AttemptRepository, day *contextutils.Day) *UsageHistory {
	return &UsageHistory{assignments: assignments, attempts: attempts, day: day}
}

// RecentlyUsedIDs collects recent assignment and attempt ids. Days without an assignment are skipped.
func (h *UsageHistory) RecentlyUsedIDs(ctx context.Context, subject string, lookbackDays int) (result0 IDSet, err error) {
	start, end := h.day.LookbackRange(lookbackDays)
	ctx, span := observability.TraceSelectionFunction(ctx, "RecentlyUsedIDs",
		observability.AttributeSubject(subject),
		observability.AttributeCount("lookback_days", lookbackDays),
	)
	defer observability.FinishSpan(span, &err)

	assignments, err := h.assignments.ListRange(ctx, subject, start, end)
	if err != nil {
		return nil, err
	}

	used := make(IDSet)
	for _, a := range assignments {
		used.AddAll(a.QuestionIDs)
	}

	today, err := h.TodayAttemptIDs(ctx, subject)
	if err != nil {
		return nil, err
	}
	used.Merge(today)

	span.SetAttributes(observability.AttributeCount("recently_used", len(used)))
	return used, nil
}

// TodayAttemptIDs returns the ids answered in today's attempts for subject
func (h *UsageHistory) TodayAttemptIDs(ctx context.Context, subject string) (IDSet, error) {
	ids, err := h.attempts.QuestionIDsForDate(ctx, subject, h.day.Today())
	if err != nil {
		return nil, err
	}
	return NewIDSet(ids), nil
}
