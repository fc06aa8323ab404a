package services

import (
	"context"
	"database/sql"

	"dailyquiz/internal/models"
	"dailyquiz/internal/observability"
	contextutils "dailyquiz/internal/utils"

	"github.com/lib/pq"
)

// StatsRecorder maintains per (question, user) attempt and correct counters
type StatsRecorder interface {
	// Record applies every update as one atomic statement. Counters are incremented in
	// the database, never read and rewritten.
	Record(ctx context.Context, updates []models.StatUpdate) error
	ListForUser(ctx context.Context, userLabel string) ([]*models.QuestionStat, error)
	// DeleteForUser is the account-deletion path; it returns the number of rows removed.
	DeleteForUser(ctx context.Context, userLabel string) (int64, error)
}

// PostgresStatsRecorder is the Postgres-backed StatsRecorder
type PostgresStatsRecorder struct {
	db     *sql.DB
	logger *observability.Logger
	clock  contextutils.Clock
}

// NewPostgresStatsRecorder creates a new PostgresStatsRecorder
func NewPostgresStatsRecorder(db *sql.DB, logger *observability.Logger, clock contextutils.Clock) *PostgresStatsRecorder {
	if clock == nil {
		clock = contextutils.SystemClock{}
	}
	return &PostgresStatsRecorder{db: db, logger: logger, clock: clock}
}

// recordStatsSQL folds the batch per key first because ON CONFLICT cannot touch the same row twice
// in one statement.
const recordStatsSQL = `
	INSERT INTO question_stats (question_id, user_label, attempts, correct, last_attempted_at)
	SELECT b.question_id, b.user_label, COUNT(*), COUNT(*) FILTER (WHERE b.is_correct), $4
	FROM unnest($1::text[], $2::text[], $3::boolean[]) AS b(question_id, user_label, is_correct)
	GROUP BY b.question_id, b.user_label
	ON CONFLICT (question_id, user_label) DO UPDATE
	SET attempts = question_stats.attempts + EXCLUDED.attempts,
	    correct = question_stats.correct + EXCLUDED.correct,
	    last_attempted_at = EXCLUDED.last_attempted_at`

// Record applies a batch of counter increments
func (r *PostgresStatsRecorder) Record(ctx context.Context, updates []models.StatUpdate) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "RecordQuestionStats",
		observability.AttributeCount("updates", len(updates)))
	defer observability.FinishSpan(span, &err)

	if len(updates) == 0 {
		return nil
	}

	questionIDs := make([]string, len(updates))
	userLabels := make([]string, len(updates))
	correct := make([]bool, len(updates))
	for i, u := range updates {
		questionIDs[i] = u.QuestionID
		userLabels[i] = u.UserLabel
		correct[i] = u.IsCorrect
	}

	if _, err = r.db.ExecContext(ctx, recordStatsSQL,
		pq.Array(questionIDs), pq.Array(userLabels), pq.Array(correct), r.clock.Now().UTC()); err != nil {
		return contextutils.StoreError(err, "failed to record question stats")
	}

	r.logger.Debug(ctx, "Question stats recorded", map[string]interface{}{
		"batch_size": len(updates),
	})
	return nil
}

// ListForUser returns all counters for a user
func (r *PostgresStatsRecorder) ListForUser(ctx context.Context, userLabel string) (result0 []*models.QuestionStat, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "ListQuestionStats", observability.AttributeUserLabel(userLabel))
	defer observability.FinishSpan(span, &err)

	rows, err := r.db.QueryContext(ctx, `
		SELECT question_id, user_label, attempts, correct, last_attempted_at
		FROM question_stats
		WHERE user_label = $1
		ORDER BY question_id`, userLabel)
	if err != nil {
		return nil, contextutils.StoreError(err, "failed to list question stats")
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = contextutils.StoreError(cerr, "failed to close question stat rows")
		}
	}()

	out := []*models.QuestionStat{}
	for rows.Next() {
		var (
			s    models.QuestionStat
			last interface{}
		)
		if err := rows.Scan(&s.QuestionID, &s.UserLabel, &s.Attempts, &s.Correct, &last); err != nil {
			return nil, contextutils.StoreError(err, "failed to scan question stat")
		}
		if ts, ok := models.NormalizeTimestamp(last); ok {
			s.LastAttemptedAt = ts
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.StoreError(err, "failed to iterate question stats")
	}
	return out, nil
}

// DeleteForUser removes every counter for a user
func (r *PostgresStatsRecorder) DeleteForUser(ctx context.Context, userLabel string) (result0 int64, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "DeleteQuestionStats", observability.AttributeUserLabel(userLabel))
	defer observability.FinishSpan(span, &err)

	res, err := r.db.ExecContext(ctx, `DELETE FROM question_stats WHERE user_label = $1`, userLabel)
	if err != nil {
		return 0, contextutils.StoreError(err, "failed to delete question stats")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, contextutils.StoreError(err, "failed to read affected rows")
	}

	r.logger.Info(ctx, "Question stats deleted", map[string]interface{}{
		"user_label": userLabel,
		"rows":       n,
	})
	return n, nil
}
