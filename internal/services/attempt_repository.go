package services

import (
	"context"
	"database/sql"

	"dailyquiz/internal/models"
	"dailyquiz/internal/observability"
	contextutils "dailyquiz/internal/utils"

	"github.com/lib/pq"
)

// AttemptRepository is the append-only log of quiz submissions
type AttemptRepository interface {
	CountForUser(ctx context.Context, userLabel, subject, date string) (int, error)
	Create(ctx context.Context, a *models.Attempt) error
	// QuestionIDsForDate returns the distinct question ids answered by anyone on date.
	QuestionIDsForDate(ctx context.Context, subject, date string) ([]string, error)
	ListForUser(ctx context.Context, userLabel, subject, date string) ([]*models.Attempt, error)
}

const attemptColumns = `id, attempt_date, subject, user_label, attempt_number, quiz_version, question_ids,
	answers, score, topic_breakdown, submitted_at, duration_seconds, ip_hash`

// PostgresAttemptRepository is the Postgres-backed AttemptRepository
type PostgresAttemptRepository struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewPostgresAttemptRepository creates a new PostgresAttemptRepository
func NewPostgresAttemptRepository(db *sql.DB, logger *observability.Logger) *PostgresAttemptRepository {
	return &PostgresAttemptRepository{db: db, logger: logger}
}

// CountForUser counts the user's attempts for a subject on a date
func (r *PostgresAttemptRepository) CountForUser(ctx context.Context, userLabel, subject, date string) (result0 int, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "CountUserAttempts",
		observability.AttributeUserLabel(userLabel),
		observability.AttributeSubject(subject),
		observability.AttributeDate(date),
	)
	defer observability.FinishSpan(span, &err)

	var count int
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM quiz_attempts
		WHERE user_label = $1 AND subject = $2 AND attempt_date = $3`,
		userLabel, subject, date).Scan(&count)
	if err != nil {
		return 0, contextutils.StoreError(err, "failed to count attempts")
	}
	return count, nil
}

// Create appends an attempt
func (r *PostgresAttemptRepository) Create(ctx context.Context, a *models.Attempt) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "CreateAttempt",
		observability.AttributeUserLabel(a.UserLabel),
		observability.AttributeSubject(a.Subject),
		observability.AttributeQuizVersion(a.QuizVersion),
	)
	defer observability.FinishSpan(span, &err)

	ipHash := sql.NullString{String: a.IPHash, Valid: a.IPHash != ""}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO quiz_attempts (`+attemptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.Date, a.Subject, a.UserLabel, a.AttemptNumber, a.QuizVersion, pq.Array(a.QuestionIDs),
		a.Answers, a.Score, a.TopicBreakdown, a.SubmittedAt, a.DurationSeconds, ipHash,
	)
	if err != nil {
		return contextutils.StoreError(err, "failed to record attempt")
	}
	return nil
}

// QuestionIDsForDate collects every question id answered on date for subject
func (r *PostgresAttemptRepository) QuestionIDsForDate(ctx context.Context, subject, date string) (result0 []string, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "AttemptQuestionIDsForDate",
		observability.AttributeSubject(subject),
		observability.AttributeDate(date),
	)
	defer observability.FinishSpan(span, &err)

	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT unnest(question_ids)
		FROM quiz_attempts
		WHERE subject = $1 AND attempt_date = $2`, subject, date)
	if err != nil {
		return nil, contextutils.StoreError(err, "failed to read attempted question ids")
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = contextutils.StoreError(cerr, "failed to close attempt rows")
		}
	}()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, contextutils.StoreError(err, "failed to scan attempted question id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.StoreError(err, "failed to iterate attempted question ids")
	}
	return ids, nil
}

// ListForUser returns the user's attempts on date ordered by attempt number
func (r *PostgresAttemptRepository) ListForUser(ctx context.Context, userLabel, subject, date string) (result0 []*models.Attempt, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "ListUserAttempts",
		observability.AttributeUserLabel(userLabel),
		observability.AttributeSubject(subject),
		observability.AttributeDate(date),
	)
	defer observability.FinishSpan(span, &err)

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+attemptColumns+`
		FROM quiz_attempts
		WHERE user_label = $1 AND subject = $2 AND attempt_date = $3
		ORDER BY attempt_number, submitted_at`, userLabel, subject, date)
	if err != nil {
		return nil, contextutils.StoreError(err, "failed to list attempts")
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = contextutils.StoreError(cerr, "failed to close attempt rows")
		}
	}()

	out := []*models.Attempt{}
	for rows.Next() {
		var (
			a           models.Attempt
			submittedAt interface{}
			ipHash      sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Date, &a.Subject, &a.UserLabel, &a.AttemptNumber, &a.QuizVersion,
			pq.Array(&a.QuestionIDs), &a.Answers, &a.Score, &a.TopicBreakdown, &submittedAt,
			&a.DurationSeconds, &ipHash); err != nil {
			return nil, contextutils.StoreError(err, "failed to scan attempt")
		}
		if ts, ok := models.NormalizeTimestamp(submittedAt); ok {
			a.SubmittedAt = ts
		}
		a.IPHash = ipHash.String
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.StoreError(err, "failed to iterate attempts")
	}
	return out, nil
}
