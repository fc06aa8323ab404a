package services

import (
	"context"
	"database/sql"
	"errors"

	"dailyquiz/internal/models"
	"dailyquiz/internal/observability"
	contextutils "dailyquiz/internal/utils"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

// AssignmentRepository persists one DailyAssignment per (date, subject)
type AssignmentRepository interface {
	// Get returns nil, nil when no assignment exists for the key.
	Get(ctx context.Context, date, subject string) (*models.DailyAssignment, error)
	// CreateIfAbsent stores a only when the key is still empty and returns whichever record
	// holds the key afterwards. created is true when a was the one written.
	CreateIfAbsent(ctx context.Context, a *models.DailyAssignment) (stored *models.DailyAssignment, created bool, err error)
	// Upsert overwrites the record for the key, last writer wins.
	Upsert(ctx context.Context, a *models.DailyAssignment) error
	// ListRange returns the assignments for subject with start <= date <= end.
	ListRange(ctx context.Context, subject, start, end string) ([]*models.DailyAssignment, error)
}

const assignmentColumns = `assignment_date, subject, quiz_version, generated_at, question_ids`

// PostgresAssignmentRepository is the Postgres-backed AssignmentRepository
type PostgresAssignmentRepository struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewPostgresAssignmentRepository creates a new PostgresAssignmentRepository
func NewPostgresAssignmentRepository(db *sql.DB, logger *observability.Logger) *PostgresAssignmentRepository {
	return &PostgresAssignmentRepository{db: db, logger: logger}
}

// Get loads the assignment for (date, subject)
func (r *PostgresAssignmentRepository) Get(ctx context.Context, date, subject string) (result0 *models.DailyAssignment, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "GetAssignment",
		observability.AttributeDate(date), observability.AttributeSubject(subject))
	defer observability.FinishSpan(span, &err)

	a, err := scanAssignment(r.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM daily_assignments WHERE assignment_key = $1`,
		models.AssignmentKey(date, subject)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, contextutils.StoreError(err, "failed to load daily assignment")
	}
	return a, nil
}

// CreateIfAbsent inserts the assignment unless the key is already taken, then re-reads the key
// inside the same transaction. A concurrent inserter blocks on the key until the first commits,
// so every caller reads back the single winning row.
func (r *PostgresAssignmentRepository) CreateIfAbsent(ctx context.Context, a *models.DailyAssignment) (stored *models.DailyAssignment, created bool, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "CreateAssignmentIfAbsent",
		observability.AttributeDate(a.Date), observability.AttributeSubject(a.Subject))
	defer observability.FinishSpan(span, &err)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, contextutils.StoreError(err, "failed to begin assignment transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.Error(ctx, "Failed to rollback assignment transaction", rbErr)
			}
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO daily_assignments (assignment_key, assignment_date, subject, quiz_version, generated_at, question_ids)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (assignment_key) DO NOTHING`,
		a.Key(), a.Date, a.Subject, a.QuizVersion, a.GeneratedAt, pq.Array(a.QuestionIDs),
	)
	if err != nil {
		return nil, false, contextutils.StoreError(err, "failed to insert daily assignment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, contextutils.StoreError(err, "failed to read affected rows")
	}

	stored, err = scanAssignment(tx.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM daily_assignments WHERE assignment_key = $1`, a.Key()))
	if err != nil {
		return nil, false, contextutils.StoreError(err, "failed to read back daily assignment")
	}

	if err = tx.Commit(); err != nil {
		return nil, false, contextutils.StoreError(err, "failed to commit daily assignment")
	}

	span.SetAttributes(attribute.Bool("assignment.created", n == 1))
	return stored, n == 1, nil
}

// Upsert overwrites the assignment for its key
func (r *PostgresAssignmentRepository) Upsert(ctx context.Context, a *models.DailyAssignment) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "UpsertAssignment",
		observability.AttributeDate(a.Date),
		observability.AttributeSubject(a.Subject),
		observability.AttributeQuizVersion(a.QuizVersion),
	)
	defer observability.FinishSpan(span, &err)

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO daily_assignments (assignment_key, assignment_date, subject, quiz_version, generated_at, question_ids)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (assignment_key) DO UPDATE
		SET quiz_version = EXCLUDED.quiz_version,
		    generated_at = EXCLUDED.generated_at,
		    question_ids = EXCLUDED.question_ids`,
		a.Key(), a.Date, a.Subject, a.QuizVersion, a.GeneratedAt, pq.Array(a.QuestionIDs),
	)
	if err != nil {
		return contextutils.StoreError(err, "failed to save daily assignment")
	}
	return nil
}

// ListRange returns the subject's assignments between two date keys, inclusive
func (r *PostgresAssignmentRepository) ListRange(ctx context.Context, subject, start, end string) (result0 []*models.DailyAssignment, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "ListAssignmentRange",
		observability.AttributeSubject(subject),
		attribute.String("range.start", start),
		attribute.String("range.end", end),
	)
	defer observability.FinishSpan(span, &err)

	// date keys are zero-padded YYYY-MM-DD so lexical order is calendar order
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM daily_assignments
		WHERE subject = $1 AND assignment_date BETWEEN $2 AND $3
		ORDER BY assignment_date`, subject, start, end)
	if err != nil {
		return nil, contextutils.StoreError(err, "failed to list daily assignments")
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = contextutils.StoreError(cerr, "failed to close assignment rows")
		}
	}()

	out := []*models.DailyAssignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, contextutils.StoreError(err, "failed to scan daily assignment")
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.StoreError(err, "failed to iterate daily assignments")
	}
	return out, nil
}

func scanAssignment(row rowScanner) (*models.DailyAssignment, error) {
	var (
		a           models.DailyAssignment
		generatedAt interface{}
	)
	if err := row.Scan(&a.Date, &a.Subject, &a.QuizVersion, &generatedAt, pq.Array(&a.QuestionIDs)); err != nil {
		return nil, err
	}
	if ts, ok := models.NormalizeTimestamp(generatedAt); ok {
		a.GeneratedAt = &ts
	}
	if a.QuestionIDs == nil {
		a.QuestionIDs = []string{}
	}
	return &a, nil
}
