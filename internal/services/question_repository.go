package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"dailyquiz/internal/config"
	"dailyquiz/internal/models"
	"dailyquiz/internal/observability"
	contextutils "dailyquiz/internal/utils"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

// QuestionRepository reads and writes the question bank
type QuestionRepository interface {
	// FetchActive returns all active questions. An empty subject means every subject.
	FetchActive(ctx context.Context, subject string) ([]*models.Question, error)
	// FetchByIDs returns the questions in input order, silently omitting ids that do not resolve.
	FetchByIDs(ctx context.Context, ids []string) ([]*models.Question, error)
	// FetchByID returns nil, nil when the id does not exist.
	FetchByID(ctx context.Context, id string) (*models.Question, error)
	List(ctx context.Context, subject string, includeInactive bool) ([]*models.Question, error)
	Add(ctx context.Context, q *models.Question) error
	Update(ctx context.Context, q *models.Question) error
	Deactivate(ctx context.Context, id string) error
}

const questionColumns = `id, stem, options, correct_index, explanation, topic, subject, difficulty, active, created_at`

// pgUniqueViolation is the SQLSTATE for unique_violation
const pgUniqueViolation = "23505"

// PostgresQuestionRepository is the Postgres-backed QuestionRepository
type PostgresQuestionRepository struct {
	db        *sql.DB
	logger    *observability.Logger
	chunkSize int
}

// NewPostgresQuestionRepository creates a repository. chunkSize bounds the ids sent per query;
// values <= 0 use the default.
func NewPostgresQuestionRepository(db *sql.DB, logger *observability.Logger, chunkSize int) *PostgresQuestionRepository {
	if chunkSize <= 0 {
		chunkSize = config.DefaultFetchChunkSize
	}
	return &PostgresQuestionRepository{db: db, logger: logger, chunkSize: chunkSize}
}

// FetchActive returns all active questions, optionally for one subject
func (r *PostgresQuestionRepository) FetchActive(ctx context.Context, subject string) (result0 []*models.Question, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "FetchActiveQuestions", observability.AttributeSubject(subject))
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + questionColumns + ` FROM questions WHERE active = TRUE`
	args := []interface{}{}
	if subject != "" {
		query += ` AND subject = $1`
		args = append(args, subject)
	}
	query += ` ORDER BY created_at, id`

	questions, err := r.queryQuestions(ctx, query, args...)
	if err != nil {
		return nil, contextutils.StoreError(err, "failed to fetch active questions")
	}
	span.SetAttributes(observability.AttributeCount("questions", len(questions)))
	return questions, nil
}

// FetchByIDs resolves ids in chunks and returns them in input order
func (r *PostgresQuestionRepository) FetchByIDs(ctx context.Context, ids []string) (result0 []*models.Question, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "FetchQuestionsByIDs",
		observability.AttributeCount("ids", len(ids)),
		attribute.Int("chunk_size", r.chunkSize),
	)
	defer observability.FinishSpan(span, &err)

	if len(ids) == 0 {
		return []*models.Question{}, nil
	}

	byID := make(map[string]*models.Question, len(ids))
	for start := 0; start < len(ids); start += r.chunkSize {
		end := start + r.chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk, err := r.queryQuestions(ctx,
			`SELECT `+questionColumns+` FROM questions WHERE id = ANY($1)`, pq.Array(ids[start:end]))
		if err != nil {
			return nil, contextutils.StoreError(err, "failed to fetch questions by id")
		}
		for _, q := range chunk {
			byID[q.ID] = q
		}
	}

	out := make([]*models.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	if missing := len(ids) - len(out); missing > 0 {
		r.logger.Debug(ctx, "Some question ids did not resolve", map[string]interface{}{
			"requested": len(ids),
			"missing":   missing,
		})
	}
	return out, nil
}

// FetchByID returns one question or nil when it does not exist
func (r *PostgresQuestionRepository) FetchByID(ctx context.Context, id string) (result0 *models.Question, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "FetchQuestionByID", observability.AttributeQuestionID(id))
	defer observability.FinishSpan(span, &err)

	row := r.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, contextutils.StoreError(err, "failed to fetch question")
	}
	return q, nil
}

// List returns questions for the admin surface. An empty subject lists every subject.
func (r *PostgresQuestionRepository) List(ctx context.Context, subject string, includeInactive bool) (result0 []*models.Question, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "ListQuestions",
		observability.AttributeSubject(subject),
		attribute.Bool("include_inactive", includeInactive),
	)
	defer observability.FinishSpan(span, &err)

	var (
		where []string
		args  []interface{}
	)
	if subject != "" {
		args = append(args, subject)
		where = append(where, fmt.Sprintf("subject = $%d", len(args)))
	}
	if !includeInactive {
		where = append(where, "active = TRUE")
	}

	query := `SELECT ` + questionColumns + ` FROM questions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY subject, created_at, id`

	questions, err := r.queryQuestions(ctx, query, args...)
	if err != nil {
		return nil, contextutils.StoreError(err, "failed to list questions")
	}
	return questions, nil
}

// Add inserts a new question
func (r *PostgresQuestionRepository) Add(ctx context.Context, q *models.Question) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "AddQuestion",
		observability.AttributeQuestionID(q.ID),
		observability.AttributeSubject(q.Subject),
	)
	defer observability.FinishSpan(span, &err)

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO questions (id, stem, options, correct_index, explanation, topic, subject, difficulty, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		q.ID, q.Stem, pq.Array(q.Options), q.CorrectIndex, q.Explanation, q.Topic, q.Subject, int(q.Difficulty), q.Active, q.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return contextutils.NewAppErrorWithCause(contextutils.ErrorCodeRecordExists, contextutils.SeverityWarn,
				fmt.Sprintf("question %s already exists", q.ID), "", err)
		}
		return contextutils.StoreError(err, "failed to add question")
	}
	return nil
}

// Update overwrites the mutable fields of an existing question
func (r *PostgresQuestionRepository) Update(ctx context.Context, q *models.Question) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "UpdateQuestion", observability.AttributeQuestionID(q.ID))
	defer observability.FinishSpan(span, &err)

	res, err := r.db.ExecContext(ctx, `
		UPDATE questions
		SET stem = $2, options = $3, correct_index = $4, explanation = $5, topic = $6, subject = $7, difficulty = $8, active = $9
		WHERE id = $1`,
		q.ID, q.Stem, pq.Array(q.Options), q.CorrectIndex, q.Explanation, q.Topic, q.Subject, int(q.Difficulty), q.Active,
	)
	if err != nil {
		return contextutils.StoreError(err, "failed to update question")
	}
	return requireAffected(res, q.ID)
}

// Deactivate soft-deletes a question. The row is kept so historical assignments still resolve.
func (r *PostgresQuestionRepository) Deactivate(ctx context.Context, id string) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "DeactivateQuestion", observability.AttributeQuestionID(id))
	defer observability.FinishSpan(span, &err)

	res, err := r.db.ExecContext(ctx, `UPDATE questions SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return contextutils.StoreError(err, "failed to deactivate question")
	}
	return requireAffected(res, id)
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return contextutils.StoreError(err, "failed to read affected rows")
	}
	if n == 0 {
		return questionNotFound(id)
	}
	return nil
}

func questionNotFound(id string) error {
	return contextutils.NewAppError(contextutils.ErrorCodeQuestionNotFound, contextutils.SeverityInfo,
		fmt.Sprintf("question %s not found", id), "")
}

func (r *PostgresQuestionRepository) queryQuestions(ctx context.Context, query string, args ...interface{}) (result0 []*models.Question, err error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	var out []*models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if out == nil {
		out = []*models.Question{}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanQuestion maps a row onto a Question, normalizing created_at whatever shape the driver hands back
func scanQuestion(row rowScanner) (*models.Question, error) {
	var (
		q          models.Question
		difficulty int
		createdAt  interface{}
	)
	if err := row.Scan(&q.ID, &q.Stem, pq.Array(&q.Options), &q.CorrectIndex, &q.Explanation,
		&q.Topic, &q.Subject, &difficulty, &q.Active, &createdAt); err != nil {
		return nil, err
	}
	q.Difficulty = models.Difficulty(difficulty)
	if ts, ok := models.NormalizeTimestamp(createdAt); ok {
		q.CreatedAt = ts
	}
	return &q, nil
}
