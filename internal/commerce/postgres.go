package commerce

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/edulearn/backend/internal/models"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepository)(nil)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateCourse(ctx context.Context, c *models.Course) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO courses (instructor_id, instructor_account, title, description, price, duration, level, status, funding_validated, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		c.InstructorID, c.InstructorAccount, c.Title, c.Description, c.Price, c.Duration, c.Level,
		string(c.Status), c.FundingValidated, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	return nil
}

const courseColumns = `id, instructor_id, instructor_account, title, description, price, duration, level, status,
	funding_validated, correlation_transaction_id, enrolled_count, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanCourse(row scanner) (*models.Course, error) {
	var c models.Course
	var status string
	err := row.Scan(&c.ID, &c.InstructorID, &c.InstructorAccount, &c.Title, &c.Description, &c.Price, &c.Duration, &c.Level,
		&status, &c.FundingValidated, &c.CorrelationTransactionID, &c.EnrolledCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = models.CourseStatus(status)
	return &c, nil
}

func (r *PostgresRepository) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	c, err := scanCourse(r.db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select course: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) ListCourses(ctx context.Context, f models.CourseFilter) ([]*models.Course, error) {
	var conditions []string
	var args []any

	if f.Status != "" {
		args = append(args, string(f.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.InstructorID != "" {
		args = append(args, f.InstructorID)
		conditions = append(conditions, fmt.Sprintf("instructor_id = $%d", len(args)))
	}

	query := `SELECT ` + courseColumns + ` FROM courses`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC" + pageClause(&args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Course, 0)
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) SetCourseCorrelation(ctx context.Context, id int64, transactionID string) error {
	return r.expectRow(ctx, models.ErrCourseNotFound, `
		UPDATE courses SET correlation_transaction_id = $1, updated_at = NOW() WHERE id = $2`,
		transactionID, id)
}

func (r *PostgresRepository) ActivateCourse(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE courses
		SET status = 'active', funding_validated = TRUE, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("activate course: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rowsAffected == 1 {
		return true, nil
	}

	if _, err := r.GetCourse(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *PostgresRepository) RejectCourse(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE courses SET status = 'rejected', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`, id); err != nil {
		return fmt.Errorf("reject course: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteInactiveCourse(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM courses
		WHERE id = $1 AND NOT (status = 'active' AND funding_validated)`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 1 {
		return nil
	}

	_, err = r.GetCourse(ctx, id)
	if errors.Is(err, models.ErrCourseNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return models.ErrCourseActive
}

func (r *PostgresRepository) CreateEnrollment(ctx context.Context, e *models.Enrollment) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO enrollments (learner_id, learner_account, course_id, payment_validated, deadline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		e.LearnerID, e.LearnerAccount, e.CourseID, e.PaymentValidated, e.Deadline, e.CreatedAt, e.UpdatedAt).Scan(&e.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.ErrAlreadyEnrolled
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

const enrollmentColumns = `id, learner_id, learner_account, course_id, payment_validated, correlation_transaction_id, deadline, created_at, updated_at`

func scanEnrollment(row *sql.Row) (*models.Enrollment, error) {
	var e models.Enrollment
	err := row.Scan(&e.ID, &e.LearnerID, &e.LearnerAccount, &e.CourseID, &e.PaymentValidated,
		&e.CorrelationTransactionID, &e.Deadline, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select enrollment: %w", err)
	}
	return &e, nil
}

func (r *PostgresRepository) GetEnrollment(ctx context.Context, id int64) (*models.Enrollment, error) {
	return scanEnrollment(r.db.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id))
}

func (r *PostgresRepository) FindEnrollment(ctx context.Context, learnerID string, courseID int64) (*models.Enrollment, error) {
	return scanEnrollment(r.db.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE learner_id = $1 AND course_id = $2`, learnerID, courseID))
}

// ListEnrollments joins each enrollment with its course. Deleting a course
// cascades to its enrollments, so the inner join drops no rows.
func (r *PostgresRepository) ListEnrollments(ctx context.Context, learnerID string, limit, offset int) ([]*models.Enrollment, error) {
	args := []any{learnerID}
	query := `
		SELECT e.id, e.learner_id, e.learner_account, e.course_id, e.payment_validated, e.correlation_transaction_id,
		       e.deadline, e.created_at, e.updated_at,
		       c.id, c.instructor_id, c.instructor_account, c.title, c.description, c.price, c.duration, c.level, c.status,
		       c.funding_validated, c.correlation_transaction_id, c.enrolled_count, c.created_at, c.updated_at
		FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		WHERE e.learner_id = $1
		ORDER BY e.created_at DESC, e.id DESC` + pageClause(&args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Enrollment, 0)
	for rows.Next() {
		var e models.Enrollment
		var c models.Course
		var status string
		if err := rows.Scan(&e.ID, &e.LearnerID, &e.LearnerAccount, &e.CourseID, &e.PaymentValidated,
			&e.CorrelationTransactionID, &e.Deadline, &e.CreatedAt, &e.UpdatedAt,
			&c.ID, &c.InstructorID, &c.InstructorAccount, &c.Title, &c.Description, &c.Price, &c.Duration, &c.Level,
			&status, &c.FundingValidated, &c.CorrelationTransactionID, &c.EnrolledCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		c.Status = models.CourseStatus(status)
		e.Course = &c
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) SetEnrollmentCorrelation(ctx context.Context, id int64, transactionID string) error {
	return r.expectRow(ctx, models.ErrEnrollmentNotFound, `
		UPDATE enrollments SET correlation_transaction_id = $1, updated_at = NOW() WHERE id = $2`,
		transactionID, id)
}

// ActivateEnrollment flips the flag and increments the course counter in one
// transaction; the counter only moves when the flag actually changed.
func (r *PostgresRepository) ActivateEnrollment(ctx context.Context, id int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var courseID int64
	err = tx.QueryRowContext(ctx, `
		UPDATE enrollments
		SET payment_validated = TRUE, updated_at = NOW()
		WHERE id = $1 AND payment_validated = FALSE
		RETURNING course_id`, id).Scan(&courseID)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM enrollments WHERE id = $1)`, id).Scan(&exists); err != nil {
			return false, err
		}
		if !exists {
			return false, models.ErrEnrollmentNotFound
		}
		return false, tx.Commit()
	}
	if err != nil {
		return false, fmt.Errorf("activate enrollment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE courses SET enrolled_count = enrolled_count + 1, updated_at = NOW() WHERE id = $1`, courseID); err != nil {
		return false, fmt.Errorf("increment enrolled count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *PostgresRepository) DeleteUnpaidEnrollment(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM enrollments WHERE id = $1 AND payment_validated = FALSE`, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 1 {
		return nil
	}

	_, err = r.GetEnrollment(ctx, id)
	if errors.Is(err, models.ErrEnrollmentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return models.ErrEnrollmentPaid
}

func pageClause(args *[]any, limit, offset int) string {
	var clause string
	if limit > 0 {
		*args = append(*args, limit)
		clause += fmt.Sprintf(" LIMIT $%d", len(*args))
	}
	if offset > 0 {
		*args = append(*args, offset)
		clause += fmt.Sprintf(" OFFSET $%d", len(*args))
	}
	return clause
}

func (r *PostgresRepository) expectRow(ctx context.Context, notFound error, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
