package commerce

import (
	"context"

	"github.com/edulearn/backend/internal/models"
)

// Repository persists courses and enrollments. Every activation and
// compensation method is idempotent since the ledger delivers at least once.
type Repository interface {
	// CreateCourse inserts a pending course and sets its ID.
	CreateCourse(ctx context.Context, c *models.Course) error
	GetCourse(ctx context.Context, id int64) (*models.Course, error)
	// ListCourses returns the newest courses first.
	ListCourses(ctx context.Context, f models.CourseFilter) ([]*models.Course, error)
	SetCourseCorrelation(ctx context.Context, id int64, transactionID string) error
	// ActivateCourse sets status=active and funding_validated together if the
	// course is still pending. Returns ErrCourseNotFound for unknown ids.
	ActivateCourse(ctx context.Context, id int64) (bool, error)
	// RejectCourse marks a pending course rejected. Unknown or already
	// decided courses are left untouched.
	RejectCourse(ctx context.Context, id int64) error
	// DeleteInactiveCourse removes a course that never activated. Returns
	// ErrCourseActive for an active course and nil when it is already gone.
	DeleteInactiveCourse(ctx context.Context, id int64) error

	// CreateEnrollment inserts an unpaid enrollment and sets its ID. Returns
	// ErrAlreadyEnrolled when the learner already holds one for the course.
	CreateEnrollment(ctx context.Context, e *models.Enrollment) error
	GetEnrollment(ctx context.Context, id int64) (*models.Enrollment, error)
	FindEnrollment(ctx context.Context, learnerID string, courseID int64) (*models.Enrollment, error)
	// ListEnrollments returns the learner's enrollments, newest first, each
	// with its course attached.
	ListEnrollments(ctx context.Context, learnerID string, limit, offset int) ([]*models.Enrollment, error)
	SetEnrollmentCorrelation(ctx context.Context, id int64, transactionID string) error
	// ActivateEnrollment marks the payment validated and bumps the course's
	// enrolled count, both at most once.
	ActivateEnrollment(ctx context.Context, id int64) (bool, error)
	// DeleteUnpaidEnrollment returns ErrEnrollmentPaid for a paid enrollment
	// and nil when it is already gone.
	DeleteUnpaidEnrollment(ctx context.Context, id int64) error
}
