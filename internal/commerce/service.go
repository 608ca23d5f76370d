// Package commerce owns courses and enrollments. Both are created
// optimistically as pending records, funded through the ledger, and later
// activated or deleted when the ledger calls back with its decision.
package commerce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/edulearn/backend/internal/models"
)

// Ledger is the part of the ledger API commerce depends on.
type Ledger interface {
	OpenCourseReward(ctx context.Context, instructorAccount string, courseID int64) (string, error)
	OpenEnrollmentPayment(ctx context.Context, learnerAccount, instructorAccount string, amount decimal.Decimal, enrollmentID int64) (string, error)
	VerifyCredential(ctx context.Context, accountNumber, secret string) error
}

type Service struct {
	repo   Repository
	ledger Ledger
	log    *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, ledger Ledger, log *zap.Logger) *Service {
	return &Service{repo: repo, ledger: ledger, log: log, now: time.Now}
}

type CourseRequest struct {
	InstructorID      string
	InstructorAccount string
	Title             string
	Description       string
	Price             decimal.Decimal
	Duration          string
	Level             string
}

// CreateCourse stores a pending course and asks the ledger for its creation
// reward. If the ledger refuses, the course is removed and the ledger's
// error returned.
func (s *Service) CreateCourse(ctx context.Context, req CourseRequest) (*models.Course, error) {
	if !models.ValidAmount(req.Price) {
		return nil, models.ErrInvalidAmount
	}

	now := s.now()
	course := &models.Course{
		InstructorID:      req.InstructorID,
		InstructorAccount: req.InstructorAccount,
		Title:             req.Title,
		Description:       req.Description,
		Price:             req.Price,
		Duration:          req.Duration,
		Level:             req.Level,
		Status:            models.CourseStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.CreateCourse(ctx, course); err != nil {
		return nil, err
	}

	txID, err := s.ledger.OpenCourseReward(ctx, course.InstructorAccount, course.ID)
	if err != nil {
		if rejErr := s.repo.RejectCourse(ctx, course.ID); rejErr != nil {
			s.log.Error("Failed to mark unfunded course rejected", zap.Int64("course_id", course.ID), zap.Error(rejErr))
		}
		s.log.Warn("Ledger refused course reward, course rejected and removed",
			zap.Int64("course_id", course.ID), zap.Error(err))
		if delErr := s.repo.DeleteInactiveCourse(ctx, course.ID); delErr != nil {
			s.log.Error("Failed to remove unfunded course", zap.Int64("course_id", course.ID), zap.Error(delErr))
		}
		return nil, err
	}

	if err := s.repo.SetCourseCorrelation(ctx, course.ID, txID); err != nil {
		return nil, err
	}
	course.CorrelationTransactionID = txID

	s.log.Info("Course created pending funding",
		zap.Int64("course_id", course.ID),
		zap.String("transaction_id", txID))
	return course, nil
}

func (s *Service) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	return s.repo.GetCourse(ctx, id)
}

// ListCourses serves both the public catalogue and an instructor's own
// view. Without an instructor or status filter only active courses are
// listed; an instructor sees their pending courses too.
func (s *Service) ListCourses(ctx context.Context, f models.CourseFilter) ([]*models.Course, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("unknown course status %q", f.Status)
	}
	if f.Status == "" && f.InstructorID == "" {
		f.Status = models.CourseStatusActive
	}
	return s.repo.ListCourses(ctx, f)
}

func (s *Service) ActivateCourse(ctx context.Context, id int64) (*models.Course, error) {
	changed, err := s.repo.ActivateCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if changed {
		s.log.Info("Course activated", zap.Int64("course_id", id))
	}
	return s.repo.GetCourse(ctx, id)
}

func (s *Service) CompensateCourse(ctx context.Context, id int64) error {
	if err := s.repo.DeleteInactiveCourse(ctx, id); err != nil {
		return err
	}
	s.log.Info("Course compensated", zap.Int64("course_id", id))
	return nil
}

type EnrollRequest struct {
	LearnerID        string
	LearnerAccount   string
	SecretCredential string
	CourseID         int64
}

// Enroll stores an unpaid enrollment for an active course and opens the
// learner's payment with the ledger. Any ledger failure removes the
// enrollment again.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	course, err := s.repo.GetCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if !course.Active() {
		return nil, models.ErrCourseNotActive
	}

	_, err = s.repo.FindEnrollment(ctx, req.LearnerID, req.CourseID)
	if err == nil {
		return nil, models.ErrAlreadyEnrolled
	}
	if !errors.Is(err, models.ErrEnrollmentNotFound) {
		return nil, err
	}

	if err := s.ledger.VerifyCredential(ctx, req.LearnerAccount, req.SecretCredential); err != nil {
		return nil, err
	}

	now := s.now()
	enrollment := &models.Enrollment{
		LearnerID:      req.LearnerID,
		LearnerAccount: req.LearnerAccount,
		CourseID:       course.ID,
		Deadline:       Deadline(now, course.Duration),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateEnrollment(ctx, enrollment); err != nil {
		return nil, err
	}

	txID, err := s.ledger.OpenEnrollmentPayment(ctx, req.LearnerAccount, course.InstructorAccount, course.Price, enrollment.ID)
	if err != nil {
		s.log.Warn("Ledger refused enrollment payment, removing enrollment",
			zap.Int64("enrollment_id", enrollment.ID), zap.Error(err))
		if delErr := s.repo.DeleteUnpaidEnrollment(ctx, enrollment.ID); delErr != nil {
			s.log.Error("Failed to remove unpaid enrollment", zap.Int64("enrollment_id", enrollment.ID), zap.Error(delErr))
		}
		return nil, err
	}

	if err := s.repo.SetEnrollmentCorrelation(ctx, enrollment.ID, txID); err != nil {
		return nil, err
	}
	enrollment.CorrelationTransactionID = txID

	s.log.Info("Enrollment created pending payment",
		zap.Int64("enrollment_id", enrollment.ID),
		zap.Int64("course_id", course.ID),
		zap.String("transaction_id", txID))
	return enrollment, nil
}

func (s *Service) GetEnrollment(ctx context.Context, id int64) (*models.Enrollment, error) {
	return s.repo.GetEnrollment(ctx, id)
}

// ListEnrollments returns a learner's enrollments, pending ones included,
// so a payment awaiting review stays visible.
func (s *Service) ListEnrollments(ctx context.Context, learnerID string, limit, offset int) ([]*models.Enrollment, error) {
	return s.repo.ListEnrollments(ctx, learnerID, limit, offset)
}

func (s *Service) ActivateEnrollment(ctx context.Context, id int64) (*models.Enrollment, error) {
	changed, err := s.repo.ActivateEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	if changed {
		s.log.Info("Enrollment payment validated", zap.Int64("enrollment_id", id))
	}
	return s.repo.GetEnrollment(ctx, id)
}

func (s *Service) CompensateEnrollment(ctx context.Context, id int64) error {
	if err := s.repo.DeleteUnpaidEnrollment(ctx, id); err != nil {
		return err
	}
	s.log.Info("Enrollment compensated", zap.Int64("enrollment_id", id))
	return nil
}

type Access struct {
	HasAccess        bool      `json:"hasAccess"`
	Expired          bool      `json:"expired"`
	PaymentValidated bool      `json:"paymentValidated"`
	Deadline         time.Time `json:"deadline"`
	DaysRemaining    int       `json:"daysRemaining"`
}

// CheckAccess reports whether the learner may use the course right now.
// Access needs a validated payment and an unexpired deadline.
func (s *Service) CheckAccess(ctx context.Context, learnerID string, courseID int64) (*Access, error) {
	e, err := s.repo.FindEnrollment(ctx, learnerID, courseID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	access := &Access{
		PaymentValidated: e.PaymentValidated,
		Deadline:         e.Deadline,
		Expired:          now.After(e.Deadline),
	}
	if !access.Expired {
		access.DaysRemaining = daysRemaining(now, e.Deadline)
	}
	access.HasAccess = access.PaymentValidated && !access.Expired
	return access, nil
}
