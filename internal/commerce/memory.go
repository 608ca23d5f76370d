package commerce

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/edulearn/backend/internal/models"
)

// MemoryRepository keeps courses and enrollments in process. Used for local
// runs with database.driver=memory and in tests.
type MemoryRepository struct {
	mu          sync.Mutex
	courses     map[int64]*models.Course
	enrollments map[int64]*models.Enrollment
	nextCourse  int64
	nextEnroll  int64
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		courses:     make(map[int64]*models.Course),
		enrollments: make(map[int64]*models.Enrollment),
	}
}

func (r *MemoryRepository) CreateCourse(_ context.Context, c *models.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextCourse++
	c.ID = r.nextCourse
	cp := *c
	r.courses[c.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetCourse(_ context.Context, id int64) (*models.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.courses[id]
	if !ok {
		return nil, models.ErrCourseNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryRepository) ListCourses(_ context.Context, f models.CourseFilter) ([]*models.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.Course, 0)
	for _, c := range r.courses {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.InstructorID != "" && c.InstructorID != f.InstructorID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepository) SetCourseCorrelation(_ context.Context, id int64, transactionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.courses[id]
	if !ok {
		return models.ErrCourseNotFound
	}
	c.CorrelationTransactionID = transactionID
	c.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) ActivateCourse(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.courses[id]
	if !ok {
		return false, models.ErrCourseNotFound
	}
	if c.Status != models.CourseStatusPending {
		return false, nil
	}
	c.Status = models.CourseStatusActive
	c.FundingValidated = true
	c.UpdatedAt = time.Now()
	return true, nil
}

func (r *MemoryRepository) RejectCourse(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.courses[id]; ok && c.Status == models.CourseStatusPending {
		c.Status = models.CourseStatusRejected
		c.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryRepository) DeleteInactiveCourse(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.courses[id]
	if !ok {
		return nil
	}
	if c.Active() {
		return models.ErrCourseActive
	}
	delete(r.courses, id)
	for eid, e := range r.enrollments {
		if e.CourseID == id {
			delete(r.enrollments, eid)
		}
	}
	return nil
}

func (r *MemoryRepository) CreateEnrollment(_ context.Context, e *models.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.courses[e.CourseID]; !ok {
		return models.ErrCourseNotFound
	}
	for _, existing := range r.enrollments {
		if existing.LearnerID == e.LearnerID && existing.CourseID == e.CourseID {
			return models.ErrAlreadyEnrolled
		}
	}
	r.nextEnroll++
	e.ID = r.nextEnroll
	cp := *e
	r.enrollments[e.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetEnrollment(_ context.Context, id int64) (*models.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.enrollments[id]
	if !ok {
		return nil, models.ErrEnrollmentNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *MemoryRepository) FindEnrollment(_ context.Context, learnerID string, courseID int64) (*models.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.enrollments {
		if e.LearnerID == learnerID && e.CourseID == courseID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, models.ErrEnrollmentNotFound
}

func (r *MemoryRepository) ListEnrollments(_ context.Context, learnerID string, limit, offset int) ([]*models.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.Enrollment, 0)
	for _, e := range r.enrollments {
		if e.LearnerID != learnerID {
			continue
		}
		cp := *e
		if c, ok := r.courses[e.CourseID]; ok {
			course := *c
			cp.Course = &course
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, limit, offset), nil
}

func (r *MemoryRepository) SetEnrollmentCorrelation(_ context.Context, id int64, transactionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.enrollments[id]
	if !ok {
		return models.ErrEnrollmentNotFound
	}
	e.CorrelationTransactionID = transactionID
	e.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) ActivateEnrollment(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.enrollments[id]
	if !ok {
		return false, models.ErrEnrollmentNotFound
	}
	if e.PaymentValidated {
		return false, nil
	}
	e.PaymentValidated = true
	e.UpdatedAt = time.Now()
	if c, ok := r.courses[e.CourseID]; ok {
		c.EnrolledCount++
	}
	return true, nil
}

func (r *MemoryRepository) DeleteUnpaidEnrollment(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.enrollments[id]
	if !ok {
		return nil
	}
	if e.PaymentValidated {
		return models.ErrEnrollmentPaid
	}
	delete(r.enrollments, id)
	return nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
