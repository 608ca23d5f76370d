package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/edulearn/backend/internal/commerce"
	"github.com/edulearn/backend/internal/ledgerclient"
	"github.com/edulearn/backend/internal/models"
)

type CommerceHandler struct {
	service   *commerce.Service
	validator *ValidationHelper
	log       *zap.Logger
}

func NewCommerceHandler(service *commerce.Service, log *zap.Logger) *CommerceHandler {
	return &CommerceHandler{
		service:   service,
		validator: NewValidationHelper(),
		log:       log,
	}
}

type CreateCourseRequest struct {
	InstructorID      string          `json:"instructorId" validate:"required,max=64"`
	InstructorAccount string          `json:"instructorAccount" validate:"required,max=32"`
	Title             string          `json:"title" validate:"required,max=255"`
	Description       string          `json:"description" validate:"required"`
	Price             decimal.Decimal `json:"price"`
	Duration          string          `json:"duration" validate:"required,max=64"`
	Level             string          `json:"level,omitempty" validate:"omitempty,oneof=beginner intermediate advanced"`
}

type EnrollRequest struct {
	LearnerID        string `json:"learnerId" validate:"required,max=64"`
	LearnerAccount   string `json:"learnerAccount" validate:"required,max=32"`
	SecretCredential string `json:"secretCredential" validate:"required"`
	CourseID         int64  `json:"courseId" validate:"required,gt=0"`
}

// CreateCourse
// @Summary Create course
// @Description Store a pending course and open its creation reward with the ledger.
// @Tags Courses
// @Accept json
// @Produce json
// @Param request body CreateCourseRequest true "Course"
// @Success 201 {object} models.Course
// @Failure 400 {object} models.ErrorResponse
// @Failure 402 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /courses [post]
func (h *CommerceHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req CreateCourseRequest
	if !h.validator.Decode(w, r, &req) {
		return
	}
	if req.Level == "" {
		req.Level = "beginner"
	}

	course, err := h.service.CreateCourse(r.Context(), commerce.CourseRequest{
		InstructorID:      req.InstructorID,
		InstructorAccount: req.InstructorAccount,
		Title:             req.Title,
		Description:       req.Description,
		Price:             req.Price,
		Duration:          req.Duration,
		Level:             req.Level,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusCreated, course)
}

// GetCourse
// @Summary Get course
// @Tags Courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} models.Course
// @Failure 404 {object} models.ErrorResponse
// @Router /courses/{id} [get]
func (h *CommerceHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	course, err := h.service.GetCourse(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, course)
}

// ListCourses is the course catalogue
// @Summary List courses
// @Description Active courses by default. With instructorId, every course of that instructor including pending ones.
// @Tags Courses
// @Produce json
// @Param status query string false "pending, active or rejected"
// @Param instructorId query string false "Instructor ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} models.Course
// @Failure 400 {object} models.ErrorResponse
// @Router /courses [get]
func (h *CommerceHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := page(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := models.CourseFilter{
		Status:       models.CourseStatus(q.Get("status")),
		InstructorID: q.Get("instructorId"),
		Limit:        limit,
		Offset:       offset,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		SendErrorResponse(w, "Unknown status", http.StatusBadRequest, nil)
		return
	}

	courses, err := h.service.ListCourses(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, nonNil(courses))
}

// ActivateCourse is the ledger's funding callback
// @Summary Activate course
// @Tags Callbacks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 200 {object} models.Course
// @Failure 404 {object} models.ErrorResponse
// @Router /courses/{id}/activate [put]
func (h *CommerceHandler) ActivateCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	course, err := h.service.ActivateCourse(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, course)
}

// CompensateCourse is the ledger's rejection callback
// @Summary Compensate course
// @Description Delete a course whose funding was refused. Active courses are kept.
// @Tags Callbacks
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 204
// @Failure 409 {object} models.ErrorResponse
// @Router /courses/{id} [delete]
func (h *CommerceHandler) CompensateCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.CompensateCourse(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Enroll
// @Summary Enroll in course
// @Description Store an unpaid enrollment and open the learner's payment with the ledger.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param request body EnrollRequest true "Enrollment"
// @Success 201 {object} models.Enrollment
// @Failure 401 {object} models.ErrorResponse
// @Failure 402 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /enrollments [post]
func (h *CommerceHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if !h.validator.Decode(w, r, &req) {
		return
	}

	enrollment, err := h.service.Enroll(r.Context(), commerce.EnrollRequest{
		LearnerID:        req.LearnerID,
		LearnerAccount:   req.LearnerAccount,
		SecretCredential: req.SecretCredential,
		CourseID:         req.CourseID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusCreated, enrollment)
}

// GetEnrollment
// @Summary Get enrollment
// @Tags Enrollments
// @Produce json
// @Param id path int true "Enrollment ID"
// @Success 200 {object} models.Enrollment
// @Failure 404 {object} models.ErrorResponse
// @Router /enrollments/{id} [get]
func (h *CommerceHandler) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	enrollment, err := h.service.GetEnrollment(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, enrollment)
}

// ListEnrollments
// @Summary List a learner's enrollments
// @Description Newest first, each with its course. Unpaid enrollments stay listed until the ledger decides.
// @Tags Enrollments
// @Produce json
// @Param learnerId query string true "Learner ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} models.Enrollment
// @Failure 400 {object} models.ErrorResponse
// @Router /enrollments [get]
func (h *CommerceHandler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	learnerID := r.URL.Query().Get("learnerId")
	if learnerID == "" {
		SendErrorResponse(w, "learnerId is required", http.StatusBadRequest, nil)
		return
	}
	limit, offset, ok := page(w, r)
	if !ok {
		return
	}

	enrollments, err := h.service.ListEnrollments(r.Context(), learnerID, limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, nonNil(enrollments))
}

// CheckAccess
// @Summary Check course access
// @Tags Enrollments
// @Produce json
// @Param learnerId query string true "Learner ID"
// @Param courseId query int true "Course ID"
// @Success 200 {object} commerce.Access
// @Failure 404 {object} models.ErrorResponse
// @Router /enrollments/access [get]
func (h *CommerceHandler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	learnerID := q.Get("learnerId")
	courseID, err := strconv.ParseInt(q.Get("courseId"), 10, 64)
	if learnerID == "" || err != nil {
		SendErrorResponse(w, "learnerId and numeric courseId are required", http.StatusBadRequest, nil)
		return
	}

	access, err := h.service.CheckAccess(r.Context(), learnerID, courseID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, access)
}

// ActivateEnrollment is the ledger's payment callback
// @Summary Activate enrollment
// @Tags Callbacks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Enrollment ID"
// @Success 200 {object} models.Enrollment
// @Failure 404 {object} models.ErrorResponse
// @Router /enrollments/{id}/activate [post]
func (h *CommerceHandler) ActivateEnrollment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	enrollment, err := h.service.ActivateEnrollment(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, enrollment)
}

// CompensateEnrollment is the ledger's rejection callback
// @Summary Compensate enrollment
// @Description Delete an unpaid enrollment. Paid enrollments are kept.
// @Tags Callbacks
// @Security BearerAuth
// @Param id path int true "Enrollment ID"
// @Success 204
// @Failure 409 {object} models.ErrorResponse
// @Router /enrollments/{id} [delete]
func (h *CommerceHandler) CompensateEnrollment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.CompensateEnrollment(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CommerceHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ledgerErr *ledgerclient.Error
	if errors.As(err, &ledgerErr) && models.ErrorCode(err) == "" {
		h.log.Error("Ledger call failed", zap.String("path", r.URL.Path), zap.Error(err))
		SendErrorResponse(w, "Ledger service error", http.StatusBadGateway, nil)
		return
	}
	if StatusFor(err) == http.StatusInternalServerError {
		h.log.Error("Commerce request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	WriteError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		SendErrorResponse(w, "id must be a positive integer", http.StatusBadRequest, nil)
		return 0, false
	}
	return id, true
}
