package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/NTA1210/learning-management-system-sub002/internal/config"
	"github.com/NTA1210/learning-management-system-sub002/internal/middleware"
	"github.com/NTA1210/learning-management-system-sub002/internal/model"
	"github.com/NTA1210/learning-management-system-sub002/internal/response"
	"github.com/NTA1210/learning-management-system-sub002/internal/service"
	"github.com/NTA1210/learning-management-system-sub002/internal/validator"
)

// TeacherQuizHandler handles the staff-facing quiz moderation and
// reporting endpoints.
type TeacherQuizHandler struct {
	cfg         *config.Config
	quizService *service.QuizService
	attempts    *service.AttemptService
	statsSvc    *service.StatisticsService
}

// NewTeacherQuizHandler creates a new TeacherQuizHandler.
func NewTeacherQuizHandler(
	cfg *config.Config,
	quizService *service.QuizService,
	attempts *service.AttemptService,
	statsSvc *service.StatisticsService,
) *TeacherQuizHandler {
	return &TeacherQuizHandler{
		cfg:         cfg,
		quizService: quizService,
		attempts:    attempts,
		statsSvc:    statsSvc,
	}
}

// CreateQuiz godoc
// POST /api/v1/staff/courses/:course_id/quizzes
// Authors a new quiz with a frozen question snapshot.
func (h *TeacherQuizHandler) CreateQuiz(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.CreateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.CreateQuiz(c.Request.Context(), courseID, req, h.cfg.BcryptCost, middleware.GetRequester(c))
	if err != nil {
		response.FailDomain(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"quiz": quiz})
}

// ListQuizzes godoc
// GET /api/v1/staff/courses/:course_id/quizzes
// Lists every quiz in a course, answer keys included.
func (h *TeacherQuizHandler) ListQuizzes(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	quizzes, err := h.quizService.ListQuizzesByCourse(c.Request.Context(), courseID, middleware.GetRequester(c))
	if err != nil {
		response.FailDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quizzes": quizzes})
}

// GetQuiz godoc
// GET /api/v1/staff/quizzes/:quiz_id
// Returns the full quiz including the answer key.
func (h *TeacherQuizHandler) GetQuiz(c *gin.Context) {
	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	quiz, err := h.quizService.GetQuizByID(c.Request.Context(), quizID, middleware.GetRequester(c))
	if err != nil {
		response.FailDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// UpdateQuiz godoc
// PATCH /api/v1/staff/quizzes/:quiz_id
// Edits a quiz under the live-quiz restrictions.
func (h *TeacherQuizHandler) UpdateQuiz(c *gin.Context) {
	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.UpdateQuiz(c.Request.Context(), quizID, req, middleware.GetRequester(c))
	if err != nil {
		response.FailDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

type setPasswordRequest struct {
	Password string `json:"password" binding:"omitempty,max=128"`
}

// SetPassword godoc
// PUT /api/v1/staff/quizzes/:quiz_id/password
// Sets the quiz access password; an empty password clears it.
func (h *TeacherQuizHandler) SetPassword(c *gin.Context) {
	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req setPasswordRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.quizService.SetAccessPassword(c.Request.Context(), quizID, req.Password, h.cfg.BcryptCost, middleware.GetRequester(c)); err != nil {
		response.FailDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// GetStatistics godoc
// GET /api/v1/staff/quizzes/:quiz_id/statistics
// Returns the aggregate report and per-student ranking for a quiz.
func (h *TeacherQuizHandler) GetStatistics(c *gin.Context) {
	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	report, err := h.statsSvc.GetQuizStatistics(c.Request.Context(), quizID, middleware.GetRequester(c))
	if err != nil {
		response.FailDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, report)
}

// BanAttempt godoc
// POST /api/v1/staff/attempts/:attempt_id/ban
// Abandons an in-progress attempt. Submitted attempts cannot be banned.
func (h *TeacherQuizHandler) BanAttempt(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.attempts.Ban(c.Request.Context(), attemptID, middleware.GetRequester(c)); err != nil {
		response.FailDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// DeleteAttempt godoc
// DELETE /api/v1/staff/attempts/:attempt_id
// Soft-deletes an attempt once the quiz window is closed.
func (h *TeacherQuizHandler) DeleteAttempt(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.attempts.Delete(c.Request.Context(), attemptID, middleware.GetRequester(c)); err != nil {
		response.FailDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// UpdateScore godoc
// PUT /api/v1/staff/attempts/:attempt_id/score
// Overrides the stored score of a submitted attempt.
func (h *TeacherQuizHandler) UpdateScore(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateScoreRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attempts.UpdateScore(c.Request.Context(), attemptID, req.Score, middleware.GetRequester(c)); err != nil {
		response.FailDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
