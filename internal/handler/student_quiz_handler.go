package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/NTA1210/learning-management-system-sub002/internal/middleware"
	"github.com/NTA1210/learning-management-system-sub002/internal/model"
	"github.com/NTA1210/learning-management-system-sub002/internal/response"
	"github.com/NTA1210/learning-management-system-sub002/internal/service"
	"github.com/NTA1210/learning-management-system-sub002/internal/validator"
)

// StudentQuizHandler handles the student-facing quiz and attempt endpoints.
type StudentQuizHandler struct {
	quizService    *service.QuizService
	attemptService *service.AttemptService
}

// NewStudentQuizHandler creates a new StudentQuizHandler.
func NewStudentQuizHandler(quizService *service.QuizService, attemptService *service.AttemptService) *StudentQuizHandler {
	return &StudentQuizHandler{
		quizService:    quizService,
		attemptService: attemptService,
	}
}

// GetQuiz godoc
// GET /api/v1/student/quizzes/:quiz_id
// Returns the stripped quiz payload, question order already personalized.
func (h *StudentQuizHandler) GetQuiz(c *gin.Context) {
	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	quiz, err := h.quizService.GetQuizForStudent(c.Request.Context(), quizID, middleware.GetRequester(c))
	if err != nil {
		response.FailDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// Enroll godoc
// POST /api/v1/student/quizzes/:quiz_id/enroll
// Creates or resumes the caller's attempt for the quiz.
func (h *StudentQuizHandler) Enroll(c *gin.Context) {
	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.EnrollQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.Enroll(c.Request.Context(), quizID, req.Password, middleware.GetRequester(c), service.AuditMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.FailDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// GetAttemptState godoc
// GET /api/v1/student/quizzes/:quiz_id/attempt
// Reports the caller's attempt for the quiz, or started=false if none.
func (h *StudentQuizHandler) GetAttemptState(c *gin.Context) {
	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.attemptService.GetAttemptState(c.Request.Context(), quizID, middleware.GetRequester(c))
	if err != nil {
		response.FailDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// AutoSave godoc
// PATCH /api/v1/student/attempts/:attempt_id/answers
// Overwrites a single answer vector. HTTP fallback for the WebSocket stream.
func (h *StudentQuizHandler) AutoSave(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.AnswerUpdate
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	_, progress, err := h.attemptService.AutoSave(c.Request.Context(), attemptID, middleware.GetRequester(c), req, service.AuditMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.FailDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"progress": progress})
}

// Save godoc
// PUT /api/v1/student/attempts/:attempt_id/answers
// Atomically replaces the caller's full answer set.
func (h *StudentQuizHandler) Save(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SaveAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	_, progress, err := h.attemptService.Save(c.Request.Context(), attemptID, middleware.GetRequester(c), req.Answers, service.AuditMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.FailDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"progress": progress})
}

// Submit godoc
// POST /api/v1/student/attempts/:attempt_id/submit
// Grades the attempt and finalizes it. First submit wins.
func (h *StudentQuizHandler) Submit(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.attemptService.Submit(c.Request.Context(), attemptID, middleware.GetRequester(c), service.AuditMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.FailDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}
