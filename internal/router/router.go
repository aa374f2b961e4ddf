package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/NTA1210/learning-management-system-sub002/internal/config"
	"github.com/NTA1210/learning-management-system-sub002/internal/handler"
	"github.com/NTA1210/learning-management-system-sub002/internal/middleware"
	"github.com/NTA1210/learning-management-system-sub002/internal/response"
	"github.com/NTA1210/learning-management-system-sub002/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth        *handler.AuthHandler
	StudentQuiz *handler.StudentQuizHandler
	TeacherQuiz *handler.TeacherQuizHandler
	WS          *handler.WSHandler
	Monitor     *handler.MonitorHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)

		// Authenticated profile routes
		auth.POST("/logout", middleware.RequireJWT(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.GET("/quizzes/:quiz_id", handlers.StudentQuiz.GetQuiz)
		studentAPI.POST("/quizzes/:quiz_id/enroll", handlers.StudentQuiz.Enroll)
		studentAPI.GET("/quizzes/:quiz_id/attempt", handlers.StudentQuiz.GetAttemptState)
		studentAPI.PATCH("/attempts/:attempt_id/answers", handlers.StudentQuiz.AutoSave)
		studentAPI.PUT("/attempts/:attempt_id/answers", handlers.StudentQuiz.Save)
		studentAPI.POST("/attempts/:attempt_id/submit", handlers.StudentQuiz.Submit)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 4. Staff Group (Teacher/Admin JWT) ────────────────────────────
	staffAPI := router.Group("/api/v1/staff")
	staffAPI.Use(middleware.RequireStaffJWT(authService))
	{
		staffAPI.POST("/courses/:course_id/quizzes", handlers.TeacherQuiz.CreateQuiz)
		staffAPI.GET("/courses/:course_id/quizzes", handlers.TeacherQuiz.ListQuizzes)

		staffAPI.GET("/quizzes/:quiz_id", handlers.TeacherQuiz.GetQuiz)
		staffAPI.PATCH("/quizzes/:quiz_id", handlers.TeacherQuiz.UpdateQuiz)
		staffAPI.PUT("/quizzes/:quiz_id/password", handlers.TeacherQuiz.SetPassword)
		staffAPI.GET("/quizzes/:quiz_id/statistics", handlers.TeacherQuiz.GetStatistics)
		staffAPI.GET("/quizzes/:quiz_id/monitor", handlers.Monitor.MonitorQuizSSE)

		staffAPI.POST("/attempts/:attempt_id/ban", handlers.TeacherQuiz.BanAttempt)
		staffAPI.DELETE("/attempts/:attempt_id", handlers.TeacherQuiz.DeleteAttempt)
		staffAPI.PUT("/attempts/:attempt_id/score", handlers.TeacherQuiz.UpdateScore)

		staffAPI.POST("/students/:student_id/reset-session", handlers.Auth.ResetStudentSession)
	}

	return router
}
