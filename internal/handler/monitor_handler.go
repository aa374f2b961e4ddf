package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/NTA1210/learning-management-system-sub002/internal/config"
	"github.com/NTA1210/learning-management-system-sub002/internal/middleware"
	"github.com/NTA1210/learning-management-system-sub002/internal/response"
	"github.com/NTA1210/learning-management-system-sub002/internal/service"
)

const keepAliveInterval = 30 * time.Second

// MonitorHandler streams live attempt progress to quiz owners over SSE.
type MonitorHandler struct {
	rdb         *redis.Client
	quizService *service.QuizService
	log         zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(rdb *redis.Client, quizService *service.QuizService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		rdb:         rdb,
		quizService: quizService,
		log:         log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorQuizSSE godoc
// GET /api/v1/staff/quizzes/:quiz_id/monitor
// Sends a snapshot of current per-student progress, then forwards live
// progress events from the quiz's pub/sub channel.
func (h *MonitorHandler) MonitorQuizSSE(c *gin.Context) {
	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// Ownership check doubles as existence check.
	if _, err := h.quizService.GetQuizByID(c.Request.Context(), quizID, middleware.GetRequester(c)); err != nil {
		response.FailDomain(c, err)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c, quizID)

	channelName := config.CacheKey.QuizMonitorChannel(quizID.String())
	pubsub := h.rdb.Subscribe(reqCtx, channelName)
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	h.log.Info().Str("quiz_id", quizID.String()).Msg("Teacher attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("quiz_id", quizID.String()).Msg("Teacher disconnected from live monitor SSE")
			return

		case msg := <-ch:
			// Forward raw JSON directly, no deserialization needed.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendSnapshot reads the per-quiz progress hash and emits the initial
// state so the monitor UI does not start empty.
func (h *MonitorHandler) sendSnapshot(c *gin.Context, quizID uuid.UUID) {
	entries, err := h.rdb.HGetAll(c.Request.Context(), config.CacheKey.QuizProgressKey(quizID.String())).Result()
	if err != nil {
		h.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("Snapshot read failed")
		entries = nil
	}

	students := make([]json.RawMessage, 0, len(entries))
	for _, raw := range entries {
		students = append(students, json.RawMessage(raw))
	}

	c.SSEvent("message", map[string]interface{}{
		"type":     "snapshot",
		"students": students,
	})
	c.Writer.Flush()
}
