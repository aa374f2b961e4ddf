package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/NTA1210/learning-management-system-sub002/internal/middleware"
	"github.com/NTA1210/learning-management-system-sub002/internal/model"
	"github.com/NTA1210/learning-management-system-sub002/internal/service"
	ws "github.com/NTA1210/learning-management-system-sub002/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the WebSocket attempt stream.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/attempts/:attempt_id/stream
// Upgrades to WebSocket for low-latency autosave, checkpointing and submit.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt ID"})
		return
	}

	req := model.Requester{UserID: claims.UserID, Role: claims.Role}
	// Audit metadata is fixed at upgrade time for the whole stream.
	meta := service.AuditMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", claims.UserID).
		Str("attempt_id", attemptID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			ws.WriteError(conn, "malformed message")
			continue
		}

		switch envelope.Action {
		case ws.ActionAutosave:
			h.handleAutosave(conn, wsLog, attemptID, req, meta, raw)
		case ws.ActionSave:
			h.handleSave(conn, wsLog, attemptID, req, meta, raw)
		case ws.ActionSubmit:
			h.handleSubmit(conn, wsLog, attemptID, req, meta)
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(envelope.Action))
		}
	}
}

func (h *WSHandler) handleAutosave(conn *websocket.Conn, wsLog zerolog.Logger, attemptID uuid.UUID, req model.Requester, meta service.AuditMeta, raw []byte) {
	var msg ws.AutosaveRequest
	if err := json.Unmarshal(raw, &msg); err != nil || msg.QID == "" {
		ws.WriteError(conn, "q_id and ans are required")
		return
	}

	_, progress, err := h.attemptService.AutoSave(context.Background(), attemptID, req, model.AnswerUpdate{
		QuestionID: msg.QID,
		Answer:     msg.Answer,
	}, meta)
	if err != nil {
		wsLog.Debug().Err(err).Str("q_id", msg.QID).Msg("Autosave rejected")
		ws.WriteError(conn, err.Error())
		return
	}

	ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSuccess, Status: "saved", Progress: progress})
}

func (h *WSHandler) handleSave(conn *websocket.Conn, wsLog zerolog.Logger, attemptID uuid.UUID, req model.Requester, meta service.AuditMeta, raw []byte) {
	var msg ws.SaveRequest
	if err := json.Unmarshal(raw, &msg); err != nil || len(msg.Answers) == 0 {
		ws.WriteError(conn, "answers are required")
		return
	}

	_, progress, err := h.attemptService.Save(context.Background(), attemptID, req, msg.Answers, meta)
	if err != nil {
		wsLog.Debug().Err(err).Msg("Save rejected")
		ws.WriteError(conn, err.Error())
		return
	}

	ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSuccess, Status: "saved", Progress: progress})
}

func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, attemptID uuid.UUID, req model.Requester, meta service.AuditMeta) {
	result, err := h.attemptService.Submit(context.Background(), attemptID, req, meta)
	if err != nil {
		wsLog.Debug().Err(err).Msg("Submit rejected")
		ws.WriteError(conn, err.Error())
		return
	}

	wsLog.Info().
		Float64("score", result.FinalScore()).
		Int("total", result.TotalQuestions).
		Msg("Attempt submitted and graded")

	ws.WriteTyped(conn, ws.GradedResponse{
		Event:  ws.EventGraded,
		Status: "completed",
		Score:  result.FinalScore(),
	})
}
