package websocket

import "github.com/NTA1210/learning-management-system-sub002/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSave     Action = "save"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AutosaveRequest is sent by the client to save a single answer vector.
type AutosaveRequest struct {
	Action Action             `json:"action"`
	QID    string             `json:"q_id"`
	Answer model.OptionVector `json:"ans"`
}

// SaveRequest is sent by the client to checkpoint the full answer set.
type SaveRequest struct {
	Action  Action               `json:"action"`
	Answers []model.AnswerUpdate `json:"answers"`
}

// SubmitRequest is sent by the client to finish and grade the attempt.
type SubmitRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSuccess Event = "success"
	EventGraded  Event = "graded"
	EventPong    Event = "pong"
)

type SavedResponse struct {
	Event    Event                  `json:"event"`
	Status   string                 `json:"status"`
	Progress *model.AttemptProgress `json:"progress,omitempty"`
}

type GradedResponse struct {
	Event  Event   `json:"event"`
	Status string  `json:"status"`
	Score  float64 `json:"score"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
