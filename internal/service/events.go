package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/NTA1210/learning-management-system-sub002/internal/config"
	"github.com/NTA1210/learning-management-system-sub002/internal/model"
)

// AuditAction enumerates the attempt lifecycle actions recorded for audit.
type AuditAction string

const (
	ActionEnroll   AuditAction = "ENROLL"
	ActionAutosave AuditAction = "AUTOSAVE"
	ActionSave     AuditAction = "SAVE"
	ActionSubmit   AuditAction = "SUBMIT"
	ActionBan      AuditAction = "BAN"
)

// AuditEvent is one audit record queued for write-behind persistence.
type AuditEvent struct {
	AttemptID uuid.UUID   `json:"attempt_id"`
	QuizID    uuid.UUID   `json:"quiz_id"`
	StudentID int         `json:"student_id"`
	Action    AuditAction `json:"action"`
	IPAddress string      `json:"ip_address,omitempty"`
	UserAgent string      `json:"user_agent,omitempty"`
	At        time.Time   `json:"at"`
}

// ProgressEvent is a live progress update for the teacher monitor.
type ProgressEvent struct {
	QuizID        uuid.UUID           `json:"quiz_id"`
	StudentID     int                 `json:"student_id"`
	Status        model.AttemptStatus `json:"status"`
	Total         int                 `json:"total"`
	AnsweredTotal int                 `json:"answered_total"`
}

// AttemptEvents receives best-effort lifecycle notifications. Losing an
// event never fails the student-facing operation that produced it.
type AttemptEvents interface {
	Audit(ctx context.Context, ev AuditEvent)
	Progress(ctx context.Context, ev ProgressEvent)
}

// RedisAttemptEvents queues audit events for the write-behind worker and
// fans progress out to the per-quiz monitor channel.
type RedisAttemptEvents struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisAttemptEvents creates a new RedisAttemptEvents.
func NewRedisAttemptEvents(rdb *redis.Client, log zerolog.Logger) *RedisAttemptEvents {
	return &RedisAttemptEvents{
		rdb: rdb,
		log: log.With().Str("component", "attempt_events").Logger(),
	}
}

func (e *RedisAttemptEvents) Audit(ctx context.Context, ev AuditEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		e.log.Error().Err(err).Msg("Marshal audit event")
		return
	}
	if err := e.rdb.RPush(ctx, config.WorkerKey.PersistAuditQueue, payload).Err(); err != nil {
		e.log.Warn().Err(err).
			Str("attempt_id", ev.AttemptID.String()).
			Msg("Queue audit event failed")
	}
}

func (e *RedisAttemptEvents) Progress(ctx context.Context, ev ProgressEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		e.log.Error().Err(err).Msg("Marshal progress event")
		return
	}

	quizID := ev.QuizID.String()
	pipe := e.rdb.Pipeline()
	pipe.HSet(ctx, config.CacheKey.QuizProgressKey(quizID), ev.StudentID, payload)
	pipe.Publish(ctx, config.CacheKey.QuizMonitorChannel(quizID), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		e.log.Warn().Err(err).
			Str("quiz_id", quizID).
			Int("student_id", ev.StudentID).
			Msg("Publish progress failed")
	}
}
