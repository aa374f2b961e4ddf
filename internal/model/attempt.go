package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates quiz attempt states. There is no explicit "not
// started" state: the absence of an attempt record is "not started".
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitted  AttemptStatus = "SUBMITTED"
	AttemptStatusAbandoned  AttemptStatus = "ABANDONED"
)

// Terminal reports whether no transition may leave this status.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptStatusSubmitted || s == AttemptStatusAbandoned
}

// QuestionAnswer is one answer slot inside an attempt. Question text,
// type, options and images are denormalized at enroll time so grading
// never depends on a mutable external question.
type QuestionAnswer struct {
	QuestionID   string       `json:"question_id"`
	Answer       OptionVector `json:"answer"`
	Text         string       `json:"text"`
	Type         QuestionType `json:"type"`
	Options      []string     `json:"options"`
	Images       []string     `json:"images,omitempty"`
	Correct      bool         `json:"correct"`
	PointsEarned float64      `json:"points_earned"`
}

// QuizAttempt is one student's single, unique record of taking one quiz.
// At most one attempt exists per (quiz, student) pair.
type QuizAttempt struct {
	ID          uuid.UUID        `json:"id"`
	QuizID      uuid.UUID        `json:"quiz_id"`
	StudentID   int              `json:"student_id"`
	Status      AttemptStatus    `json:"status"`
	Answers     []QuestionAnswer `json:"answers"`
	Score       *float64         `json:"score,omitempty"`
	IPAddress   string           `json:"ip_address,omitempty"`
	UserAgent   string           `json:"user_agent,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	SubmittedAt *time.Time       `json:"submitted_at,omitempty"`
	DeletedAt   *time.Time       `json:"deleted_at,omitempty"`
	DeletedBy   *int             `json:"deleted_by,omitempty"`
}

// AnsweredTotal counts answers whose vector selects at least one option.
func (a *QuizAttempt) AnsweredTotal() int {
	n := 0
	for _, ans := range a.Answers {
		if ans.Answer.Any() {
			n++
		}
	}
	return n
}

// AttemptProgress reports how much of an attempt has been answered.
type AttemptProgress struct {
	Total         int `json:"total"`
	AnsweredTotal int `json:"answered_total"`
}

// AttemptState is the lookup result for a student's attempt. Started is
// false when no record exists, so callers can tell "not started" apart
// from any real status.
type AttemptState struct {
	Started  bool             `json:"started"`
	Attempt  *QuizAttempt     `json:"attempt,omitempty"`
	Progress *AttemptProgress `json:"progress,omitempty"`
}

// AnswerUpdate replaces the selection vector of a single question.
type AnswerUpdate struct {
	QuestionID string       `json:"question_id" binding:"required"`
	Answer     OptionVector `json:"answer" binding:"required"`
}

// SaveAttemptRequest is the bulk checkpoint payload: the full answer set.
type SaveAttemptRequest struct {
	Answers []AnswerUpdate `json:"answers" binding:"required,dive"`
}

// UpdateScoreRequest is a teacher override of an attempt's stored score.
type UpdateScoreRequest struct {
	Score float64 `json:"score" binding:"min=0,max=10"`
}

// SubmittedAttempt is a graded attempt joined with student identity,
// as consumed by the statistics aggregator.
type SubmittedAttempt struct {
	AttemptID       uuid.UUID `json:"attempt_id"`
	StudentID       int       `json:"student_id"`
	StudentName     string    `json:"student_name"`
	StudentEmail    string    `json:"student_email"`
	Score           float64   `json:"score"`
	DurationSeconds float64   `json:"duration_seconds"`
}
