package model

import (
	"time"

	"github.com/google/uuid"
)

// Quiz represents a time-boxed quiz. Its question snapshots are frozen at
// authoring time; once the quiz window opens only title, description and a
// forward move of EndTime may change.
type Quiz struct {
	ID               uuid.UUID          `json:"id"`
	CourseID         uuid.UUID          `json:"course_id"`
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	StartTime        time.Time          `json:"start_time"`
	EndTime          time.Time          `json:"end_time"`
	ShuffleQuestions bool               `json:"shuffle_questions"`
	PasswordHash     string             `json:"-"`
	Questions        []QuestionSnapshot `json:"questions"`
	CreatedBy        int                `json:"created_by"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// Ongoing reports whether now falls inside the quiz window.
func (q *Quiz) Ongoing(now time.Time) bool {
	return !now.Before(q.StartTime) && !now.After(q.EndTime)
}

// TotalPoints sums the point weights of all snapshot questions.
func (q *Quiz) TotalPoints() float64 {
	var total float64
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// StudentQuiz is the quiz payload safe to hand to students: no answer key,
// no explanations, no per-question points.
type StudentQuiz struct {
	ID               uuid.UUID         `json:"id"`
	CourseID         uuid.UUID         `json:"course_id"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	StartTime        time.Time         `json:"start_time"`
	EndTime          time.Time         `json:"end_time"`
	ShuffleQuestions bool              `json:"shuffle_questions"`
	Questions        []StudentQuestion `json:"questions"`
}

// CreateQuizRequest is the payload for authoring a quiz. Questions are
// snapshotted as given; the quiz never re-reads a live question bank.
type CreateQuizRequest struct {
	Title            string             `json:"title" binding:"required,min=3,max=255"`
	Description      string             `json:"description" binding:"max=5000"`
	StartTime        time.Time          `json:"start_time" binding:"required"`
	EndTime          time.Time          `json:"end_time" binding:"required"`
	ShuffleQuestions bool               `json:"shuffle_questions"`
	Password         string             `json:"password" binding:"omitempty,max=128"`
	Questions        []QuestionSnapshot `json:"questions" binding:"required,min=1"`
}

// UpdateQuizRequest is the payload for editing a quiz. While the quiz is
// ongoing only Title, Description and EndTime are honored.
type UpdateQuizRequest struct {
	Title       *string    `json:"title" binding:"omitempty,min=3,max=255"`
	Description *string    `json:"description" binding:"omitempty,max=5000"`
	StartTime   *time.Time `json:"start_time" binding:"omitempty"`
	EndTime     *time.Time `json:"end_time" binding:"omitempty"`
	// AddQuestions appends new snapshots; EditQuestions replaces existing
	// ones by id; RemoveQuestionIDs deletes by id. Only honored before the
	// quiz window opens.
	AddQuestions      []QuestionSnapshot `json:"add_questions" binding:"omitempty"`
	EditQuestions     []QuestionSnapshot `json:"edit_questions" binding:"omitempty"`
	RemoveQuestionIDs []string           `json:"remove_question_ids" binding:"omitempty"`
}

// EnrollQuizRequest is the payload for a student entering a quiz.
type EnrollQuizRequest struct {
	Password string `json:"password" binding:"omitempty,max=128"`
}
