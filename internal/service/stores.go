package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/NTA1210/learning-management-system-sub002/internal/model"
)

// Store interfaces decouple the lifecycle logic from pgx so the state
// machine is testable against in-memory fakes. Implementations signal
// "no row" with pgx.ErrNoRows; services translate that to NotFound.

// QuizStore is the quiz read/write surface the services need.
type QuizStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error)
	Create(ctx context.Context, quiz *model.Quiz) error
	Update(ctx context.Context, quiz *model.Quiz) error
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]model.Quiz, error)
}

// AttemptStore is the attempt persistence surface. Create and every state
// transition are atomic: CreateIfAbsent is insert-if-absent on the unique
// (quiz, student) key, and the Mark* methods are conditional writes that
// report whether the status precondition still held at apply time.
type AttemptStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.QuizAttempt, error)
	GetByQuizAndStudent(ctx context.Context, quizID uuid.UUID, studentID int) (*model.QuizAttempt, error)
	CreateIfAbsent(ctx context.Context, attempt *model.QuizAttempt) (bool, error)
	UpdateAnswers(ctx context.Context, id uuid.UUID, answers []model.QuestionAnswer) (bool, error)
	MarkSubmitted(ctx context.Context, id uuid.UUID, answers []model.QuestionAnswer, score float64, at time.Time) (bool, error)
	MarkAbandoned(ctx context.Context, id uuid.UUID) (bool, error)
	SoftDelete(ctx context.Context, id uuid.UUID, by int, at time.Time) (bool, error)
	UpdateScore(ctx context.Context, id uuid.UUID, score float64) (bool, error)
	ListSubmittedByQuiz(ctx context.Context, quizID uuid.UUID) ([]model.SubmittedAttempt, error)
}

// CourseStore is the membership oracle. These are fast local lookups;
// course management itself is outside this service.
type CourseStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Course, error)
	IsApprovedStudent(ctx context.Context, studentID int, courseID uuid.UUID) (bool, error)
	IsTeacherOf(ctx context.Context, teacherID int, courseID uuid.UUID) (bool, error)
	CountApprovedStudents(ctx context.Context, courseID uuid.UUID) (int, error)
}
