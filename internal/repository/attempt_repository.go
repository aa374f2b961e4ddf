package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NTA1210/learning-management-system-sub002/internal/model"
)

// AttemptRepository handles quiz attempt data access. The quiz_attempts
// table carries a UNIQUE (quiz_id, student_id) constraint; enroll races
// resolve through insert-if-absent, and every state transition is an
// atomic conditional update on status.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, quiz_id, student_id, status, answers, score,
	ip_address, user_agent, started_at, submitted_at, deleted_at, deleted_by`

func scanAttempt(row interface{ Scan(...any) error }) (*model.QuizAttempt, error) {
	a := &model.QuizAttempt{}
	var answersJSON []byte

	err := row.Scan(
		&a.ID, &a.QuizID, &a.StudentID, &a.Status, &answersJSON, &a.Score,
		&a.IPAddress, &a.UserAgent, &a.StartedAt, &a.SubmittedAt,
		&a.DeletedAt, &a.DeletedBy,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(answersJSON, &a.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	return a, nil
}

// GetByID retrieves an attempt by id. Soft-deleted attempts are invisible.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.QuizAttempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM quiz_attempts
		 WHERE id = $1 AND deleted_at IS NULL`, id,
	))
}

// GetByQuizAndStudent retrieves the unique attempt for a (quiz, student) pair.
func (r *AttemptRepository) GetByQuizAndStudent(ctx context.Context, quizID uuid.UUID, studentID int) (*model.QuizAttempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM quiz_attempts
		 WHERE quiz_id = $1 AND student_id = $2 AND deleted_at IS NULL`,
		quizID, studentID,
	))
}

// CreateIfAbsent inserts a fresh IN_PROGRESS attempt, setting fields only
// on insert. Concurrent enrolls from the same student collapse onto the
// single winning record: the loser gets created=false and must re-read.
func (r *AttemptRepository) CreateIfAbsent(ctx context.Context, a *model.QuizAttempt) (bool, error) {
	answersJSON, err := json.Marshal(a.Answers)
	if err != nil {
		return false, fmt.Errorf("marshal answers: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO quiz_attempts
		   (quiz_id, student_id, status, answers, ip_address, user_agent, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (quiz_id, student_id) DO NOTHING
		 RETURNING id`,
		a.QuizID, a.StudentID, model.AttemptStatusInProgress, answersJSON,
		a.IPAddress, a.UserAgent, a.StartedAt,
	).Scan(&a.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict: another enroll won the race.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	a.Status = model.AttemptStatusInProgress
	return true, nil
}

// UpdateAnswers replaces the whole answer document. The status guard makes
// the write a no-op once the attempt left IN_PROGRESS, so an autosave
// racing a submit or ban can never resurrect answers.
func (r *AttemptRepository) UpdateAnswers(ctx context.Context, id uuid.UUID, answers []model.QuestionAnswer) (bool, error) {
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return false, fmt.Errorf("marshal answers: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE quiz_attempts
		 SET answers = $2
		 WHERE id = $1 AND status = $3 AND deleted_at IS NULL`,
		id, answersJSON, model.AttemptStatusInProgress,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkSubmitted transitions IN_PROGRESS → SUBMITTED, persisting the graded
// answers and score in the same atomic write. Returns false when the
// status precondition no longer held at apply time (double submit, or a
// ban won the race).
func (r *AttemptRepository) MarkSubmitted(ctx context.Context, id uuid.UUID, answers []model.QuestionAnswer, score float64, at time.Time) (bool, error) {
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return false, fmt.Errorf("marshal answers: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE quiz_attempts
		 SET status = $2, answers = $3, score = $4, submitted_at = $5
		 WHERE id = $1 AND status = $6 AND deleted_at IS NULL`,
		id, model.AttemptStatusSubmitted, answersJSON, score, at,
		model.AttemptStatusInProgress,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkAbandoned transitions IN_PROGRESS → ABANDONED. Returns false when
// the attempt already reached a terminal state.
func (r *AttemptRepository) MarkAbandoned(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quiz_attempts
		 SET status = $2
		 WHERE id = $1 AND status = $3 AND deleted_at IS NULL`,
		id, model.AttemptStatusAbandoned, model.AttemptStatusInProgress,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SoftDelete marks an attempt deleted. Reads filter on deleted_at, so the
// record disappears from every consumer while staying auditable.
func (r *AttemptRepository) SoftDelete(ctx context.Context, id uuid.UUID, by int, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quiz_attempts
		 SET deleted_at = $2, deleted_by = $3
		 WHERE id = $1 AND deleted_at IS NULL`,
		id, at, by,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateScore overrides the stored score of a submitted attempt without
// touching the graded answers.
func (r *AttemptRepository) UpdateScore(ctx context.Context, id uuid.UUID, score float64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quiz_attempts
		 SET score = $2
		 WHERE id = $1 AND status = $3 AND deleted_at IS NULL`,
		id, score, model.AttemptStatusSubmitted,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListSubmittedByQuiz retrieves all submitted attempts for a quiz with
// student identity and completion duration, for the statistics report.
func (r *AttemptRepository) ListSubmittedByQuiz(ctx context.Context, quizID uuid.UUID) ([]model.SubmittedAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.student_id, u.name, u.email,
		        COALESCE(a.score, 0),
		        EXTRACT(EPOCH FROM (a.submitted_at - a.started_at))
		 FROM quiz_attempts a
		 JOIN users u ON a.student_id = u.id
		 WHERE a.quiz_id = $1 AND a.status = $2 AND a.deleted_at IS NULL`,
		quizID, model.AttemptStatusSubmitted,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.SubmittedAttempt
	for rows.Next() {
		var a model.SubmittedAttempt
		if err := rows.Scan(
			&a.AttemptID, &a.StudentID, &a.StudentName, &a.StudentEmail,
			&a.Score, &a.DurationSeconds,
		); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
