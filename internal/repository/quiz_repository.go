package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NTA1210/learning-management-system-sub002/internal/model"
)

// QuizRepository handles quiz data access. Question snapshots are stored
// as one jsonb document per quiz; they are written at authoring time and
// only re-written through the restricted update path.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

// GetByID retrieves a quiz with its frozen question snapshots.
func (r *QuizRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	quiz := &model.Quiz{}
	var questionsJSON []byte

	err := r.pool.QueryRow(ctx,
		`SELECT id, course_id, title, description, start_time, end_time,
		        shuffle_questions, password_hash, questions, created_by,
		        created_at, updated_at
		 FROM quizzes
		 WHERE id = $1`, id,
	).Scan(
		&quiz.ID, &quiz.CourseID, &quiz.Title, &quiz.Description,
		&quiz.StartTime, &quiz.EndTime, &quiz.ShuffleQuestions,
		&quiz.PasswordHash, &questionsJSON, &quiz.CreatedBy,
		&quiz.CreatedAt, &quiz.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(questionsJSON, &quiz.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	return quiz, nil
}

// Create inserts a new quiz with its snapshot questions.
func (r *QuizRepository) Create(ctx context.Context, quiz *model.Quiz) error {
	questionsJSON, err := json.Marshal(quiz.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO quizzes
		   (course_id, title, description, start_time, end_time,
		    shuffle_questions, password_hash, questions, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		quiz.CourseID, quiz.Title, quiz.Description, quiz.StartTime,
		quiz.EndTime, quiz.ShuffleQuestions, quiz.PasswordHash,
		questionsJSON, quiz.CreatedBy,
	).Scan(&quiz.ID, &quiz.CreatedAt, &quiz.UpdatedAt)
}

// Update rewrites the mutable quiz fields and the snapshot document.
// Callers enforce the ongoing-quiz edit restrictions before reaching here.
func (r *QuizRepository) Update(ctx context.Context, quiz *model.Quiz) error {
	questionsJSON, err := json.Marshal(quiz.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE quizzes
		 SET title = $2, description = $3, start_time = $4, end_time = $5,
		     shuffle_questions = $6, password_hash = $7, questions = $8,
		     updated_at = NOW()
		 WHERE id = $1`,
		quiz.ID, quiz.Title, quiz.Description, quiz.StartTime, quiz.EndTime,
		quiz.ShuffleQuestions, quiz.PasswordHash, questionsJSON,
	)
	return err
}

// ListByCourse retrieves all quizzes of a course, newest first.
func (r *QuizRepository) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]model.Quiz, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, course_id, title, description, start_time, end_time,
		        shuffle_questions, password_hash, questions, created_by,
		        created_at, updated_at
		 FROM quizzes
		 WHERE course_id = $1
		 ORDER BY start_time DESC`, courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []model.Quiz
	for rows.Next() {
		var quiz model.Quiz
		var questionsJSON []byte
		if err := rows.Scan(
			&quiz.ID, &quiz.CourseID, &quiz.Title, &quiz.Description,
			&quiz.StartTime, &quiz.EndTime, &quiz.ShuffleQuestions,
			&quiz.PasswordHash, &questionsJSON, &quiz.CreatedBy,
			&quiz.CreatedAt, &quiz.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(questionsJSON, &quiz.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal questions: %w", err)
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, rows.Err()
}
