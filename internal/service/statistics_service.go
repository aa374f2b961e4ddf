package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/NTA1210/learning-management-system-sub002/internal/apperr"
	"github.com/NTA1210/learning-management-system-sub002/internal/model"
	"github.com/NTA1210/learning-management-system-sub002/internal/stats"
)

// QuizStatistics is the full per-quiz report: aggregate descriptive
// statistics plus the score-ordered ranking. Soft-deleted and banned
// attempts never contribute.
type QuizStatistics struct {
	QuizID                 uuid.UUID             `json:"quiz_id"`
	TotalStudents          int                   `json:"total_students"`
	SubmittedCount         int                   `json:"submitted_count"`
	AverageScore           float64               `json:"average_score"`
	MedianScore            float64               `json:"median_score"`
	MinMax                 *stats.Extremes       `json:"min_max"`
	StandardDeviationScore *float64              `json:"standard_deviation_score"`
	ScoreDistribution      []stats.Bucket        `json:"score_distribution"`
	Students               []stats.RankedStudent `json:"students"`
}

// StatisticsService computes quiz reports on demand. Nothing is cached:
// the report always reflects submissions at call time, including manual
// score overrides.
type StatisticsService struct {
	attempts AttemptStore
	quizzes  QuizStore
	courses  CourseStore
	log      zerolog.Logger
}

// NewStatisticsService creates a new StatisticsService.
func NewStatisticsService(attempts AttemptStore, quizzes QuizStore, courses CourseStore, log zerolog.Logger) *StatisticsService {
	return &StatisticsService{
		attempts: attempts,
		quizzes:  quizzes,
		courses:  courses,
		log:      log.With().Str("component", "statistics_service").Logger(),
	}
}

// GetQuizStatistics builds the report for the quiz owner (or an admin).
// Min and max are taken over the distinct score values; every other figure
// uses the raw submitted scores.
func (s *StatisticsService) GetQuizStatistics(ctx context.Context, quizID uuid.UUID, req model.Requester) (*QuizStatistics, error) {
	quiz, err := s.quizzes.GetByID(ctx, quizID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("quiz not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}

	switch req.Role {
	case model.RoleAdmin:
	case model.RoleTeacher:
		if quiz.CreatedBy != req.UserID {
			return nil, apperr.Unauthorized("not the creator of this quiz")
		}
	default:
		return nil, apperr.Unauthorized("teachers and admins only")
	}

	total, err := s.courses.CountApprovedStudents(ctx, quiz.CourseID)
	if err != nil {
		return nil, fmt.Errorf("count students: %w", err)
	}

	submitted, err := s.attempts.ListSubmittedByQuiz(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("list submitted: %w", err)
	}

	scores := make([]float64, len(submitted))
	for i, a := range submitted {
		scores[i] = a.Score
	}

	return &QuizStatistics{
		QuizID:                 quizID,
		TotalStudents:          total,
		SubmittedCount:         len(submitted),
		AverageScore:           stats.Mean(scores),
		MedianScore:            stats.Median(scores),
		MinMax:                 stats.MinMax(stats.Dedup(scores)),
		StandardDeviationScore: stats.StdDev(scores),
		ScoreDistribution:      stats.Histogram(scores, len(submitted)),
		Students:               stats.Rank(submitted),
	}, nil
}
