package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/NTA1210/learning-management-system-sub002/internal/apperr"
	"github.com/NTA1210/learning-management-system-sub002/internal/clock"
	"github.com/NTA1210/learning-management-system-sub002/internal/model"
)

// QuizService serves quiz payloads and enforces the edit restrictions on
// live quizzes. Students only ever see stripped payloads; the answer key
// stays server-side for the whole quiz lifetime.
type QuizService struct {
	quizzes QuizStore
	courses CourseStore
	cache   QuizPayloadCache
	clk     clock.Clock
	log     zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(quizzes QuizStore, courses CourseStore, cache QuizPayloadCache, clk clock.Clock, log zerolog.Logger) *QuizService {
	return &QuizService{
		quizzes: quizzes,
		courses: courses,
		cache:   cache,
		clk:     clk,
		log:     log.With().Str("component", "quiz_service").Logger(),
	}
}

// GetQuizForStudent returns the stripped quiz payload for an approved
// course member. When shuffling is enabled the question order is derived
// from the (quiz, student) pair, so reconnects see the same order without
// any stored state.
func (s *QuizService) GetQuizForStudent(ctx context.Context, quizID uuid.UUID, req model.Requester) (*model.StudentQuiz, error) {
	quiz, err := s.getQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	ok, err := s.courses.IsApprovedStudent(ctx, req.UserID, quiz.CourseID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return nil, apperr.Unauthorized("not an approved member of this course")
	}

	payload, hit := s.cache.Get(ctx, quizID.String())
	if !hit {
		payload = stripQuiz(quiz)
		s.cache.Set(ctx, quizID.String(), payload)
	}

	// Questions stay hidden until the window opens; the metadata is
	// enough for the countdown screen.
	if s.clk.Now().Before(quiz.StartTime) {
		preview := *payload
		preview.Questions = nil
		return &preview, nil
	}

	if payload.ShuffleQuestions {
		payload = shuffleForStudent(payload, req.UserID)
	}
	return payload, nil
}

// CreateQuiz authors a new quiz in a course. The question list is
// snapshotted as given: later edits to any external question bank never
// touch an existing quiz.
func (s *QuizService) CreateQuiz(ctx context.Context, courseID uuid.UUID, req model.CreateQuizRequest, bcryptCost int, requester model.Requester) (*model.Quiz, error) {
	if err := s.checkCourseOwnership(ctx, courseID, requester); err != nil {
		return nil, err
	}

	if !req.StartTime.Before(req.EndTime) {
		return nil, apperr.InvalidTiming("start time must be before end time")
	}

	seen := make(map[string]bool, len(req.Questions))
	for _, q := range req.Questions {
		if seen[q.ID] {
			return nil, apperr.Validation("duplicate question id: " + q.ID)
		}
		seen[q.ID] = true
		if err := q.Validate(); err != nil {
			return nil, apperr.Validation(err.Error())
		}
	}

	quiz := &model.Quiz{
		CourseID:         courseID,
		Title:            req.Title,
		Description:      req.Description,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		ShuffleQuestions: req.ShuffleQuestions,
		Questions:        req.Questions,
		CreatedBy:        requester.UserID,
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		quiz.PasswordHash = string(hash)
	}

	if err := s.quizzes.Create(ctx, quiz); err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}

	s.log.Info().
		Str("quiz_id", quiz.ID.String()).
		Str("course_id", courseID.String()).
		Int("created_by", requester.UserID).
		Msg("Quiz created")

	return quiz, nil
}

// ListQuizzesByCourse returns every quiz in a course, answer keys
// included. Staff only.
func (s *QuizService) ListQuizzesByCourse(ctx context.Context, courseID uuid.UUID, requester model.Requester) ([]model.Quiz, error) {
	if err := s.checkCourseOwnership(ctx, courseID, requester); err != nil {
		return nil, err
	}

	quizzes, err := s.quizzes.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return quizzes, nil
}

// GetQuizByID returns the full quiz, answer key included. Staff only.
func (s *QuizService) GetQuizByID(ctx context.Context, quizID uuid.UUID, req model.Requester) (*model.Quiz, error) {
	if !req.IsStaff() {
		return nil, apperr.Unauthorized("teachers and admins only")
	}

	quiz, err := s.getQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	if req.Role == model.RoleTeacher {
		ok, err := s.courses.IsTeacherOf(ctx, req.UserID, quiz.CourseID)
		if err != nil {
			return nil, fmt.Errorf("check ownership: %w", err)
		}
		if !ok {
			return nil, apperr.Unauthorized("not the teacher of this course")
		}
	}
	return quiz, nil
}

// UpdateQuiz applies an edit request under the live-quiz restrictions:
// before the window opens everything is editable; from start time on only
// title, description and a forward move of the end time are accepted.
func (s *QuizService) UpdateQuiz(ctx context.Context, quizID uuid.UUID, upd model.UpdateQuizRequest, req model.Requester) (*model.Quiz, error) {
	quiz, err := s.getQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	if err := s.checkOwnership(quiz, req); err != nil {
		return nil, err
	}

	now := s.clk.Now()
	started := !now.Before(quiz.StartTime)

	if started {
		if upd.StartTime != nil {
			return nil, apperr.InvalidState("start time cannot change once the quiz has started")
		}
		if len(upd.AddQuestions) > 0 || len(upd.EditQuestions) > 0 || len(upd.RemoveQuestionIDs) > 0 {
			return nil, apperr.InvalidState("questions cannot change once the quiz has started")
		}
	}

	if upd.Title != nil {
		quiz.Title = *upd.Title
	}
	if upd.Description != nil {
		quiz.Description = *upd.Description
	}
	if upd.StartTime != nil {
		quiz.StartTime = *upd.StartTime
	}
	if upd.EndTime != nil {
		if started && upd.EndTime.Before(quiz.EndTime) {
			return nil, apperr.InvalidTiming("end time can only move forward while the quiz is live")
		}
		quiz.EndTime = *upd.EndTime
	}
	if !quiz.StartTime.Before(quiz.EndTime) {
		return nil, apperr.InvalidTiming("start time must be before end time")
	}

	if !started {
		if err := applyQuestionEdits(quiz, upd); err != nil {
			return nil, err
		}
	}

	if err := s.quizzes.Update(ctx, quiz); err != nil {
		return nil, fmt.Errorf("update quiz: %w", err)
	}
	s.cache.Invalidate(ctx, quizID.String())

	s.log.Info().
		Str("quiz_id", quizID.String()).
		Int("updated_by", req.UserID).
		Msg("Quiz updated")

	return quiz, nil
}

// SetAccessPassword sets or clears the quiz access password.
func (s *QuizService) SetAccessPassword(ctx context.Context, quizID uuid.UUID, password string, bcryptCost int, req model.Requester) error {
	quiz, err := s.getQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	if err := s.checkOwnership(quiz, req); err != nil {
		return err
	}

	if password == "" {
		quiz.PasswordHash = ""
	} else {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		quiz.PasswordHash = string(hash)
	}

	if err := s.quizzes.Update(ctx, quiz); err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}
	return nil
}

func (s *QuizService) getQuiz(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	quiz, err := s.quizzes.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("quiz not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	return quiz, nil
}

func (s *QuizService) checkCourseOwnership(ctx context.Context, courseID uuid.UUID, req model.Requester) error {
	course, err := s.courses.GetByID(ctx, courseID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("course not found")
	}
	if err != nil {
		return fmt.Errorf("get course: %w", err)
	}

	switch req.Role {
	case model.RoleAdmin:
		return nil
	case model.RoleTeacher:
		if course.TeacherID != req.UserID {
			return apperr.Unauthorized("not the teacher of this course")
		}
		return nil
	default:
		return apperr.Unauthorized("teachers and admins only")
	}
}

func (s *QuizService) checkOwnership(quiz *model.Quiz, req model.Requester) error {
	switch req.Role {
	case model.RoleAdmin:
		return nil
	case model.RoleTeacher:
		if quiz.CreatedBy != req.UserID {
			return apperr.Unauthorized("not the creator of this quiz")
		}
		return nil
	default:
		return apperr.Unauthorized("teachers and admins only")
	}
}

// applyQuestionEdits merges snapshot additions, replacements and removals
// keyed by question id, validating every resulting snapshot.
func applyQuestionEdits(quiz *model.Quiz, upd model.UpdateQuizRequest) error {
	byID := make(map[string]int, len(quiz.Questions))
	for i, q := range quiz.Questions {
		byID[q.ID] = i
	}

	for _, q := range upd.EditQuestions {
		idx, ok := byID[q.ID]
		if !ok {
			return apperr.Validation("cannot edit unknown question: " + q.ID)
		}
		if err := q.Validate(); err != nil {
			return apperr.Validation(err.Error())
		}
		quiz.Questions[idx] = q
	}

	for _, q := range upd.AddQuestions {
		if _, exists := byID[q.ID]; exists {
			return apperr.Validation("duplicate question id: " + q.ID)
		}
		if err := q.Validate(); err != nil {
			return apperr.Validation(err.Error())
		}
		byID[q.ID] = len(quiz.Questions)
		quiz.Questions = append(quiz.Questions, q)
	}

	if len(upd.RemoveQuestionIDs) > 0 {
		remove := make(map[string]bool, len(upd.RemoveQuestionIDs))
		for _, id := range upd.RemoveQuestionIDs {
			if _, ok := byID[id]; !ok {
				return apperr.Validation("cannot remove unknown question: " + id)
			}
			remove[id] = true
		}
		kept := quiz.Questions[:0]
		for _, q := range quiz.Questions {
			if !remove[q.ID] {
				kept = append(kept, q)
			}
		}
		quiz.Questions = kept
	}

	return nil
}

func stripQuiz(quiz *model.Quiz) *model.StudentQuiz {
	questions := make([]model.StudentQuestion, len(quiz.Questions))
	for i, q := range quiz.Questions {
		questions[i] = q.ForStudent()
	}
	return &model.StudentQuiz{
		ID:               quiz.ID,
		CourseID:         quiz.CourseID,
		Title:            quiz.Title,
		Description:      quiz.Description,
		StartTime:        quiz.StartTime,
		EndTime:          quiz.EndTime,
		ShuffleQuestions: quiz.ShuffleQuestions,
		Questions:        questions,
	}
}

// shuffleForStudent permutes the question list with a seed derived from
// the (quiz, student) pair. The original payload is left untouched.
func shuffleForStudent(payload *model.StudentQuiz, studentID int) *model.StudentQuiz {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d", payload.ID, studentID)

	shuffled := *payload
	shuffled.Questions = make([]model.StudentQuestion, len(payload.Questions))
	copy(shuffled.Questions, payload.Questions)

	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	rng.Shuffle(len(shuffled.Questions), func(i, j int) {
		shuffled.Questions[i], shuffled.Questions[j] = shuffled.Questions[j], shuffled.Questions[i]
	})
	return &shuffled
}
