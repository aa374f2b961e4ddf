package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/NTA1210/learning-management-system-sub002/internal/apperr"
	"github.com/NTA1210/learning-management-system-sub002/internal/clock"
	"github.com/NTA1210/learning-management-system-sub002/internal/grading"
	"github.com/NTA1210/learning-management-system-sub002/internal/model"
)

const (
	// EnrollGraceWindow is how long after start time a student without an
	// existing attempt may still enroll. No extra slack is added on top.
	EnrollGraceWindow = 15 * time.Minute

	// WriteGraceWindow is added to every "before end time" check on write
	// paths (autosave, save, submit) to absorb submission network latency.
	WriteGraceWindow = 30 * time.Second
)

// AuditMeta carries opaque request metadata recorded on attempts.
type AuditMeta struct {
	IPAddress string
	UserAgent string
}

// AttemptService is the quiz attempt state machine: enroll, autosave,
// save, submit, ban, delete, score override. Every timing precondition is
// checked against the injected clock at the moment of the call; there is
// no background expiry sweep. Handlers may call any method concurrently —
// the stores resolve races with atomic conditional writes.
type AttemptService struct {
	attempts AttemptStore
	quizzes  QuizStore
	courses  CourseStore
	events   AttemptEvents
	clk      clock.Clock
	log      zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attempts AttemptStore,
	quizzes QuizStore,
	courses CourseStore,
	events AttemptEvents,
	clk clock.Clock,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attempts: attempts,
		quizzes:  quizzes,
		courses:  courses,
		events:   events,
		clk:      clk,
		log:      log.With().Str("component", "attempt_service").Logger(),
	}
}

// Enroll enters the requester into a quiz, creating the single attempt
// for this (quiz, student) pair or resuming the existing IN_PROGRESS one.
// Calling it twice returns the same attempt: the store's insert-if-absent
// collapses concurrent enrolls onto one record, and the loser of the race
// observes the winner's attempt unchanged.
func (s *AttemptService) Enroll(ctx context.Context, quizID uuid.UUID, password string, req model.Requester, meta AuditMeta) (*model.QuizAttempt, error) {
	quiz, err := s.getQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	if err := s.checkQuizAccess(ctx, quiz, req); err != nil {
		return nil, err
	}

	if quiz.PasswordHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(quiz.PasswordHash), []byte(password)) != nil {
			return nil, apperr.Unauthorized("quiz password is incorrect")
		}
	}

	existing, err := s.attempts.GetByQuizAndStudent(ctx, quizID, req.UserID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	if existing != nil {
		switch existing.Status {
		case model.AttemptStatusSubmitted:
			return nil, apperr.InvalidState("quiz already completed")
		case model.AttemptStatusAbandoned:
			return nil, apperr.InvalidState("attempt was banned")
		}
	}

	now := s.clk.Now()
	if now.Before(quiz.StartTime) {
		return nil, apperr.InvalidTiming("quiz has not started yet")
	}
	if now.After(quiz.EndTime) {
		return nil, apperr.InvalidTiming("quiz has already ended")
	}

	// Resume: an IN_PROGRESS attempt is returned unchanged, answers intact.
	if existing != nil {
		return existing, nil
	}

	if now.After(quiz.StartTime.Add(EnrollGraceWindow)) {
		return nil, apperr.InvalidTiming("enrollment window has closed")
	}

	attempt := &model.QuizAttempt{
		QuizID:    quizID,
		StudentID: req.UserID,
		Status:    model.AttemptStatusInProgress,
		Answers:   materializeAnswers(quiz.Questions),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		StartedAt: now,
	}

	created, err := s.attempts.CreateIfAbsent(ctx, attempt)
	if err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	if !created {
		// Lost a concurrent enroll race; the winner's record is ours too.
		winner, err := s.attempts.GetByQuizAndStudent(ctx, quizID, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("concurrent enroll detected, but fetch failed: %w", err)
		}
		return winner, nil
	}

	s.events.Audit(ctx, AuditEvent{
		AttemptID: attempt.ID,
		QuizID:    quizID,
		StudentID: req.UserID,
		Action:    ActionEnroll,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		At:        now,
	})
	s.events.Progress(ctx, ProgressEvent{
		QuizID:    quizID,
		StudentID: req.UserID,
		Status:    model.AttemptStatusInProgress,
		Total:     len(attempt.Answers),
	})

	s.log.Info().
		Str("quiz_id", quizID.String()).
		Int("student_id", req.UserID).
		Msg("Student enrolled")

	return attempt, nil
}

// AutoSave replaces the answer vector of a single question. It is a pure
// overwrite, so repeated calls with the same payload are idempotent.
func (s *AttemptService) AutoSave(ctx context.Context, attemptID uuid.UUID, req model.Requester, upd model.AnswerUpdate, meta AuditMeta) (*model.QuizAttempt, *model.AttemptProgress, error) {
	attempt, quiz, err := s.loadWritableAttempt(ctx, attemptID, req)
	if err != nil {
		return nil, nil, err
	}

	idx := answerIndex(attempt.Answers, upd.QuestionID)
	if idx < 0 {
		return nil, nil, apperr.Validation("unknown question id: " + upd.QuestionID)
	}
	if len(upd.Answer) != len(attempt.Answers[idx].Options) {
		return nil, nil, apperr.Validation("answer vector length does not match question options")
	}

	attempt.Answers[idx].Answer = upd.Answer

	if err := s.persistAnswers(ctx, attempt, quiz, ActionAutosave, meta); err != nil {
		return nil, nil, err
	}

	progress := &model.AttemptProgress{
		Total:         len(attempt.Answers),
		AnsweredTotal: attempt.AnsweredTotal(),
	}
	return attempt, progress, nil
}

// Save is the bulk checkpoint variant of AutoSave: it replaces the whole
// answer list atomically after checking cardinality against the snapshot.
func (s *AttemptService) Save(ctx context.Context, attemptID uuid.UUID, req model.Requester, updates []model.AnswerUpdate, meta AuditMeta) (*model.QuizAttempt, *model.AttemptProgress, error) {
	attempt, quiz, err := s.loadWritableAttempt(ctx, attemptID, req)
	if err != nil {
		return nil, nil, err
	}

	if len(updates) != len(quiz.Questions) {
		return nil, nil, apperr.Validation("answer count does not match quiz question count")
	}

	for _, upd := range updates {
		idx := answerIndex(attempt.Answers, upd.QuestionID)
		if idx < 0 {
			return nil, nil, apperr.Validation("unknown question id: " + upd.QuestionID)
		}
		if len(upd.Answer) != len(attempt.Answers[idx].Options) {
			return nil, nil, apperr.Validation("answer vector length does not match question options")
		}
		attempt.Answers[idx].Answer = upd.Answer
	}

	if err := s.persistAnswers(ctx, attempt, quiz, ActionSave, meta); err != nil {
		return nil, nil, err
	}

	progress := &model.AttemptProgress{
		Total:         len(attempt.Answers),
		AnsweredTotal: attempt.AnsweredTotal(),
	}
	return attempt, progress, nil
}

// Submit grades the attempt against the quiz's frozen snapshot and
// transitions it to SUBMITTED. The first submit wins; any later submit —
// or a submit losing the race against a ban — fails with InvalidState and
// leaves the persisted answers and score untouched. Grading never runs
// again for this attempt.
func (s *AttemptService) Submit(ctx context.Context, attemptID uuid.UUID, req model.Requester, meta AuditMeta) (*model.GradeResult, error) {
	attempt, quiz, err := s.loadWritableAttempt(ctx, attemptID, req)
	if err != nil {
		return nil, err
	}

	if len(attempt.Answers) != len(quiz.Questions) {
		return nil, apperr.Validation("answer count does not match quiz question count")
	}

	result := grading.Grade(attempt.Answers, quiz.Questions)
	score := result.FinalScore()
	now := s.clk.Now()

	ok, err := s.attempts.MarkSubmitted(ctx, attempt.ID, result.Answers, score, now)
	if err != nil {
		return nil, fmt.Errorf("mark submitted: %w", err)
	}
	if !ok {
		return nil, apperr.InvalidState("attempt has already been finalized")
	}

	s.events.Audit(ctx, AuditEvent{
		AttemptID: attempt.ID,
		QuizID:    attempt.QuizID,
		StudentID: attempt.StudentID,
		Action:    ActionSubmit,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		At:        now,
	})
	s.events.Progress(ctx, ProgressEvent{
		QuizID:        attempt.QuizID,
		StudentID:     attempt.StudentID,
		Status:        model.AttemptStatusSubmitted,
		Total:         len(attempt.Answers),
		AnsweredTotal: attempt.AnsweredTotal(),
	})

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Float64("score", score).
		Msg("Attempt submitted")

	return &result, nil
}

// Ban abandons an attempt. Teachers may only ban attempts of quizzes they
// created; an already-submitted attempt cannot be retroactively banned.
// The transition is a conditional write, so a ban racing a submit resolves
// to exactly one terminal state.
func (s *AttemptService) Ban(ctx context.Context, attemptID uuid.UUID, req model.Requester) error {
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return err
	}

	quiz, err := s.getQuiz(ctx, attempt.QuizID)
	if err != nil {
		return err
	}
	if err := s.checkQuizOwnership(quiz, req); err != nil {
		return err
	}

	if attempt.Status == model.AttemptStatusSubmitted {
		return apperr.InvalidState("attempt has already been submitted")
	}

	ok, err := s.attempts.MarkAbandoned(ctx, attemptID)
	if err != nil {
		return fmt.Errorf("mark abandoned: %w", err)
	}
	if !ok {
		return apperr.InvalidState("attempt is no longer in progress")
	}

	now := s.clk.Now()
	s.events.Audit(ctx, AuditEvent{
		AttemptID: attempt.ID,
		QuizID:    attempt.QuizID,
		StudentID: attempt.StudentID,
		Action:    ActionBan,
		At:        now,
	})
	s.events.Progress(ctx, ProgressEvent{
		QuizID:        attempt.QuizID,
		StudentID:     attempt.StudentID,
		Status:        model.AttemptStatusAbandoned,
		Total:         len(attempt.Answers),
		AnsweredTotal: attempt.AnsweredTotal(),
	})

	return nil
}

// Delete soft-deletes an attempt. Only allowed while the quiz is not
// ongoing, and only for the owning teacher or an admin.
func (s *AttemptService) Delete(ctx context.Context, attemptID uuid.UUID, req model.Requester) error {
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return err
	}

	quiz, err := s.getQuiz(ctx, attempt.QuizID)
	if err != nil {
		return err
	}
	if err := s.checkQuizOwnership(quiz, req); err != nil {
		return err
	}

	now := s.clk.Now()
	if quiz.Ongoing(now) {
		return apperr.InvalidState("quiz is currently ongoing")
	}

	ok, err := s.attempts.SoftDelete(ctx, attemptID, req.UserID, now)
	if err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	if !ok {
		return apperr.NotFound("attempt not found")
	}
	return nil
}

// UpdateScore overrides the stored score of a submitted attempt. It never
// re-runs grading and never changes status.
func (s *AttemptService) UpdateScore(ctx context.Context, attemptID uuid.UUID, score float64, req model.Requester) error {
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return err
	}

	quiz, err := s.getQuiz(ctx, attempt.QuizID)
	if err != nil {
		return err
	}
	if err := s.checkQuizOwnership(quiz, req); err != nil {
		return err
	}

	if score < 0 {
		return apperr.Validation("score must not be negative")
	}
	if attempt.Status != model.AttemptStatusSubmitted {
		return apperr.InvalidState("attempt has not been submitted")
	}

	ok, err := s.attempts.UpdateScore(ctx, attemptID, score)
	if err != nil {
		return fmt.Errorf("update score: %w", err)
	}
	if !ok {
		return apperr.InvalidState("attempt has not been submitted")
	}
	return nil
}

// GetAttemptState returns the requester's attempt for a quiz with an
// explicit Started flag, so "no record yet" is distinguishable from every
// real status.
func (s *AttemptService) GetAttemptState(ctx context.Context, quizID uuid.UUID, req model.Requester) (*model.AttemptState, error) {
	attempt, err := s.attempts.GetByQuizAndStudent(ctx, quizID, req.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return &model.AttemptState{Started: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	return &model.AttemptState{
		Started: true,
		Attempt: attempt,
		Progress: &model.AttemptProgress{
			Total:         len(attempt.Answers),
			AnsweredTotal: attempt.AnsweredTotal(),
		},
	}, nil
}

// ─── internal helpers ───────────────────────────────────────────────

func (s *AttemptService) getQuiz(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	quiz, err := s.quizzes.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("quiz not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	return quiz, nil
}

func (s *AttemptService) getAttempt(ctx context.Context, id uuid.UUID) (*model.QuizAttempt, error) {
	attempt, err := s.attempts.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("attempt not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return attempt, nil
}

// checkQuizAccess enforces course membership for enrolling requesters.
func (s *AttemptService) checkQuizAccess(ctx context.Context, quiz *model.Quiz, req model.Requester) error {
	switch req.Role {
	case model.RoleStudent:
		ok, err := s.courses.IsApprovedStudent(ctx, req.UserID, quiz.CourseID)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if !ok {
			return apperr.Unauthorized("not an approved member of this course")
		}
	case model.RoleTeacher:
		ok, err := s.courses.IsTeacherOf(ctx, req.UserID, quiz.CourseID)
		if err != nil {
			return fmt.Errorf("check ownership: %w", err)
		}
		if !ok {
			return apperr.Unauthorized("not the teacher of this course")
		}
	case model.RoleAdmin:
		// Admins bypass membership checks.
	default:
		return apperr.Unauthorized("unknown role")
	}
	return nil
}

// checkQuizOwnership enforces that moderation actions come from the quiz
// creator or an admin.
func (s *AttemptService) checkQuizOwnership(quiz *model.Quiz, req model.Requester) error {
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

// loadWritableAttempt runs the shared precondition chain of the answer
// write paths: attempt exists, requester owns it, status is IN_PROGRESS,
// and the quiz end time (plus grace) has not passed.
func (s *AttemptService) loadWritableAttempt(ctx context.Context, attemptID uuid.UUID, req model.Requester) (*model.QuizAttempt, *model.Quiz, error) {
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}

	if attempt.StudentID != req.UserID {
		return nil, nil, apperr.Unauthorized("attempt belongs to another student")
	}

	switch attempt.Status {
	case model.AttemptStatusAbandoned:
		return nil, nil, apperr.InvalidState("attempt was banned")
	case model.AttemptStatusSubmitted:
		return nil, nil, apperr.InvalidState("attempt has already been submitted")
	}

	quiz, err := s.getQuiz(ctx, attempt.QuizID)
	if err != nil {
		return nil, nil, err
	}

	if s.clk.Now().After(quiz.EndTime.Add(WriteGraceWindow)) {
		return nil, nil, apperr.InvalidTiming("quiz time is over")
	}

	return attempt, quiz, nil
}

// persistAnswers writes the current answer list and emits events.
func (s *AttemptService) persistAnswers(ctx context.Context, attempt *model.QuizAttempt, quiz *model.Quiz, action AuditAction, meta AuditMeta) error {
	ok, err := s.attempts.UpdateAnswers(ctx, attempt.ID, attempt.Answers)
	if err != nil {
		return fmt.Errorf("update answers: %w", err)
	}
	if !ok {
		return apperr.InvalidState("attempt is no longer in progress")
	}

	s.events.Audit(ctx, AuditEvent{
		AttemptID: attempt.ID,
		QuizID:    quiz.ID,
		StudentID: attempt.StudentID,
		Action:    action,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		At:        s.clk.Now(),
	})
	s.events.Progress(ctx, ProgressEvent{
		QuizID:        quiz.ID,
		StudentID:     attempt.StudentID,
		Status:        attempt.Status,
		Total:         len(attempt.Answers),
		AnsweredTotal: attempt.AnsweredTotal(),
	})
	return nil
}

// materializeAnswers builds one all-zero answer slot per snapshot question,
// freezing the question text, type, options and images at enroll time.
func materializeAnswers(questions []model.QuestionSnapshot) []model.QuestionAnswer {
	answers := make([]model.QuestionAnswer, len(questions))
	for i, q := range questions {
		answers[i] = model.QuestionAnswer{
			QuestionID: q.ID,
			Answer:     make(model.OptionVector, len(q.Options)),
			Text:       q.Text,
			Type:       q.Type,
			Options:    q.Options,
			Images:     q.Images,
		}
	}
	return answers
}

func answerIndex(answers []model.QuestionAnswer, questionID string) int {
	for i := range answers {
		if answers[i].QuestionID == questionID {
			return i
		}
	}
	return -1
}
