package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/NTA1210/learning-management-system-sub002/internal/model"
)

// fakeClock hands out a settable instant.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type quizKey struct {
	quizID    uuid.UUID
	studentID int
}

// fakeAttemptStore is an in-memory AttemptStore with the same atomicity
// contract as the SQL implementation.
type fakeAttemptStore struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*model.QuizAttempt
	byPair   map[quizKey]uuid.UUID
	students map[int]model.User
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{
		byID:     make(map[uuid.UUID]*model.QuizAttempt),
		byPair:   make(map[quizKey]uuid.UUID),
		students: make(map[int]model.User),
	}
}

func cloneAttempt(a *model.QuizAttempt) *model.QuizAttempt {
	cp := *a
	cp.Answers = make([]model.QuestionAnswer, len(a.Answers))
	copy(cp.Answers, a.Answers)
	if a.Score != nil {
		score := *a.Score
		cp.Score = &score
	}
	return &cp
}

func (s *fakeAttemptStore) GetByID(_ context.Context, id uuid.UUID) (*model.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok || a.DeletedAt != nil {
		return nil, pgx.ErrNoRows
	}
	return cloneAttempt(a), nil
}

func (s *fakeAttemptStore) GetByQuizAndStudent(_ context.Context, quizID uuid.UUID, studentID int) (*model.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPair[quizKey{quizID, studentID}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	a := s.byID[id]
	if a.DeletedAt != nil {
		return nil, pgx.ErrNoRows
	}
	return cloneAttempt(a), nil
}

func (s *fakeAttemptStore) CreateIfAbsent(_ context.Context, attempt *model.QuizAttempt) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := quizKey{attempt.QuizID, attempt.StudentID}
	if _, exists := s.byPair[key]; exists {
		return false, nil
	}
	attempt.ID = uuid.New()
	s.byID[attempt.ID] = cloneAttempt(attempt)
	s.byPair[key] = attempt.ID
	return true, nil
}

func (s *fakeAttemptStore) UpdateAnswers(_ context.Context, id uuid.UUID, answers []model.QuestionAnswer) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok || a.Status != model.AttemptStatusInProgress {
		return false, nil
	}
	a.Answers = make([]model.QuestionAnswer, len(answers))
	copy(a.Answers, answers)
	return true, nil
}

func (s *fakeAttemptStore) MarkSubmitted(_ context.Context, id uuid.UUID, answers []model.QuestionAnswer, score float64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok || a.Status != model.AttemptStatusInProgress {
		return false, nil
	}
	a.Status = model.AttemptStatusSubmitted
	a.Answers = make([]model.QuestionAnswer, len(answers))
	copy(a.Answers, answers)
	a.Score = &score
	a.SubmittedAt = &at
	return true, nil
}

func (s *fakeAttemptStore) MarkAbandoned(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok || a.Status != model.AttemptStatusInProgress {
		return false, nil
	}
	a.Status = model.AttemptStatusAbandoned
	return true, nil
}

func (s *fakeAttemptStore) SoftDelete(_ context.Context, id uuid.UUID, by int, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok || a.DeletedAt != nil {
		return false, nil
	}
	a.DeletedAt = &at
	a.DeletedBy = &by
	return true, nil
}

func (s *fakeAttemptStore) UpdateScore(_ context.Context, id uuid.UUID, score float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok || a.Status != model.AttemptStatusSubmitted {
		return false, nil
	}
	a.Score = &score
	return true, nil
}

func (s *fakeAttemptStore) ListSubmittedByQuiz(_ context.Context, quizID uuid.UUID) ([]model.SubmittedAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.SubmittedAttempt
	for _, a := range s.byID {
		if a.QuizID != quizID || a.Status != model.AttemptStatusSubmitted || a.DeletedAt != nil {
			continue
		}
		student := s.students[a.StudentID]
		row := model.SubmittedAttempt{
			AttemptID:    a.ID,
			StudentID:    a.StudentID,
			StudentName:  student.Name,
			StudentEmail: student.Email,
		}
		if a.Score != nil {
			row.Score = *a.Score
		}
		if a.SubmittedAt != nil {
			row.DurationSeconds = a.SubmittedAt.Sub(a.StartedAt).Seconds()
		}
		out = append(out, row)
	}
	return out, nil
}

// fakeQuizStore is an in-memory QuizStore.
type fakeQuizStore struct {
	mu      sync.Mutex
	quizzes map[uuid.UUID]*model.Quiz
}

func newFakeQuizStore() *fakeQuizStore {
	return &fakeQuizStore{quizzes: make(map[uuid.UUID]*model.Quiz)}
}

func (s *fakeQuizStore) put(q *model.Quiz) {
	s.mu.Lock()
	s.quizzes[q.ID] = q
	s.mu.Unlock()
}

func (s *fakeQuizStore) GetByID(_ context.Context, id uuid.UUID) (*model.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quizzes[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *q
	cp.Questions = make([]model.QuestionSnapshot, len(q.Questions))
	copy(cp.Questions, q.Questions)
	return &cp, nil
}

func (s *fakeQuizStore) Create(_ context.Context, quiz *model.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz.ID = uuid.New()
	cp := *quiz
	cp.Questions = make([]model.QuestionSnapshot, len(quiz.Questions))
	copy(cp.Questions, quiz.Questions)
	s.quizzes[quiz.ID] = &cp
	return nil
}

func (s *fakeQuizStore) Update(_ context.Context, quiz *model.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quiz.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *quiz
	s.quizzes[quiz.ID] = &cp
	return nil
}

func (s *fakeQuizStore) ListByCourse(_ context.Context, courseID uuid.UUID) ([]model.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Quiz
	for _, q := range s.quizzes {
		if q.CourseID == courseID {
			out = append(out, *q)
		}
	}
	return out, nil
}

// fakeCourseStore answers membership queries from fixed sets.
type fakeCourseStore struct {
	approved map[int]bool
	teachers map[int]bool
	count    int
	course   *model.Course
}

func (s *fakeCourseStore) GetByID(_ context.Context, id uuid.UUID) (*model.Course, error) {
	if s.course == nil || s.course.ID != id {
		return nil, pgx.ErrNoRows
	}
	cp := *s.course
	return &cp, nil
}

func (s *fakeCourseStore) IsApprovedStudent(_ context.Context, studentID int, _ uuid.UUID) (bool, error) {
	return s.approved[studentID], nil
}

func (s *fakeCourseStore) IsTeacherOf(_ context.Context, teacherID int, _ uuid.UUID) (bool, error) {
	return s.teachers[teacherID], nil
}

func (s *fakeCourseStore) CountApprovedStudents(_ context.Context, _ uuid.UUID) (int, error) {
	return s.count, nil
}

// captureEvents records lifecycle notifications for assertions.
type captureEvents struct {
	mu     sync.Mutex
	audits []AuditEvent
}

func (e *captureEvents) Audit(_ context.Context, ev AuditEvent) {
	e.mu.Lock()
	e.audits = append(e.audits, ev)
	e.mu.Unlock()
}

func (e *captureEvents) Progress(context.Context, ProgressEvent) {}

func (e *captureEvents) byAction(action AuditAction) []AuditEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []AuditEvent
	for _, ev := range e.audits {
		if ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}
