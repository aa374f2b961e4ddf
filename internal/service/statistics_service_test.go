package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/NTA1210/learning-management-system-sub002/internal/apperr"
	"github.com/NTA1210/learning-management-system-sub002/internal/model"
)

func seedSubmitted(store *fakeAttemptStore, quizID uuid.UUID, studentID int, score float64, duration time.Duration) {
	start := quizStart
	end := start.Add(duration)
	attempt := &model.QuizAttempt{
		QuizID:    quizID,
		StudentID: studentID,
		Status:    model.AttemptStatusSubmitted,
		Score:     &score,
		StartedAt: start,
	}
	store.mu.Lock()
	attempt.ID = uuid.New()
	attempt.SubmittedAt = &end
	store.byID[attempt.ID] = attempt
	store.byPair[quizKey{quizID, studentID}] = attempt.ID
	store.students[studentID] = model.User{ID: studentID, Name: "Student", Email: "s@example.com"}
	store.mu.Unlock()
}

func TestGetQuizStatistics(t *testing.T) {
	quiz := &model.Quiz{
		ID:        uuid.New(),
		CourseID:  uuid.New(),
		StartTime: quizStart,
		EndTime:   quizStart.Add(time.Hour),
		CreatedBy: 10,
	}

	quizzes := newFakeQuizStore()
	quizzes.put(quiz)
	attempts := newFakeAttemptStore()
	courses := &fakeCourseStore{teachers: map[int]bool{10: true}, count: 5}

	seedSubmitted(attempts, quiz.ID, 1, 8, 10*time.Minute)
	seedSubmitted(attempts, quiz.ID, 2, 8, 5*time.Minute)
	seedSubmitted(attempts, quiz.ID, 3, 4, 20*time.Minute)

	svc := NewStatisticsService(attempts, quizzes, courses, zerolog.Nop())
	teacher := model.Requester{UserID: 10, Role: model.RoleTeacher}

	report, err := svc.GetQuizStatistics(context.Background(), quiz.ID, teacher)
	if err != nil {
		t.Fatalf("GetQuizStatistics() error = %v", err)
	}

	if report.TotalStudents != 5 {
		t.Errorf("TotalStudents = %d, want 5", report.TotalStudents)
	}
	if report.SubmittedCount != 3 {
		t.Errorf("SubmittedCount = %d, want 3", report.SubmittedCount)
	}
	if want := (8.0 + 8 + 4) / 3; report.AverageScore != want {
		t.Errorf("AverageScore = %v, want %v", report.AverageScore, want)
	}
	if report.MedianScore != 8 {
		t.Errorf("MedianScore = %v, want 8", report.MedianScore)
	}
	if report.MinMax == nil || report.MinMax.Min != 4 || report.MinMax.Max != 8 {
		t.Errorf("MinMax = %+v, want 4/8", report.MinMax)
	}
	if report.StandardDeviationScore == nil {
		t.Fatalf("StandardDeviationScore = nil")
	}

	var counted int
	for _, b := range report.ScoreDistribution {
		counted += b.Count
	}
	if counted != 3 {
		t.Errorf("distribution counts sum to %d, want 3", counted)
	}

	// Same score: the faster finisher ranks higher.
	if len(report.Students) != 3 {
		t.Fatalf("Students = %d, want 3", len(report.Students))
	}
	if report.Students[0].StudentID != 2 || report.Students[1].StudentID != 1 {
		t.Errorf("tie-break order = %d, %d; want 2, 1",
			report.Students[0].StudentID, report.Students[1].StudentID)
	}
	if report.Students[2].Rank != 3 {
		t.Errorf("last rank = %d, want 3", report.Students[2].Rank)
	}
}

func TestGetQuizStatisticsEmptyQuiz(t *testing.T) {
	quiz := &model.Quiz{ID: uuid.New(), CourseID: uuid.New(), CreatedBy: 10}
	quizzes := newFakeQuizStore()
	quizzes.put(quiz)
	courses := &fakeCourseStore{teachers: map[int]bool{10: true}, count: 4}

	svc := NewStatisticsService(newFakeAttemptStore(), quizzes, courses, zerolog.Nop())
	report, err := svc.GetQuizStatistics(context.Background(), quiz.ID, model.Requester{UserID: 10, Role: model.RoleTeacher})
	if err != nil {
		t.Fatalf("GetQuizStatistics() error = %v", err)
	}

	if report.SubmittedCount != 0 || report.AverageScore != 0 || report.MedianScore != 0 {
		t.Errorf("empty report has nonzero aggregates: %+v", report)
	}
	if report.MinMax != nil || report.StandardDeviationScore != nil {
		t.Errorf("empty report should have nil extremes and deviation")
	}
	for _, b := range report.ScoreDistribution {
		if b.Percentage != "0.00%" {
			t.Errorf("bucket %s percentage = %s, want 0.00%%", b.Label, b.Percentage)
		}
	}
}

func TestGetQuizStatisticsAuthorization(t *testing.T) {
	quiz := &model.Quiz{ID: uuid.New(), CourseID: uuid.New(), CreatedBy: 10}
	quizzes := newFakeQuizStore()
	quizzes.put(quiz)
	courses := &fakeCourseStore{teachers: map[int]bool{10: true}}
	svc := NewStatisticsService(newFakeAttemptStore(), quizzes, courses, zerolog.Nop())

	tests := []struct {
		name     string
		req      model.Requester
		wantKind apperr.Kind
	}{
		{"student", model.Requester{UserID: 1, Role: model.RoleStudent}, apperr.KindUnauthorized},
		{"other teacher", model.Requester{UserID: 99, Role: model.RoleTeacher}, apperr.KindUnauthorized},
		{"owner", model.Requester{UserID: 10, Role: model.RoleTeacher}, ""},
		{"admin", model.Requester{UserID: 50, Role: model.RoleAdmin}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GetQuizStatistics(context.Background(), quiz.ID, tt.req)
			if got := apperr.KindOf(err); got != tt.wantKind {
				t.Errorf("kind = %q, want %q (err %v)", got, tt.wantKind, err)
			}
		})
	}
}
