package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/NTA1210/learning-management-system-sub002/internal/apperr"
	"github.com/NTA1210/learning-management-system-sub002/internal/model"
)

var quizStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(hash)
}

type attemptFixture struct {
	svc      *AttemptService
	attempts *fakeAttemptStore
	quizzes  *fakeQuizStore
	events   *captureEvents
	clk      *fakeClock
	quiz     *model.Quiz
	student  model.Requester
	teacher  model.Requester
}

func newAttemptFixture(t *testing.T) *attemptFixture {
	t.Helper()

	quiz := &model.Quiz{
		ID:        uuid.New(),
		CourseID:  uuid.New(),
		Title:     "Midterm",
		StartTime: quizStart,
		EndTime:   quizStart.Add(time.Hour),
		CreatedBy: 10,
		Questions: []model.QuestionSnapshot{
			{
				ID:             "q1",
				Text:           "2 + 2 = ?",
				Type:           model.QuestionTypeSingleChoice,
				Options:        []string{"3", "4", "5"},
				CorrectOptions: model.OptionVector{0, 1, 0},
				Points:         5,
			},
			{
				ID:             "q2",
				Text:           "Select the even numbers",
				Type:           model.QuestionTypeMultipleChoice,
				Options:        []string{"1", "2", "4"},
				CorrectOptions: model.OptionVector{0, 1, 1},
				Points:         10,
			},
		},
	}

	attempts := newFakeAttemptStore()
	quizzes := newFakeQuizStore()
	quizzes.put(quiz)
	courses := &fakeCourseStore{
		approved: map[int]bool{1: true, 2: true},
		teachers: map[int]bool{10: true},
		count:    2,
	}
	clk := newFakeClock(quizStart.Add(time.Minute))
	events := &captureEvents{}

	svc := NewAttemptService(attempts, quizzes, courses, events, clk, zerolog.Nop())

	return &attemptFixture{
		svc:      svc,
		attempts: attempts,
		quizzes:  quizzes,
		events:   events,
		clk:      clk,
		quiz:     quiz,
		student:  model.Requester{UserID: 1, Role: model.RoleStudent},
		teacher:  model.Requester{UserID: 10, Role: model.RoleTeacher},
	}
}

func (f *attemptFixture) enroll(t *testing.T) *model.QuizAttempt {
	t.Helper()
	attempt, err := f.svc.Enroll(context.Background(), f.quiz.ID, "", f.student, AuditMeta{})
	if err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	return attempt
}

func TestEnrollCreatesAttemptWithEmptyAnswers(t *testing.T) {
	f := newAttemptFixture(t)

	attempt := f.enroll(t)

	if attempt.Status != model.AttemptStatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", attempt.Status)
	}
	if len(attempt.Answers) != 2 {
		t.Fatalf("answers = %d, want 2", len(attempt.Answers))
	}
	for _, ans := range attempt.Answers {
		if ans.Answer.Any() {
			t.Errorf("question %s starts with a selection", ans.QuestionID)
		}
	}
	if attempt.Answers[0].Text != "2 + 2 = ?" {
		t.Errorf("question text not denormalized: %q", attempt.Answers[0].Text)
	}
}

func TestEnrollIsIdempotent(t *testing.T) {
	f := newAttemptFixture(t)

	first := f.enroll(t)
	if _, _, err := f.svc.AutoSave(context.Background(), first.ID, f.student, model.AnswerUpdate{
		QuestionID: "q1",
		Answer:     model.OptionVector{0, 1, 0},
	}, AuditMeta{}); err != nil {
		t.Fatalf("AutoSave() error = %v", err)
	}

	second := f.enroll(t)
	if second.ID != first.ID {
		t.Fatalf("second enroll created a new attempt")
	}
	if !second.Answers[0].Answer.Equal(model.OptionVector{0, 1, 0}) {
		t.Errorf("resume lost saved answers: %v", second.Answers[0].Answer)
	}
}

func TestEnrollTimingWindows(t *testing.T) {
	tests := []struct {
		name     string
		at       time.Time
		wantKind apperr.Kind
	}{
		{"one second before start", quizStart.Add(-time.Second), apperr.KindInvalidTiming},
		{"exactly at start", quizStart, ""},
		{"inside late-join window", quizStart.Add(EnrollGraceWindow), ""},
		{"past late-join window", quizStart.Add(EnrollGraceWindow + time.Second), apperr.KindInvalidTiming},
		{"after end", quizStart.Add(time.Hour + time.Second), apperr.KindInvalidTiming},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAttemptFixture(t)
			f.clk.Set(tt.at)

			_, err := f.svc.Enroll(context.Background(), f.quiz.ID, "", f.student, AuditMeta{})
			if got := apperr.KindOf(err); got != tt.wantKind {
				t.Errorf("Enroll() kind = %q, want %q (err %v)", got, tt.wantKind, err)
			}
		})
	}
}

func TestEnrollResumesAfterLateJoinWindow(t *testing.T) {
	f := newAttemptFixture(t)
	first := f.enroll(t)

	// The late-join cutoff binds new attempts only; an existing attempt
	// resumes any time before the end.
	f.clk.Set(quizStart.Add(30 * time.Minute))
	second := f.enroll(t)
	if second.ID != first.ID {
		t.Fatalf("resume created a new attempt")
	}
}

func TestEnrollRejectsNonMember(t *testing.T) {
	f := newAttemptFixture(t)
	outsider := model.Requester{UserID: 99, Role: model.RoleStudent}

	_, err := f.svc.Enroll(context.Background(), f.quiz.ID, "", outsider, AuditMeta{})
	if apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Errorf("Enroll() = %v, want UNAUTHORIZED", err)
	}
}

func TestEnrollRejectsWrongPassword(t *testing.T) {
	f := newAttemptFixture(t)
	f.quiz.PasswordHash = mustHash(t, "letmein")
	f.quizzes.put(f.quiz)

	_, err := f.svc.Enroll(context.Background(), f.quiz.ID, "wrong", f.student, AuditMeta{})
	if apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Errorf("Enroll() = %v, want UNAUTHORIZED", err)
	}

	if _, err := f.svc.Enroll(context.Background(), f.quiz.ID, "letmein", f.student, AuditMeta{}); err != nil {
		t.Errorf("Enroll() with correct password = %v", err)
	}
}

func TestEnrollRejectsAfterSubmit(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.enroll(t)

	if _, err := f.svc.Submit(context.Background(), attempt.ID, f.student, AuditMeta{}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	_, err := f.svc.Enroll(context.Background(), f.quiz.ID, "", f.student, AuditMeta{})
	if apperr.KindOf(err) != apperr.KindInvalidState {
		t.Errorf("Enroll() after submit = %v, want INVALID_STATE", err)
	}
}

func TestAutoSaveUpdatesAnswerAndProgress(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.enroll(t)

	updated, progress, err := f.svc.AutoSave(context.Background(), attempt.ID, f.student, model.AnswerUpdate{
		QuestionID: "q2",
		Answer:     model.OptionVector{0, 1, 1},
	}, AuditMeta{})
	if err != nil {
		t.Fatalf("AutoSave() error = %v", err)
	}
	if !updated.Answers[1].Answer.Equal(model.OptionVector{0, 1, 1}) {
		t.Errorf("answer not stored: %v", updated.Answers[1].Answer)
	}
	if progress.AnsweredTotal != 1 || progress.Total != 2 {
		t.Errorf("progress = %+v, want 1/2", progress)
	}
}

func TestAutoSaveValidation(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.enroll(t)

	tests := []struct {
		name string
		upd  model.AnswerUpdate
	}{
		{"unknown question", model.AnswerUpdate{QuestionID: "nope", Answer: model.OptionVector{1, 0, 0}}},
		{"vector too short", model.AnswerUpdate{QuestionID: "q1", Answer: model.OptionVector{1}}},
		{"vector too long", model.AnswerUpdate{QuestionID: "q1", Answer: model.OptionVector{1, 0, 0, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.AutoSave(context.Background(), attempt.ID, f.student, tt.upd, AuditMeta{})
			if apperr.KindOf(err) != apperr.KindValidation {
				t.Errorf("AutoSave() = %v, want VALIDATION", err)
			}
		})
	}
}

func TestAutoSaveGraceWindow(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.enroll(t)

	end := f.quiz.EndTime

	f.clk.Set(end.Add(WriteGraceWindow - time.Second))
	if _, _, err := f.svc.AutoSave(context.Background(), attempt.ID, f.student, model.AnswerUpdate{
		QuestionID: "q1",
		Answer:     model.OptionVector{0, 1, 0},
	}, AuditMeta{}); err != nil {
		t.Fatalf("AutoSave() inside grace = %v", err)
	}

	f.clk.Set(end.Add(WriteGraceWindow + time.Second))
	_, _, err := f.svc.AutoSave(context.Background(), attempt.ID, f.student, model.AnswerUpdate{
		QuestionID: "q1",
		Answer:     model.OptionVector{0, 1, 0},
	}, AuditMeta{})
	if apperr.KindOf(err) != apperr.KindInvalidTiming {
		t.Errorf("AutoSave() past grace = %v, want INVALID_TIMING", err)
	}
}

func TestAutoSaveRejectsOtherStudents(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.enroll(t)
	other := model.Requester{UserID: 2, Role: model.RoleStudent}

	_, _, err := f.svc.AutoSave(context.Background(), attempt.ID, other, model.AnswerUpdate{
		QuestionID: "q1",
		Answer:     model.OptionVector{1, 0, 0},
	}, AuditMeta{})
	if apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Errorf("AutoSave() = %v, want UNAUTHORIZED", err)
	}
}

func TestSaveReplacesAllAnswers(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.enroll(t)

	_, progress, err := f.svc.Save(context.Background(), attempt.ID, f.student, []model.AnswerUpdate{
		{QuestionID: "q1", Answer: model.OptionVector{0, 1, 0}},
		{QuestionID: "q2", Answer: model.OptionVector{1, 0, 0}},
	}, AuditMeta{})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if progress.AnsweredTotal != 2 {
		t.Errorf("AnsweredTotal = %d, want 2", progress.AnsweredTotal)
	}
}

func TestSaveRejectsWrongCardinality(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.enroll(t)

	_, _, err := f.svc.Save(context.Background(), attempt.ID, f.student, []model.AnswerUpdate{
		{QuestionID: "q1", Answer: model.OptionVector{0, 1, 0}},
	}, AuditMeta{})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("Save() = %v, want VALIDATION", err)
	}
}

func TestSubmitGradesAndFinalizes(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.enroll(t)

	// q1 correct (5 pts), q2 wrong: 5/15 ≈ 33.33%, final score ≈ 3.33.
	if _, _, err := f.svc.AutoSave(context.Background(), attempt.ID, f.student, model.AnswerUpdate{
		QuestionID: "q1",
		Answer:     model.OptionVector{0, 1, 0},
	}, AuditMeta{}); err != nil {
		t.Fatalf("AutoSave() error = %v", err)
	}

	result, err := f.svc.Submit(context.Background(), attempt.ID, f.student, AuditMeta{})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if result.TotalScore != 5 || result.TotalQuizScore != 15 {
		t.Errorf("score = %v/%v, want 5/15", result.TotalScore, result.TotalQuizScore)
	}

	stored, err := f.attempts.GetByID(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Status != model.AttemptStatusSubmitted {
		t.Errorf("status = %s, want SUBMITTED", stored.Status)
	}
	if stored.Score == nil || *stored.Score != result.FinalScore() {
		t.Errorf("stored score = %v, want %v", stored.Score, result.FinalScore())
	}
}

func TestSubmitIsSingleShot(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.enroll(t)

	if _, err := f.svc.Submit(context.Background(), attempt.ID, f.student, AuditMeta{}); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	_, err := f.svc.Submit(context.Background(), attempt.ID, f.student, AuditMeta{})
	if apperr.KindOf(err) != apperr.KindInvalidState {
		t.Errorf("second Submit() = %v, want INVALID_STATE", err)
	}
}

func TestSubmitAfterBanFails(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.enroll(t)

	if err := f.svc.Ban(context.Background(), attempt.ID, f.teacher); err != nil {
		t.Fatalf("Ban() error = %v", err)
	}
	_, err := f.svc.Submit(context.Background(), attempt.ID, f.student, AuditMeta{})
	if apperr.KindOf(err) != apperr.KindInvalidState {
		t.Errorf("Submit() after ban = %v, want INVALID_STATE", err)
	}
}

func TestBanRules(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.enroll(t)

	stranger := model.Requester{UserID: 77, Role: model.RoleTeacher}
	if err := f.svc.Ban(context.Background(), attempt.ID, stranger); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Errorf("Ban() by non-creator = %v, want UNAUTHORIZED", err)
	}

	if _, err := f.svc.Submit(context.Background(), attempt.ID, f.student, AuditMeta{}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := f.svc.Ban(context.Background(), attempt.ID, f.teacher); apperr.KindOf(err) != apperr.KindInvalidState {
		t.Errorf("Ban() after submit = %v, want INVALID_STATE", err)
	}
}

func TestDeleteRequiresQuizNotOngoing(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.enroll(t)

	if err := f.svc.Delete(context.Background(), attempt.ID, f.teacher); apperr.KindOf(err) != apperr.KindInvalidState {
		t.Errorf("Delete() while ongoing = %v, want INVALID_STATE", err)
	}

	f.clk.Set(f.quiz.EndTime.Add(time.Minute))
	if err := f.svc.Delete(context.Background(), attempt.ID, f.teacher); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := f.svc.GetAttemptState(context.Background(), f.quiz.ID, f.student); err != nil {
		t.Fatalf("GetAttemptState() error = %v", err)
	}
	state, _ := f.svc.GetAttemptState(context.Background(), f.quiz.ID, f.student)
	if state.Started {
		t.Errorf("deleted attempt still visible")
	}
}

func TestUpdateScoreRequiresSubmitted(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.enroll(t)

	if err := f.svc.UpdateScore(context.Background(), attempt.ID, 9.5, f.teacher); apperr.KindOf(err) != apperr.KindInvalidState {
		t.Errorf("UpdateScore() before submit = %v, want INVALID_STATE", err)
	}

	if _, err := f.svc.Submit(context.Background(), attempt.ID, f.student, AuditMeta{}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := f.svc.UpdateScore(context.Background(), attempt.ID, 9.5, f.teacher); err != nil {
		t.Fatalf("UpdateScore() error = %v", err)
	}

	stored, _ := f.attempts.GetByID(context.Background(), attempt.ID)
	if stored.Score == nil || *stored.Score != 9.5 {
		t.Errorf("score = %v, want 9.5", stored.Score)
	}
	if stored.Status != model.AttemptStatusSubmitted {
		t.Errorf("override changed status to %s", stored.Status)
	}
}

func TestGetAttemptStateDistinguishesNotStarted(t *testing.T) {
	f := newAttemptFixture(t)

	state, err := f.svc.GetAttemptState(context.Background(), f.quiz.ID, f.student)
	if err != nil {
		t.Fatalf("GetAttemptState() error = %v", err)
	}
	if state.Started {
		t.Fatalf("Started = true before enroll")
	}

	f.enroll(t)
	state, err = f.svc.GetAttemptState(context.Background(), f.quiz.ID, f.student)
	if err != nil {
		t.Fatalf("GetAttemptState() error = %v", err)
	}
	if !state.Started || state.Attempt == nil || state.Progress == nil {
		t.Errorf("state after enroll = %+v", state)
	}
	if state.Progress.Total != 2 {
		t.Errorf("Total = %d, want 2", state.Progress.Total)
	}
}

func TestEnrollConcurrentCreatesSingleAttempt(t *testing.T) {
	f := newAttemptFixture(t)

	const n = 16
	var wg sync.WaitGroup
	ids := make([]uuid.UUID, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			attempt, err := f.svc.Enroll(context.Background(), f.quiz.ID, "", f.student, AuditMeta{})
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = attempt.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("Enroll() goroutine %d error = %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("divergent attempt ids: %s vs %s", ids[i], ids[0])
		}
	}
	if got := len(f.attempts.byID); got != 1 {
		t.Fatalf("attempts persisted = %d, want 1", got)
	}
}

func TestSubmitAndBanResolveToOneTerminalState(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.enroll(t)

	var wg sync.WaitGroup
	var submitErr, banErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, submitErr = f.svc.Submit(context.Background(), attempt.ID, f.student, AuditMeta{})
	}()
	go func() {
		defer wg.Done()
		banErr = f.svc.Ban(context.Background(), attempt.ID, f.teacher)
	}()
	wg.Wait()

	final, err := f.attempts.GetByID(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !final.Status.Terminal() {
		t.Fatalf("status = %s, want a terminal state", final.Status)
	}

	switch final.Status {
	case model.AttemptStatusSubmitted:
		if submitErr != nil {
			t.Errorf("submit won the race but returned %v", submitErr)
		}
		if apperr.KindOf(banErr) != apperr.KindInvalidState {
			t.Errorf("losing ban = %v, want INVALID_STATE", banErr)
		}
		if final.Score == nil {
			t.Error("submitted attempt has no score")
		}
	case model.AttemptStatusAbandoned:
		if banErr != nil {
			t.Errorf("ban won the race but returned %v", banErr)
		}
		if apperr.KindOf(submitErr) != apperr.KindInvalidState {
			t.Errorf("losing submit = %v, want INVALID_STATE", submitErr)
		}
	}
}

func TestAnswerWritesCarryAuditMetadata(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.enroll(t)
	meta := AuditMeta{IPAddress: "203.0.113.7", UserAgent: "quiz-client/1.0"}

	if _, _, err := f.svc.AutoSave(context.Background(), attempt.ID, f.student, model.AnswerUpdate{
		QuestionID: "q1",
		Answer:     model.OptionVector{0, 1, 0},
	}, meta); err != nil {
		t.Fatalf("AutoSave() error = %v", err)
	}
	if _, _, err := f.svc.Save(context.Background(), attempt.ID, f.student, []model.AnswerUpdate{
		{QuestionID: "q1", Answer: model.OptionVector{0, 1, 0}},
		{QuestionID: "q2", Answer: model.OptionVector{0, 1, 1}},
	}, meta); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	for _, action := range []AuditAction{ActionAutosave, ActionSave} {
		events := f.events.byAction(action)
		if len(events) != 1 {
			t.Fatalf("%s events = %d, want 1", action, len(events))
		}
		if events[0].IPAddress != meta.IPAddress || events[0].UserAgent != meta.UserAgent {
			t.Errorf("%s event metadata = %q/%q, want %q/%q",
				action, events[0].IPAddress, events[0].UserAgent, meta.IPAddress, meta.UserAgent)
		}
	}
}

func TestUnknownQuizAndAttemptAreNotFound(t *testing.T) {
	f := newAttemptFixture(t)

	if _, err := f.svc.Enroll(context.Background(), uuid.New(), "", f.student, AuditMeta{}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("Enroll() unknown quiz = %v, want NOT_FOUND", err)
	}
	if _, err := f.svc.Submit(context.Background(), uuid.New(), f.student, AuditMeta{}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("Submit() unknown attempt = %v, want NOT_FOUND", err)
	}
}
