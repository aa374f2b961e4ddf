package stats

import (
	"testing"

	"github.com/NTA1210/learning-management-system-sub002/internal/model"
)

func TestRankTieBreakByDuration(t *testing.T) {
	attempts := []model.SubmittedAttempt{
		{StudentID: 1, StudentName: "slow", Score: 8, DurationSeconds: 120},
		{StudentID: 2, StudentName: "fast", Score: 8, DurationSeconds: 90},
	}

	ranked := Rank(attempts)

	if ranked[0].StudentID != 2 || ranked[0].Rank != 1 {
		t.Errorf("faster finisher should rank 1, got %+v", ranked[0])
	}
	if ranked[1].StudentID != 1 || ranked[1].Rank != 2 {
		t.Errorf("slower finisher should rank 2, got %+v", ranked[1])
	}
}

func TestRankIsPositional(t *testing.T) {
	attempts := []model.SubmittedAttempt{
		{StudentID: 1, Score: 6, DurationSeconds: 60},
		{StudentID: 2, Score: 6, DurationSeconds: 60},
		{StudentID: 3, Score: 9, DurationSeconds: 200},
	}

	ranked := Rank(attempts)

	if ranked[0].StudentID != 3 {
		t.Errorf("highest score should rank first, got %+v", ranked[0])
	}
	// Exact ties still get distinct consecutive ranks.
	if ranked[1].Rank != 2 || ranked[2].Rank != 3 {
		t.Errorf("ties must not share a rank: %+v %+v", ranked[1], ranked[2])
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	attempts := []model.SubmittedAttempt{
		{StudentID: 1, Score: 2},
		{StudentID: 2, Score: 9},
	}
	Rank(attempts)
	if attempts[0].StudentID != 1 {
		t.Errorf("input reordered: %+v", attempts)
	}
}

func TestRankEmpty(t *testing.T) {
	if got := Rank(nil); len(got) != 0 {
		t.Errorf("Rank(nil) = %v, want empty", got)
	}
}
