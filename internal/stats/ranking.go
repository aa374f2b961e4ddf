package stats

import (
	"sort"

	"github.com/NTA1210/learning-management-system-sub002/internal/model"
)

// RankedStudent is one row of the per-quiz ranking.
type RankedStudent struct {
	Rank            int     `json:"rank"`
	StudentID       int     `json:"student_id"`
	StudentName     string  `json:"student_name"`
	StudentEmail    string  `json:"student_email"`
	Score           float64 `json:"score"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Rank orders submitted attempts by score descending, breaking ties by
// ascending duration (the faster finisher wins), and assigns the 1-based
// sorted position as the rank. Ranks are positional: exact ties still get
// distinct consecutive ranks.
func Rank(attempts []model.SubmittedAttempt) []RankedStudent {
	sorted := append([]model.SubmittedAttempt(nil), attempts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].DurationSeconds < sorted[j].DurationSeconds
	})

	ranked := make([]RankedStudent, len(sorted))
	for i, a := range sorted {
		ranked[i] = RankedStudent{
			Rank:            i + 1,
			StudentID:       a.StudentID,
			StudentName:     a.StudentName,
			StudentEmail:    a.StudentEmail,
			Score:           a.Score,
			DurationSeconds: a.DurationSeconds,
		}
	}
	return ranked
}
