// Package grading compares a submitted answer set against a quiz's frozen
// question snapshots. It is pure: no clock, no storage, no side effects,
// safe to run concurrently for different attempts.
package grading

import (
	"github.com/NTA1210/learning-management-system-sub002/internal/model"
)

// Grade scores answers against snapshots. A question is correct iff the
// submitted 0/1 vector equals the snapshot's correct_options element for
// element; every question type shares this representation. Credit is
// binary: full points or zero.
//
// Answers whose question id is absent from the snapshot set are skipped
// rather than failing; the caller enforces cardinality before grading.
func Grade(answers []model.QuestionAnswer, questions []model.QuestionSnapshot) model.GradeResult {
	byID := make(map[string]model.QuestionSnapshot, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	result := model.GradeResult{
		TotalQuestions:  len(questions),
		PassedQuestions: []string{},
		FailedQuestions: []string{},
		Answers:         make([]model.QuestionAnswer, 0, len(answers)),
	}

	for _, ans := range answers {
		question, ok := byID[ans.QuestionID]
		if !ok {
			continue
		}

		ans.Correct = ans.Answer.Equal(question.CorrectOptions)
		if ans.Correct {
			ans.PointsEarned = question.Points
			result.TotalScore += question.Points
			result.PassedQuestions = append(result.PassedQuestions, ans.QuestionID)
		} else {
			ans.PointsEarned = 0
			result.FailedQuestions = append(result.FailedQuestions, ans.QuestionID)
		}
		result.TotalQuizScore += question.Points
		result.Answers = append(result.Answers, ans)
	}

	if result.TotalQuizScore > 0 {
		result.ScorePercentage = result.TotalScore / result.TotalQuizScore * 100
	}

	return result
}
