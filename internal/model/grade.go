package model

// GradeResult is the derived outcome of grading one attempt. It is
// returned to the submitter; only the graded answers and the score are
// persisted back onto the attempt.
type GradeResult struct {
	TotalQuestions  int              `json:"total_questions"`
	TotalScore      float64          `json:"total_score"`
	TotalQuizScore  float64          `json:"total_quiz_score"`
	ScorePercentage float64          `json:"score_percentage"`
	PassedQuestions []string         `json:"passed_questions"`
	FailedQuestions []string         `json:"failed_questions"`
	Answers         []QuestionAnswer `json:"answers"`
}

// FinalScore maps the percentage onto the 0-10 scale stored on attempts
// and consumed by the score histogram.
func (g GradeResult) FinalScore() float64 {
	return g.ScorePercentage / 10
}
