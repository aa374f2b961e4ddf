package model

import "errors"

// Snapshot validation errors.
var (
	errMissingQuestionID   = errors.New("question id is required")
	errNoOptions           = errors.New("question has no options")
	errOptionVectorLength  = errors.New("correct_options length must match options length")
	errNonPositivePoints   = errors.New("points must be positive")
	errUnknownQuestionType = errors.New("unknown question type")
	errNoCorrectOption     = errors.New("at least one option must be marked correct")
)

// QuestionType enumerates supported question types. All of them share the
// same option-vector representation, so grading never branches on type.
type QuestionType string

const (
	QuestionTypeSingleChoice   QuestionType = "SINGLE_CHOICE"
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionTypeFillBlank      QuestionType = "FILL_BLANK"
)

// OptionVector is a 0/1 selection flag per option, aligned with a
// question's option list.
type OptionVector []int

// Equal reports element-for-element equality with other.
func (v OptionVector) Equal(other OptionVector) bool {
	if len(v) != len(other) {
		return false
	}
	for i := range v {
		if v[i] != other[i] {
			return false
		}
	}
	return true
}

// Any reports whether at least one option is selected.
func (v OptionVector) Any() bool {
	for _, f := range v {
		if f != 0 {
			return true
		}
	}
	return false
}

// QuestionSnapshot is a question copied into a quiz at authoring time.
// It is immutable once attempts may begin; grading only ever compares
// against this frozen copy, never against a live question bank entry.
type QuestionSnapshot struct {
	ID             string       `json:"id"`
	Text           string       `json:"text"`
	Type           QuestionType `json:"type"`
	Options        []string     `json:"options"`
	CorrectOptions OptionVector `json:"correct_options"`
	Points         float64      `json:"points"`
	Explanation    string       `json:"explanation,omitempty"`
	Images         []string     `json:"images,omitempty"`
}

// StudentQuestion is a snapshot with correctness-sensitive fields stripped.
// Sent to students; never carries the answer key.
type StudentQuestion struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options"`
	Images  []string     `json:"images,omitempty"`
}

// ForStudent strips grading fields from a snapshot.
func (q QuestionSnapshot) ForStudent() StudentQuestion {
	return StudentQuestion{
		ID:      q.ID,
		Text:    q.Text,
		Type:    q.Type,
		Options: q.Options,
		Images:  q.Images,
	}
}

// Validate checks the structural invariants of a snapshot.
func (q QuestionSnapshot) Validate() error {
	if q.ID == "" {
		return errMissingQuestionID
	}
	if len(q.Options) == 0 {
		return errNoOptions
	}
	if len(q.Options) != len(q.CorrectOptions) {
		return errOptionVectorLength
	}
	if q.Points <= 0 {
		return errNonPositivePoints
	}
	switch q.Type {
	case QuestionTypeSingleChoice, QuestionTypeMultipleChoice, QuestionTypeTrueFalse, QuestionTypeFillBlank:
	default:
		return errUnknownQuestionType
	}
	if !q.CorrectOptions.Any() {
		return errNoCorrectOption
	}
	return nil
}
