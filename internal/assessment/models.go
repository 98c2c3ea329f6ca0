// Package assessment holds practice tests and the attempt engine.
package assessment

import (
	"strings"

	"github.com/gyandarshak/gyandarshak/internal/apperr"
	"github.com/gyandarshak/gyandarshak/internal/grading"
)

const (
	DefaultDurationMinutes = 30
	DefaultMarks           = 1
)

type Question struct {
	ID            int64  `json:"id"`
	Text          string `json:"text"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectOption string `json:"correct_option,omitempty"` // empty only when redacted
	Marks         int    `json:"marks"`
}

// Test is immutable once created. TotalMarks is the sum of question marks
// at creation.
type Test struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     *string    `json:"description"`
	DurationMinutes int        `json:"duration_minutes"`
	TotalMarks      int        `json:"total_marks"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       int64      `json:"created_at"`
	Questions       []Question `json:"questions"`
}

// redacted returns a copy of t without answer keys.
func (t Test) redacted() Test {
	qs := make([]Question, len(t.Questions))
	for i, q := range t.Questions {
		q.CorrectOption = ""
		qs[i] = q
	}
	t.Questions = qs
	return t
}

type QuestionInput struct {
	Text          string `json:"text"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectOption string `json:"correct_option"`
	Marks         *int   `json:"marks"`
}

type TestInput struct {
	Title           string          `json:"title"`
	Description     *string         `json:"description"`
	DurationMinutes *int            `json:"duration_minutes"`
	Questions       []QuestionInput `json:"questions"`
}

// Normalize applies defaults and rejects malformed input: blank title,
// question text or option, a correct option outside A-D, marks below one,
// or a non-positive duration.
func (in TestInput) Normalize() (TestInput, error) {
	out := TestInput{Title: strings.TrimSpace(in.Title), Description: in.Description}
	if out.Title == "" {
		return TestInput{}, apperr.Validation("title is required")
	}
	d := DefaultDurationMinutes
	if in.DurationMinutes != nil {
		d = *in.DurationMinutes
	}
	if d < 1 {
		return TestInput{}, apperr.Validation("duration_minutes must be at least 1")
	}
	out.DurationMinutes = &d

	out.Questions = make([]QuestionInput, 0, len(in.Questions))
	for i, q := range in.Questions {
		n := i + 1
		for _, f := range [...]struct{ name, v string }{
			{"text", q.Text}, {"option_a", q.OptionA}, {"option_b", q.OptionB},
			{"option_c", q.OptionC}, {"option_d", q.OptionD},
		} {
			if strings.TrimSpace(f.v) == "" {
				return TestInput{}, apperr.Validation("question %d: %s is required", n, f.name)
			}
		}
		if !grading.ValidOption(q.CorrectOption) {
			return TestInput{}, apperr.Validation("question %d: correct_option must be one of A, B, C, D", n)
		}
		q.CorrectOption = grading.NormalizeOption(q.CorrectOption)
		m := DefaultMarks
		if q.Marks != nil {
			m = *q.Marks
		}
		if m < 1 {
			return TestInput{}, apperr.Validation("question %d: marks must be at least 1", n)
		}
		q.Marks = &m
		out.Questions = append(out.Questions, q)
	}
	return out, nil
}

type StartResult struct {
	AttemptID int64 `json:"attempt_id"`
	Test      Test  `json:"test"`
}

type AnswerInput struct {
	QuestionID     int64  `json:"question_id"`
	SelectedOption string `json:"selected_option"`
}

type SubmitResult struct {
	AttemptID  int64 `json:"attempt_id"`
	Score      int   `json:"score"`
	TotalMarks int   `json:"total_marks"`
}

// Attempt states, derived from finished_at.
const (
	StateInProgress = "in_progress"
	StateFinished   = "finished"
)

type Attempt struct {
	ID         int64  `json:"attempt_id"`
	TestID     int64  `json:"test_id"`
	StudentID  int64  `json:"student_id"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt *int64 `json:"finished_at"`
	Score      *int   `json:"score"`
}

func (a Attempt) State() string {
	if a.FinishedAt != nil {
		return StateFinished
	}
	return StateInProgress
}

// AttemptSummary is a row of the caller's own attempt history.
type AttemptSummary struct {
	AttemptID  int64  `json:"attempt_id"`
	TestID     int64  `json:"test_id"`
	TestTitle  string `json:"test_title"`
	Score      *int   `json:"score"`
	TotalMarks int    `json:"total_marks"`
	State      string `json:"state"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt *int64 `json:"finished_at"`
}

// AdminAttemptSummary is a row of the per-test attempt report.
type AdminAttemptSummary struct {
	AttemptID   int64   `json:"attempt_id"`
	StudentID   int64   `json:"student_id"`
	StudentName *string `json:"student_name"`
	Score       *int    `json:"score"`
	TotalMarks  int     `json:"total_marks"`
	State       string  `json:"state"`
	StartedAt   int64   `json:"started_at"`
	FinishedAt  *int64  `json:"finished_at"`
}

type StoredAnswer struct {
	QuestionID     int64  `json:"question_id"`
	SelectedOption string `json:"selected_option"`
}
