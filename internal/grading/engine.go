package grading

import (
	"fmt"
	"strings"
)

// TypeOptionLetter is a four-option question answered with one letter.
const TypeOptionLetter = "option_letter"

// Options lists the valid answer letters in display order.
var Options = []string{"A", "B", "C", "D"}

// Q is a minimal view of a question needed for grading.
type Q struct {
	ID      int64
	Type    string
	Marks   int
	Correct string
}

// Result is the outcome of grading a single question response.
type Result struct {
	QuestionID int64
	Selected   string // normalized
	Awarded    int
	Max        int
}

// Strategy grades a single question.
type Strategy interface {
	Grade(q Q, response string) Result
}

// Grader routes by question type to the correct Strategy.
type Grader struct {
	strategies map[string]Strategy
}

// NewDefaultGrader installs built-in strategies.
func NewDefaultGrader() *Grader {
	return &Grader{
		strategies: map[string]Strategy{
			TypeOptionLetter: optionLetterStrategy{},
		},
	}
}

func (g *Grader) Grade(q Q, response string) (Result, error) {
	t := q.Type
	if t == "" {
		t = TypeOptionLetter
	}
	s, ok := g.strategies[t]
	if !ok {
		return Result{}, fmt.Errorf("no grading strategy for question type %q", t)
	}
	return s.Grade(q, response), nil
}

// Response is one submitted answer.
type Response struct {
	QuestionID int64
	Selected   string
}

// Sheet is a graded submission.
type Sheet struct {
	Results []Result
	Score   int
	Skipped int // responses naming a question outside the test
}

// GradeSheet grades responses against questions. Responses for unknown
// question ids are skipped. When a question is answered more than once the
// last response wins; results keep first-seen order.
func (g *Grader) GradeSheet(questions []Q, responses []Response) (Sheet, error) {
	byID := make(map[int64]Q, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	var sheet Sheet
	pos := make(map[int64]int, len(responses))
	for _, r := range responses {
		q, ok := byID[r.QuestionID]
		if !ok {
			sheet.Skipped++
			continue
		}
		res, err := g.Grade(q, r.Selected)
		if err != nil {
			return Sheet{}, err
		}
		if i, seen := pos[q.ID]; seen {
			sheet.Results[i] = res
			continue
		}
		pos[q.ID] = len(sheet.Results)
		sheet.Results = append(sheet.Results, res)
	}
	for _, res := range sheet.Results {
		sheet.Score += res.Awarded
	}
	return sheet, nil
}

// --- Strategies ---

type optionLetterStrategy struct{}

func (optionLetterStrategy) Grade(q Q, response string) Result {
	res := Result{QuestionID: q.ID, Selected: NormalizeOption(response), Max: q.Marks}
	if res.Selected == NormalizeOption(q.Correct) {
		res.Awarded = q.Marks
	}
	return res
}

// NormalizeOption trims and uppercases an option letter.
func NormalizeOption(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidOption reports whether s normalizes to one of Options.
func ValidOption(s string) bool {
	n := NormalizeOption(s)
	for _, o := range Options {
		if n == o {
			return true
		}
	}
	return false
}
