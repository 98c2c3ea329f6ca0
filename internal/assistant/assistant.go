// Package assistant answers free-text questions with canned guidance until a
// real model is wired in.
package assistant

import "strings"

const (
	examAnswer        = "This is a demo answer. Gyandarshak will show you relevant exams and dates based on your class, stream, and state."
	scholarshipAnswer = "This is a demo answer. Gyandarshak will highlight scholarships from government and trusts that match your profile."
	defaultAnswer     = "This is a demo AI assistant. In the next phase, it will use real data from your profile, colleges, exams, and scholarships."
)

// Responder maps a question to an answer.
type Responder interface {
	Answer(question string) string
}

// Keyword picks a canned answer by the first topic keyword found. Exams are
// checked before scholarships.
type Keyword struct{}

func (Keyword) Answer(question string) string {
	q := strings.ToLower(strings.TrimSpace(question))
	switch {
	case strings.Contains(q, "exam"):
		return examAnswer
	case strings.Contains(q, "scholarship"):
		return scholarshipAnswer
	default:
		return defaultAnswer
	}
}
