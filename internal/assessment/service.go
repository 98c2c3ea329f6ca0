package assessment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gyandarshak/gyandarshak/internal/apperr"
	"github.com/gyandarshak/gyandarshak/internal/db"
	"github.com/gyandarshak/gyandarshak/internal/grading"
	"github.com/gyandarshak/gyandarshak/internal/rbac"
	syncx "github.com/gyandarshak/gyandarshak/internal/sync"
)

// Profiles resolves the student profile of a user. A user without one
// yields a Validation error.
type Profiles interface {
	ProfileIDForUser(ctx context.Context, userID int64) (int64, error)
}

type Service struct {
	db       *sql.DB
	profiles Profiles
	grader   *grading.Grader
	now      func() time.Time

	// redactKeys strips correct_option from test payloads sent to
	// non-admin callers.
	redactKeys bool
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithRedactedAnswerKeys hides answer keys from students when on.
func WithRedactedAnswerKeys(on bool) Option { return func(s *Service) { s.redactKeys = on } }

func NewService(dbh *sql.DB, profiles Profiles, opts ...Option) *Service {
	s := &Service{
		db:       dbh,
		profiles: profiles,
		grader:   grading.NewDefaultGrader(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) view(p rbac.Principal, t Test) Test {
	if s.redactKeys && !p.IsAdmin() {
		return t.redacted()
	}
	return t
}

// CreateTest stores a test with its questions. total_marks is derived from
// the questions, never taken from input.
func (s *Service) CreateTest(ctx context.Context, _ rbac.Admin, in TestInput) (Test, error) {
	in, err := in.Normalize()
	if err != nil {
		return Test{}, err
	}
	t := Test{
		Title:           in.Title,
		Description:     in.Description,
		DurationMinutes: *in.DurationMinutes,
		IsActive:        true,
		CreatedAt:       s.now().Unix(),
		Questions:       make([]Question, 0, len(in.Questions)),
	}
	for _, qi := range in.Questions {
		t.Questions = append(t.Questions, Question{
			Text:          qi.Text,
			OptionA:       qi.OptionA,
			OptionB:       qi.OptionB,
			OptionC:       qi.OptionC,
			OptionD:       qi.OptionD,
			CorrectOption: qi.CorrectOption,
			Marks:         *qi.Marks,
		})
		t.TotalMarks += *qi.Marks
	}

	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := insertTest(ctx, tx, &t); err != nil {
			return fmt.Errorf("insert test: %w", err)
		}
		for i := range t.Questions {
			if err := insertQuestion(ctx, tx, t.ID, i, &t.Questions[i]); err != nil {
				return fmt.Errorf("insert question %d: %w", i+1, err)
			}
		}
		return syncx.Record(ctx, tx, syncx.TypeTestCreated, t.ID, map[string]any{
			"test_id":     t.ID,
			"title":       t.Title,
			"questions":   len(t.Questions),
			"total_marks": t.TotalMarks,
		}, t.CreatedAt)
	})
	if err != nil {
		return Test{}, err
	}
	return t, nil
}

// ListTests returns every active test with its questions.
func (s *Service) ListTests(ctx context.Context, p rbac.Principal) ([]Test, error) {
	tests, err := listActiveTests(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	for i := range tests {
		tests[i] = s.view(p, tests[i])
	}
	return tests, nil
}

// GetTest returns one test, active or not, with answer keys.
func (s *Service) GetTest(ctx context.Context, _ rbac.Admin, id int64) (Test, error) {
	t, err := getTest(ctx, s.db, id, false)
	if errors.Is(err, sql.ErrNoRows) {
		return Test{}, apperr.NotFound("Test not found")
	}
	if err != nil {
		return Test{}, fmt.Errorf("load test: %w", err)
	}
	return t, nil
}

// StartAttempt opens a new in-progress attempt on an active test. Earlier
// unfinished attempts by the same student are left alone.
func (s *Service) StartAttempt(ctx context.Context, p rbac.Principal, testID int64) (StartResult, error) {
	studentID, err := s.profiles.ProfileIDForUser(ctx, p.UserID)
	if err != nil {
		return StartResult{}, err
	}
	var out StartResult
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := getTest(ctx, tx, testID, true)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("Test not found")
		}
		if err != nil {
			return fmt.Errorf("load test: %w", err)
		}
		a := Attempt{TestID: t.ID, StudentID: studentID, StartedAt: s.now().Unix()}
		if err := insertAttempt(ctx, tx, &a); err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		out = StartResult{AttemptID: a.ID, Test: t}
		return syncx.Record(ctx, tx, syncx.TypeAttemptStarted, a.ID, map[string]any{
			"attempt_id": a.ID,
			"test_id":    a.TestID,
			"student_id": a.StudentID,
		}, a.StartedAt)
	})
	if err != nil {
		return StartResult{}, err
	}
	out.Test = s.view(p, out.Test)
	return out, nil
}

// SubmitAttempt grades answers and finalizes the attempt. The stored answer
// set is replaced wholesale, so a second submit leaves only its own answers
// and score.
func (s *Service) SubmitAttempt(ctx context.Context, p rbac.Principal, attemptID int64, answers []AnswerInput) (SubmitResult, error) {
	responses := make([]grading.Response, 0, len(answers))
	for _, a := range answers {
		if !grading.ValidOption(a.SelectedOption) {
			return SubmitResult{}, apperr.Validation("question %d: selected_option must be one of A, B, C, D", a.QuestionID)
		}
		responses = append(responses, grading.Response{QuestionID: a.QuestionID, Selected: a.SelectedOption})
	}

	// A caller without a profile owns nothing; that surfaces as Forbidden
	// once the attempt is known to exist.
	studentID, profErr := s.profiles.ProfileIDForUser(ctx, p.UserID)
	if profErr != nil && !errors.Is(profErr, apperr.ErrValidation) {
		return SubmitResult{}, profErr
	}

	var out SubmitResult
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		a, err := getAttempt(ctx, tx, attemptID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("Attempt not found")
		}
		if err != nil {
			return fmt.Errorf("load attempt: %w", err)
		}
		if profErr != nil || studentID != a.StudentID {
			return apperr.Forbidden("Not allowed")
		}
		t, err := getTest(ctx, tx, a.TestID, false)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("Test not found")
		}
		if err != nil {
			return fmt.Errorf("load test: %w", err)
		}

		qs := make([]grading.Q, 0, len(t.Questions))
		for _, q := range t.Questions {
			qs = append(qs, grading.Q{ID: q.ID, Type: grading.TypeOptionLetter, Marks: q.Marks, Correct: q.CorrectOption})
		}
		sheet, err := s.grader.GradeSheet(qs, responses)
		if err != nil {
			return err
		}
		if err := setAnswers(ctx, tx, a.ID, sheet.Results); err != nil {
			return fmt.Errorf("store answers: %w", err)
		}
		finished := s.now().Unix()
		if err := finishAttempt(ctx, tx, a.ID, sheet.Score, finished); err != nil {
			return fmt.Errorf("finish attempt: %w", err)
		}
		out = SubmitResult{AttemptID: a.ID, Score: sheet.Score, TotalMarks: t.TotalMarks}
		return syncx.Record(ctx, tx, syncx.TypeAttemptSubmitted, a.ID, map[string]any{
			"attempt_id":  a.ID,
			"test_id":     a.TestID,
			"student_id":  a.StudentID,
			"score":       sheet.Score,
			"total_marks": t.TotalMarks,
			"answered":    len(sheet.Results),
			"skipped":     sheet.Skipped,
		}, finished)
	})
	if err != nil {
		return SubmitResult{}, err
	}
	return out, nil
}

// AttemptAnswers returns the stored answer set of an attempt to its owner
// or an admin.
func (s *Service) AttemptAnswers(ctx context.Context, p rbac.Principal, attemptID int64) ([]StoredAnswer, error) {
	a, err := getAttempt(ctx, s.db, attemptID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Attempt not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load attempt: %w", err)
	}
	if !p.IsAdmin() {
		studentID, err := s.profiles.ProfileIDForUser(ctx, p.UserID)
		if errors.Is(err, apperr.ErrValidation) || (err == nil && studentID != a.StudentID) {
			return nil, apperr.Forbidden("Not allowed")
		}
		if err != nil {
			return nil, err
		}
	}
	out, err := listAnswers(ctx, s.db, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return out, nil
}

// ListMyAttempts returns the caller's attempts, newest first.
func (s *Service) ListMyAttempts(ctx context.Context, p rbac.Principal) ([]AttemptSummary, error) {
	studentID, err := s.profiles.ProfileIDForUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	out, err := listAttemptsByStudent(ctx, s.db, studentID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return out, nil
}

// ListAttemptsForTest reports every attempt on a test, newest first.
func (s *Service) ListAttemptsForTest(ctx context.Context, _ rbac.Admin, testID int64) ([]AdminAttemptSummary, error) {
	ok, err := testExists(ctx, s.db, testID)
	if err != nil {
		return nil, fmt.Errorf("load test: %w", err)
	}
	if !ok {
		return nil, apperr.NotFound("Test not found")
	}
	out, err := listAttemptsByTest(ctx, s.db, testID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return out, nil
}
