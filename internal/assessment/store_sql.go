package assessment

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gyandarshak/gyandarshak/internal/db"
	"github.com/gyandarshak/gyandarshak/internal/grading"
)

const testCols = `id, title, description, duration_minutes, total_marks, is_active, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTest(rs rowScanner) (Test, error) {
	var t Test
	err := rs.Scan(&t.ID, &t.Title, &t.Description, &t.DurationMinutes, &t.TotalMarks, &t.IsActive, &t.CreatedAt)
	return t, err
}

func insertTest(ctx context.Context, q db.Querier, t *Test) error {
	return q.QueryRowContext(ctx,
		`INSERT INTO tests (title, description, duration_minutes, total_marks, is_active, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		t.Title, t.Description, t.DurationMinutes, t.TotalMarks, t.IsActive, t.CreatedAt).Scan(&t.ID)
}

func insertQuestion(ctx context.Context, q db.Querier, testID int64, pos int, qu *Question) error {
	return q.QueryRowContext(ctx,
		`INSERT INTO test_questions (test_id, position, text, option_a, option_b, option_c, option_d, correct_option, marks)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		testID, pos, qu.Text, qu.OptionA, qu.OptionB, qu.OptionC, qu.OptionD, qu.CorrectOption, qu.Marks).Scan(&qu.ID)
}

// getTest loads a test with its questions. sql.ErrNoRows when absent, or
// when activeOnly is set and the test is inactive.
func getTest(ctx context.Context, q db.Querier, id int64, activeOnly bool) (Test, error) {
	query := `SELECT ` + testCols + ` FROM tests WHERE id=$1`
	if activeOnly {
		query += ` AND is_active=$2`
	}
	args := []any{id}
	if activeOnly {
		args = append(args, true)
	}
	t, err := scanTest(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return Test{}, err
	}
	qs, err := listQuestions(ctx, q, `WHERE test_id=$1`, id)
	if err != nil {
		return Test{}, err
	}
	t.Questions = qs[id]
	if t.Questions == nil {
		t.Questions = []Question{}
	}
	return t, nil
}

// listQuestions returns questions grouped by test id, each group in
// authoring order.
func listQuestions(ctx context.Context, q db.Querier, where string, args ...any) (map[int64][]Question, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT test_id, id, text, option_a, option_b, option_c, option_d, correct_option, marks
		 FROM test_questions `+where+` ORDER BY test_id, position, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int64][]Question{}
	for rows.Next() {
		var testID int64
		var qu Question
		if err := rows.Scan(&testID, &qu.ID, &qu.Text, &qu.OptionA, &qu.OptionB, &qu.OptionC, &qu.OptionD, &qu.CorrectOption, &qu.Marks); err != nil {
			return nil, err
		}
		out[testID] = append(out[testID], qu)
	}
	return out, rows.Err()
}

func listActiveTests(ctx context.Context, q db.Querier) ([]Test, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+testCols+` FROM tests WHERE is_active=$1 ORDER BY id`, true)
	if err != nil {
		return nil, err
	}
	var tests []Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		tests = append(tests, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	qs, err := listQuestions(ctx, q,
		`WHERE test_id IN (SELECT id FROM tests WHERE is_active=$1)`, true)
	if err != nil {
		return nil, err
	}
	out := make([]Test, 0, len(tests))
	for _, t := range tests {
		t.Questions = qs[t.ID]
		if t.Questions == nil {
			t.Questions = []Question{}
		}
		out = append(out, t)
	}
	return out, nil
}

func testExists(ctx context.Context, q db.Querier, id int64) (bool, error) {
	err := q.QueryRowContext(ctx, `SELECT 1 FROM tests WHERE id=$1`, id).Scan(new(int))
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func insertAttempt(ctx context.Context, q db.Querier, a *Attempt) error {
	return q.QueryRowContext(ctx,
		`INSERT INTO test_attempts (test_id, student_id, started_at) VALUES ($1,$2,$3) RETURNING id`,
		a.TestID, a.StudentID, a.StartedAt).Scan(&a.ID)
}

func getAttempt(ctx context.Context, q db.Querier, id int64) (Attempt, error) {
	var a Attempt
	err := q.QueryRowContext(ctx,
		`SELECT id, test_id, student_id, started_at, finished_at, score FROM test_attempts WHERE id=$1`, id).
		Scan(&a.ID, &a.TestID, &a.StudentID, &a.StartedAt, &a.FinishedAt, &a.Score)
	return a, err
}

// setAnswers replaces every stored answer of an attempt with results.
func setAnswers(ctx context.Context, q db.Querier, attemptID int64, results []grading.Result) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM test_answers WHERE attempt_id=$1`, attemptID); err != nil {
		return err
	}
	for _, r := range results {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO test_answers (attempt_id, question_id, selected_option) VALUES ($1,$2,$3)`,
			attemptID, r.QuestionID, r.Selected); err != nil {
			return err
		}
	}
	return nil
}

func finishAttempt(ctx context.Context, q db.Querier, id int64, score int, finishedAt int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE test_attempts SET score=$1, finished_at=$2 WHERE id=$3`, score, finishedAt, id)
	return err
}

func listAnswers(ctx context.Context, q db.Querier, attemptID int64) ([]StoredAnswer, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT a.question_id, a.selected_option
		 FROM test_answers a JOIN test_questions tq ON tq.id = a.question_id
		 WHERE a.attempt_id=$1 ORDER BY tq.position, tq.id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []StoredAnswer{}
	for rows.Next() {
		var a StoredAnswer
		if err := rows.Scan(&a.QuestionID, &a.SelectedOption); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func listAttemptsByStudent(ctx context.Context, q db.Querier, studentID int64) ([]AttemptSummary, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT a.id, t.id, t.title, a.score, t.total_marks, a.started_at, a.finished_at
		 FROM test_attempts a JOIN tests t ON t.id = a.test_id
		 WHERE a.student_id=$1
		 ORDER BY a.started_at DESC, a.id DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []AttemptSummary{}
	for rows.Next() {
		var s AttemptSummary
		if err := rows.Scan(&s.AttemptID, &s.TestID, &s.TestTitle, &s.Score, &s.TotalMarks, &s.StartedAt, &s.FinishedAt); err != nil {
			return nil, err
		}
		s.State = Attempt{FinishedAt: s.FinishedAt}.State()
		out = append(out, s)
	}
	return out, rows.Err()
}

func listAttemptsByTest(ctx context.Context, q db.Querier, testID int64) ([]AdminAttemptSummary, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT a.id, a.student_id, u.full_name, a.score, t.total_marks, a.started_at, a.finished_at
		 FROM test_attempts a
		 JOIN tests t ON t.id = a.test_id
		 JOIN student_profiles p ON p.id = a.student_id
		 LEFT JOIN users u ON u.id = p.user_id
		 WHERE a.test_id=$1
		 ORDER BY a.started_at DESC, a.id DESC`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []AdminAttemptSummary{}
	for rows.Next() {
		var s AdminAttemptSummary
		if err := rows.Scan(&s.AttemptID, &s.StudentID, &s.StudentName, &s.Score, &s.TotalMarks, &s.StartedAt, &s.FinishedAt); err != nil {
			return nil, err
		}
		s.State = Attempt{FinishedAt: s.FinishedAt}.State()
		out = append(out, s)
	}
	return out, rows.Err()
}
