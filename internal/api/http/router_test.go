package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gyandarshak/gyandarshak/internal/assessment"
	authmw "github.com/gyandarshak/gyandarshak/internal/auth/middleware"
	"github.com/gyandarshak/gyandarshak/internal/catalog"
	"github.com/gyandarshak/gyandarshak/internal/db/dbtest"
	"github.com/gyandarshak/gyandarshak/internal/identity"
	"github.com/gyandarshak/gyandarshak/internal/sessions"
	syncx "github.com/gyandarshak/gyandarshak/internal/sync"
)

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type apiEnv struct {
	h          http.Handler
	adminToken string
}

func newEnv(t *testing.T) *apiEnv {
	t.Helper()
	dbh := dbtest.Open(t)
	now := func() time.Time { return fixedNow }
	users := identity.NewService(dbh, now)
	tokens := authmw.NewAuthService("test-secret", time.Hour)

	h := NewRouter(Deps{
		DB:        dbh,
		Tokens:    tokens,
		Users:     users,
		Tests:     assessment.NewService(dbh, users, assessment.WithClock(now)),
		Sessions:  sessions.NewService(dbh, users, now),
		Catalog:   catalog.NewService(dbh),
		LocalAuth: true,
	})

	hash, err := bcrypt.GenerateFromPassword([]byte("admin-pw"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := users.EnsureAdmin(context.Background(), "admin@gd.test", "Admin", string(hash)); err != nil {
		t.Fatal(err)
	}
	env := &apiEnv{h: h}
	env.adminToken = env.login(t, "admin@gd.test", "admin-pw")
	return env
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func (e *apiEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", email, rec.Code, rec.Body.String())
	}
	var tok tokenResp
	decode(t, rec, &tok)
	return tok.AccessToken
}

func (e *apiEnv) student(t *testing.T, email string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"full_name": "Student " + email, "email": email, "password": "pw-" + email,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register %s: %d %s", email, rec.Code, rec.Body.String())
	}
	return e.login(t, email, "pw-"+email)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, want, rec.Body.String())
	}
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	decode(t, rec, &body)
	return body.Detail
}

func TestPublicEndpoints(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/", "", nil)
	expect(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "Gyandarshak API is running") {
		t.Fatalf("root body = %s", rec.Body.String())
	}
	expect(t, e.do(t, http.MethodGet, "/healthz", "", nil), http.StatusOK)
	expect(t, e.do(t, http.MethodGet, "/readyz", "", nil), http.StatusOK)
	rec = e.do(t, http.MethodGet, "/students/ping", "", nil)
	expect(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "students ok") {
		t.Fatalf("ping body = %s", rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/ai/ask", "", map[string]string{"question": "Which EXAM should I take?"})
	expect(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "relevant exams") {
		t.Fatalf("ask body = %s", rec.Body.String())
	}
}

func TestRegisterLoginAndProfile(t *testing.T) {
	e := newEnv(t)
	tok := e.student(t, "asha@gd.test")

	rec := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"full_name": "Dup", "email": "ASHA@gd.test", "password": "x",
	})
	expect(t, rec, http.StatusConflict)
	if d := detail(t, rec); d != "Email already registered" {
		t.Fatalf("detail = %q", d)
	}

	// OAuth2 password form with the email in username
	form := url.Values{"username": {"asha@gd.test"}, "password": {"pw-asha@gd.test"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	e.h.ServeHTTP(rr, req)
	expect(t, rr, http.StatusOK)
	var tr tokenResp
	decode(t, rr, &tr)
	if tr.AccessToken == "" || tr.TokenType != "bearer" {
		t.Fatalf("token = %+v", tr)
	}

	rec = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "asha@gd.test", "password": "wrong"})
	expect(t, rec, http.StatusUnauthorized)
	if d := detail(t, rec); d != "Incorrect email or password" {
		t.Fatalf("detail = %q", d)
	}

	rec = e.do(t, http.MethodPatch, "/students/me", tok, map[string]string{"state": " Bihar ", "district": ""})
	expect(t, rec, http.StatusOK)
	var me identity.Me
	decode(t, rec, &me)
	if me.Profile == nil || me.Profile.State == nil || *me.Profile.State != "Bihar" || me.Profile.District != nil {
		t.Fatalf("me = %+v", me)
	}

	rec = e.do(t, http.MethodGet, "/students/me", tok, nil)
	expect(t, rec, http.StatusOK)
	decode(t, rec, &me)
	if me.Email != "asha@gd.test" || me.Role != "student" {
		t.Fatalf("me = %+v", me)
	}

	expect(t, e.do(t, http.MethodPost, "/users/change-password", tok,
		map[string]string{"old_password": "nope", "new_password": "n"}), http.StatusForbidden)
	expect(t, e.do(t, http.MethodPost, "/users/change-password", tok,
		map[string]string{"old_password": "pw-asha@gd.test", "new_password": "fresh"}), http.StatusNoContent)
	e.login(t, "asha@gd.test", "fresh")
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/students/me", "", nil)
	expect(t, rec, http.StatusUnauthorized)
	if rec.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Fatal("missing WWW-Authenticate")
	}
	expect(t, e.do(t, http.MethodGet, "/tests", "garbage", nil), http.StatusUnauthorized)

	tok := e.student(t, "ravi@gd.test")
	expect(t, e.do(t, http.MethodPost, "/tests", tok, map[string]any{"title": "x"}), http.StatusForbidden)
	expect(t, e.do(t, http.MethodGet, "/users", tok, nil), http.StatusForbidden)
	expect(t, e.do(t, http.MethodGet, "/admin/events", tok, nil), http.StatusForbidden)
	expect(t, e.do(t, http.MethodPost, "/colleges", tok, map[string]any{"name": "x"}), http.StatusForbidden)
}

func TestTestAttemptFlow(t *testing.T) {
	e := newEnv(t)
	tok := e.student(t, "meera@gd.test")

	rec := e.do(t, http.MethodPost, "/tests", e.adminToken, map[string]any{
		"title": "Physics basics",
		"questions": []map[string]any{
			{"text": "q1", "option_a": "a", "option_b": "b", "option_c": "c", "option_d": "d", "correct_option": "b", "marks": 2},
			{"text": "q2", "option_a": "a", "option_b": "b", "option_c": "c", "option_d": "d", "correct_option": "D"},
		},
	})
	expect(t, rec, http.StatusOK)
	var created assessment.Test
	decode(t, rec, &created)
	if created.TotalMarks != 3 || created.DurationMinutes != 30 || len(created.Questions) != 2 {
		t.Fatalf("created = %+v", created)
	}

	rec = e.do(t, http.MethodGet, "/tests", tok, nil)
	expect(t, rec, http.StatusOK)
	var list []assessment.Test
	decode(t, rec, &list)
	if len(list) != 1 {
		t.Fatalf("list = %+v", list)
	}
	expect(t, e.do(t, http.MethodGet, "/tests/999", e.adminToken, nil), http.StatusNotFound)
	expect(t, e.do(t, http.MethodPost, "/tests/999/start", tok, nil), http.StatusNotFound)

	rec = e.do(t, http.MethodPost, "/tests/"+itoa(created.ID)+"/start", tok, nil)
	expect(t, rec, http.StatusOK)
	var start assessment.StartResult
	decode(t, rec, &start)
	if start.AttemptID == 0 || start.Test.ID != created.ID {
		t.Fatalf("start = %+v", start)
	}

	path := "/tests/attempts/" + itoa(start.AttemptID) + "/submit"
	q1, q2 := created.Questions[0].ID, created.Questions[1].ID
	expect(t, e.do(t, http.MethodPost, path, tok, map[string]any{
		"answers": []map[string]any{{"question_id": q1, "selected_option": "E"}},
	}), http.StatusBadRequest)

	other := e.student(t, "other@gd.test")
	expect(t, e.do(t, http.MethodPost, path, other, map[string]any{"answers": []any{}}), http.StatusForbidden)

	rec = e.do(t, http.MethodPost, path, tok, map[string]any{
		"answers": []map[string]any{
			{"question_id": q1, "selected_option": "b"},
			{"question_id": q2, "selected_option": "A"},
			{"question_id": 12345, "selected_option": "A"},
		},
	})
	expect(t, rec, http.StatusOK)
	var res assessment.SubmitResult
	decode(t, rec, &res)
	if res.Score != 2 || res.TotalMarks != 3 {
		t.Fatalf("result = %+v", res)
	}

	// bare array body, resubmitted: only this answer set counts
	rec = e.do(t, http.MethodPost, path, tok, []map[string]any{{"question_id": q2, "selected_option": "d"}})
	expect(t, rec, http.StatusOK)
	decode(t, rec, &res)
	if res.Score != 1 {
		t.Fatalf("resubmit result = %+v", res)
	}

	rec = e.do(t, http.MethodGet, "/tests/attempts/"+itoa(start.AttemptID)+"/answers", tok, nil)
	expect(t, rec, http.StatusOK)
	var answers []assessment.StoredAnswer
	decode(t, rec, &answers)
	if len(answers) != 1 {
		t.Fatalf("answers = %+v", answers)
	}

	rec = e.do(t, http.MethodGet, "/tests/my-attempts", tok, nil)
	expect(t, rec, http.StatusOK)
	var mine []assessment.AttemptSummary
	decode(t, rec, &mine)
	if len(mine) != 1 || mine[0].State != assessment.StateFinished || mine[0].Score == nil || *mine[0].Score != 1 {
		t.Fatalf("mine = %+v", mine)
	}

	rec = e.do(t, http.MethodGet, "/tests/"+itoa(created.ID)+"/attempts", e.adminToken, nil)
	expect(t, rec, http.StatusOK)
	var all []assessment.AdminAttemptSummary
	decode(t, rec, &all)
	if len(all) != 1 {
		t.Fatalf("admin attempts = %+v", all)
	}

	rec = e.do(t, http.MethodGet, "/admin/events?after=0&limit=10", e.adminToken, nil)
	expect(t, rec, http.StatusOK)
	var events []syncx.Event
	decode(t, rec, &events)
	types := []string{}
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	want := []string{syncx.TypeTestCreated, syncx.TypeAttemptStarted, syncx.TypeAttemptSubmitted, syncx.TypeAttemptSubmitted}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", types, want)
	}
	expect(t, e.do(t, http.MethodGet, "/admin/events?after=-1", e.adminToken, nil), http.StatusBadRequest)
}

func TestSessionRequests(t *testing.T) {
	e := newEnv(t)
	tok := e.student(t, "kiran@gd.test")

	expect(t, e.do(t, http.MethodPost, "/sessions", tok, map[string]any{"preferred_date": "2025-03-09"}), http.StatusBadRequest)

	rec := e.do(t, http.MethodPost, "/sessions", tok, map[string]any{"preferred_date": "2025-03-10", "mode": "online"})
	expect(t, rec, http.StatusOK)
	var req sessions.Request
	decode(t, rec, &req)
	if req.Status != sessions.StatusPending {
		t.Fatalf("request = %+v", req)
	}

	rec = e.do(t, http.MethodGet, "/sessions/mine", tok, nil)
	expect(t, rec, http.StatusOK)
	var mine []sessions.Request
	decode(t, rec, &mine)
	if len(mine) != 1 {
		t.Fatalf("mine = %+v", mine)
	}
	expect(t, e.do(t, http.MethodGet, "/sessions", tok, nil), http.StatusForbidden)

	expect(t, e.do(t, http.MethodPost, "/sessions/999/status?status=bogus", e.adminToken, nil), http.StatusNotFound)
	expect(t, e.do(t, http.MethodPost, "/sessions/"+itoa(req.ID)+"/status?status=bogus", e.adminToken, nil), http.StatusBadRequest)

	rec = e.do(t, http.MethodPost, "/sessions/"+itoa(req.ID)+"/status?status=approved", e.adminToken, nil)
	expect(t, rec, http.StatusOK)
	decode(t, rec, &req)
	if req.Status != sessions.StatusApproved {
		t.Fatalf("status = %s", req.Status)
	}
	rec = e.do(t, http.MethodPost, "/sessions/"+itoa(req.ID)+"/status", e.adminToken, map[string]string{"status": "done"})
	expect(t, rec, http.StatusOK)
	decode(t, rec, &req)
	if req.Status != sessions.StatusDone {
		t.Fatalf("status = %s", req.Status)
	}

	rec = e.do(t, http.MethodGet, "/sessions", e.adminToken, nil)
	expect(t, rec, http.StatusOK)
	var all []sessions.Request
	decode(t, rec, &all)
	if len(all) != 1 {
		t.Fatalf("all = %+v", all)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/colleges", e.adminToken, map[string]any{
		"name": "NIT Patna", "state": "Bihar", "city": "Patna",
		"courses": []map[string]any{{"name": "B.Tech", "stream": "Engineering"}},
	})
	expect(t, rec, http.StatusOK)
	var c catalog.College
	decode(t, rec, &c)

	rec = e.do(t, http.MethodGet, "/colleges?stream=engineering", "", nil)
	expect(t, rec, http.StatusOK)
	var colleges []catalog.College
	decode(t, rec, &colleges)
	if len(colleges) != 1 || len(colleges[0].Courses) != 1 {
		t.Fatalf("colleges = %+v", colleges)
	}

	expect(t, e.do(t, http.MethodPost, "/exams", e.adminToken, map[string]any{
		"name":  "JEE Main",
		"dates": []map[string]any{{"year": 2025, "event_type": "exam", "date": "2025-04-02"}},
	}), http.StatusOK)
	rec = e.do(t, http.MethodGet, "/exams?year=2025", "", nil)
	expect(t, rec, http.StatusOK)
	var exams []catalog.Exam
	decode(t, rec, &exams)
	if len(exams) != 1 {
		t.Fatalf("exams = %+v", exams)
	}
	expect(t, e.do(t, http.MethodGet, "/exams?year=next", "", nil), http.StatusBadRequest)

	expect(t, e.do(t, http.MethodPost, "/scholarships", e.adminToken, map[string]any{
		"name": "Post-matric", "provider_type": "Government", "last_date": "2025-10-31",
	}), http.StatusOK)
	rec = e.do(t, http.MethodGet, "/scholarships?provider_type=gov", "", nil)
	expect(t, rec, http.StatusOK)
	var sch []catalog.Scholarship
	decode(t, rec, &sch)
	if len(sch) != 1 {
		t.Fatalf("scholarships = %+v", sch)
	}

	expect(t, e.do(t, http.MethodDelete, "/colleges/"+itoa(c.ID), e.adminToken, nil), http.StatusNoContent)
	rec = e.do(t, http.MethodDelete, "/colleges/"+itoa(c.ID), e.adminToken, nil)
	expect(t, rec, http.StatusNotFound)
	if d := detail(t, rec); d != "College not found" {
		t.Fatalf("detail = %q", d)
	}
}

func TestListUsers(t *testing.T) {
	e := newEnv(t)
	e.student(t, "s1@gd.test")

	rec := e.do(t, http.MethodGet, "/users?role=student", e.adminToken, nil)
	expect(t, rec, http.StatusOK)
	var list []identity.User
	decode(t, rec, &list)
	if len(list) != 1 || list[0].Email != "s1@gd.test" {
		t.Fatalf("users = %+v", list)
	}
	expect(t, e.do(t, http.MethodGet, "/users?role=teacher", e.adminToken, nil), http.StatusBadRequest)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
