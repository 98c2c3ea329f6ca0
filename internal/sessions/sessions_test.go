package sessions

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/gyandarshak/gyandarshak/internal/apperr"
	"github.com/gyandarshak/gyandarshak/internal/db/dbtest"
	"github.com/gyandarshak/gyandarshak/internal/rbac"
	syncx "github.com/gyandarshak/gyandarshak/internal/sync"
)

type tableProfiles struct{ db *sql.DB }

func (p tableProfiles) ProfileIDForUser(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx, `SELECT id FROM student_profiles WHERE user_id=$1`, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.Validation("Student profile not found")
	}
	return id, err
}

func setup(t *testing.T) (*Service, *dbtest.Clock, *sql.DB, rbac.Principal, rbac.Admin) {
	t.Helper()
	dbh := dbtest.Open(t)
	clk := dbtest.NewClock(time.Date(2025, 5, 10, 15, 30, 0, 0, time.UTC))

	var uid int64
	if err := dbh.QueryRow(`INSERT INTO users (full_name, email, password_hash, role, created_at)
		VALUES ('Ravi','ravi@example.com','x','student',0) RETURNING id`).Scan(&uid); err != nil {
		t.Fatal(err)
	}
	if _, err := dbh.Exec(`INSERT INTO student_profiles (user_id) VALUES ($1)`, uid); err != nil {
		t.Fatal(err)
	}
	admin, _ := rbac.Principal{UserID: 99, Role: rbac.RoleAdmin}.Admin()
	return NewService(dbh, tableProfiles{dbh}, clk.Now), clk, dbh, rbac.Principal{UserID: uid, Role: rbac.RoleStudent}, admin
}

func TestCreateRejectsPastDates(t *testing.T) {
	svc, _, _, student, _ := setup(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, student, RequestInput{PreferredDate: "2025-05-09"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("yesterday: err = %v", err)
	}
	if _, err := svc.Create(ctx, student, RequestInput{PreferredDate: "10/05/2025"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("bad format: err = %v", err)
	}
	for _, d := range []string{"2025-05-10", "2025-06-01"} {
		r, err := svc.Create(ctx, student, RequestInput{PreferredDate: d})
		if err != nil {
			t.Fatalf("%s: %v", d, err)
		}
		if r.Status != StatusPending || r.PreferredDate != d {
			t.Fatalf("request = %+v", r)
		}
	}
}

func TestCreateRequiresProfile(t *testing.T) {
	svc, _, _, _, _ := setup(t)
	_, err := svc.Create(context.Background(), rbac.Principal{UserID: 12345, Role: rbac.RoleAdmin}, RequestInput{PreferredDate: "2025-06-01"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
}

func TestListsNewestFirst(t *testing.T) {
	svc, clk, _, student, admin := setup(t)
	ctx := context.Background()

	a, _ := svc.Create(ctx, student, RequestInput{PreferredDate: "2025-06-01"})
	clk.Advance(time.Hour)
	b, _ := svc.Create(ctx, student, RequestInput{PreferredDate: "2025-06-02"})

	mine, err := svc.ListMine(ctx, student)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 || mine[0].ID != b.ID || mine[1].ID != a.ID {
		t.Fatalf("mine = %+v", mine)
	}
	all, err := svc.ListAll(ctx, admin)
	if err != nil || len(all) != 2 || all[0].ID != b.ID {
		t.Fatalf("all = %+v, %v", all, err)
	}
}

func TestUpdateStatus(t *testing.T) {
	svc, _, dbh, student, admin := setup(t)
	ctx := context.Background()
	r, err := svc.Create(ctx, student, RequestInput{PreferredDate: "2025-06-01"})
	if err != nil {
		t.Fatal(err)
	}

	// unknown id wins over an invalid literal
	if _, err := svc.UpdateStatus(ctx, admin, r.ID+1, "bogus"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown id: err = %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, admin, r.ID, "bogus"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("bad status: err = %v", err)
	}
	// pending straight to done, then back again
	for _, st := range []Status{StatusDone, StatusPending, StatusRejected} {
		got, err := svc.UpdateStatus(ctx, admin, r.ID, string(st))
		if err != nil || got.Status != st {
			t.Fatalf("UpdateStatus(%s) = %+v, %v", st, got, err)
		}
	}

	evs, err := syncx.List(ctx, dbh, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 4 || evs[0].Type != syncx.TypeSessionRequested || evs[3].Type != syncx.TypeSessionStatusChanged {
		t.Fatalf("events = %+v", evs)
	}
}
