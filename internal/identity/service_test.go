package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gyandarshak/gyandarshak/internal/apperr"
	"github.com/gyandarshak/gyandarshak/internal/db/dbtest"
	"github.com/gyandarshak/gyandarshak/internal/rbac"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	clk := dbtest.NewClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	s := NewService(dbtest.Open(t), clk.Now)
	s.cost = bcrypt.MinCost
	return s
}

func strp(s string) *string { return &s }

func mustRegister(t *testing.T, s *Service, email string) User {
	t.Helper()
	u, err := s.Register(context.Background(), Registration{FullName: "Asha Verma", Email: email, Password: "secret"})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return u
}

func TestRegisterCreatesStudentWithProfile(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	u, err := s.Register(ctx, Registration{
		FullName: "  Asha Verma ",
		Email:    "Asha@Example.com",
		Phone:    strp(" 9876543210 "),
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Role != rbac.RoleStudent || u.Email != "asha@example.com" || u.FullName != "Asha Verma" {
		t.Fatalf("user = %+v", u)
	}
	if u.Phone == nil || *u.Phone != "9876543210" {
		t.Fatalf("phone = %v", u.Phone)
	}
	if u.CreatedAt != time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC).Unix() {
		t.Fatalf("created_at = %d", u.CreatedAt)
	}

	me, err := s.Me(ctx, u.ID)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if me.Profile == nil {
		t.Fatal("profile not created at registration")
	}
	pid, err := s.ProfileIDForUser(ctx, u.ID)
	if err != nil || pid != me.Profile.ID {
		t.Fatalf("ProfileIDForUser = %d, %v; want %d", pid, err, me.Profile.ID)
	}
}

func TestRegisterConflicts(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if _, err := s.Register(ctx, Registration{FullName: "A", Email: "a@example.com", Phone: strp("111"), Password: "x"}); err != nil {
		t.Fatal(err)
	}
	_, err := s.Register(ctx, Registration{FullName: "B", Email: "A@example.com", Password: "x"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("duplicate email: err = %v", err)
	}
	_, err = s.Register(ctx, Registration{FullName: "B", Email: "b@example.com", Phone: strp("111"), Password: "x"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("duplicate phone: err = %v", err)
	}
	// blank phones are stored as NULL and never collide
	for _, e := range []string{"c@example.com", "d@example.com"} {
		if _, err := s.Register(ctx, Registration{FullName: "C", Email: e, Phone: strp(" "), Password: "x"}); err != nil {
			t.Fatalf("blank phone %s: %v", e, err)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestService(t)
	cases := []Registration{
		{FullName: "A", Email: "not-an-email", Password: "x"},
		{FullName: " ", Email: "a@example.com", Password: "x"},
		{FullName: "A", Email: "a@example.com", Password: ""},
	}
	for _, c := range cases {
		if _, err := s.Register(context.Background(), c); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Register(%+v) err = %v, want validation", c, err)
		}
	}
}

func TestAuthenticate(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	u := mustRegister(t, s, "asha@example.com")

	got, err := s.Authenticate(ctx, "ASHA@example.com", "secret")
	if err != nil || got.ID != u.ID {
		t.Fatalf("Authenticate = %+v, %v", got, err)
	}
	if _, err := s.Authenticate(ctx, "asha@example.com", "wrong"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("wrong password: err = %v", err)
	}
	if _, err := s.Authenticate(ctx, "nobody@example.com", "secret"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("unknown email: err = %v", err)
	}
}

func TestUpdateMe(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	u := mustRegister(t, s, "asha@example.com")

	me, err := s.UpdateMe(ctx, u.ID, ProfilePatch{
		FullName:   strp("  Asha V  "),
		State:      strp(" Bihar "),
		ClassLevel: strp("12"),
	})
	if err != nil {
		t.Fatalf("UpdateMe: %v", err)
	}
	if me.FullName != "Asha V" || *me.Profile.State != "Bihar" || *me.Profile.ClassLevel != "12" {
		t.Fatalf("me = %+v profile = %+v", me.User, me.Profile)
	}

	// blank name is ignored, blank field clears, nil field is untouched
	me, err = s.UpdateMe(ctx, u.ID, ProfilePatch{FullName: strp(" "), State: strp("  ")})
	if err != nil {
		t.Fatalf("UpdateMe: %v", err)
	}
	if me.FullName != "Asha V" {
		t.Fatalf("blank name overwrote: %q", me.FullName)
	}
	if me.Profile.State != nil {
		t.Fatalf("state = %q, want NULL", *me.Profile.State)
	}
	if me.Profile.ClassLevel == nil || *me.Profile.ClassLevel != "12" {
		t.Fatal("untouched field changed")
	}
}

func TestAdminWithoutProfile(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("root"), bcrypt.MinCost)

	created, err := s.EnsureAdmin(ctx, "admin@example.com", "", string(hash))
	if err != nil || !created {
		t.Fatalf("EnsureAdmin = %v, %v", created, err)
	}
	created, err = s.EnsureAdmin(ctx, "admin@example.com", "", string(hash))
	if err != nil || created {
		t.Fatalf("second EnsureAdmin = %v, %v", created, err)
	}

	u, err := s.Authenticate(ctx, "admin@example.com", "root")
	if err != nil || u.Role != rbac.RoleAdmin {
		t.Fatalf("admin login = %+v, %v", u, err)
	}
	if _, err := s.ProfileIDForUser(ctx, u.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("ProfileIDForUser err = %v, want validation", err)
	}
	if _, err := s.UpdateMe(ctx, u.ID, ProfilePatch{}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("UpdateMe err = %v, want validation", err)
	}
	if _, err := s.EnsureAdmin(ctx, "other@example.com", "", "plaintext"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("non-bcrypt hash accepted: %v", err)
	}
}

func TestPromoteAndListUsers(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	mustRegister(t, s, "a@example.com")
	mustRegister(t, s, "b@example.com")

	if err := s.PromoteToAdmin(ctx, "B@example.com"); err != nil {
		t.Fatalf("PromoteToAdmin: %v", err)
	}
	if err := s.PromoteToAdmin(ctx, "nobody@example.com"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("promote unknown: err = %v", err)
	}

	admin, err := rbac.Principal{UserID: 1, Role: rbac.RoleAdmin}.Admin()
	if err != nil {
		t.Fatal(err)
	}
	all, err := s.ListUsers(ctx, admin, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("ListUsers = %d, %v", len(all), err)
	}
	admins, err := s.ListUsers(ctx, admin, "admin")
	if err != nil || len(admins) != 1 || admins[0].Email != "b@example.com" {
		t.Fatalf("ListUsers(admin) = %+v, %v", admins, err)
	}
	if _, err := s.ListUsers(ctx, admin, "teacher"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("bad role: err = %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	u := mustRegister(t, s, "a@example.com")

	if err := s.ChangePassword(ctx, u.ID, "wrong", "next"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("wrong old password: err = %v", err)
	}
	if err := s.ChangePassword(ctx, u.ID, "secret", ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("blank new password: err = %v", err)
	}
	if err := s.ChangePassword(ctx, u.ID, "secret", "next"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := s.Authenticate(ctx, "a@example.com", "next"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestLoginExternal(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	existing := mustRegister(t, s, "a@example.com")

	u, err := s.LoginExternal(ctx, "A@example.com", "Someone Else")
	if err != nil || u.ID != existing.ID {
		t.Fatalf("existing account: %+v, %v", u, err)
	}
	u, err = s.LoginExternal(ctx, "new@example.com", "New Student")
	if err != nil {
		t.Fatalf("new account: %v", err)
	}
	if u.Role != rbac.RoleStudent || u.FullName != "New Student" {
		t.Fatalf("new account = %+v", u)
	}
	if _, err := s.ProfileIDForUser(ctx, u.ID); err != nil {
		t.Fatalf("new external account has no profile: %v", err)
	}
}
