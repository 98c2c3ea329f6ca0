package db_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/gyandarshak/gyandarshak/internal/db"
	"github.com/gyandarshak/gyandarshak/internal/db/dbtest"
)

func countUsers(t *testing.T, dbh *sql.DB) int {
	t.Helper()
	var n int
	if err := dbh.QueryRow(`SELECT COUNT(1) FROM users`).Scan(&n); err != nil {
		t.Fatalf("count users: %v", err)
	}
	return n
}

func insertUser(ctx context.Context, q db.Querier, email string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO users (full_name, email, password_hash, role, created_at) VALUES ($1,$2,$3,$4,$5)`,
		"Test User", email, "x", "student", time.Now().Unix())
	return err
}

func TestWithTxCommits(t *testing.T) {
	dbh := dbtest.Open(t)
	ctx := context.Background()

	err := db.WithTx(ctx, dbh, func(tx *sql.Tx) error {
		return insertUser(ctx, tx, "a@example.com")
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if n := countUsers(t, dbh); n != 1 {
		t.Fatalf("users = %d, want 1", n)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	dbh := dbtest.Open(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.WithTx(ctx, dbh, func(tx *sql.Tx) error {
		if err := insertUser(ctx, tx, "a@example.com"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if n := countUsers(t, dbh); n != 0 {
		t.Fatalf("users = %d after rollback, want 0", n)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dbh := dbtest.Open(t)
	ctx := context.Background()

	if err := insertUser(ctx, dbh, "dup@example.com"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := insertUser(ctx, dbh, "dup@example.com")
	if err == nil {
		t.Fatal("expected duplicate email to fail")
	}
	if !db.IsUniqueViolation(err) {
		t.Fatalf("IsUniqueViolation(%v) = false", err)
	}
	if db.IsUniqueViolation(errors.New("other")) {
		t.Fatal("unrelated error reported as unique violation")
	}
}
