// Package dbtest opens throwaway databases for package tests.
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/gyandarshak/gyandarshak/internal/db"
)

// Open returns a fresh SQLite database with the full schema applied. The
// file lives in t.TempDir and the handle is closed on cleanup.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	path := filepath.Join(t.TempDir(), "test.db")
	dsn := "file:" + path + "?mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	dbh, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return dbh
}

// Clock is a settable time source for services that take a now func.
type Clock struct{ T time.Time }

func NewClock(t time.Time) *Clock { return &Clock{T: t} }

func (c *Clock) Now() time.Time { return c.T }

func (c *Clock) Advance(d time.Duration) { c.T = c.T.Add(d) }
