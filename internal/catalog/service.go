package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gyandarshak/gyandarshak/internal/apperr"
)

type Service struct {
	db *sql.DB
}

func NewService(dbh *sql.DB) *Service { return &Service{db: dbh} }

// filter accumulates WHERE conditions with numbered placeholders.
type filter struct {
	conds []string
	args  []any
}

func (f *filter) arg(v any) string {
	f.args = append(f.args, v)
	return fmt.Sprintf("$%d", len(f.args))
}

// contains adds a case-insensitive substring match on col. Empty v is a
// no-op.
func (f *filter) contains(col, v string) {
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	f.add(f.like(col, v))
}

// like returns the substring match expression without adding it.
func (f *filter) like(col, v string) string {
	return fmt.Sprintf("LOWER(%s) LIKE '%%' || LOWER(%s) || '%%'", col, f.arg(v))
}

func (f *filter) add(cond string) { f.conds = append(f.conds, cond) }

func (f *filter) where() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conds, " AND ")
}

func required(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", apperr.Validation("%s is required", field)
	}
	return v, nil
}

// normDate validates a YYYY-MM-DD string and returns it canonicalized.
func normDate(field, v string) (string, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(v))
	if err != nil {
		return "", apperr.Validation("%s must be YYYY-MM-DD", field)
	}
	return d.Format(DateLayout), nil
}

// deleteByID removes one row and reports NotFound when nothing matched.
func (s *Service) deleteByID(ctx context.Context, table, what string, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", strings.ToLower(what), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("%s not found", what)
	}
	return nil
}
