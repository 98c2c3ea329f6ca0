// Package sessions tracks students' requests for a consultation slot.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gyandarshak/gyandarshak/internal/apperr"
	"github.com/gyandarshak/gyandarshak/internal/db"
	"github.com/gyandarshak/gyandarshak/internal/rbac"
	syncx "github.com/gyandarshak/gyandarshak/internal/sync"
)

const DateLayout = "2006-01-02"

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusDone     Status = "done"
)

// ParseStatus accepts exactly the four status literals. There is no
// transition graph: any status may follow any other.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusRejected, StatusDone:
		return Status(s), true
	}
	return "", false
}

type Request struct {
	ID            int64   `json:"id"`
	StudentID     int64   `json:"student_id"`
	PreferredDate string  `json:"preferred_date"`
	PreferredTime *string `json:"preferred_time"`
	Mode          *string `json:"mode"`
	Note          *string `json:"note"`
	Status        Status  `json:"status"`
	CreatedAt     int64   `json:"created_at"`
}

type RequestInput struct {
	PreferredDate string  `json:"preferred_date"`
	PreferredTime *string `json:"preferred_time"`
	Mode          *string `json:"mode"`
	Note          *string `json:"note"`
}

// Profiles resolves the student profile of a user.
type Profiles interface {
	ProfileIDForUser(ctx context.Context, userID int64) (int64, error)
}

type Service struct {
	db       *sql.DB
	profiles Profiles
	now      func() time.Time
}

func NewService(dbh *sql.DB, profiles Profiles, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{db: dbh, profiles: profiles, now: now}
}

// Create files a pending request. preferred_date may be today but not
// earlier, judged against the service clock's calendar date.
func (s *Service) Create(ctx context.Context, p rbac.Principal, in RequestInput) (Request, error) {
	studentID, err := s.profiles.ProfileIDForUser(ctx, p.UserID)
	if err != nil {
		return Request{}, err
	}
	d, err := time.Parse(DateLayout, strings.TrimSpace(in.PreferredDate))
	if err != nil {
		return Request{}, apperr.Validation("preferred_date must be YYYY-MM-DD")
	}
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if d.Before(today) {
		return Request{}, apperr.Validation("Date must be in the future")
	}

	r := Request{
		StudentID:     studentID,
		PreferredDate: d.Format(DateLayout),
		PreferredTime: in.PreferredTime,
		Mode:          in.Mode,
		Note:          in.Note,
		Status:        StatusPending,
		CreatedAt:     now.Unix(),
	}
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO session_requests (student_id, preferred_date, preferred_time, mode, note, status, created_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
			r.StudentID, r.PreferredDate, r.PreferredTime, r.Mode, r.Note, string(r.Status), r.CreatedAt).Scan(&r.ID)
		if err != nil {
			return fmt.Errorf("insert session request: %w", err)
		}
		return syncx.Record(ctx, tx, syncx.TypeSessionRequested, r.ID, map[string]any{
			"request_id":     r.ID,
			"student_id":     r.StudentID,
			"preferred_date": r.PreferredDate,
		}, r.CreatedAt)
	})
	if err != nil {
		return Request{}, err
	}
	return r, nil
}

// ListMine returns the caller's requests, newest first.
func (s *Service) ListMine(ctx context.Context, p rbac.Principal) ([]Request, error) {
	studentID, err := s.profiles.ProfileIDForUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return listRequests(ctx, s.db, `WHERE student_id=$1`, studentID)
}

// ListAll returns every request, newest first.
func (s *Service) ListAll(ctx context.Context, _ rbac.Admin) ([]Request, error) {
	return listRequests(ctx, s.db, ``)
}

// UpdateStatus sets the status of a request. An unknown id is reported
// before an invalid status.
func (s *Service) UpdateStatus(ctx context.Context, _ rbac.Admin, id int64, status string) (Request, error) {
	var out Request
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		r, err := getRequest(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("Request not found")
		}
		if err != nil {
			return fmt.Errorf("load session request: %w", err)
		}
		st, ok := ParseStatus(status)
		if !ok {
			return apperr.Validation("Invalid status")
		}
		if _, err := tx.ExecContext(ctx, `UPDATE session_requests SET status=$1 WHERE id=$2`, string(st), id); err != nil {
			return fmt.Errorf("update session request: %w", err)
		}
		prev := r.Status
		r.Status = st
		out = r
		return syncx.Record(ctx, tx, syncx.TypeSessionStatusChanged, r.ID, map[string]any{
			"request_id": r.ID,
			"from":       prev,
			"to":         st,
		}, s.now().Unix())
	})
	if err != nil {
		return Request{}, err
	}
	return out, nil
}

const requestCols = `id, student_id, preferred_date, preferred_time, mode, note, status, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(rs rowScanner) (Request, error) {
	var r Request
	var st string
	err := rs.Scan(&r.ID, &r.StudentID, &r.PreferredDate, &r.PreferredTime, &r.Mode, &r.Note, &st, &r.CreatedAt)
	r.Status = Status(st)
	return r, err
}

func getRequest(ctx context.Context, q db.Querier, id int64) (Request, error) {
	return scanRequest(q.QueryRowContext(ctx, `SELECT `+requestCols+` FROM session_requests WHERE id=$1`, id))
}

func listRequests(ctx context.Context, q db.Querier, where string, args ...any) ([]Request, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+requestCols+` FROM session_requests `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list session requests: %w", err)
	}
	defer rows.Close()
	out := []Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
