// Package syncx is the append-only event log. Events are written in the
// same transaction as the change they record, so a committed change always
// has its event and a rolled back one never does.
package syncx

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gyandarshak/gyandarshak/internal/db"
)

const (
	TypeTestCreated          = "TestCreated"
	TypeAttemptStarted       = "AttemptStarted"
	TypeAttemptSubmitted     = "AttemptSubmitted"
	TypeSessionRequested     = "SessionRequested"
	TypeSessionStatusChanged = "SessionStatusChanged"
)

const (
	DefaultSiteID = "local"
	DefaultLimit  = 100
	MaxLimit      = 1000
)

type Event struct {
	Seq       int64           `json:"seq"`
	SiteID    string          `json:"site_id"`
	Type      string          `json:"type"`
	Subject   string          `json:"subject"`
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"created_at"`
}

// New builds an event whose subject is a numeric id and whose data is the
// JSON encoding of payload.
func New(typ string, subject int64, payload any, at int64) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s event: %w", typ, err)
	}
	return Event{
		SiteID:    DefaultSiteID,
		Type:      typ,
		Subject:   strconv.FormatInt(subject, 10),
		Data:      b,
		CreatedAt: at,
	}, nil
}

// Append writes e through q, which is normally the caller's transaction.
func Append(ctx context.Context, q db.Querier, e Event) error {
	if e.SiteID == "" {
		e.SiteID = DefaultSiteID
	}
	data := string(e.Data)
	if data == "" {
		data = "{}"
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, subject, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Subject, data, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append %s event: %w", e.Type, err)
	}
	return nil
}

// Record is New followed by Append.
func Record(ctx context.Context, q db.Querier, typ string, subject int64, payload any, at int64) error {
	e, err := New(typ, subject, payload, at)
	if err != nil {
		return err
	}
	return Append(ctx, q, e)
}

// List returns up to limit events with seq greater than after, oldest
// first. limit <= 0 means DefaultLimit; it is capped at MaxLimit.
func List(ctx context.Context, q db.Querier, after int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	rows, err := q.QueryContext(ctx,
		`SELECT seq, site_id, typ, subject, data, created_at
		 FROM event_log WHERE seq > $1 ORDER BY seq LIMIT $2`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var e Event
		var data string
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Subject, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		out = append(out, e)
	}
	return out, rows.Err()
}
