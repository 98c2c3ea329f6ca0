package http

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gyandarshak/gyandarshak/internal/apperr"
	"github.com/gyandarshak/gyandarshak/internal/assistant"
	"github.com/gyandarshak/gyandarshak/internal/identity"
	syncx "github.com/gyandarshak/gyandarshak/internal/sync"
)

func ListUsersHandler(users *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := admin(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		list, err := users.ListUsers(r.Context(), a, r.URL.Query().Get("role"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func queryInt64(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, apperr.Validation("%s must be a non-negative integer", name)
	}
	return n, nil
}

// EventsHandler pages the event log: ?after=<seq>&limit=<n>.
func EventsHandler(dbh *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := admin(r); err != nil {
			writeError(w, r, err)
			return
		}
		after, err := queryInt64(r, "after")
		if err != nil {
			writeError(w, r, err)
			return
		}
		limit, err := queryInt64(r, "limit")
		if err != nil {
			writeError(w, r, err)
			return
		}
		events, err := syncx.List(r.Context(), dbh, after, int(limit))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}

type askReq struct {
	Question string `json:"question"`
}

func AskHandler(bot assistant.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req askReq
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"answer": bot.Answer(req.Question)})
	}
}
