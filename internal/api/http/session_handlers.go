package http

import (
	"net/http"

	"github.com/gyandarshak/gyandarshak/internal/sessions"
)

func CreateSessionHandler(svc *sessions.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := principal(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var in sessions.RequestInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, r, err)
			return
		}
		req, err := svc.Create(r.Context(), p, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}

func MySessionsHandler(svc *sessions.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := principal(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		list, err := svc.ListMine(r.Context(), p)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func ListSessionsHandler(svc *sessions.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := admin(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		list, err := svc.ListAll(r.Context(), a)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// UpdateSessionStatusHandler reads the new status from ?status= or, when
// absent, from a JSON body {"status": ...}.
func UpdateSessionStatusHandler(svc *sessions.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := admin(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		id, err := idParam(r, "requestID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		status := r.URL.Query().Get("status")
		if status == "" && r.ContentLength != 0 {
			var body struct {
				Status string `json:"status"`
			}
			if err := decodeJSON(r, &body); err != nil {
				writeError(w, r, err)
				return
			}
			status = body.Status
		}
		req, err := svc.UpdateStatus(r.Context(), a, id, status)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}
