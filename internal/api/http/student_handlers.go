package http

import (
	"net/http"

	"github.com/gyandarshak/gyandarshak/internal/identity"
)

func StudentsPingHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "students ok"})
}

func GetMeHandler(users *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := principal(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		me, err := users.Me(r.Context(), p.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, me)
	}
}

func UpdateMeHandler(users *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := principal(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var patch identity.ProfilePatch
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, r, err)
			return
		}
		me, err := users.UpdateMe(r.Context(), p.UserID, patch)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, me)
	}
}
