package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gyandarshak/gyandarshak/internal/apperr"
	"github.com/gyandarshak/gyandarshak/internal/catalog"
	"github.com/gyandarshak/gyandarshak/internal/rbac"
)

func ListCollegesHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		list, err := svc.ListColleges(r.Context(), catalog.CollegeFilter{
			State:  q.Get("state"),
			City:   q.Get("city"),
			Stream: q.Get("stream"),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func CreateCollegeHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := admin(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var in catalog.College
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, r, err)
			return
		}
		c, err := svc.CreateCollege(r.Context(), a, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func ListExamsHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := catalog.ExamFilter{Stream: q.Get("stream"), Level: q.Get("level")}
		if y := strings.TrimSpace(q.Get("year")); y != "" {
			year, err := strconv.Atoi(y)
			if err != nil {
				writeError(w, r, apperr.Validation("year must be an integer"))
				return
			}
			f.Year = year
		}
		list, err := svc.ListExams(r.Context(), f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func CreateExamHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := admin(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var in catalog.Exam
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, r, err)
			return
		}
		e, err := svc.CreateExam(r.Context(), a, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func ListScholarshipsHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		list, err := svc.ListScholarships(r.Context(), catalog.ScholarshipFilter{
			Level:        q.Get("level"),
			State:        q.Get("state"),
			ProviderType: q.Get("provider_type"),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func CreateScholarshipHandler(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := admin(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var in catalog.Scholarship
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, r, err)
			return
		}
		sc, err := svc.CreateScholarship(r.Context(), a, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sc)
	}
}

// DeleteHandler adapts one of the catalog delete operations to
// DELETE /{kind}/{id}. Success is 204 with no body.
func DeleteHandler(del func(r *http.Request, a rbac.Admin, id int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := admin(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := del(r, a, id); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func deleteCollege(svc *catalog.Service) http.HandlerFunc {
	return DeleteHandler(func(r *http.Request, a rbac.Admin, id int64) error {
		return svc.DeleteCollege(r.Context(), a, id)
	})
}

func deleteExam(svc *catalog.Service) http.HandlerFunc {
	return DeleteHandler(func(r *http.Request, a rbac.Admin, id int64) error {
		return svc.DeleteExam(r.Context(), a, id)
	})
}

func deleteScholarship(svc *catalog.Service) http.HandlerFunc {
	return DeleteHandler(func(r *http.Request, a rbac.Admin, id int64) error {
		return svc.DeleteScholarship(r.Context(), a, id)
	})
}
