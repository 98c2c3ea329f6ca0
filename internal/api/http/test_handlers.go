package http

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gyandarshak/gyandarshak/internal/assessment"
)

func CreateTestHandler(tests *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := admin(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var in assessment.TestInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, r, err)
			return
		}
		t, err := tests.CreateTest(r.Context(), a, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func ListTestsHandler(tests *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := principal(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		list, err := tests.ListTests(r.Context(), p)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func GetTestHandler(tests *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := admin(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		id, err := idParam(r, "testID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		t, err := tests.GetTest(r.Context(), a, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func StartAttemptHandler(tests *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := principal(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		id, err := idParam(r, "testID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		res, err := tests.StartAttempt(r.Context(), p, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type submitReq struct {
	Answers []assessment.AnswerInput `json:"answers"`
}

// UnmarshalJSON accepts {"answers": [...]} or a bare answer array.
func (s *submitReq) UnmarshalJSON(b []byte) error {
	if t := bytes.TrimSpace(b); len(t) > 0 && t[0] == '[' {
		return json.Unmarshal(t, &s.Answers)
	}
	type plain submitReq
	return json.Unmarshal(b, (*plain)(s))
}

func SubmitAttemptHandler(tests *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := principal(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		id, err := idParam(r, "attemptID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req submitReq
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		res, err := tests.SubmitAttempt(r.Context(), p, id, req.Answers)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func AttemptAnswersHandler(tests *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := principal(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		id, err := idParam(r, "attemptID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		answers, err := tests.AttemptAnswers(r.Context(), p, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, answers)
	}
}

func MyAttemptsHandler(tests *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := principal(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		list, err := tests.ListMyAttempts(r.Context(), p)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func TestAttemptsHandler(tests *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := admin(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		id, err := idParam(r, "testID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		list, err := tests.ListAttemptsForTest(r.Context(), a, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
