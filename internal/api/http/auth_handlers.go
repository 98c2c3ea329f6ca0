package http

import (
	"mime"
	"net/http"
	"strings"

	"github.com/gyandarshak/gyandarshak/internal/apperr"
	authmw "github.com/gyandarshak/gyandarshak/internal/auth/middleware"
	"github.com/gyandarshak/gyandarshak/internal/identity"
)

type loginReq struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// readLogin accepts a JSON body or an OAuth2 password-grant form, where
// username carries the email.
func readLogin(r *http.Request) (loginReq, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var req loginReq
	switch ct {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			return req, apperr.Validation("invalid form body")
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	default:
		if err := decodeJSON(r, &req); err != nil {
			return req, err
		}
	}
	if req.Email == "" {
		req.Email = req.Username
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return req, apperr.Validation("email and password are required")
	}
	return req, nil
}

func LoginHandler(users *identity.Service, tokens *authmw.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := readLogin(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		u, err := users.Authenticate(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		tok, err := tokens.IssueJWT(u.ID, u.Role)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, tokenResp{AccessToken: tok, TokenType: "bearer"})
	}
}

func RegisterHandler(users *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req identity.Registration
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		u, err := users.Register(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

type changePasswordReq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func ChangePasswordHandler(users *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := principal(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req changePasswordReq
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if err := users.ChangePassword(r.Context(), p.UserID, req.OldPassword, req.NewPassword); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
