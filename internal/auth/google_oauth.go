package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	authmw "github.com/gyandarshak/gyandarshak/internal/auth/middleware"
	"github.com/gyandarshak/gyandarshak/internal/config"
	"github.com/gyandarshak/gyandarshak/internal/identity"
)

const (
	stateCookie    = "gd_oauth_state"
	redirectCookie = "gd_post_auth_redirect"

	googleUserinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// ExternalLogin finds or creates the account for a verified external email.
type ExternalLogin interface {
	LoginExternal(ctx context.Context, email, fullName string) (identity.User, error)
}

// Google is the optional "Sign in with Google" flow. A verified Google
// identity becomes a local student account and gets a regular access token.
type Google struct {
	oauth       *oauth2.Config
	publicURL   string
	allowedHD   string
	userinfoURL string
	users       ExternalLogin
	tokens      *authmw.AuthService
}

func NewGoogle(cfg config.Config, users ExternalLogin, tokens *authmw.AuthService) *Google {
	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURI,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		publicURL:   cfg.PublicURL,
		allowedHD:   cfg.GoogleAllowedHD,
		userinfoURL: googleUserinfoURL,
		users:       users,
		tokens:      tokens,
	}
}

// allowedTarget reports whether target is relative, same-origin as the
// public URL, or a localhost dev origin.
func (g *Google) allowedTarget(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	if u.Host == "" || strings.HasPrefix(u.Host, "localhost") || strings.HasPrefix(u.Host, "127.0.0.1") {
		return true
	}
	base, err := url.Parse(g.publicURL)
	return err == nil && base.Host != "" && u.Scheme == base.Scheme && u.Host == base.Host
}

func (g *Google) home() string {
	if g.publicURL == "" {
		return "/"
	}
	return strings.TrimRight(g.publicURL, "/") + "/"
}

func shortCookie(name, value string, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(10 * time.Minute),
	}
}

func clearCookie(name string) *http.Cookie {
	return &http.Cookie{Name: name, Value: "", Path: "/", Expires: time.Unix(0, 0), MaxAge: -1}
}

// LoginHandler redirects to Google's consent screen. ?redirect= names the
// page to return to afterwards.
func (g *Google) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next := r.URL.Query().Get("redirect")
		if next == "" {
			next = g.home()
		}
		if !g.allowedTarget(next) {
			writeDetail(w, http.StatusBadRequest, "bad redirect")
			return
		}

		state := uuid.NewString()
		http.SetCookie(w, shortCookie(stateCookie, state, true))
		http.SetCookie(w, shortCookie(redirectCookie, url.QueryEscape(next), false))

		opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
		if g.allowedHD != "" {
			opts = append(opts, oauth2.SetAuthURLParam("hd", g.allowedHD))
		}
		http.Redirect(w, r, g.oauth.AuthCodeURL(state, opts...), http.StatusFound)
	}
}

type googleUser struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	HD            string `json:"hd"`
}

func (g *Google) fetchUser(ctx context.Context, tok *oauth2.Token) (googleUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userinfoURL, nil)
	if err != nil {
		return googleUser{}, err
	}
	resp, err := g.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return googleUser{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return googleUser{}, fmt.Errorf("userinfo: status %d", resp.StatusCode)
	}
	var u googleUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return googleUser{}, fmt.Errorf("userinfo: %w", err)
	}
	return u, nil
}

// CallbackHandler exchanges the code, resolves the local account, sets the
// access token cookie and sends the browser back to the saved page with
// ?access_token= appended.
func (g *Google) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.URL.Query().Get("state")
		c, err := r.Cookie(stateCookie)
		if state == "" || err != nil || c.Value != state {
			writeDetail(w, http.StatusBadRequest, "invalid state")
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			writeDetail(w, http.StatusBadRequest, "missing code")
			return
		}

		tok, err := g.oauth.Exchange(r.Context(), code)
		if err != nil {
			slog.WarnContext(r.Context(), "google token exchange failed", "err", err)
			writeDetail(w, http.StatusBadGateway, "token exchange error")
			return
		}
		gu, err := g.fetchUser(r.Context(), tok)
		if err != nil {
			slog.WarnContext(r.Context(), "google userinfo failed", "err", err)
			writeDetail(w, http.StatusBadGateway, "userinfo error")
			return
		}
		if gu.Email == "" || !gu.EmailVerified {
			writeDetail(w, http.StatusUnauthorized, "email not verified")
			return
		}
		if g.allowedHD != "" && !strings.EqualFold(gu.HD, g.allowedHD) {
			writeDetail(w, http.StatusUnauthorized, "unauthorized domain")
			return
		}

		u, err := g.users.LoginExternal(r.Context(), gu.Email, gu.Name)
		if err != nil {
			slog.ErrorContext(r.Context(), "external login failed", "email", gu.Email, "err", err)
			writeDetail(w, http.StatusInternalServerError, "internal error")
			return
		}
		access, err := g.tokens.IssueJWT(u.ID, u.Role)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, "issue token")
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     authmw.AccessTokenCookie,
			Value:    access,
			Path:     "/",
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Now().Add(8 * time.Hour),
		})

		target := ""
		if c, err := r.Cookie(redirectCookie); err == nil {
			target, _ = url.QueryUnescape(c.Value)
		}
		if target == "" || !g.allowedTarget(target) {
			target = g.home()
		}
		http.SetCookie(w, clearCookie(stateCookie))
		http.SetCookie(w, clearCookie(redirectCookie))

		dest, _ := url.Parse(target)
		q := dest.Query()
		q.Set("access_token", access)
		dest.RawQuery = q.Encode()
		http.Redirect(w, r, dest.String(), http.StatusFound)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
