package auth

import (
	"net/http"
	"strings"
)

// AccessTokenCookie is set by the Google sign-in callback.
const AccessTokenCookie = "gd_access_token"

// TokenFromRequest returns the bearer token from the Authorization header,
// falling back to the access-token cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}
