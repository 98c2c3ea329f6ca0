// internal/auth/middleware/attach_role.go
package auth

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gyandarshak/gyandarshak/internal/rbac"
)

// AttachRoleFromDB replaces the role claimed in the token with the role
// stored for the user. A token whose user no longer exists is rejected, so
// role changes and deletions take effect without waiting for expiry.
func AttachRoleFromDB(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p, ok := rbac.PrincipalFromContext(ctx)
			if !ok {
				unauthorized(w, "Not authenticated")
				return
			}

			var role string
			err := db.QueryRowContext(ctx, `SELECT role FROM users WHERE id=$1`, p.UserID).Scan(&role)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				unauthorized(w, "Could not validate credentials")
				return
			case err != nil:
				slog.ErrorContext(ctx, "load user role", "user_id", p.UserID, "error", err)
				http.Error(w, `{"detail":"internal error"}`, http.StatusInternalServerError)
				return
			}
			stored, ok := rbac.ParseRole(role)
			if !ok {
				unauthorized(w, "Could not validate credentials")
				return
			}
			p.Role = stored
			next.ServeHTTP(w, r.WithContext(rbac.WithPrincipal(ctx, p)))
		})
	}
}
