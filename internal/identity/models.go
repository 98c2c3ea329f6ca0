// Package identity owns user accounts and student profiles.
package identity

import "github.com/gyandarshak/gyandarshak/internal/rbac"

type User struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone"`
	Role      rbac.Role `json:"role"`
	CreatedAt int64     `json:"created_at"`
}

// Profile is the student-specific extension of a user. Every field but the
// ids is optional.
type Profile struct {
	ID             int64   `json:"id"`
	UserID         int64   `json:"-"`
	State          *string `json:"state"`
	District       *string `json:"district"`
	ClassLevel     *string `json:"class_level"`
	StreamInterest *string `json:"stream_interest"`
	TargetField    *string `json:"target_field"`
}

// Me is a user joined with its profile. Profile is nil for accounts that
// never had one (bootstrapped admins).
type Me struct {
	User
	Profile *Profile `json:"profile"`
}

type Registration struct {
	FullName string  `json:"full_name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone"`
	Password string  `json:"password"`
}

// ProfilePatch carries the fields a student may edit on themselves. A nil
// field is left alone.
type ProfilePatch struct {
	FullName       *string `json:"full_name"`
	State          *string `json:"state"`
	District       *string `json:"district"`
	ClassLevel     *string `json:"class_level"`
	StreamInterest *string `json:"stream_interest"`
	TargetField    *string `json:"target_field"`
}
