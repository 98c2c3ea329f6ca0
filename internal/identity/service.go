package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/gyandarshak/gyandarshak/internal/apperr"
	"github.com/gyandarshak/gyandarshak/internal/db"
	"github.com/gyandarshak/gyandarshak/internal/rbac"
)

const defaultBcryptCost = 12

type Service struct {
	db   *sql.DB
	now  func() time.Time
	cost int
}

func NewService(dbh *sql.DB, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{db: dbh, now: now, cost: defaultBcryptCost}
}

// HashPassword hashes pw with the service's bcrypt cost.
func (s *Service) HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperr.Validation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("invalid email: %s", email)
	}
	return email, nil
}

// trimOrNil maps blank strings to NULL.
func trimOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Register creates a student account together with its empty profile.
func (s *Service) Register(ctx context.Context, in Registration) (User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return User{}, err
	}
	name := strings.TrimSpace(in.FullName)
	if name == "" {
		return User{}, apperr.Validation("full_name is required")
	}
	if in.Password == "" {
		return User{}, apperr.Validation("password is required")
	}
	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}

	u := User{
		FullName:  name,
		Email:     email,
		Phone:     trimOrNil(in.Phone),
		Role:      rbac.RoleStudent,
		CreatedAt: s.now().Unix(),
	}
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		taken, err := exists(ctx, tx, `SELECT 1 FROM users WHERE email=$1`, u.Email)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("Email already registered")
		}
		if u.Phone != nil {
			taken, err := exists(ctx, tx, `SELECT 1 FROM users WHERE phone=$1`, *u.Phone)
			if err != nil {
				return err
			}
			if taken {
				return apperr.Conflict("Phone already registered")
			}
		}
		id, err := insertUser(ctx, tx, u, hash)
		if db.IsUniqueViolation(err) {
			return apperr.Conflict("Email or phone already registered")
		}
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		u.ID = id
		if _, err := insertProfile(ctx, tx, id); err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		return nil
	})
	return u, err
}

// Authenticate checks an email/password pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, hash, err := getUserByEmail(ctx, s.db, email)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, apperr.Unauthorized("Incorrect email or password")
	}
	if err != nil {
		return User{}, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, apperr.Unauthorized("Incorrect email or password")
	}
	return u, nil
}

func (s *Service) Me(ctx context.Context, userID int64) (Me, error) {
	return loadMe(ctx, s.db, userID)
}

func loadMe(ctx context.Context, q db.Querier, userID int64) (Me, error) {
	u, err := getUser(ctx, q, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Me{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return Me{}, fmt.Errorf("load user: %w", err)
	}
	p, err := getProfile(ctx, q, userID)
	if err != nil {
		return Me{}, fmt.Errorf("load profile: %w", err)
	}
	return Me{User: u, Profile: p}, nil
}

// UpdateMe applies patch to the caller's user row and profile.
func (s *Service) UpdateMe(ctx context.Context, userID int64, patch ProfilePatch) (Me, error) {
	var out Me
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		p, err := getProfile(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		if p == nil {
			return apperr.Validation("Student profile not found")
		}
		if name := trimOrNil(patch.FullName); name != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE users SET full_name=$1 WHERE id=$2`, *name, userID); err != nil {
				return fmt.Errorf("update user: %w", err)
			}
		}
		set := func(dst **string, v *string) {
			if v != nil {
				*dst = trimOrNil(v)
			}
		}
		set(&p.State, patch.State)
		set(&p.District, patch.District)
		set(&p.ClassLevel, patch.ClassLevel)
		set(&p.StreamInterest, patch.StreamInterest)
		set(&p.TargetField, patch.TargetField)
		if err := updateProfile(ctx, tx, p); err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		out, err = loadMe(ctx, tx, userID)
		return err
	})
	return out, err
}

// ProfileIDForUser resolves the student profile of a user.
func (s *Service) ProfileIDForUser(ctx context.Context, userID int64) (int64, error) {
	p, err := getProfile(ctx, s.db, userID)
	if err != nil {
		return 0, fmt.Errorf("load profile: %w", err)
	}
	if p == nil {
		return 0, apperr.Validation("Student profile not found")
	}
	return p.ID, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPw, newPw string) error {
	if newPw == "" {
		return apperr.Validation("new password required")
	}
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var stored string
		err := tx.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id=$1`, userID).Scan(&stored)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("user not found")
		}
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if bcrypt.CompareHashAndPassword([]byte(stored), []byte(oldPw)) != nil {
			return apperr.Forbidden("incorrect old password")
		}
		hash, err := s.HashPassword(newPw)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, hash, userID); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		return nil
	})
}

// ListUsers lists accounts, optionally restricted to one role.
func (s *Service) ListUsers(ctx context.Context, _ rbac.Admin, role string) ([]User, error) {
	if role != "" {
		if _, ok := rbac.ParseRole(role); !ok {
			return nil, apperr.Validation("invalid role: %s", role)
		}
	}
	users, err := listUsers(ctx, s.db, role)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// PromoteToAdmin gives an existing account the admin role.
func (s *Service) PromoteToAdmin(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := s.db.ExecContext(ctx, `UPDATE users SET role=$1 WHERE email=$2`, string(rbac.RoleAdmin), email)
	if err != nil {
		return fmt.Errorf("promote: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("no user with email %s", email)
	}
	return nil
}

// EnsureAdmin makes sure an admin account exists for email. An existing
// account is promoted and keeps its password; otherwise one is created
// with the given bcrypt hash. It reports whether a row was inserted.
func (s *Service) EnsureAdmin(ctx context.Context, email, fullName, passwordHash string) (bool, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return false, err
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return false, apperr.Validation("admin password hash is not a bcrypt hash")
	}
	if strings.TrimSpace(fullName) == "" {
		fullName = "Administrator"
	}
	created := false
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		taken, err := exists(ctx, tx, `SELECT 1 FROM users WHERE email=$1`, email)
		if err != nil {
			return err
		}
		if taken {
			_, err := tx.ExecContext(ctx, `UPDATE users SET role=$1 WHERE email=$2`, string(rbac.RoleAdmin), email)
			return err
		}
		_, err = insertUser(ctx, tx, User{
			FullName:  strings.TrimSpace(fullName),
			Email:     email,
			Role:      rbac.RoleAdmin,
			CreatedAt: s.now().Unix(),
		}, passwordHash)
		if err != nil {
			return fmt.Errorf("insert admin: %w", err)
		}
		created = true
		return nil
	})
	return created, err
}

// LoginExternal finds or creates the student account for an identity
// verified by an external provider. New accounts get an unusable random
// password and an empty profile.
func (s *Service) LoginExternal(ctx context.Context, email, fullName string) (User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	u, _, err := getUserByEmail(ctx, s.db, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("load user: %w", err)
	}
	name := strings.TrimSpace(fullName)
	if name == "" {
		name = email
	}
	u, err = s.Register(ctx, Registration{FullName: name, Email: email, Password: uuid.NewString()})
	if errors.Is(err, apperr.ErrConflict) {
		// lost a race with a concurrent first login
		u, _, err = getUserByEmail(ctx, s.db, email)
	}
	return u, err
}
