package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gyandarshak/gyandarshak/internal/db"
	"github.com/gyandarshak/gyandarshak/internal/rbac"
)

const userCols = `id, full_name, email, phone, role, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(rs rowScanner, extra ...any) (User, error) {
	var u User
	var role string
	dest := append([]any{&u.ID, &u.FullName, &u.Email, &u.Phone, &role, &u.CreatedAt}, extra...)
	if err := rs.Scan(dest...); err != nil {
		return User{}, err
	}
	r, ok := rbac.ParseRole(role)
	if !ok {
		return User{}, fmt.Errorf("user %d has unknown role %q", u.ID, role)
	}
	u.Role = r
	return u, nil
}

func getUser(ctx context.Context, q db.Querier, id int64) (User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id)
	return scanUser(row)
}

// getUserByEmail also returns the stored password hash.
func getUserByEmail(ctx context.Context, q db.Querier, email string) (User, string, error) {
	var hash string
	row := q.QueryRowContext(ctx, `SELECT `+userCols+`, password_hash FROM users WHERE email=$1`, email)
	u, err := scanUser(row, &hash)
	return u, hash, err
}

func exists(ctx context.Context, q db.Querier, query string, args ...any) (bool, error) {
	err := q.QueryRowContext(ctx, query, args...).Scan(new(int))
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func insertUser(ctx context.Context, q db.Querier, u User, hash string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO users (full_name, email, phone, password_hash, role, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		u.FullName, u.Email, u.Phone, hash, string(u.Role), u.CreatedAt).Scan(&id)
	return id, err
}

func insertProfile(ctx context.Context, q db.Querier, userID int64) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO student_profiles (user_id) VALUES ($1) RETURNING id`, userID).Scan(&id)
	return id, err
}

// getProfile returns nil, nil when the user has no profile.
func getProfile(ctx context.Context, q db.Querier, userID int64) (*Profile, error) {
	p := &Profile{}
	err := q.QueryRowContext(ctx,
		`SELECT id, user_id, state, district, class_level, stream_interest, target_field
		 FROM student_profiles WHERE user_id=$1`, userID).
		Scan(&p.ID, &p.UserID, &p.State, &p.District, &p.ClassLevel, &p.StreamInterest, &p.TargetField)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func updateProfile(ctx context.Context, q db.Querier, p *Profile) error {
	_, err := q.ExecContext(ctx,
		`UPDATE student_profiles
		 SET state=$1, district=$2, class_level=$3, stream_interest=$4, target_field=$5
		 WHERE id=$6`,
		p.State, p.District, p.ClassLevel, p.StreamInterest, p.TargetField, p.ID)
	return err
}

func listUsers(ctx context.Context, q db.Querier, role string) ([]User, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if role == "" {
		rows, err = q.QueryContext(ctx, `SELECT `+userCols+` FROM users ORDER BY id`)
	} else {
		rows, err = q.QueryContext(ctx, `SELECT `+userCols+` FROM users WHERE role=$1 ORDER BY id`, role)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
