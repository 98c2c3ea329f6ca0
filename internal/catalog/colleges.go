package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gyandarshak/gyandarshak/internal/db"
	"github.com/gyandarshak/gyandarshak/internal/rbac"
)

// CreateCollege stores a college and its nested courses together.
func (s *Service) CreateCollege(ctx context.Context, _ rbac.Admin, c College) (College, error) {
	var err error
	if c.Name, err = required("name", c.Name); err != nil {
		return College{}, err
	}
	if c.State, err = required("state", c.State); err != nil {
		return College{}, err
	}
	if c.City, err = required("city", c.City); err != nil {
		return College{}, err
	}
	for i := range c.Courses {
		if c.Courses[i].Name, err = required(fmt.Sprintf("courses[%d].name", i), c.Courses[i].Name); err != nil {
			return College{}, err
		}
	}
	if c.Courses == nil {
		c.Courses = []Course{}
	}

	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO colleges (name, state, city, website_url, is_partner, notes)
			 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			c.Name, c.State, c.City, c.WebsiteURL, c.IsPartner, c.Notes).Scan(&c.ID)
		if err != nil {
			return fmt.Errorf("insert college: %w", err)
		}
		for i := range c.Courses {
			co := &c.Courses[i]
			err := tx.QueryRowContext(ctx,
				`INSERT INTO courses (college_id, name, level, duration_years, approx_fee_total, stream, entrance_exam, discount_available, discount_details)
				 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
				c.ID, co.Name, co.Level, co.DurationYears, co.ApproxFeeTotal, co.Stream, co.EntranceExam, co.DiscountAvailable, co.DiscountDetails).Scan(&co.ID)
			if err != nil {
				return fmt.Errorf("insert course: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return College{}, err
	}
	return c, nil
}

// ListColleges filters by state and city substrings and by the stream of
// any course. Matching colleges come back with all of their courses.
func (s *Service) ListColleges(ctx context.Context, f CollegeFilter) ([]College, error) {
	var w filter
	w.contains("c.state", f.State)
	w.contains("c.city", f.City)
	if st := strings.TrimSpace(f.Stream); st != "" {
		w.add(`EXISTS (SELECT 1 FROM courses x WHERE x.college_id = c.id AND ` + w.like("x.stream", st) + `)`)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.state, c.city, c.website_url, c.is_partner, c.notes
		 FROM colleges c`+w.where()+` ORDER BY c.id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list colleges: %w", err)
	}
	out := []College{}
	idx := map[int64]int{}
	for rows.Next() {
		var c College
		if err := rows.Scan(&c.ID, &c.Name, &c.State, &c.City, &c.WebsiteURL, &c.IsPartner, &c.Notes); err != nil {
			rows.Close()
			return nil, err
		}
		c.Courses = []Course{}
		idx[c.ID] = len(out)
		out = append(out, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT college_id, id, name, level, duration_years, approx_fee_total, stream, entrance_exam, discount_available, discount_details
		 FROM courses WHERE college_id IN (SELECT c.id FROM colleges c`+w.where()+`)
		 ORDER BY college_id, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var collegeID int64
		var co Course
		if err := rows.Scan(&collegeID, &co.ID, &co.Name, &co.Level, &co.DurationYears, &co.ApproxFeeTotal,
			&co.Stream, &co.EntranceExam, &co.DiscountAvailable, &co.DiscountDetails); err != nil {
			return nil, err
		}
		if i, ok := idx[collegeID]; ok {
			out[i].Courses = append(out[i].Courses, co)
		}
	}
	return out, rows.Err()
}

// DeleteCollege removes a college; its courses go with it.
func (s *Service) DeleteCollege(ctx context.Context, _ rbac.Admin, id int64) error {
	return s.deleteByID(ctx, "colleges", "College", id)
}
