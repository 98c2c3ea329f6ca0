package catalog

import (
	"context"
	"fmt"

	"github.com/gyandarshak/gyandarshak/internal/rbac"
)

const scholarshipCols = `id, name, provider_type, provider_name, level, min_class_or_course,
	eligibility_summary_en, eligibility_summary_hi, amount_description, application_url, state, last_date`

func (s *Service) CreateScholarship(ctx context.Context, _ rbac.Admin, sc Scholarship) (Scholarship, error) {
	var err error
	if sc.Name, err = required("name", sc.Name); err != nil {
		return Scholarship{}, err
	}
	if sc.LastDate != nil {
		d, err := normDate("last_date", *sc.LastDate)
		if err != nil {
			return Scholarship{}, err
		}
		sc.LastDate = &d
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO scholarships (name, provider_type, provider_name, level, min_class_or_course,
			eligibility_summary_en, eligibility_summary_hi, amount_description, application_url, state, last_date)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		sc.Name, sc.ProviderType, sc.ProviderName, sc.Level, sc.MinClassOrCourse,
		sc.EligibilitySummaryEN, sc.EligibilitySummaryHI, sc.AmountDescription, sc.ApplicationURL,
		sc.State, sc.LastDate).Scan(&sc.ID)
	if err != nil {
		return Scholarship{}, fmt.Errorf("insert scholarship: %w", err)
	}
	return sc, nil
}

// ListScholarships returns matches ordered by closing date, undated last.
func (s *Service) ListScholarships(ctx context.Context, f ScholarshipFilter) ([]Scholarship, error) {
	var w filter
	w.contains("level", f.Level)
	w.contains("state", f.State)
	w.contains("provider_type", f.ProviderType)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scholarshipCols+` FROM scholarships`+w.where()+`
		 ORDER BY CASE WHEN last_date IS NULL THEN 1 ELSE 0 END, last_date, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list scholarships: %w", err)
	}
	defer rows.Close()
	out := []Scholarship{}
	for rows.Next() {
		var sc Scholarship
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.ProviderType, &sc.ProviderName, &sc.Level, &sc.MinClassOrCourse,
			&sc.EligibilitySummaryEN, &sc.EligibilitySummaryHI, &sc.AmountDescription, &sc.ApplicationURL,
			&sc.State, &sc.LastDate); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Service) DeleteScholarship(ctx context.Context, _ rbac.Admin, id int64) error {
	return s.deleteByID(ctx, "scholarships", "Scholarship", id)
}
