package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gyandarshak/gyandarshak/internal/apperr"
	"github.com/gyandarshak/gyandarshak/internal/db"
	"github.com/gyandarshak/gyandarshak/internal/rbac"
)

// CreateExam stores an exam and its calendar dates together.
func (s *Service) CreateExam(ctx context.Context, _ rbac.Admin, e Exam) (Exam, error) {
	var err error
	if e.Name, err = required("name", e.Name); err != nil {
		return Exam{}, err
	}
	for i := range e.Dates {
		d := &e.Dates[i]
		if d.Year < 1 {
			return Exam{}, apperr.Validation("dates[%d].year is required", i)
		}
		if d.EventType, err = required(fmt.Sprintf("dates[%d].event_type", i), d.EventType); err != nil {
			return Exam{}, err
		}
		if d.Date, err = normDate(fmt.Sprintf("dates[%d].date", i), d.Date); err != nil {
			return Exam{}, err
		}
	}
	if e.Dates == nil {
		e.Dates = []ExamDate{}
	}

	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO exams (name, level, stream, official_website, description_en, description_hi)
			 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			e.Name, e.Level, e.Stream, e.OfficialWebsite, e.DescriptionEN, e.DescriptionHI).Scan(&e.ID)
		if err != nil {
			return fmt.Errorf("insert exam: %w", err)
		}
		for i := range e.Dates {
			d := &e.Dates[i]
			err := tx.QueryRowContext(ctx,
				`INSERT INTO exam_dates (exam_id, year, event_type, event_date) VALUES ($1,$2,$3,$4) RETURNING id`,
				e.ID, d.Year, d.EventType, d.Date).Scan(&d.ID)
			if err != nil {
				return fmt.Errorf("insert exam date: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Exam{}, err
	}
	return e, nil
}

// ListExams filters by stream and level substrings and by an exact year on
// any of the exam's dates. Matching exams carry all of their dates.
func (s *Service) ListExams(ctx context.Context, f ExamFilter) ([]Exam, error) {
	var w filter
	w.contains("e.stream", f.Stream)
	w.contains("e.level", f.Level)
	if f.Year != 0 {
		w.add(`EXISTS (SELECT 1 FROM exam_dates x WHERE x.exam_id = e.id AND x.year = ` + w.arg(f.Year) + `)`)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.name, e.level, e.stream, e.official_website, e.description_en, e.description_hi
		 FROM exams e`+w.where()+` ORDER BY e.id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	out := []Exam{}
	idx := map[int64]int{}
	for rows.Next() {
		var e Exam
		if err := rows.Scan(&e.ID, &e.Name, &e.Level, &e.Stream, &e.OfficialWebsite, &e.DescriptionEN, &e.DescriptionHI); err != nil {
			rows.Close()
			return nil, err
		}
		e.Dates = []ExamDate{}
		idx[e.ID] = len(out)
		out = append(out, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT exam_id, id, year, event_type, event_date
		 FROM exam_dates WHERE exam_id IN (SELECT e.id FROM exams e`+w.where()+`)
		 ORDER BY exam_id, event_date, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list exam dates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var examID int64
		var d ExamDate
		if err := rows.Scan(&examID, &d.ID, &d.Year, &d.EventType, &d.Date); err != nil {
			return nil, err
		}
		if i, ok := idx[examID]; ok {
			out[i].Dates = append(out[i].Dates, d)
		}
	}
	return out, rows.Err()
}

// DeleteExam removes an exam; its dates go with it.
func (s *Service) DeleteExam(ctx context.Context, _ rbac.Admin, id int64) error {
	return s.deleteByID(ctx, "exams", "Exam", id)
}
