package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OfficialExam identifies one published exam paper.
type OfficialExam struct {
	Year      int    `json:"year"`
	Region    string `json:"region"`
	Specialty string `json:"specialty"`
}

// ExamRepository reads official exam metadata.
type ExamRepository struct {
	pool *pgxpool.Pool
}

func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// ListOfficialExams returns the distinct exam papers, newest years first.
func (r *ExamRepository) ListOfficialExams(ctx context.Context) ([]OfficialExam, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT year, region, specialty
		FROM official_exams
		ORDER BY year DESC, region ASC, specialty ASC`)
	if err != nil {
		return nil, fmt.Errorf("list official exams: %w", err)
	}
	defer rows.Close()

	var exams []OfficialExam
	for rows.Next() {
		var e OfficialExam
		if err := rows.Scan(&e.Year, &e.Region, &e.Specialty); err != nil {
			return nil, fmt.Errorf("scan official exam: %w", err)
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}
