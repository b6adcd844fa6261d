package db

import (
	"context"
	"fmt"

	"blog/internal/models"
)

// CreateReport files a report; is_solved starts false.
func (s *Store) CreateReport(ctx context.Context, r *models.Report) (int64, error) {
	err := s.db.QueryRowContext(ctx, `
INSERT INTO reports (theme, post_id, user_id, description)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at, is_solved`,
		string(r.Theme), r.PostID, r.UserID, r.Description,
	).Scan(&r.ID, &r.CreatedAt, &r.IsSolved)
	if isForeignKeyErr(err) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("insert report: %w", err)
	}
	return r.ID, nil
}

// ListReportsByUser returns only the reports userID filed, newest first.
func (s *Store) ListReportsByUser(ctx context.Context, userID int64) ([]models.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT r.id, r.theme, r.post_id, p.title, r.user_id, r.description, r.created_at, r.is_solved
  FROM reports r
  JOIN posts p ON p.id = r.post_id
 WHERE r.user_id = $1
 ORDER BY r.created_at DESC, r.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []models.Report
	for rows.Next() {
		var (
			r     models.Report
			theme string
		)
		if err := rows.Scan(&r.ID, &theme, &r.PostID, &r.PostTitle, &r.UserID,
			&r.Description, &r.CreatedAt, &r.IsSolved); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.Theme = models.ReportTheme(theme)
		out = append(out, r)
	}
	return out, rows.Err()
}
