package db

import (
	"context"
	"fmt"

	"blog/internal/models"
)

// AddComment appends a comment. A missing post yields ErrNotFound.
func (s *Store) AddComment(ctx context.Context, c *models.Comment) (int64, error) {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO comments (post_id, user_id, body) VALUES ($1, $2, $3) RETURNING id, created_at`,
		c.PostID, c.UserID, c.Body,
	).Scan(&c.ID, &c.CreatedAt)
	if isForeignKeyErr(err) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("insert comment: %w", err)
	}
	return c.ID, nil
}

// ListComments returns a post's comments, oldest first.
func (s *Store) ListComments(ctx context.Context, postID int64) ([]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT c.id, c.post_id, c.user_id, u.username, c.body, c.created_at
  FROM comments c
  JOIN users u ON u.id = c.user_id
 WHERE c.post_id = $1
 ORDER BY c.created_at, c.id`, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var out []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Author, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
