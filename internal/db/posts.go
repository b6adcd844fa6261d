package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"blog/internal/models"
)

const postColumns = `
  p.id, p.title, p.content, p.created_at, p.author_id, u.username,
  (SELECT COUNT(*) FROM likes l    WHERE l.post_id = p.id),
  (SELECT COUNT(*) FROM dislikes d WHERE d.post_id = p.id),
  (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id)`

// CountPosts counts every post, or only those by authorID when it is non-zero.
func (s *Store) CountPosts(ctx context.Context, authorID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE ($1::bigint = 0 OR author_id = $1)`, authorID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// ListPosts returns posts newest first with their counts and oldest media item.
// authorID 0 lists everyone's posts.
func (s *Store) ListPosts(ctx context.Context, authorID int64, limit, offset int) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT`+postColumns+`,
  m.id, m.created_at, COALESCE(m.url, ''), COALESCE(m.file, '')
FROM posts p
JOIN users u ON u.id = p.author_id
LEFT JOIN LATERAL (
  SELECT id, created_at, url, file FROM media
   WHERE post_id = p.id
   ORDER BY created_at, id
   LIMIT 1
) m ON true
WHERE ($1::bigint = 0 OR p.author_id = $1)
ORDER BY p.created_at DESC, p.id DESC
LIMIT $2 OFFSET $3`, authorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var (
			p         models.Post
			mediaID   sql.NullInt64
			mediaAt   sql.NullTime
			url, file string
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.CreatedAt, &p.AuthorID, &p.Author,
			&p.Likes, &p.Dislikes, &p.Comments,
			&mediaID, &mediaAt, &url, &file); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		if mediaID.Valid {
			p.FirstMedia = &models.Media{ID: mediaID.Int64, PostID: p.ID, CreatedAt: mediaAt.Time, URL: url, File: file}
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// GetPost loads one post with its counts and all of its media.
func (s *Store) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var p models.Post
	err := s.db.QueryRowContext(ctx, `
SELECT`+postColumns+`
FROM posts p
JOIN users u ON u.id = p.author_id
WHERE p.id = $1`, id).Scan(&p.ID, &p.Title, &p.Content, &p.CreatedAt, &p.AuthorID, &p.Author,
		&p.Likes, &p.Dislikes, &p.Comments)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	if p.Media, err = s.ListMedia(ctx, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePost inserts the post and its media rows in one transaction and
// returns the new post id.
func (s *Store) CreatePost(ctx context.Context, p *models.Post, media []models.Media) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var id int64
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO posts (title, content, author_id) VALUES ($1, $2, $3) RETURNING id, created_at`,
		p.Title, p.Content, p.AuthorID,
	).Scan(&id, &p.CreatedAt); err != nil {
		return 0, fmt.Errorf("insert post: %w", err)
	}
	for _, m := range media {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO media (post_id, url, file) VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))`,
			id, m.URL, m.File,
		); err != nil {
			return 0, fmt.Errorf("insert media: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	p.ID = id
	return id, nil
}

func (s *Store) UpdatePost(ctx context.Context, id int64, title, content string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET title = $1, content = $2 WHERE id = $3`, title, content, id)
	if err != nil {
		return fmt.Errorf("update post %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePost removes the post; comments, reactions, reports and media rows go
// with it through ON DELETE CASCADE. The storage keys of uploaded files are
// returned so the caller can remove the objects.
func (s *Store) DeletePost(ctx context.Context, id int64) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT file FROM media WHERE post_id = $1 AND file IS NOT NULL AND file <> ''`, id)
	if err != nil {
		return nil, fmt.Errorf("post files: %w", err)
	}
	var files []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("delete post %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return files, nil
}

// ListMedia returns a post's media, oldest first.
func (s *Store) ListMedia(ctx context.Context, postID int64) ([]models.Media, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, post_id, created_at, COALESCE(url, ''), COALESCE(file, '')
  FROM media
 WHERE post_id = $1
 ORDER BY created_at, id`, postID)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	var out []models.Media
	for rows.Next() {
		var m models.Media
		if err := rows.Scan(&m.ID, &m.PostID, &m.CreatedAt, &m.URL, &m.File); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
