package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"blog/internal/models"
)

// ToggleReaction flips kind (like or dislike) for the pair and clears the
// opposite one, all inside one transaction holding an advisory lock on
// (post, user). It returns the user's reaction afterwards.
func (s *Store) ToggleReaction(ctx context.Context, postID, userID int64, kind models.Reaction) (models.Reaction, error) {
	var same, other string
	switch kind {
	case models.ReactionLike:
		same, other = "likes", "dislikes"
	case models.ReactionDislike:
		same, other = "dislikes", "likes"
	default:
		return models.ReactionNone, fmt.Errorf("toggle reaction: bad kind %d", kind)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.ReactionNone, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = $1 FOR SHARE`, postID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ReactionNone, ErrNotFound
	}
	if err != nil {
		return models.ReactionNone, fmt.Errorf("lock post: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended(format('%s:%s', $1::bigint, $2::bigint), 0))`,
		postID, userID); err != nil {
		return models.ReactionNone, fmt.Errorf("advisory lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM `+other+` WHERE post_id = $1 AND user_id = $2`, postID, userID); err != nil {
		return models.ReactionNone, fmt.Errorf("clear %s: %w", other, err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM `+same+` WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return models.ReactionNone, fmt.Errorf("toggle %s: %w", same, err)
	}
	result := models.ReactionNone
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+same+` (post_id, user_id) VALUES ($1, $2) ON CONFLICT (post_id, user_id) DO NOTHING`,
			postID, userID); err != nil {
			return models.ReactionNone, fmt.Errorf("insert %s: %w", same, err)
		}
		result = kind
	}

	if err := tx.Commit(); err != nil {
		return models.ReactionNone, fmt.Errorf("commit: %w", err)
	}
	return result, nil
}

// ReactionOf reports the user's current reaction to a post.
func (s *Store) ReactionOf(ctx context.Context, postID, userID int64) (models.Reaction, error) {
	var liked, disliked bool
	err := s.db.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM likes    WHERE post_id = $1 AND user_id = $2),
       EXISTS (SELECT 1 FROM dislikes WHERE post_id = $1 AND user_id = $2)`,
		postID, userID).Scan(&liked, &disliked)
	if err != nil {
		return models.ReactionNone, fmt.Errorf("reaction of: %w", err)
	}
	switch {
	case liked:
		return models.ReactionLike, nil
	case disliked:
		return models.ReactionDislike, nil
	}
	return models.ReactionNone, nil
}
