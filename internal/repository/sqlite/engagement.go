package sqlite

import (
	"context"
	"fmt"

	"github.com/rs/xid"
)

// AddLike records that userID likes recipeID. Liking twice is a no-op.
// Likes are only read back as counts.
func (db *DB) AddLike(ctx context.Context, userID, recipeID string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO likes (user_id, recipe_id, created_at) VALUES (?, ?, ?)`,
		userID, recipeID, db.now(),
	)
	if err != nil {
		return mapWriteError("recipe", recipeID, fmt.Errorf("sqlite: adding like: %w", err))
	}
	return nil
}

// AddComment stores a comment and returns its id.
func (db *DB) AddComment(ctx context.Context, recipeID, userID, content string) (string, error) {
	id := xid.New().String()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, recipe_id, user_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, recipeID, userID, content, db.now(),
	)
	if err != nil {
		return "", mapWriteError("recipe", recipeID, fmt.Errorf("sqlite: adding comment: %w", err))
	}
	return id, nil
}
