package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/cookshare/internal/apperror"
	"github.com/sakif/cookshare/internal/model"
	"github.com/sakif/cookshare/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userSelect = `
	SELECT id, email, name, role, bio, avatar_url, github_id, password_hash, created_at, updated_at
	FROM users`

func scanUser(row scanner) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Bio, &u.AvatarURL,
		&githubID, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if githubID.Valid {
		id := githubID.Int64
		u.GitHubID = &id
	}
	return &u, nil
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// CreateUser inserts a new account. Emails are stored lower-cased; a second
// account with the same email fails with apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	now := db.now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, name, role, bio, avatar_url, github_id, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.Role, user.Bio, user.AvatarURL,
		nullableInt64(user.GitHubID), user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %w", apperror.Conflict("user", user.Email), err)
		}
		return fmt.Errorf("sqlite: creating user %s: %w", user.Email, err)
	}
	return nil
}

// UpsertGitHubUser links a GitHub login to an account.
//
// Lookup order: the github_id first, then the email (so a user who
// registered with a password and later signs in with GitHub keeps one
// account). Profile fields are refreshed; role and password stay as stored.
func (db *DB) UpsertGitHubUser(ctx context.Context, user *model.User) error {
	if user.GitHubID == nil {
		return errors.New("sqlite: upserting GitHub user: missing github id")
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	existing, err := scanUser(db.conn.QueryRowContext(ctx, userSelect+` WHERE github_id = ?`, *user.GitHubID))
	if errors.Is(err, sql.ErrNoRows) && user.Email != "" {
		existing, err = scanUser(db.conn.QueryRowContext(ctx, userSelect+` WHERE email = ?`, user.Email))
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: looking up GitHub user %d: %w", *user.GitHubID, err)
	}

	if existing == nil {
		return db.CreateUser(ctx, user)
	}

	user.ID = existing.ID
	user.Role = existing.Role
	user.Bio = existing.Bio
	user.PasswordHash = existing.PasswordHash
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = db.now()
	if user.Email == "" {
		user.Email = existing.Email
	}

	_, err = db.conn.ExecContext(ctx,
		`UPDATE users SET email = ?, name = ?, avatar_url = ?, github_id = ?, updated_at = ?
		 WHERE id = ?`,
		user.Email, user.Name, user.AvatarURL, *user.GitHubID, user.UpdatedAt, user.ID,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %w", apperror.Conflict("user", user.ID), err)
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}
	return nil
}

// GetUserByID retrieves a user by internal id.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx, userSelect+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(db.conn.QueryRowContext(ctx, userSelect+` WHERE email = ?`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}
