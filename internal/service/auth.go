package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/cookshare/internal/apperror"
	"github.com/sakif/cookshare/internal/auth"
	"github.com/sakif/cookshare/internal/model"
	"github.com/sakif/cookshare/internal/repository"
)

// RegisterInput is the body of an email/password sign-up.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required"`
}

// LoginInput is the body of an email/password login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult bundles the account with a freshly issued session token so the
// handler can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// AuthService issues sessions for password and GitHub logins. It never
// touches HTTP; cookies are the handler's job.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	validate  *validator.Validate
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		validate:  newValidator(),
		logger:    logger,
	}
}

// Register creates a USER account and logs it in. Registration never grants
// ADMIN; admins are promoted out of band.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(s.validate, &in); err != nil {
		return nil, err
	}
	if err := auth.CheckLength(in.Password); err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	if _, err := s.users.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, apperror.ValidationFailed("email", "an account with this email already exists")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{
		Email:        in.Email,
		Name:         in.Name,
		Role:         model.RoleUser,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			// lost a race with a concurrent sign-up
			return nil, apperror.ValidationFailed("email", "an account with this email already exists")
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	return s.issue(user)
}

// Login checks an email/password pair. Unknown emails and wrong passwords
// produce the same error so callers cannot probe for accounts.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateStruct(s.validate, &in); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated("invalid email or password")
		}
		return nil, fmt.Errorf("service/auth: loading user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Warn("failed login", slog.String("userID", user.ID))
			return nil, apperror.Unauthenticated("invalid email or password")
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user)
}

// LoginGitHub creates or refreshes the account linked to a GitHub profile and
// issues a session for it.
func (s *AuthService) LoginGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := gh.ToUser()
	if err := s.users.UpsertGitHubUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", gh.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", gh.Login),
	)
	return s.issue(user)
}

// GetUser returns the account behind an identity.
func (s *AuthService) GetUser(ctx context.Context, caller *model.Identity) (*model.User, error) {
	if caller == nil {
		return nil, apperror.Unauthenticated("login required")
	}
	user, err := s.users.GetUserByID(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", caller.UserID, err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
