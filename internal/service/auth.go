// Package service contains the authentication business logic.
//
// AuthService sits between the HTTP handlers and the repository/auth
// utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT) / PasswordService (bcrypt)
//
// The watchlist itself has no service layer in between — its Manager is the
// business-logic layer, selected per request. Authentication is the one
// concern that still warrants an orchestration layer of its own: two login
// flows (GitHub OAuth and local email/password) converge here on the same
// user records and token issuance.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/watchlist/internal/apperror"
	"github.com/sakif/watchlist/internal/auth"
	"github.com/sakif/watchlist/internal/model"
	"github.com/sakif/watchlist/internal/repository"
)

// MinPasswordLength is the floor for local account passwords.
const MinPasswordLength = 8

// AuthService handles authentication business logic. All dependencies are
// injected; it knows nothing about HTTP.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
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
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginOrRegisterGitHub handles the GitHub OAuth callback: upsert the user
// keyed by their stable GitHub ID (insert on first login, refresh profile on
// later ones), then issue a JWT for the internal user id.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID:  ghUser.ID,
		Login:     ghUser.Login,
		Email:     ghUser.Email,
		AvatarURL: ghUser.AvatarURL,
	}

	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", user.Login),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// Register creates a local email/password account and signs it in.
//
// Validation lives here, not in the handler: a CLI or test calling this
// method gets the same rules as the HTTP API.
func (s *AuthService) Register(ctx context.Context, login, email, password string) (*AuthResult, error) {
	login = strings.TrimSpace(login)
	email = strings.TrimSpace(strings.ToLower(email))

	if login == "" {
		return nil, apperror.ValidationFailed("login", "login is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperror.ValidationFailed("email", "a valid email address is required")
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Login:        login,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.CreateLocal(ctx, user); err != nil {
		// Duplicate email surfaces as apperror.Conflict from the repository.
		return nil, err
	}

	s.logger.Info("local account registered",
		slog.String("userID", user.ID),
		slog.String("login", user.Login),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// Login authenticates a local account by email and password.
//
// Wrong email and wrong password return the same validation error — the API
// must not reveal which half was wrong.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, apperror.ValidationFailed("email", "invalid email or password")
	}

	// OAuth accounts have no password hash; they can't log in this way.
	if user.PasswordHash == "" {
		return nil, apperror.ValidationFailed("email", "invalid email or password")
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.ValidationFailed("email", "invalid email or password")
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID. Used by /api/me
// after the middleware has validated the JWT.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}
