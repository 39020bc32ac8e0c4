// Package service implements the business logic for authentication and
// session lifecycle.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lumastudio/auth-service/internal/apperrors"
	"github.com/lumastudio/auth-service/internal/auth"
	"github.com/lumastudio/auth-service/internal/domain"
	"github.com/lumastudio/auth-service/internal/repository"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// refreshSecretBytes is the entropy of an opaque refresh token secret.
const refreshSecretBytes = 32

// EventProducer publishes auth domain events. The reset-requested publication
// is the email delivery path, so its error surfaces to the caller.
type EventProducer interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishPasswordChanged(ctx context.Context, userID, email string) error
	PublishPasswordResetRequested(ctx context.Context, user *domain.User, resetLink string) error
}

// Config carries the token lifetimes and the client base URL used to build
// reset links.
type Config struct {
	RefreshTTL time.Duration
	ResetTTL   time.Duration
	AppBaseURL string
}

// AuthService implements registration, login, session refresh, revocation,
// and the password lifecycle.
type AuthService struct {
	userRepo    repository.UserRepository
	refreshRepo repository.RefreshTokenRepository
	issuer      *auth.TokenIssuer
	producer    EventProducer
	logger      *slog.Logger
	cfg         Config
}

// NewAuthService creates the auth service.
func NewAuthService(
	userRepo repository.UserRepository,
	refreshRepo repository.RefreshTokenRepository,
	issuer *auth.TokenIssuer,
	producer EventProducer,
	logger *slog.Logger,
	cfg Config,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		refreshRepo: refreshRepo,
		issuer:      issuer,
		producer:    producer,
		logger:      logger,
		cfg:         cfg,
	}
}

// RegisterInput holds the parameters for registering a new account.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// LoginInput holds the parameters for a login attempt.
type LoginInput struct {
	Email    string
	Password string
}

// Register creates a new account with the USER role and opens a session.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, *domain.SessionTokens, error) {
	if input.Email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		PasswordHash: string(hashed),
		Name:         input.Name,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	tokens, err := s.openSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	// Registration succeeds even when the event cannot be published.
	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, tokens, nil
}

// Login authenticates a user and opens a session. Unknown email and wrong
// password produce the same error.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.User, *domain.SessionTokens, error) {
	if input.Email == "" || input.Password == "" {
		return nil, nil, apperrors.InvalidCredentials()
	}

	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.InvalidCredentials()
		}
		return nil, nil, fmt.Errorf("get user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, nil, apperrors.InvalidCredentials()
	}

	tokens, err := s.openSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
	)

	return user, tokens, nil
}

// Refresh validates an opaque refresh secret and mints a fresh access token.
// The refresh token itself is not rotated: its row stays valid until expiry
// or revocation.
func (s *AuthService) Refresh(ctx context.Context, refreshSecret string) (*domain.User, string, error) {
	if refreshSecret == "" {
		return nil, "", apperrors.InvalidRefreshToken()
	}

	stored, err := s.refreshRepo.GetByHash(ctx, hashToken(refreshSecret))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, "", apperrors.InvalidRefreshToken()
		}
		return nil, "", fmt.Errorf("get refresh token: %w", err)
	}

	if !stored.Usable(time.Now().UTC()) {
		return nil, "", apperrors.InvalidRefreshToken()
	}

	user, err := s.userRepo.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, "", apperrors.InvalidRefreshToken()
		}
		return nil, "", fmt.Errorf("get user for refresh: %w", err)
	}

	accessToken, err := s.issueAccess(user)
	if err != nil {
		return nil, "", err
	}

	s.logger.InfoContext(ctx, "session refreshed",
		slog.String("user_id", user.ID),
	)

	return user, accessToken, nil
}

// Logout revokes the presented refresh token. An unknown, expired, or
// already revoked token is not an error; logout always succeeds.
func (s *AuthService) Logout(ctx context.Context, refreshSecret string) error {
	if refreshSecret == "" {
		return nil
	}

	if err := s.refreshRepo.Revoke(ctx, hashToken(refreshSecret)); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	return nil
}

// ChangePassword verifies the current password, stores a new hash, and
// revokes every live session for the user.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if currentPassword == "" {
		return apperrors.InvalidInput("current password is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.UserNotFound()
		}
		return fmt.Errorf("get user for password change: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return apperrors.WrongPassword()
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, user.ID, string(hashed)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.refreshRepo.RevokeAllForUser(ctx, user.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions after password change",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishPasswordChanged(ctx, user.ID, user.Email); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish password-changed event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.String("user_id", user.ID),
	)

	return nil
}

// ForgotPassword mints a single-use reset token and publishes the reset
// email. An unknown email returns success so account existence is not
// revealed; a delivery failure for a known account is surfaced because the
// user is waiting for the email.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("get user for password reset: %w", err)
	}

	secret, err := newOpaqueSecret()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	expiresAt := time.Now().UTC().Add(s.cfg.ResetTTL)
	if err := s.userRepo.SetResetToken(ctx, user.ID, hashToken(secret), expiresAt); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	resetLink := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.AppBaseURL, secret)
	if err := s.producer.PublishPasswordResetRequested(ctx, user, resetLink); err != nil {
		return apperrors.DeliveryFailed(err)
	}

	s.logger.InfoContext(ctx, "password reset requested",
		slog.String("user_id", user.ID),
	)

	return nil
}

// ResetPassword spends a reset token and sets the new password. The token
// match, expiry check, password write, and token clear are one atomic
// operation, so a token can be used exactly once. All live sessions for the
// user are revoked afterwards.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return apperrors.InvalidResetToken()
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	userID, err := s.userRepo.ConsumeResetToken(ctx, hashToken(token), string(hashed), time.Now().UTC())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.InvalidResetToken()
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	if err := s.refreshRepo.RevokeAllForUser(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions after password reset",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	if user, err := s.userRepo.GetByID(ctx, userID); err == nil {
		if err := s.producer.PublishPasswordChanged(ctx, user.ID, user.Email); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish password-changed event",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "password reset completed",
		slog.String("user_id", userID),
	)

	return nil
}

// GetProfile retrieves the account behind a verified token subject.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.UserNotFound()
		}
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return user, nil
}

// --- Helpers ---

// openSession mints an access token and an opaque refresh secret, storing
// only the secret's hash.
func (s *AuthService) openSession(ctx context.Context, user *domain.User) (*domain.SessionTokens, error) {
	accessToken, err := s.issueAccess(user)
	if err != nil {
		return nil, err
	}

	secret, err := newOpaqueSecret()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	expiresAt := time.Now().UTC().Add(s.cfg.RefreshTTL)
	if err := s.refreshRepo.Create(ctx, user.ID, hashToken(secret), expiresAt); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.SessionTokens{
		AccessToken:  accessToken,
		RefreshToken: secret,
	}, nil
}

func (s *AuthService) issueAccess(user *domain.User) (string, error) {
	accessToken, err := s.issuer.Issue(auth.Identity{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	})
	if err != nil {
		if errors.Is(err, auth.ErrNoSigningKey) {
			return "", apperrors.Configuration(err)
		}
		return "", fmt.Errorf("issue access token: %w", err)
	}
	return accessToken, nil
}

// newOpaqueSecret returns a URL-safe random secret with 256 bits of entropy.
func newOpaqueSecret() (string, error) {
	buf := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// hashToken returns the SHA-256 hex digest of a token secret. Only digests
// are persisted.
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// validatePassword checks minimum password complexity.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}
