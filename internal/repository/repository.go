// Package repository defines the persistence interfaces for the auth service.
package repository

import (
	"context"
	"time"

	"github.com/lumastudio/auth-service/internal/domain"
)

// UserRepository defines the persistence operations for user accounts,
// including the single-use password reset state stored on the user row.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// SetResetToken stores the hash of a newly minted reset token and its
	// expiry on the user row, replacing any previous one.
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error

	// ConsumeResetToken atomically sets the new password hash and clears the
	// reset state for the user whose unexpired reset token matches tokenHash.
	// It returns the user's ID, or apperrors.ErrNotFound when no such row
	// exists. The match, the password write, and the clear happen in one
	// statement so a token can never be spent twice.
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error)
}

// RefreshTokenRepository defines the persistence operations for refresh
// tokens. Only the SHA-256 hash of a token's secret is ever stored.
type RefreshTokenRepository interface {
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// Revoke marks the token revoked. Revoking an already revoked or unknown
	// token is not an error.
	Revoke(ctx context.Context, tokenHash string) error

	// RevokeAllForUser revokes every live token belonging to the user.
	RevokeAllForUser(ctx context.Context, userID string) error
}
