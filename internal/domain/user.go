package domain

import (
	"time"
)

// User represents a registered account.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Name         string `json:"name,omitempty"`
	Role         string `json:"role"`

	// A reset request is outstanding iff PasswordResetTokenHash is non-nil.
	// Both fields are cleared in the same update that writes the new
	// password hash, so a reset token can never be consumed twice.
	PasswordResetTokenHash *string    `json:"-"`
	PasswordResetExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RefreshToken is a stored refresh credential. Only the SHA-256 digest of
// the opaque secret is ever persisted; the plaintext exists exactly once, in
// the response that hands it to the client.
type RefreshToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Usable reports whether the refresh token is still valid at the given time.
func (rt *RefreshToken) Usable(now time.Time) bool {
	return rt.RevokedAt == nil && rt.ExpiresAt.After(now)
}

// SessionTokens holds the pair of credentials minted for one session: a
// short-lived signed access token and a long-lived opaque refresh secret.
type SessionTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
