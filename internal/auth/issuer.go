package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenIssuerName is the iss claim stamped on every access token.
const tokenIssuerName = "studio-auth"

// Identity is the verified caller identity an access token is minted for.
type Identity struct {
	ID    string
	Email string
	Name  string
	Role  string
}

// AccessClaims are the claims carried by an access token. The token is
// ephemeral and never persisted.
type AccessClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer builds and signs short-lived access tokens.
type TokenIssuer struct {
	keys *KeyMaterial
	ttl  time.Duration
}

// NewTokenIssuer creates an issuer minting tokens valid for ttl.
func NewTokenIssuer(keys *KeyMaterial, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{keys: keys, ttl: ttl}
}

// TTL returns the configured access-token lifetime.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue creates a signed access token for the given identity. The expiry is
// always set; the kid header is included only when a key identifier is
// explicitly configured. Returns ErrNoSigningKey when no usable signing
// material exists.
func (i *TokenIssuer) Issue(identity Identity) (string, error) {
	method, key, kid, err := i.keys.SigningKey()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	claims := &AccessClaims{
		Email: identity.Email,
		Name:  identity.Name,
		Role:  identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			Issuer:    tokenIssuerName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(method, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return signed, nil
}
