package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// VerifyStatus is the closed set of verification outcomes. Call sites switch
// on the status instead of inspecting library error types.
type VerifyStatus int

const (
	// VerifyOK: signature and claims are valid.
	VerifyOK VerifyStatus = iota

	// VerifyExpired: the token was well formed and correctly signed but its
	// validity window has passed. Clients should attempt a refresh.
	VerifyExpired

	// VerifyMalformed: bad structure, bad signature, wrong algorithm, or a
	// key id the production resolver does not know.
	VerifyMalformed

	// VerifyConfigMissing: no usable verification material is configured.
	// This is an operator error, not a client error.
	VerifyConfigMissing
)

func (s VerifyStatus) String() string {
	switch s {
	case VerifyOK:
		return "ok"
	case VerifyExpired:
		return "expired"
	case VerifyMalformed:
		return "malformed"
	case VerifyConfigMissing:
		return "config_missing"
	default:
		return "unknown"
	}
}

// Verifier validates access tokens against the loaded key material.
type Verifier struct {
	keys *KeyMaterial
}

// NewVerifier creates a verifier for the given key material.
func NewVerifier(keys *KeyMaterial) *Verifier {
	return &Verifier{keys: keys}
}

// Verify parses and validates the token, returning its claims on success.
// The claims pointer is non-nil only when the status is VerifyOK.
func (v *Verifier) Verify(tokenString string) (*AccessClaims, VerifyStatus) {
	if !v.keys.CanVerify() {
		return nil, VerifyConfigMissing
	}

	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keys.Keyfunc)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, VerifyExpired
		case errors.Is(err, ErrNoVerificationKey):
			return nil, VerifyConfigMissing
		default:
			return nil, VerifyMalformed
		}
	}

	if !token.Valid || claims.Subject == "" {
		return nil, VerifyMalformed
	}

	return claims, VerifyOK
}
