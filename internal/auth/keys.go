// Package auth implements access-token issuance and verification: key
// material selection with multi-key rotation, RS256 signing with an HS256
// fallback outside production, and a closed verification result type.
package auth

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lumastudio/auth-service/internal/config"
)

// Errors distinguishing operator misconfiguration from invalid tokens.
// Callers surface these as a configuration error, never as a client fault.
var (
	ErrNoSigningKey      = errors.New("auth: no usable signing key configured")
	ErrNoVerificationKey = errors.New("auth: no usable verification key configured")
)

// errUnknownKeyID is returned when a production resolver sees a token whose
// kid does not match any configured key. It is deliberately NOT a
// configuration error: the config is fine, the token is not.
var errUnknownKeyID = errors.New("auth: token signed with unknown key id")

// KeyMaterial is the process-wide signing and verification material, loaded
// once at startup and immutable thereafter. It is passed by dependency
// injection into the issuer and verifier; there is no package-level state.
type KeyMaterial struct {
	production  bool
	privateKey  *rsa.PrivateKey
	activeKeyID string

	// publicKeys maps kid to verification key when a rotation map is
	// configured. keyOrder holds the kids sorted lexicographically so the
	// non-production fallback for an unmatched kid is deterministic.
	publicKeys map[string]*rsa.PublicKey
	keyOrder   []string

	singlePublic *rsa.PublicKey
	secret       []byte
}

// LoadKeyMaterial parses and validates the configured key material eagerly.
// Malformed PEM blocks or kid-map JSON fail startup rather than the first
// request.
func LoadKeyMaterial(cfg *config.Config) (*KeyMaterial, error) {
	km := &KeyMaterial{
		production:  cfg.IsProduction(),
		activeKeyID: cfg.JWTKeyID,
	}

	if cfg.JWTPrivateKeyPEM != "" {
		key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.JWTPrivateKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse JWT_PRIVATE_KEY: %w", err)
		}
		km.privateKey = key
	}

	if cfg.JWTPublicKeysRaw != "" {
		var pems map[string]string
		if err := json.Unmarshal([]byte(cfg.JWTPublicKeysRaw), &pems); err != nil {
			return nil, fmt.Errorf("parse JWT_PUBLIC_KEYS as JSON kid map: %w", err)
		}
		if len(pems) == 0 {
			return nil, fmt.Errorf("JWT_PUBLIC_KEYS is set but contains no keys")
		}
		km.publicKeys = make(map[string]*rsa.PublicKey, len(pems))
		for kid, pemBlock := range pems {
			key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemBlock))
			if err != nil {
				return nil, fmt.Errorf("parse JWT_PUBLIC_KEYS entry %q: %w", kid, err)
			}
			km.publicKeys[kid] = key
			km.keyOrder = append(km.keyOrder, kid)
		}
		sort.Strings(km.keyOrder)
	}

	if cfg.JWTPublicKeyPEM != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.JWTPublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse JWT_PUBLIC_KEY: %w", err)
		}
		km.singlePublic = key
	}

	if cfg.JWTSecret != "" {
		if km.production && km.privateKey == nil {
			return nil, fmt.Errorf("symmetric JWT_SECRET is not permitted as signing material in %q mode", cfg.Environment)
		}
		km.secret = []byte(cfg.JWTSecret)
	}

	if cfg.JWTKeyID != "" && km.publicKeys != nil {
		if _, ok := km.publicKeys[cfg.JWTKeyID]; !ok {
			return nil, fmt.Errorf("JWT_KEY_ID %q has no matching entry in JWT_PUBLIC_KEYS", cfg.JWTKeyID)
		}
	}

	return km, nil
}

// SigningKey selects the method, key, and kid for signing a new token.
// Asymmetric material always wins; the symmetric secret is permitted only
// outside production. The kid is returned only when explicitly configured.
func (km *KeyMaterial) SigningKey() (jwt.SigningMethod, any, string, error) {
	if km.privateKey != nil {
		return jwt.SigningMethodRS256, km.privateKey, km.activeKeyID, nil
	}
	if !km.production && len(km.secret) > 0 {
		return jwt.SigningMethodHS256, km.secret, "", nil
	}
	return nil, nil, "", ErrNoSigningKey
}

// CanVerify reports whether any verification material is configured at all.
func (km *KeyMaterial) CanVerify() bool {
	if len(km.publicKeys) > 0 || km.singlePublic != nil {
		return true
	}
	return !km.production && len(km.secret) > 0
}

// Keyfunc selects the verification key for an incoming token based on its
// header. Selection order:
//
//  1. kid map configured: matching kid wins; an unmatched or missing kid is
//     rejected in production and falls back to the first configured key
//     (sorted by kid) otherwise.
//  2. single public key configured: used regardless of kid.
//  3. symmetric secret: accepted only outside production and only when no
//     asymmetric key is configured, closing the HS256/RS256 confusion hole.
func (km *KeyMaterial) Keyfunc(token *jwt.Token) (any, error) {
	_, isHMAC := token.Method.(*jwt.SigningMethodHMAC)
	_, isRSA := token.Method.(*jwt.SigningMethodRSA)
	if !isHMAC && !isRSA {
		return nil, fmt.Errorf("auth: unexpected signing method %v", token.Header["alg"])
	}

	if len(km.publicKeys) > 0 || km.singlePublic != nil {
		if !isRSA {
			return nil, fmt.Errorf("auth: token alg %v does not match configured asymmetric keys", token.Header["alg"])
		}
		return km.asymmetricKeyFor(token)
	}

	if len(km.secret) > 0 && !km.production {
		if !isHMAC {
			return nil, fmt.Errorf("auth: token alg %v does not match configured symmetric secret", token.Header["alg"])
		}
		return km.secret, nil
	}

	return nil, ErrNoVerificationKey
}

func (km *KeyMaterial) asymmetricKeyFor(token *jwt.Token) (any, error) {
	kid, _ := token.Header["kid"].(string)

	if len(km.publicKeys) > 0 {
		if kid != "" {
			if key, ok := km.publicKeys[kid]; ok {
				return key, nil
			}
		}
		if km.production {
			return nil, fmt.Errorf("%w: %q", errUnknownKeyID, kid)
		}
		return km.publicKeys[km.keyOrder[0]], nil
	}

	// Single key: the kid header, if any, is ignored.
	return km.singlePublic, nil
}
