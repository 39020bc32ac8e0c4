package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lumastudio/auth-service/internal/apperrors"
	"github.com/lumastudio/auth-service/internal/auth"
	"github.com/lumastudio/auth-service/internal/domain"
	"github.com/lumastudio/auth-service/internal/logger"
	"github.com/lumastudio/auth-service/internal/service"
)

type contextKey string

const userContextKey contextKey = "auth_user"

// UserFromContext returns the authenticated user stored by Authenticate, or
// nil when the request is unauthenticated.
func UserFromContext(ctx context.Context) *domain.User {
	if u, ok := ctx.Value(userContextKey).(*domain.User); ok {
		return u
	}
	return nil
}

// Authenticate verifies the access token from the bearer header or session
// cookie and loads the account behind its subject. Outcomes map one-to-one
// onto error codes: no credential, expired, malformed, missing key material,
// and a subject that no longer exists are all distinct to the client.
func Authenticate(verifier *auth.Verifier, svc *service.AuthService, fallback *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := AccessTokenFromRequest(r)
			if tokenString == "" {
				writeAppError(w, r, apperrors.NoTokenProvided(), fallback)
				return
			}

			claims, status := verifier.Verify(tokenString)
			switch status {
			case auth.VerifyOK:
			case auth.VerifyExpired:
				writeAppError(w, r, apperrors.TokenExpired(), fallback)
				return
			case auth.VerifyConfigMissing:
				writeAppError(w, r, apperrors.Configuration(auth.ErrNoVerificationKey), fallback)
				return
			default:
				writeAppError(w, r, apperrors.InvalidToken(), fallback)
				return
			}

			user, err := svc.GetProfile(r.Context(), claims.Subject)
			if err != nil {
				writeAppError(w, r, err, fallback)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			ctx = logger.WithUserID(ctx, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ContentTypeJSON rejects bodies that are not declared as JSON.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "application/json") {
				writeJSON(w, http.StatusUnsupportedMediaType, response{
					Error: &errorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	AllowedOrigins []string
	Environment    string
}

// CORS sets cross-origin headers. Development (or an explicit "*") allows
// any origin; otherwise only listed origins are echoed back. Credentials are
// allowed only for explicit origins, since the session rides on cookies.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	allowWildcard := cfg.Environment == "development"
	originSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowWildcard = true
		}
		originSet[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				if _, ok := originSet[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Set("Vary", "Origin")
				} else if allowWildcard {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				}
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Correlation-ID")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
