package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/lumastudio/auth-service/internal/domain"
)

// Cookie names for the two session credentials.
const (
	sessionCookieName = "session"
	refreshCookieName = "refresh"
)

// CookieManager writes and clears the session cookies. Both cookies are
// httpOnly and path-scoped to the whole site; the Secure flag and a strict
// SameSite policy apply in production, SameSite=Lax otherwise so local
// cross-port development works.
type CookieManager struct {
	secure     bool
	sameSite   http.SameSite
	refreshTTL time.Duration
}

// NewCookieManager creates a cookie manager for the given environment.
func NewCookieManager(production bool, refreshTTL time.Duration) *CookieManager {
	sameSite := http.SameSiteLaxMode
	if production {
		sameSite = http.SameSiteStrictMode
	}
	return &CookieManager{
		secure:     production,
		sameSite:   sameSite,
		refreshTTL: refreshTTL,
	}
}

// Set writes both session cookies. The access-token cookie has no Max-Age
// and dies with the browser session; the refresh cookie lives as long as the
// refresh token it carries.
func (c *CookieManager) Set(w http.ResponseWriter, tokens *domain.SessionTokens) {
	c.SetAccess(w, tokens.AccessToken)
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    tokens.RefreshToken,
		Path:     "/",
		MaxAge:   int(c.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: c.sameSite,
	})
}

// SetAccess writes only the access-token cookie, used when a refresh mints a
// new access token without touching the refresh credential.
func (c *CookieManager) SetAccess(w http.ResponseWriter, accessToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    accessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: c.sameSite,
	})
}

// Clear expires both cookies.
func (c *CookieManager) Clear(w http.ResponseWriter) {
	for _, name := range []string{sessionCookieName, refreshCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   c.secure,
			SameSite: c.sameSite,
		})
	}
}

// AccessTokenFromRequest extracts the access token, preferring a bearer
// Authorization header over the session cookie.
func AccessTokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// RefreshTokenFromRequest extracts the refresh secret from its cookie.
func RefreshTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
