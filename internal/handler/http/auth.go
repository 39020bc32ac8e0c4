package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lumastudio/auth-service/internal/apperrors"
	"github.com/lumastudio/auth-service/internal/service"
	"github.com/lumastudio/auth-service/internal/validator"
)

// maxBodyBytes caps request bodies at 1MB.
const maxBodyBytes = 1 << 20

// AuthHandler handles the /auth endpoints.
type AuthHandler struct {
	service *service.AuthService
	cookies *CookieManager
	logger  *slog.Logger
}

// NewAuthHandler creates the auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, cookies *CookieManager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, cookies: cookies, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON body for registration.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"omitempty,max=100"`
}

// LoginRequest is the JSON body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the optional JSON body for refresh; the cookie wins when
// both are present.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ChangePasswordRequest is the JSON body for an authenticated password
// change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// ForgotPasswordRequest is the JSON body for a reset request.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the JSON body for spending a reset token.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// AuthResponse pairs the account with its freshly minted tokens.
type AuthResponse struct {
	User   any `json:"user"`
	Tokens any `json:"tokens"`
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return false
	}
	if err := validator.Validate(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	user, tokens, err := h.service.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	h.cookies.Set(w, tokens)
	writeJSON(w, http.StatusCreated, response{
		Data: AuthResponse{User: user, Tokens: tokens},
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	user, tokens, err := h.service.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	h.cookies.Set(w, tokens)
	writeJSON(w, http.StatusOK, response{
		Data: AuthResponse{User: user, Tokens: tokens},
	})
}

// Refresh handles POST /auth/refresh. The refresh secret comes from the
// refresh cookie or, failing that, the request body. Only the access token
// is renewed; the refresh credential is left untouched.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	secret := RefreshTokenFromRequest(r)
	if secret == "" {
		var req RefreshRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		// The body is optional; decoding failures just leave the secret empty.
		_ = json.NewDecoder(r.Body).Decode(&req)
		secret = req.RefreshToken
	}

	user, accessToken, err := h.service.Refresh(r.Context(), secret)
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	h.cookies.SetAccess(w, accessToken)
	writeJSON(w, http.StatusOK, response{
		Data: AuthResponse{
			User:   user,
			Tokens: map[string]string{"access_token": accessToken},
		},
	})
}

// Logout handles POST /auth/logout. It revokes the refresh token if one is
// presented and clears both cookies; it never fails on an already dead
// session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), RefreshTokenFromRequest(r)); err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, response{
		Data: map[string]string{"message": "logged out"},
	})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeAppError(w, r, apperrors.NoTokenProvided(), h.logger)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: user})
}

// ChangePassword handles POST /auth/change-password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeAppError(w, r, apperrors.NoTokenProvided(), h.logger)
		return
	}

	var req ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	// Every session was just revoked, including this one's refresh token.
	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, response{
		Data: map[string]string{"message": "password changed; please log in again"},
	})
}

// ForgotPassword handles POST /auth/forgot-password. The response is the
// same whether or not the email exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Data: map[string]string{"message": "if the email exists, a password reset link has been sent"},
	})
}

// ResetPassword handles POST /auth/reset-password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Data: map[string]string{"message": "password has been reset successfully"},
	})
}
