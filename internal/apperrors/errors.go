// Package apperrors defines the error taxonomy for the auth service.
//
// Every failure the HTTP boundary can surface is represented as an AppError
// carrying a stable machine-readable code and an HTTP status. The generic
// codes (INVALID_CREDENTIALS, INVALID_REFRESH_TOKEN,
// INVALID_OR_EXPIRED_RESET_TOKEN) intentionally collapse multiple internal
// sub-conditions so that callers cannot distinguish which part of a
// credential was wrong.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for errors.Is checks across layers.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrConfiguration = errors.New("configuration error")
	ErrInternal      = errors.New("internal error")
)

// AppError is a structured application error with an HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// InvalidInput creates a 400 error for a malformed or incomplete request.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// DuplicateEmail creates a 409 error for a registration conflict. The
// colliding address is echoed back; registration is the one flow where
// revealing account existence is unavoidable.
func DuplicateEmail(email string) *AppError {
	return &AppError{
		Code:    "DUPLICATE_EMAIL",
		Message: fmt.Sprintf("an account with email %q already exists", email),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidCredentials creates a 401 error for a failed login. The message is
// identical for unknown email and wrong password.
func InvalidCredentials() *AppError {
	return &AppError{
		Code:    "INVALID_CREDENTIALS",
		Message: "invalid email or password",
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// InvalidRefreshToken creates a 401 error for a missing, expired, or revoked
// refresh credential. The three cases are indistinguishable externally.
func InvalidRefreshToken() *AppError {
	return &AppError{
		Code:    "INVALID_REFRESH_TOKEN",
		Message: "invalid or expired refresh token",
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// InvalidResetToken creates a 400 error for a wrong, expired, or already
// consumed password-reset token. The three cases are indistinguishable
// externally.
func InvalidResetToken() *AppError {
	return &AppError{
		Code:    "INVALID_OR_EXPIRED_RESET_TOKEN",
		Message: "invalid or expired password reset token",
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// NoTokenProvided creates a 401 error for a request with no access credential.
func NoTokenProvided() *AppError {
	return &AppError{
		Code:    "NO_TOKEN_PROVIDED",
		Message: "access denied: no token provided",
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// TokenExpired creates a 401 error for an expired access credential. Clients
// receiving this code should attempt a refresh.
func TokenExpired() *AppError {
	return &AppError{
		Code:    "TOKEN_EXPIRED",
		Message: "access token expired",
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// InvalidToken creates a 400 error for a malformed or tampered access
// credential (bad signature, wrong algorithm, broken structure).
func InvalidToken() *AppError {
	return &AppError{
		Code:    "INVALID_TOKEN",
		Message: "invalid token",
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// UserNotFound creates a 401 error for a valid token whose subject no longer
// exists.
func UserNotFound() *AppError {
	return &AppError{
		Code:    "USER_NOT_FOUND",
		Message: "user for this token no longer exists",
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// WrongPassword creates a 401 error for a password change with an incorrect
// current password.
func WrongPassword() *AppError {
	return &AppError{
		Code:    "INVALID_CREDENTIALS",
		Message: "current password is incorrect",
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Configuration creates a 500 error for operator misconfiguration (no usable
// key material). It is never blamed on the caller; the wrapped detail is for
// server-side logs only.
func Configuration(err error) *AppError {
	return &AppError{
		Code:    "JWT_CONFIG_MISSING",
		Message: "authentication is misconfigured",
		Status:  http.StatusInternalServerError,
		Err:     fmt.Errorf("%w: %w", ErrConfiguration, err),
	}
}

// DeliveryFailed creates a 500 error for a failed reset-email dispatch. This
// is the one reset-flow failure that is observable, since the user is
// waiting for an email.
func DeliveryFailed(err error) *AppError {
	return &AppError{
		Code:    "DELIVERY_FAILED",
		Message: "failed to send password reset email",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Internal creates a generic 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
