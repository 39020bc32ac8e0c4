package service

import (
	"context"
	"encoding/hex"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lumastudio/auth-service/internal/apperrors"
	"github.com/lumastudio/auth-service/internal/auth"
	"github.com/lumastudio/auth-service/internal/config"
	"github.com/lumastudio/auth-service/internal/domain"
)

// --- Mock user repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *mockUserRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, id, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *mockUserRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error) {
	args := m.Called(ctx, tokenHash, passwordHash, now)
	return args.String(0), args.Error(1)
}

// --- Mock refresh token repository ---

type mockRefreshTokenRepository struct {
	mock.Mock
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// --- Mock event producer ---

type mockEventProducer struct {
	mock.Mock
}

func (m *mockEventProducer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockEventProducer) PublishPasswordChanged(ctx context.Context, userID, email string) error {
	args := m.Called(ctx, userID, email)
	return args.Error(0)
}

func (m *mockEventProducer) PublishPasswordResetRequested(ctx context.Context, user *domain.User, resetLink string) error {
	args := m.Called(ctx, user, resetLink)
	return args.Error(0)
}

// --- Fixtures ---

type serviceFixture struct {
	svc         *AuthService
	userRepo    *mockUserRepository
	refreshRepo *mockRefreshTokenRepository
	producer    *mockEventProducer
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()

	km, err := auth.LoadKeyMaterial(&config.Config{JWTSecret: "test-secret"})
	require.NoError(t, err)

	f := &serviceFixture{
		userRepo:    &mockUserRepository{},
		refreshRepo: &mockRefreshTokenRepository{},
		producer:    &mockEventProducer{},
	}
	f.svc = NewAuthService(
		f.userRepo,
		f.refreshRepo,
		auth.NewTokenIssuer(km, time.Hour),
		f.producer,
		slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
		Config{
			RefreshTTL: 30 * 24 * time.Hour,
			ResetTTL:   time.Hour,
			AppBaseURL: "http://localhost:5173",
		},
	)
	return f
}

func hashedPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func existingUser(t *testing.T) *domain.User {
	return &domain.User{
		ID:           "user-1",
		Email:        "alice@example.com",
		PasswordHash: hashedPassword(t, "Correct1pass"),
		Name:         "Alice",
		Role:         domain.RoleUser,
	}
}

func isHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.userRepo.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == "alice@example.com" &&
			u.Role == domain.RoleUser &&
			bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("Sup3rsecret")) == nil
	})).Return(nil)
	f.refreshRepo.On("Create", ctx, mock.Anything, mock.MatchedBy(isHexDigest), mock.Anything).Return(nil)
	f.producer.On("PublishUserRegistered", ctx, mock.Anything).Return(nil)

	user, tokens, err := f.svc.Register(ctx, RegisterInput{
		Email:    "alice@example.com",
		Password: "Sup3rsecret",
		Name:     "Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.NotEqual(t, tokens.AccessToken, tokens.RefreshToken)

	f.userRepo.AssertExpectations(t)
	f.refreshRepo.AssertExpectations(t)
	f.producer.AssertExpectations(t)
}

func TestRegister_WeakPasswordRejected(t *testing.T) {
	f := newFixture(t)

	for _, password := range []string{"short1A", "alllowercase1", "ALLUPPERCASE1", "NoDigitsHere"} {
		_, _, err := f.svc.Register(context.Background(), RegisterInput{
			Email:    "alice@example.com",
			Password: password,
			Name:     "Alice",
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "password %q", password)
	}

	f.userRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_EventFailureDoesNotFailRegistration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.userRepo.On("Create", ctx, mock.Anything).Return(nil)
	f.refreshRepo.On("Create", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.producer.On("PublishUserRegistered", ctx, mock.Anything).Return(assert.AnError)

	_, tokens, err := f.svc.Register(ctx, RegisterInput{
		Email:    "alice@example.com",
		Password: "Sup3rsecret",
		Name:     "Alice",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
}

func TestRegister_DuplicateEmailPassesThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.userRepo.On("Create", ctx, mock.Anything).Return(apperrors.DuplicateEmail("alice@example.com"))

	_, _, err := f.svc.Register(ctx, RegisterInput{
		Email:    "alice@example.com",
		Password: "Sup3rsecret",
		Name:     "Alice",
	})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := existingUser(t)

	f.userRepo.On("GetByEmail", ctx, u.Email).Return(u, nil)
	f.refreshRepo.On("Create", ctx, u.ID, mock.MatchedBy(isHexDigest), mock.Anything).Return(nil)

	user, tokens, err := f.svc.Login(ctx, LoginInput{Email: u.Email, Password: "Correct1pass"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, user.ID)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
}

func TestLogin_UnknownEmailAndWrongPasswordIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := existingUser(t)

	f.userRepo.On("GetByEmail", ctx, "nobody@example.com").Return(nil, apperrors.ErrNotFound)
	f.userRepo.On("GetByEmail", ctx, u.Email).Return(u, nil)

	_, _, errUnknown := f.svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "Whatever1x"})
	_, _, errWrong := f.svc.Login(ctx, LoginInput{Email: u.Email, Password: "Wrong1password"})

	var appUnknown, appWrong *apperrors.AppError
	require.ErrorAs(t, errUnknown, &appUnknown)
	require.ErrorAs(t, errWrong, &appWrong)
	assert.Equal(t, appUnknown.Code, appWrong.Code)
	assert.Equal(t, appUnknown.Message, appWrong.Message)
}

// --- Refresh ---

func TestRefresh_SuccessDoesNotRotate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := existingUser(t)
	now := time.Now().UTC()

	stored := &domain.RefreshToken{
		ID:        "rt-1",
		UserID:    u.ID,
		ExpiresAt: now.Add(time.Hour),
	}
	f.refreshRepo.On("GetByHash", ctx, mock.MatchedBy(isHexDigest)).Return(stored, nil)
	f.userRepo.On("GetByID", ctx, u.ID).Return(u, nil)

	user, accessToken, err := f.svc.Refresh(ctx, "some-opaque-secret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, user.ID)
	assert.NotEmpty(t, accessToken)

	// The refresh token stays valid: no revocation, no replacement.
	f.refreshRepo.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything)
	f.refreshRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRefresh_UnknownExpiredAndRevokedIndistinguishable(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	revokedAt := now.Add(-time.Minute)

	cases := map[string]struct {
		stored *domain.RefreshToken
		err    error
	}{
		"unknown": {nil, apperrors.ErrNotFound},
		"expired": {&domain.RefreshToken{UserID: "user-1", ExpiresAt: now.Add(-time.Hour)}, nil},
		"revoked": {&domain.RefreshToken{UserID: "user-1", ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt}, nil},
	}

	var codes []string
	for name, tc := range cases {
		f := newFixture(t)
		f.refreshRepo.On("GetByHash", ctx, mock.Anything).Return(tc.stored, tc.err)

		_, _, err := f.svc.Refresh(ctx, "secret-"+name)
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr, name)
		codes = append(codes, appErr.Code)
	}

	assert.Equal(t, codes[0], codes[1])
	assert.Equal(t, codes[1], codes[2])
}

func TestRefresh_UserGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored := &domain.RefreshToken{UserID: "gone", ExpiresAt: time.Now().UTC().Add(time.Hour)}
	f.refreshRepo.On("GetByHash", ctx, mock.Anything).Return(stored, nil)
	f.userRepo.On("GetByID", ctx, "gone").Return(nil, apperrors.ErrNotFound)

	_, _, err := f.svc.Refresh(ctx, "some-secret")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVALID_REFRESH_TOKEN", appErr.Code)
}

// --- Logout ---

func TestLogout_RevokesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.refreshRepo.On("Revoke", ctx, mock.MatchedBy(isHexDigest)).Return(nil)

	require.NoError(t, f.svc.Logout(ctx, "some-secret"))
	f.refreshRepo.AssertExpectations(t)
}

func TestLogout_NoTokenIsNoop(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.Logout(context.Background(), ""))
	f.refreshRepo.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything)
}

// --- ChangePassword ---

func TestChangePassword_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := existingUser(t)

	f.userRepo.On("GetByID", ctx, u.ID).Return(u, nil)
	f.userRepo.On("UpdatePassword", ctx, u.ID, mock.MatchedBy(func(hash string) bool {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte("N3wpassword")) == nil
	})).Return(nil)
	f.refreshRepo.On("RevokeAllForUser", ctx, u.ID).Return(nil)
	f.producer.On("PublishPasswordChanged", ctx, u.ID, u.Email).Return(nil)

	require.NoError(t, f.svc.ChangePassword(ctx, u.ID, "Correct1pass", "N3wpassword"))
	f.userRepo.AssertExpectations(t)
	f.refreshRepo.AssertExpectations(t)
}

func TestChangePassword_WrongCurrentPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := existingUser(t)

	f.userRepo.On("GetByID", ctx, u.ID).Return(u, nil)

	err := f.svc.ChangePassword(ctx, u.ID, "Wrong1password", "N3wpassword")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVALID_CREDENTIALS", appErr.Code)
	f.userRepo.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
}

// --- ForgotPassword ---

func TestForgotPassword_UnknownEmailSucceedsSilently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.userRepo.On("GetByEmail", ctx, "nobody@example.com").Return(nil, apperrors.ErrNotFound)

	require.NoError(t, f.svc.ForgotPassword(ctx, "nobody@example.com"))
	f.userRepo.AssertNotCalled(t, "SetResetToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.producer.AssertNotCalled(t, "PublishPasswordResetRequested", mock.Anything, mock.Anything, mock.Anything)
}

func TestForgotPassword_StoresHashAndSendsLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := existingUser(t)

	f.userRepo.On("GetByEmail", ctx, u.Email).Return(u, nil)
	f.userRepo.On("SetResetToken", ctx, u.ID, mock.MatchedBy(isHexDigest), mock.MatchedBy(func(expires time.Time) bool {
		return expires.After(time.Now().UTC().Add(50 * time.Minute))
	})).Return(nil)
	f.producer.On("PublishPasswordResetRequested", ctx, u, mock.MatchedBy(func(link string) bool {
		return len(link) > len("http://localhost:5173/reset-password?token=")
	})).Return(nil)

	require.NoError(t, f.svc.ForgotPassword(ctx, u.Email))
	f.userRepo.AssertExpectations(t)
	f.producer.AssertExpectations(t)
}

func TestForgotPassword_DeliveryFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := existingUser(t)

	f.userRepo.On("GetByEmail", ctx, u.Email).Return(u, nil)
	f.userRepo.On("SetResetToken", ctx, u.ID, mock.Anything, mock.Anything).Return(nil)
	f.producer.On("PublishPasswordResetRequested", ctx, u, mock.Anything).Return(assert.AnError)

	err := f.svc.ForgotPassword(ctx, u.Email)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "DELIVERY_FAILED", appErr.Code)
}

// --- ResetPassword ---

func TestResetPassword_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := existingUser(t)

	f.userRepo.On("ConsumeResetToken", ctx, mock.MatchedBy(isHexDigest), mock.MatchedBy(func(hash string) bool {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte("N3wpassword")) == nil
	}), mock.Anything).Return(u.ID, nil)
	f.refreshRepo.On("RevokeAllForUser", ctx, u.ID).Return(nil)
	f.userRepo.On("GetByID", ctx, u.ID).Return(u, nil)
	f.producer.On("PublishPasswordChanged", ctx, u.ID, u.Email).Return(nil)

	require.NoError(t, f.svc.ResetPassword(ctx, "the-plaintext-token", "N3wpassword"))
	f.refreshRepo.AssertExpectations(t)
}

func TestResetPassword_SpentExpiredOrUnknownToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.userRepo.On("ConsumeResetToken", ctx, mock.Anything, mock.Anything, mock.Anything).
		Return("", apperrors.ErrNotFound)

	err := f.svc.ResetPassword(ctx, "spent-token", "N3wpassword")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVALID_OR_EXPIRED_RESET_TOKEN", appErr.Code)
	f.refreshRepo.AssertNotCalled(t, "RevokeAllForUser", mock.Anything, mock.Anything)
}

func TestResetPassword_WeakPasswordRejectedBeforeConsuming(t *testing.T) {
	f := newFixture(t)

	err := f.svc.ResetPassword(context.Background(), "token", "weak")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	f.userRepo.AssertNotCalled(t, "ConsumeResetToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- GetProfile ---

func TestGetProfile_UserGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.userRepo.On("GetByID", ctx, "gone").Return(nil, apperrors.ErrNotFound)

	_, err := f.svc.GetProfile(ctx, "gone")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "USER_NOT_FOUND", appErr.Code)
}
