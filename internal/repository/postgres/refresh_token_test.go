package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumastudio/auth-service/internal/apperrors"
	"github.com/lumastudio/auth-service/internal/database"
)

func newRefreshRepo(t *testing.T) (*RefreshTokenRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRefreshTokenRepository(mock), mock
}

func TestRefreshTokenRepository_Create(t *testing.T) {
	repo, mock := newRefreshRepo(t)
	expires := time.Now().UTC().Add(30 * 24 * time.Hour)

	mock.ExpectExec("INSERT INTO refresh_tokens").
		WithArgs("user-1", "tokenhash", expires, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), "user-1", "tokenhash", expires))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_GetByHash(t *testing.T) {
	repo, mock := newRefreshRepo(t)
	now := time.Now().UTC()
	expires := now.Add(time.Hour)

	rows := pgxmock.NewRows([]string{
		"id", "user_id", "token_hash", "expires_at", "revoked_at", "created_at",
	}).AddRow("rt-1", "user-1", "tokenhash", expires, nil, now)

	mock.ExpectQuery("SELECT (.+) FROM refresh_tokens WHERE token_hash").
		WithArgs("tokenhash").
		WillReturnRows(rows)

	rt, err := repo.GetByHash(context.Background(), "tokenhash")
	require.NoError(t, err)
	assert.Equal(t, "user-1", rt.UserID)
	assert.Nil(t, rt.RevokedAt)
	assert.True(t, rt.Usable(now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_GetByHash_NotFound(t *testing.T) {
	repo, mock := newRefreshRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM refresh_tokens WHERE token_hash").
		WithArgs("unknown").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByHash(context.Background(), "unknown")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_Revoke_IdempotentOnZeroRows(t *testing.T) {
	repo, mock := newRefreshRepo(t)

	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").
		WithArgs(pgxmock.AnyArg(), "tokenhash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.NoError(t, repo.Revoke(context.Background(), "tokenhash"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_RevokeAllForUser(t *testing.T) {
	repo, mock := newRefreshRepo(t)

	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").
		WithArgs(pgxmock.AnyArg(), "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	assert.NoError(t, repo.RevokeAllForUser(context.Background(), "user-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
