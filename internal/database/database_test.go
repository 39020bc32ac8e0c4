package database

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumastudio/auth-service/internal/logger"
)

func TestRetryBackoff_ExponentialWithJitter(t *testing.T) {
	for attempt := 0; attempt < 3; attempt++ {
		base := connectBaseWait << attempt // 1s, 2s, 4s
		minExpected := time.Duration(float64(base) * (1 - retryJitterFraction))
		maxExpected := time.Duration(float64(base) * (1 + retryJitterFraction))

		for i := 0; i < 20; i++ {
			d := retryBackoff(attempt)
			assert.GreaterOrEqual(t, d, minExpected)
			assert.LessOrEqual(t, d, maxExpected)
		}
	}
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, isConnectionError(nil))
	assert.True(t, isConnectionError(errStr("dial tcp 127.0.0.1:5432: connection refused")))
	assert.True(t, isConnectionError(errStr("connection reset by peer")))
	assert.True(t, isConnectionError(errStr("unexpected EOF")))
	assert.False(t, isConnectionError(errStr("syntax error at or near")))
	assert.False(t, isConnectionError(errStr("duplicate key value violates unique constraint")))
}

type errStr string

func (e errStr) Error() string { return string(e) }

func TestRunMigrations_AppliesInOrderAndSkipsApplied(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	migrations := fstest.MapFS{
		"0002_second.up.sql": {Data: []byte("CREATE TABLE second (id INT)")},
		"0001_first.up.sql":  {Data: []byte("CREATE TABLE first (id INT)")},
		"notes.txt":          {Data: []byte("ignored")},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	// 0001 not yet applied: runs inside a transaction.
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("0001_first.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE first").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs("0001_first.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	// 0002 already applied: skipped.
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("0002_second.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	err = RunMigrations(context.Background(), mock, migrations, logger.New("test", "error"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SQLErrorRollsBackAndFails(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	migrations := fstest.MapFS{
		"0001_bad.up.sql": {Data: []byte("CREATE BROKEN")},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("0001_bad.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE BROKEN").
		WillReturnError(errStr("syntax error at or near \"BROKEN\""))
	mock.ExpectRollback()

	err = RunMigrations(context.Background(), mock, migrations, logger.New("test", "error"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0001_bad.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}
