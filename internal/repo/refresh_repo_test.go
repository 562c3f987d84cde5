package repo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshTokenRepo_DeleteNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM refresh_tokens").
		WithArgs("already-consumed").
		WillReturnResult(sqlmock.NewResult(0, 0))

	r := NewRefreshTokenRepo(db)
	err = r.Delete(context.Background(), "already-consumed")
	assert.ErrorIs(t, err, ErrNotFound, "zero affected rows is the replay signal")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepo_DeleteAffectedRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM refresh_tokens").
		WithArgs("live-token").
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := NewRefreshTokenRepo(db)
	assert.NoError(t, r.Delete(context.Background(), "live-token"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepo_GetWithUserRoleNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM refresh_tokens").
		WithArgs("unknown").
		WillReturnError(sql.ErrNoRows)

	r := NewRefreshTokenRepo(db)
	_, _, _, err = r.GetWithUserRole(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expiresAt := time.Now().Add(7 * 24 * time.Hour)
	createdAt := time.Now()
	mock.ExpectQuery("INSERT INTO refresh_tokens").
		WithArgs("new-token", int64(1), int64(2), expiresAt).
		WillReturnRows(sqlmock.NewRows([]string{"token", "user_id", "device_id", "expires_at", "created_at"}).
			AddRow("new-token", int64(1), int64(2), expiresAt, createdAt))

	r := NewRefreshTokenRepo(db)
	rec, err := r.Create(context.Background(), "new-token", 1, 2, expiresAt)
	require.NoError(t, err)
	assert.Equal(t, "new-token", rec.Token)
	assert.Equal(t, int64(1), rec.UserID)
	assert.Equal(t, int64(2), rec.DeviceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
