package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ecomauth/server/internal/model"
)

// RefreshTokenRepo defines the interface for refresh-token records. The
// single-use rotation invariant rests on Delete's atomicity: for any token,
// only one concurrent Delete observes an affected row.
type RefreshTokenRepo interface {
	Create(ctx context.Context, token string, userID, deviceID int64, expiresAt time.Time) (model.RefreshTokenRecord, error)
	GetWithUserRole(ctx context.Context, token string) (model.RefreshTokenRecord, model.User, model.Role, error)
	Delete(ctx context.Context, token string) error
}

type refreshTokenRepo struct {
	db *sql.DB
}

// NewRefreshTokenRepo creates a new RefreshTokenRepo instance
func NewRefreshTokenRepo(db *sql.DB) RefreshTokenRepo {
	return &refreshTokenRepo{db: db}
}

// Create inserts the live record for a freshly signed refresh token.
func (r *refreshTokenRepo) Create(ctx context.Context, token string, userID, deviceID int64, expiresAt time.Time) (model.RefreshTokenRecord, error) {
	var rec model.RefreshTokenRecord
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO refresh_tokens (token, user_id, device_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING token, user_id, device_id, expires_at, created_at
	`, token, userID, deviceID, expiresAt).Scan(
		&rec.Token, &rec.UserID, &rec.DeviceID, &rec.ExpiresAt, &rec.CreatedAt,
	)
	if err != nil {
		return model.RefreshTokenRecord{}, fmt.Errorf("insert refresh token: %w", err)
	}
	return rec, nil
}

// GetWithUserRole retrieves the record joined to its owning user and role.
// ErrNotFound means the token was already consumed or never issued.
func (r *refreshTokenRepo) GetWithUserRole(ctx context.Context, token string) (model.RefreshTokenRecord, model.User, model.Role, error) {
	var rec model.RefreshTokenRecord
	var u model.User
	var role model.Role
	err := r.db.QueryRowContext(ctx, `
		SELECT t.token, t.user_id, t.device_id, t.expires_at, t.created_at,
		       u.id, u.email, u.name, u.password_hash, u.phone_number, u.avatar,
		       COALESCE(u.totp_secret, ''), u.status, u.role_id, u.created_at, u.updated_at,
		       r.id, r.name, r.description, r.created_at
		FROM refresh_tokens t
		JOIN users u ON u.id = t.user_id
		JOIN roles r ON r.id = u.role_id
		WHERE t.token = $1
	`, token).Scan(
		&rec.Token, &rec.UserID, &rec.DeviceID, &rec.ExpiresAt, &rec.CreatedAt,
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.PhoneNumber, &u.Avatar,
		&u.TOTPSecret, &u.Status, &u.RoleID, &u.CreatedAt, &u.UpdatedAt,
		&role.ID, &role.Name, &role.Description, &role.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshTokenRecord{}, model.User{}, model.Role{}, ErrNotFound
		}
		return model.RefreshTokenRecord{}, model.User{}, model.Role{}, fmt.Errorf("query refresh token: %w", err)
	}
	return rec, u, role, nil
}

// Delete removes the record. ErrNotFound when no row matched: the loser of a
// concurrent rotation race lands here, never on a silent success.
func (r *refreshTokenRepo) Delete(ctx context.Context, token string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE token = $1
	`, token)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
