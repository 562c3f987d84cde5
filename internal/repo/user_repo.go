package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ecomauth/server/internal/model"
)

// UserRepo defines the interface for user repository operations
type UserRepo interface {
	Create(ctx context.Context, user model.User) (model.User, error)
	GetByID(ctx context.Context, id int64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByEmailWithRole(ctx context.Context, email string) (model.User, model.Role, error)
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
	UpdateTOTPSecret(ctx context.Context, id int64, secret string) error
	ClearTOTPSecret(ctx context.Context, id int64) error
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const userColumns = `id, email, name, password_hash, phone_number, avatar, COALESCE(totp_secret, ''), status, role_id, created_at, updated_at`

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.PasswordHash,
		&u.PhoneNumber,
		&u.Avatar,
		&u.TOTPSecret,
		&u.Status,
		&u.RoleID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// Create inserts a new user. A unique violation on email surfaces unchanged
// so callers can translate it; see IsUniqueViolation.
func (r *userRepo) Create(ctx context.Context, user model.User) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, name, password_hash, phone_number, avatar, role_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns+`
	`, user.Email, user.Name, user.PasswordHash, user.PhoneNumber, user.Avatar, user.RoleID)

	created, err := scanUser(row)
	if err != nil {
		if IsUniqueViolation(err) {
			return model.User{}, err
		}
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

// GetByID retrieves a user by ID
func (r *userRepo) GetByID(ctx context.Context, id int64) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("query user by id: %w", err)
	}
	return u, nil
}

// GetByEmail retrieves a user by email
func (r *userRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("query user by email: %w", err)
	}
	return u, nil
}

// GetByEmailWithRole retrieves a user and their role in one round trip.
func (r *userRepo) GetByEmailWithRole(ctx context.Context, email string) (model.User, model.Role, error) {
	var u model.User
	var role model.Role
	err := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.name, u.password_hash, u.phone_number, u.avatar,
		       COALESCE(u.totp_secret, ''), u.status, u.role_id, u.created_at, u.updated_at,
		       r.id, r.name, r.description, r.created_at
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.email = $1
	`, email).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.PhoneNumber, &u.Avatar,
		&u.TOTPSecret, &u.Status, &u.RoleID, &u.CreatedAt, &u.UpdatedAt,
		&role.ID, &role.Name, &role.Description, &role.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, model.Role{}, ErrNotFound
		}
		return model.User{}, model.Role{}, fmt.Errorf("query user with role: %w", err)
	}
	return u, role, nil
}

// UpdatePasswordHash replaces the user's password hash.
func (r *userRepo) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1
	`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTOTPSecret stores the user's TOTP secret (2FA enrollment).
func (r *userRepo) UpdateTOTPSecret(ctx context.Context, id int64, secret string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET totp_secret = $2, updated_at = now() WHERE id = $1
	`, id, secret)
	if err != nil {
		return fmt.Errorf("update totp secret: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearTOTPSecret removes the user's TOTP secret (2FA disable).
func (r *userRepo) ClearTOTPSecret(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET totp_secret = NULL, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("clear totp secret: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
