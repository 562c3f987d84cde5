package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ecomauth/server/internal/model"
)

// VerificationCodeRepo defines the interface for verification-code rows.
type VerificationCodeRepo interface {
	Upsert(ctx context.Context, email string, purpose model.CodePurpose, code string, expiresAt time.Time) (model.VerificationCode, error)
	Get(ctx context.Context, email string, purpose model.CodePurpose) (model.VerificationCode, error)
	Delete(ctx context.Context, email string, purpose model.CodePurpose) error
}

type verificationCodeRepo struct {
	db *sql.DB
}

// NewVerificationCodeRepo creates a new VerificationCodeRepo instance
func NewVerificationCodeRepo(db *sql.DB) VerificationCodeRepo {
	return &verificationCodeRepo{db: db}
}

// Upsert creates the code row for (email, purpose), overwriting the code and
// expiry of any live row rather than inserting a duplicate.
func (r *verificationCodeRepo) Upsert(ctx context.Context, email string, purpose model.CodePurpose, code string, expiresAt time.Time) (model.VerificationCode, error) {
	var vc model.VerificationCode
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO verification_codes (email, code, purpose, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email, purpose)
		DO UPDATE SET code = EXCLUDED.code, expires_at = EXCLUDED.expires_at
		RETURNING id, email, code, purpose, expires_at, created_at
	`, email, code, purpose, expiresAt).Scan(
		&vc.ID, &vc.Email, &vc.Code, &vc.Purpose, &vc.ExpiresAt, &vc.CreatedAt,
	)
	if err != nil {
		return model.VerificationCode{}, fmt.Errorf("upsert verification code: %w", err)
	}
	return vc, nil
}

// Get retrieves the live code row for (email, purpose)
func (r *verificationCodeRepo) Get(ctx context.Context, email string, purpose model.CodePurpose) (model.VerificationCode, error) {
	var vc model.VerificationCode
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, code, purpose, expires_at, created_at
		FROM verification_codes
		WHERE email = $1 AND purpose = $2
	`, email, purpose).Scan(
		&vc.ID, &vc.Email, &vc.Code, &vc.Purpose, &vc.ExpiresAt, &vc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.VerificationCode{}, ErrNotFound
		}
		return model.VerificationCode{}, fmt.Errorf("query verification code: %w", err)
	}
	return vc, nil
}

// Delete removes the code row for (email, purpose)
func (r *verificationCodeRepo) Delete(ctx context.Context, email string, purpose model.CodePurpose) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM verification_codes WHERE email = $1 AND purpose = $2
	`, email, purpose)
	if err != nil {
		return fmt.Errorf("delete verification code: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
