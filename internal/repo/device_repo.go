package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ecomauth/server/internal/model"
)

// DeviceRepo defines the interface for device repository operations
type DeviceRepo interface {
	Create(ctx context.Context, userID int64, userAgent, ip string) (model.Device, error)
	Touch(ctx context.Context, id int64, userAgent, ip string) error
	Deactivate(ctx context.Context, id int64) error
}

type deviceRepo struct {
	db *sql.DB
}

// NewDeviceRepo creates a new DeviceRepo instance
func NewDeviceRepo(db *sql.DB) DeviceRepo {
	return &deviceRepo{db: db}
}

// Create inserts a new active device for a user. No dedup across
// userAgent/ip: every login context gets its own row.
func (r *deviceRepo) Create(ctx context.Context, userID int64, userAgent, ip string) (model.Device, error) {
	var d model.Device
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO devices (user_id, user_agent, ip)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, user_agent, ip, last_active, is_active, created_at
	`, userID, userAgent, ip).Scan(
		&d.ID, &d.UserID, &d.UserAgent, &d.IP, &d.LastActive, &d.IsActive, &d.CreatedAt,
	)
	if err != nil {
		return model.Device{}, fmt.Errorf("insert device: %w", err)
	}
	return d, nil
}

// Touch updates the device's userAgent/ip and bumps last_active.
func (r *deviceRepo) Touch(ctx context.Context, id int64, userAgent, ip string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET user_agent = $2, ip = $3, last_active = now() WHERE id = $1
	`, id, userAgent, ip)
	if err != nil {
		return fmt.Errorf("update device: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate flips is_active off; the row is kept for history.
func (r *deviceRepo) Deactivate(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET is_active = FALSE, last_active = now() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate device: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
