package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ecomauth/server/internal/model"
)

// RoleRepo defines the interface for role repository operations
type RoleRepo interface {
	GetByName(ctx context.Context, name string) (model.Role, error)
}

type roleRepo struct {
	db *sql.DB
}

// NewRoleRepo creates a new RoleRepo instance
func NewRoleRepo(db *sql.DB) RoleRepo {
	return &roleRepo{db: db}
}

// GetByName retrieves a role by its seeded name
func (r *roleRepo) GetByName(ctx context.Context, name string) (model.Role, error) {
	var role model.Role
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at
		FROM roles
		WHERE name = $1
	`, name).Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Role{}, ErrNotFound
		}
		return model.Role{}, fmt.Errorf("query role by name: %w", err)
	}
	return role, nil
}
