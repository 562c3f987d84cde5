package auth

import (
	"context"
	"sync"

	"github.com/ecomauth/server/internal/model"
	"github.com/ecomauth/server/internal/repo"
)

// RoleCache resolves the default Client role id once and keeps it for the
// process lifetime. Roles are seeded by migration and immutable afterwards;
// if role mutation is ever supported this cache must be bypassed.
type RoleCache struct {
	roles repo.RoleRepo

	mu       sync.Mutex
	clientID int64
}

// NewRoleCache creates a RoleCache over the role repository.
func NewRoleCache(roles repo.RoleRepo) *RoleCache {
	return &RoleCache{roles: roles}
}

// ClientRoleID returns the id of the Client role, querying at most once on
// success. A failed lookup is retried on the next call.
func (c *RoleCache) ClientRoleID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clientID != 0 {
		return c.clientID, nil
	}
	role, err := c.roles.GetByName(ctx, model.RoleClient)
	if err != nil {
		return 0, err
	}
	c.clientID = role.ID
	return c.clientID, nil
}
