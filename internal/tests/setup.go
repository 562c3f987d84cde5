package tests

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/ecomauth/server/internal/db"
)

// RunMigrations runs goose Up over the embedded migration files, so the test
// working directory does not matter.
func RunMigrations(database *sql.DB) error {
	goose.SetBaseFS(db.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(database, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// TruncateAuthTables truncates auth-related tables for a clean test state.
// Roles are seeded by migration and left alone.
func TruncateAuthTables(ctx context.Context, database *sql.DB) error {
	_, err := database.ExecContext(ctx,
		"TRUNCATE TABLE refresh_tokens, devices, verification_codes, users RESTART IDENTITY CASCADE")
	if err != nil {
		return fmt.Errorf("truncate auth tables: %w", err)
	}
	return nil
}

// CaptureSender records OTP codes instead of sending email, so integration
// tests can complete code-gated flows.
type CaptureSender struct {
	mu    sync.Mutex
	codes map[string]string // email -> last code
}

// NewCaptureSender creates an empty CaptureSender.
func NewCaptureSender() *CaptureSender {
	return &CaptureSender{codes: make(map[string]string)}
}

// SendOTP records the code for later retrieval.
func (c *CaptureSender) SendOTP(_ context.Context, to, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[to] = code
	return nil
}

// LastCode returns the most recent code sent to the address.
func (c *CaptureSender) LastCode(to string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[to]
}
