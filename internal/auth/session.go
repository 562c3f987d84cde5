package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ecomauth/server/internal/model"
	"github.com/ecomauth/server/internal/repo"
)

// TokenPair is a freshly minted access/refresh token pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SessionRegistry tracks devices and refresh-token records. It exclusively
// owns the create/delete lifecycle of refresh-token records and enforces the
// single-use rotation invariant through the repository's atomic delete.
type SessionRegistry struct {
	codec   *TokenCodec
	devices repo.DeviceRepo
	refresh repo.RefreshTokenRepo
}

// NewSessionRegistry creates a SessionRegistry.
func NewSessionRegistry(codec *TokenCodec, devices repo.DeviceRepo, refresh repo.RefreshTokenRepo) *SessionRegistry {
	return &SessionRegistry{codec: codec, devices: devices, refresh: refresh}
}

// RegisterDevice creates a new active device row for the login context.
func (s *SessionRegistry) RegisterDevice(ctx context.Context, userID int64, userAgent, ip string) (model.Device, error) {
	return s.devices.Create(ctx, userID, userAgent, ip)
}

// IssueSession signs an access and a refresh token, then persists the
// refresh-token record with the expiry decoded from the signed token.
// The two signing calls have no data dependency and run concurrently; the
// record write waits for the refresh token (sign, decode expiry, persist).
func (s *SessionRegistry) IssueSession(ctx context.Context, userID, deviceID, roleID int64, roleName string) (TokenPair, error) {
	var accessToken, refreshToken string
	var refreshExpiry time.Time

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accessToken, err = s.codec.SignAccess(userID, deviceID, roleID, roleName)
		return err
	})
	g.Go(func() error {
		token, err := s.codec.SignRefresh(userID)
		if err != nil {
			return err
		}
		claims, err := s.codec.VerifyRefresh(token)
		if err != nil {
			return fmt.Errorf("decode refresh token: %w", err)
		}
		refreshToken = token
		refreshExpiry = claims.ExpiresAt.Time
		return nil
	})
	if err := g.Wait(); err != nil {
		return TokenPair{}, err
	}

	if _, err := s.refresh.Create(ctx, refreshToken, userID, deviceID, refreshExpiry); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Rotate consumes a refresh token exactly once and issues a replacement
// session. Verification strictly precedes any mutation. A token that
// verifies cryptographically but has no live record was already consumed or
// never issued here: that is the replay signal, ErrRefreshTokenRevoked.
func (s *SessionRegistry) Rotate(ctx context.Context, refreshToken, userAgent, ip string) (TokenPair, error) {
	if _, err := s.codec.VerifyRefresh(refreshToken); err != nil {
		return TokenPair{}, err
	}

	rec, user, role, err := s.refresh.GetWithUserRole(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return TokenPair{}, ErrRefreshTokenRevoked
		}
		return TokenPair{}, err
	}

	// The delete claims the token: of any number of concurrent rotations,
	// only the one whose delete affects a row may mint a replacement. The
	// losers observe no record and surface the revocation signal without
	// having written anything.
	if err := s.refresh.Delete(ctx, refreshToken); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return TokenPair{}, ErrRefreshTokenRevoked
		}
		return TokenPair{}, err
	}

	// Device rebind and new-session issue are independent of each other;
	// both must complete before the new pair is returned.
	var pair TokenPair
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.devices.Touch(gctx, rec.DeviceID, userAgent, ip)
	})
	g.Go(func() error {
		var err error
		pair, err = s.IssueSession(gctx, user.ID, rec.DeviceID, role.ID, role.Name)
		return err
	})
	if err := g.Wait(); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Revoke consumes a refresh token with no replacement (logout) and marks the
// bound device inactive. A second revoke of the same token fails with
// ErrRefreshTokenRevoked, never a silent success.
func (s *SessionRegistry) Revoke(ctx context.Context, refreshToken string) error {
	if _, err := s.codec.VerifyRefresh(refreshToken); err != nil {
		return err
	}

	rec, _, _, err := s.refresh.GetWithUserRole(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrRefreshTokenRevoked
		}
		return err
	}

	if err := s.refresh.Delete(ctx, refreshToken); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrRefreshTokenRevoked
		}
		return err
	}
	return s.devices.Deactivate(ctx, rec.DeviceID)
}
