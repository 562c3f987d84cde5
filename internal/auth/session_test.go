package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomauth/server/internal/model"
)

type sessionFixture struct {
	registry *SessionRegistry
	codec    *TokenCodec
	devices  *fakeDeviceRepo
	refresh  *fakeRefreshRepo
	users    *fakeUserRepo
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	users := newFakeUserRepo()
	_, err := users.Create(context.Background(), model.User{
		Email:        "a@x.com",
		PasswordHash: "irrelevant",
		RoleID:       2,
	})
	require.NoError(t, err)

	codec := newTestCodec()
	devices := newFakeDeviceRepo()
	refresh := newFakeRefreshRepo(users)
	return &sessionFixture{
		registry: NewSessionRegistry(codec, devices, refresh),
		codec:    codec,
		devices:  devices,
		refresh:  refresh,
		users:    users,
	}
}

func TestSessionRegistry_IssueSessionPersistsRecord(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	device, err := f.registry.RegisterDevice(ctx, 1, "ua", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, device.IsActive)

	pair, err := f.registry.IssueSession(ctx, 1, device.ID, 2, "Client")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	rec, _, _, err := f.refresh.GetWithUserRole(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.UserID)
	assert.Equal(t, device.ID, rec.DeviceID)

	// The persisted expiry is the one decoded from the signed token.
	claims, err := f.codec.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, rec.ExpiresAt.Equal(claims.ExpiresAt.Time))
}

func TestSessionRegistry_RotateIssuesFreshPair(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	device, err := f.registry.RegisterDevice(ctx, 1, "ua", "1.2.3.4")
	require.NoError(t, err)
	pair, err := f.registry.IssueSession(ctx, 1, device.ID, 2, "Client")
	require.NoError(t, err)

	rotated, err := f.registry.Rotate(ctx, pair.RefreshToken, "new-ua", "5.6.7.8")
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, rotated.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// Exactly one live record remains, and it is the new one.
	assert.Equal(t, 1, f.refresh.count())
	_, _, _, err = f.refresh.GetWithUserRole(ctx, rotated.RefreshToken)
	assert.NoError(t, err)

	// Device context was rebound to the refreshing caller.
	d, ok := f.devices.get(device.ID)
	require.True(t, ok)
	assert.Equal(t, "new-ua", d.UserAgent)
	assert.Equal(t, "5.6.7.8", d.IP)
}

func TestSessionRegistry_RotateConsumedTokenFails(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	device, err := f.registry.RegisterDevice(ctx, 1, "ua", "1.2.3.4")
	require.NoError(t, err)
	pair, err := f.registry.IssueSession(ctx, 1, device.ID, 2, "Client")
	require.NoError(t, err)

	_, err = f.registry.Rotate(ctx, pair.RefreshToken, "ua", "1.2.3.4")
	require.NoError(t, err)

	// Replaying the consumed token must surface the revocation signal.
	_, err = f.registry.Rotate(ctx, pair.RefreshToken, "ua", "1.2.3.4")
	assert.ErrorIs(t, err, ErrRefreshTokenRevoked)
}

func TestSessionRegistry_ConcurrentRotationSingleWinner(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	device, err := f.registry.RegisterDevice(ctx, 1, "ua", "1.2.3.4")
	require.NoError(t, err)
	pair, err := f.registry.IssueSession(ctx, 1, device.ID, 2, "Client")
	require.NoError(t, err)

	const rotations = 8
	var wg sync.WaitGroup
	errs := make([]error, rotations)
	for i := 0; i < rotations; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.registry.Rotate(ctx, pair.RefreshToken, "ua", "1.2.3.4")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrRefreshTokenRevoked)
		}
	}
	assert.Equal(t, 1, winners, "exactly one concurrent rotation may succeed")
	assert.Equal(t, 1, f.refresh.count(), "exactly one live record afterwards")
}

func TestSessionRegistry_RotateInvalidTokenNeverMutates(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	device, err := f.registry.RegisterDevice(ctx, 1, "ua", "1.2.3.4")
	require.NoError(t, err)
	_, err = f.registry.IssueSession(ctx, 1, device.ID, 2, "Client")
	require.NoError(t, err)

	_, err = f.registry.Rotate(ctx, "garbage-token", "ua", "1.2.3.4")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, 1, f.refresh.count(), "failed verification must not touch storage")
}

func TestSessionRegistry_RevokeDeactivatesDevice(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	device, err := f.registry.RegisterDevice(ctx, 1, "ua", "1.2.3.4")
	require.NoError(t, err)
	pair, err := f.registry.IssueSession(ctx, 1, device.ID, 2, "Client")
	require.NoError(t, err)

	require.NoError(t, f.registry.Revoke(ctx, pair.RefreshToken))

	assert.Equal(t, 0, f.refresh.count())
	d, ok := f.devices.get(device.ID)
	require.True(t, ok)
	assert.False(t, d.IsActive, "device row is deactivated, not deleted")
}

func TestSessionRegistry_DoubleRevokeFails(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	device, err := f.registry.RegisterDevice(ctx, 1, "ua", "1.2.3.4")
	require.NoError(t, err)
	pair, err := f.registry.IssueSession(ctx, 1, device.ID, 2, "Client")
	require.NoError(t, err)

	require.NoError(t, f.registry.Revoke(ctx, pair.RefreshToken))
	assert.ErrorIs(t, f.registry.Revoke(ctx, pair.RefreshToken), ErrRefreshTokenRevoked)
}

func TestSessionRegistry_ExpiredRefreshTokenRejectedBeforeLookup(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	device, err := f.registry.RegisterDevice(ctx, 1, "ua", "1.2.3.4")
	require.NoError(t, err)

	issued := time.Now().Add(-30 * 24 * time.Hour)
	f.codec.now = func() time.Time { return issued }
	pair, err := f.registry.IssueSession(ctx, 1, device.ID, 2, "Client")
	require.NoError(t, err)
	f.codec.now = time.Now

	// The record still exists, but verification rejects the token first.
	_, err = f.registry.Rotate(ctx, pair.RefreshToken, "ua", "1.2.3.4")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, 1, f.refresh.count())
}
