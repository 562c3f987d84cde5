package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	UserID   int64  `json:"userId"`
	DeviceID int64  `json:"deviceId"`
	RoleID   int64  `json:"roleId"`
	RoleName string `json:"roleName"`
	Nonce    string `json:"uuid"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token.
type RefreshClaims struct {
	UserID int64  `json:"userId"`
	Nonce  string `json:"uuid"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies access and refresh tokens. The two kinds use
// independent secrets and validity windows. Every signed token carries a
// fresh uuid nonce so two tokens minted in the same second never collide,
// which the single-use refresh invariant depends on.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenCodec creates a TokenCodec with distinct secrets per token kind.
func NewTokenCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenCodec {
	return &TokenCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// SignAccess creates a short-lived access token.
func (c *TokenCodec) SignAccess(userID, deviceID, roleID int64, roleName string) (string, error) {
	now := c.now()
	claims := &AccessClaims{
		UserID:   userID,
		DeviceID: deviceID,
		RoleID:   roleID,
		RoleName: roleName,
		Nonce:    uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return token, nil
}

// SignRefresh creates a long-lived refresh token.
func (c *TokenCodec) SignRefresh(userID int64) (string, error) {
	now := c.now()
	claims := &RefreshClaims{
		UserID: userID,
		Nonce:  uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return token, nil
}

// VerifyAccess verifies the signature and expiry of an access token and
// returns its claims, including the decoded expiry.
func (c *TokenCodec) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.verify(token, claims, c.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh verifies the signature and expiry of a refresh token and
// returns its claims, including the decoded expiry.
func (c *TokenCodec) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.verify(token, claims, c.refreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *TokenCodec) verify(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
