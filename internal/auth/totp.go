package auth

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TwoFactor generates per-user shared secrets and verifies time-based codes
// against them. It persists nothing; the secret lives on the User record.
type TwoFactor struct {
	issuer string
	now    func() time.Time
}

// NewTwoFactor creates a TwoFactor authenticator labeling secrets with the
// given issuer (the application name shown in authenticator apps).
func NewTwoFactor(issuer string) *TwoFactor {
	return &TwoFactor{issuer: issuer, now: time.Now}
}

// GenerateSecret produces a fresh shared secret and its otpauth://
// provisioning URI (SHA-1, 6 digits, 30-second step) for enrollment.
func (t *TwoFactor) GenerateSecret(email string) (secret, provisioningURI string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", fmt.Errorf("generate totp secret: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

// Verify accepts the submitted code if it matches the secret within one time
// step before or after the current one (±30s clock-skew tolerance).
func (t *TwoFactor) Verify(secret, code string) bool {
	ok, err := totp.ValidateCustom(code, secret, t.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
