package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ecomauth/server/internal/model"
	"github.com/ecomauth/server/internal/repo"
)

// CodeStore issues and consumes time-bound one-time codes keyed by
// (email, purpose). A code survives until it is consumed, overwritten by a
// re-issue, or rejected as expired.
type CodeStore struct {
	codes repo.VerificationCodeRepo
	now   func() time.Time
}

// NewCodeStore creates a CodeStore backed by the verification-code repository.
func NewCodeStore(codes repo.VerificationCodeRepo) *CodeStore {
	return &CodeStore{codes: codes, now: time.Now}
}

// Issue generates a random 6-digit code and upserts it for (email, purpose):
// a live entry gets its code and expiry overwritten, never duplicated.
func (s *CodeStore) Issue(ctx context.Context, email string, purpose model.CodePurpose, ttl time.Duration) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	expiresAt := s.now().Add(ttl)
	if _, err := s.codes.Upsert(ctx, email, purpose, code, expiresAt); err != nil {
		return "", fmt.Errorf("store verification code: %w", err)
	}
	return code, nil
}

// Consume validates a submitted code and deletes it on success. A missing
// row and a mismatched code both return ErrInvalidOTP so callers cannot tell
// which; the expiry check runs after the match, in that fixed order. The
// delete claims the code: of two concurrent consumes, only the one whose
// delete affects a row succeeds, the other sees the row gone and fails.
func (s *CodeStore) Consume(ctx context.Context, email string, purpose model.CodePurpose, submitted string) error {
	vc, err := s.codes.Get(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidOTP
		}
		return fmt.Errorf("lookup verification code: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(vc.Code), []byte(submitted)) != 1 {
		return ErrInvalidOTP
	}
	if s.now().After(vc.ExpiresAt) {
		return ErrOTPExpired
	}
	if err := s.codes.Delete(ctx, email, purpose); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidOTP
		}
		return fmt.Errorf("delete verification code: %w", err)
	}
	return nil
}

// generateCode returns a uniformly random, zero-padded 6-digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
