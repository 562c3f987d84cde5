package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ecomauth/server/internal/email"
	"github.com/ecomauth/server/internal/model"
	"github.com/ecomauth/server/internal/repo"
)

// Service orchestrates the registration, login, token-refresh, logout,
// password-reset and 2FA protocols. It is the externally facing contract of
// the auth core; the HTTP layer is a thin shell around it.
type Service struct {
	hasher    *Hasher
	codes     *CodeStore
	twoFactor *TwoFactor
	sessions  *SessionRegistry
	users     repo.UserRepo
	roles     *RoleCache
	sender    email.Sender
	otpTTL    time.Duration
}

// NewService wires the auth core together with explicit dependencies.
func NewService(
	hasher *Hasher,
	codes *CodeStore,
	twoFactor *TwoFactor,
	sessions *SessionRegistry,
	users repo.UserRepo,
	roles *RoleCache,
	sender email.Sender,
	otpTTL time.Duration,
) *Service {
	return &Service{
		hasher:    hasher,
		codes:     codes,
		twoFactor: twoFactor,
		sessions:  sessions,
		users:     users,
		roles:     roles,
		sender:    sender,
		otpTTL:    otpTTL,
	}
}

// RegisterInput carries the fields of a registration request. The
// password/confirmPassword equality check belongs to the HTTP boundary.
type RegisterInput struct {
	Email       string
	Password    string
	Name        string
	PhoneNumber string
	Code        string
}

// Register consumes the REGISTER verification code and creates the account
// with the default Client role. The email uniqueness constraint is the
// authoritative guard against a concurrent registration of the same email;
// a violation surfaces as ErrEmailAlreadyExists.
func (s *Service) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	if err := s.codes.Consume(ctx, in.Email, model.PurposeRegister, in.Code); err != nil {
		return model.User{}, err
	}

	roleID, err := s.roles.ClientRoleID(ctx)
	if err != nil {
		return model.User{}, fmt.Errorf("resolve client role: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return model.User{}, err
	}

	user, err := s.users.Create(ctx, model.User{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		PhoneNumber:  in.PhoneNumber,
		RoleID:       roleID,
	})
	if err != nil {
		if repo.IsUniqueViolation(err) {
			return model.User{}, ErrEmailAlreadyExists
		}
		return model.User{}, err
	}

	// Credential fields never leave the core.
	user.PasswordHash = ""
	user.TOTPSecret = ""
	return user, nil
}

// RequestOTP issues a verification code and dispatches it by email. For
// REGISTER the email must not belong to an existing account; for every other
// purpose it must. The code stays issued even when delivery fails, so the
// caller may re-request to overwrite it or retry delivery.
func (s *Service) RequestOTP(ctx context.Context, emailAddr string, purpose model.CodePurpose) error {
	_, err := s.users.GetByEmail(ctx, emailAddr)
	switch purpose {
	case model.PurposeRegister:
		if err == nil {
			return ErrEmailAlreadyExists
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
	default:
		if errors.Is(err, repo.ErrNotFound) {
			return ErrEmailNotFound
		}
		if err != nil {
			return err
		}
	}

	code, err := s.codes.Issue(ctx, emailAddr, purpose, s.otpTTL)
	if err != nil {
		return err
	}

	if err := s.sender.SendOTP(ctx, emailAddr, code); err != nil {
		logrus.WithField("email", email.Mask(emailAddr)).WithError(err).Error("otp delivery failed")
		return ErrOTPDeliveryFailed
	}
	return nil
}

// LoginInput carries a login request. TOTPCode and OTPCode are the two
// accepted second-factor proofs; at most one is consulted.
type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
	IP        string
	TOTPCode  string
	OTPCode   string
}

// Login authenticates a password, enforces the second factor when the user
// has one enrolled, then registers a device and issues a session.
func (s *Service) Login(ctx context.Context, in LoginInput) (TokenPair, error) {
	user, role, err := s.users.GetByEmailWithRole(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return TokenPair{}, ErrEmailNotFound
		}
		return TokenPair{}, err
	}

	if !s.hasher.Compare(in.Password, user.PasswordHash) {
		return TokenPair{}, ErrInvalidPassword
	}

	if user.TwoFactorEnabled() {
		switch {
		case in.TOTPCode != "":
			if !s.twoFactor.Verify(user.TOTPSecret, in.TOTPCode) {
				return TokenPair{}, ErrInvalidOTP
			}
		case in.OTPCode != "":
			if err := s.codes.Consume(ctx, in.Email, model.PurposeLogin, in.OTPCode); err != nil {
				return TokenPair{}, err
			}
		default:
			return TokenPair{}, ErrSecondFactorRequired
		}
	}

	device, err := s.sessions.RegisterDevice(ctx, user.ID, in.UserAgent, in.IP)
	if err != nil {
		return TokenPair{}, err
	}
	return s.sessions.IssueSession(ctx, user.ID, device.ID, role.ID, role.Name)
}

// RefreshToken rotates a refresh token. Anything other than the recognized
// revocation signal collapses to ErrUnauthorized so callers cannot tell a
// malformed token from a storage failure.
func (s *Service) RefreshToken(ctx context.Context, refreshToken, userAgent, ip string) (TokenPair, error) {
	pair, err := s.sessions.Rotate(ctx, refreshToken, userAgent, ip)
	if err != nil {
		return TokenPair{}, collapseSessionError(err)
	}
	return pair, nil
}

// Logout revokes a refresh token, with the same error-collapsing policy as
// RefreshToken.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if err := s.sessions.Revoke(ctx, refreshToken); err != nil {
		return collapseSessionError(err)
	}
	return nil
}

// collapseSessionError keeps ErrRefreshTokenRevoked and hides everything
// else behind ErrUnauthorized.
func collapseSessionError(err error) error {
	if errors.Is(err, ErrRefreshTokenRevoked) {
		return ErrRefreshTokenRevoked
	}
	logrus.WithError(err).Debug("session error collapsed to unauthorized")
	return ErrUnauthorized
}

// ForgotPassword consumes the FORGOT_PASSWORD code and replaces the user's
// password hash. The two effects are independent and run concurrently; both
// must succeed before success is reported.
func (s *Service) ForgotPassword(ctx context.Context, emailAddr, code, newPassword string) error {
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrEmailNotFound
		}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.codes.Consume(gctx, emailAddr, model.PurposeForgotPassword, code)
	})
	g.Go(func() error {
		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		return s.users.UpdatePasswordHash(gctx, user.ID, hash)
	})
	return g.Wait()
}

// TwoFactorSetup is the enrollment material returned by SetupTwoFactor.
type TwoFactorSetup struct {
	Secret          string
	ProvisioningURI string
}

// SetupTwoFactor generates and persists a TOTP secret for the user. The
// secret is stored immediately, without a confirm-first-code step; a client
// that never completes enrollment leaves the account locked behind it.
func (s *Service) SetupTwoFactor(ctx context.Context, userID int64) (TwoFactorSetup, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return TwoFactorSetup{}, ErrEmailNotFound
		}
		return TwoFactorSetup{}, err
	}
	if user.TwoFactorEnabled() {
		return TwoFactorSetup{}, ErrTwoFactorAlreadyEnabled
	}

	secret, uri, err := s.twoFactor.GenerateSecret(user.Email)
	if err != nil {
		return TwoFactorSetup{}, err
	}
	if err := s.users.UpdateTOTPSecret(ctx, user.ID, secret); err != nil {
		return TwoFactorSetup{}, err
	}
	return TwoFactorSetup{Secret: secret, ProvisioningURI: uri}, nil
}

// DisableTwoFactor clears the user's TOTP secret after exactly one
// second-factor proof: a current TOTP code or a DISABLE_2FA email code.
func (s *Service) DisableTwoFactor(ctx context.Context, userID int64, totpCode, otpCode string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrEmailNotFound
		}
		return err
	}
	if !user.TwoFactorEnabled() {
		return ErrTwoFactorNotEnabled
	}

	switch {
	case totpCode != "":
		if !s.twoFactor.Verify(user.TOTPSecret, totpCode) {
			return ErrInvalidOTP
		}
	case otpCode != "":
		if err := s.codes.Consume(ctx, user.Email, model.PurposeDisable2FA, otpCode); err != nil {
			return err
		}
	default:
		return ErrSecondFactorRequired
	}

	return s.users.ClearTOTPSecret(ctx, user.ID)
}

// ExternalIdentity is a verified identity handed over by a federated
// provider after the authorization-code exchange.
type ExternalIdentity struct {
	Email  string
	Name   string
	Avatar string
}

// FederatedLogin finds or creates the user for a verified external identity
// and issues a session, skipping password and second-factor checks. First
// sight creates the account with the Client role and a random, unusable
// password hash.
func (s *Service) FederatedLogin(ctx context.Context, identity ExternalIdentity, userAgent, ip string) (TokenPair, error) {
	user, role, err := s.users.GetByEmailWithRole(ctx, identity.Email)
	if errors.Is(err, repo.ErrNotFound) {
		user, role, err = s.createFederatedUser(ctx, identity)
	}
	if err != nil {
		return TokenPair{}, err
	}

	device, err := s.sessions.RegisterDevice(ctx, user.ID, userAgent, ip)
	if err != nil {
		return TokenPair{}, err
	}
	return s.sessions.IssueSession(ctx, user.ID, device.ID, role.ID, role.Name)
}

func (s *Service) createFederatedUser(ctx context.Context, identity ExternalIdentity) (model.User, model.Role, error) {
	roleID, err := s.roles.ClientRoleID(ctx)
	if err != nil {
		return model.User{}, model.Role{}, fmt.Errorf("resolve client role: %w", err)
	}

	hash, err := s.hasher.Hash(randomPassword())
	if err != nil {
		return model.User{}, model.Role{}, err
	}

	user, err := s.users.Create(ctx, model.User{
		Email:        identity.Email,
		Name:         identity.Name,
		Avatar:       identity.Avatar,
		PasswordHash: hash,
		RoleID:       roleID,
	})
	if err != nil {
		if repo.IsUniqueViolation(err) {
			// Lost a race with a concurrent first login; the account exists now.
			return s.users.GetByEmailWithRole(ctx, identity.Email)
		}
		return model.User{}, model.Role{}, err
	}

	role, err := s.roleForUser(ctx, user)
	return user, role, err
}

func (s *Service) roleForUser(ctx context.Context, user model.User) (model.Role, error) {
	_, role, err := s.users.GetByEmailWithRole(ctx, user.Email)
	return role, err
}

// randomPassword returns an unguessable placeholder password for accounts
// created through federated login. It is hashed and never usable as-is.
func randomPassword() string {
	return uuid.NewString()
}
