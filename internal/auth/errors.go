package auth

import "errors"

// Kind is the machine-readable classification of a domain error. Handlers
// map kinds to HTTP statuses; clients match on them for field-level feedback.
type Kind string

const (
	KindInvalidOTP              Kind = "INVALID_OTP"
	KindOTPExpired              Kind = "OTP_EXPIRED"
	KindEmailAlreadyExists      Kind = "EMAIL_ALREADY_EXISTS"
	KindEmailNotFound           Kind = "EMAIL_NOT_FOUND"
	KindInvalidPassword         Kind = "INVALID_PASSWORD"
	KindSecondFactorRequired    Kind = "SECOND_FACTOR_REQUIRED"
	KindTwoFactorAlreadyEnabled Kind = "TWO_FACTOR_ALREADY_ENABLED"
	KindTwoFactorNotEnabled     Kind = "TWO_FACTOR_NOT_ENABLED"
	KindRefreshTokenRevoked     Kind = "REFRESH_TOKEN_REVOKED"
	KindUnauthorized            Kind = "UNAUTHORIZED"
	KindOTPDeliveryFailed       Kind = "OTP_DELIVERY_FAILED"
	KindInvalidToken            Kind = "INVALID_TOKEN"
)

// Error is a domain error. The closed set below is the only way the auth
// core reports expected failures; everything else propagates as an opaque
// internal error. Field names the request field the failure concerns, when
// there is one.
type Error struct {
	Kind  Kind
	Field string
	msg   string
}

func (e *Error) Error() string { return e.msg }

var (
	ErrInvalidOTP              = &Error{Kind: KindInvalidOTP, Field: "code", msg: "invalid verification code"}
	ErrOTPExpired              = &Error{Kind: KindOTPExpired, Field: "code", msg: "verification code has expired"}
	ErrEmailAlreadyExists      = &Error{Kind: KindEmailAlreadyExists, Field: "email", msg: "email already exists"}
	ErrEmailNotFound           = &Error{Kind: KindEmailNotFound, Field: "email", msg: "email not found"}
	ErrInvalidPassword         = &Error{Kind: KindInvalidPassword, Field: "password", msg: "password is incorrect"}
	ErrSecondFactorRequired    = &Error{Kind: KindSecondFactorRequired, Field: "totpCode", msg: "a TOTP or email code is required"}
	ErrTwoFactorAlreadyEnabled = &Error{Kind: KindTwoFactorAlreadyEnabled, msg: "two-factor authentication is already enabled"}
	ErrTwoFactorNotEnabled     = &Error{Kind: KindTwoFactorNotEnabled, msg: "two-factor authentication is not enabled"}
	ErrRefreshTokenRevoked     = &Error{Kind: KindRefreshTokenRevoked, msg: "refresh token has been revoked"}
	ErrUnauthorized            = &Error{Kind: KindUnauthorized, msg: "unauthorized"}
	ErrOTPDeliveryFailed       = &Error{Kind: KindOTPDeliveryFailed, msg: "failed to deliver verification code"}
	ErrInvalidToken            = &Error{Kind: KindInvalidToken, msg: "invalid or expired token"}
)

// AsError returns the *Error inside err, or nil if err is not a domain error.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
