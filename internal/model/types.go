package model

import "time"

// UserStatus enumerates account states.
type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusInactive UserStatus = "INACTIVE"
	UserStatusBlocked  UserStatus = "BLOCKED"
)

// CodePurpose enumerates what a verification code gates.
type CodePurpose string

const (
	PurposeRegister       CodePurpose = "REGISTER"
	PurposeForgotPassword CodePurpose = "FORGOT_PASSWORD"
	PurposeLogin          CodePurpose = "LOGIN"
	PurposeDisable2FA     CodePurpose = "DISABLE_2FA"
)

// Role names seeded by migrations.
const (
	RoleAdmin  = "Admin"
	RoleClient = "Client"
	RoleSeller = "Seller"
)

// User represents an account. PasswordHash and TOTPSecret never leave the
// auth core; API responses are built from the remaining fields.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	PhoneNumber  string
	Avatar       string
	TOTPSecret   string // empty when 2FA is not enrolled
	Status       UserStatus
	RoleID       int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TwoFactorEnabled reports whether the user has a TOTP secret enrolled.
func (u User) TwoFactorEnabled() bool { return u.TOTPSecret != "" }

// Role is a stable, seeded enumeration row.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// VerificationCode is a time-bounded one-time code. At most one live row
// exists per (email, purpose); re-issuing overwrites code and expiry.
type VerificationCode struct {
	ID        int64
	Email     string
	Code      string
	Purpose   CodePurpose
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Device binds a session to the userAgent/ip context it was created or last
// refreshed from. Logout deactivates it, never deletes it.
type Device struct {
	ID         int64
	UserID     int64
	UserAgent  string
	IP         string
	LastActive time.Time
	IsActive   bool
	CreatedAt  time.Time
}

// RefreshTokenRecord is the live-record side of a refresh token: exactly one
// row per issued token, deleted when the token is consumed or revoked.
type RefreshTokenRecord struct {
	Token     string
	UserID    int64
	DeviceID  int64
	ExpiresAt time.Time
	CreatedAt time.Time
}
