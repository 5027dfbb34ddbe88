package account

import (
	"time"

	"cleanup/internal/models"
)

const (
	// TokenTTL is the validity window of a verification or reset token.
	TokenTTL = time.Hour

	// WarnThreshold is the failed-attempt count that triggers the lockout
	// warning notification; LockThreshold locks the account.
	WarnThreshold = 3
	LockThreshold = 5

	maxFailedAttempts = 255
)

// LoginOutcome tells the caller which notification a failed attempt is due.
type LoginOutcome int

const (
	LoginWrongPassword LoginOutcome = iota
	LoginWarnLockout
	LoginLocked
)

// TokenExpired reports whether the account's active token is past its TTL.
// Token comparison is by exact value and has already happened at lookup time.
func TokenExpired(u *models.User, now time.Time) bool {
	if u.Token == nil || u.TokenIssuedAt == nil {
		return true
	}
	return !now.Before(u.TokenIssuedAt.Add(TokenTTL))
}

// SetToken installs a fresh token pair, invalidating any prior token
// regardless of the purpose it was issued for.
func SetToken(u *models.User, token int64, issuedAt time.Time) {
	u.Token = &token
	u.TokenIssuedAt = &issuedAt
}

func ClearToken(u *models.User) {
	u.Token = nil
	u.TokenIssuedAt = nil
}

// ApplyVerification transitions unverified to verified and consumes the token.
func ApplyVerification(u *models.User, now time.Time) {
	u.Status = models.StatusVerified
	u.VerifiedAt = &now
	ClearToken(u)
}

// ApplyPasswordReset promotes the pending hash to the live one, consumes the
// token and clears the lockout state.
func ApplyPasswordReset(u *models.User, now time.Time) {
	if u.PendingPasswordHash != nil {
		u.PasswordHash = *u.PendingPasswordHash
		u.PendingPasswordHash = nil
	}
	ClearToken(u)
	u.PasswordChangedAt = &now
	u.FailedLoginAttempts = 0
	u.Locked = false
}

// RecordLoginFailure bumps the saturating failure counter and sets the lock
// flag exactly when the counter reaches LockThreshold.
func RecordLoginFailure(u *models.User) LoginOutcome {
	if u.FailedLoginAttempts < maxFailedAttempts {
		u.FailedLoginAttempts++
	}
	switch u.FailedLoginAttempts {
	case WarnThreshold:
		return LoginWarnLockout
	case LockThreshold:
		u.Locked = true
		return LoginLocked
	}
	return LoginWrongPassword
}

func RecordLoginSuccess(u *models.User, now time.Time) {
	u.FailedLoginAttempts = 0
	u.LastLogin = &now
}

func SetBanned(u *models.User, banned bool) {
	u.Banned = banned
}

// SoftDelete marks the account deleted; the row and its data stay in place.
func SoftDelete(u *models.User) {
	u.Status = models.StatusDeleted
}
