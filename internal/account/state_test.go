package account

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleanup/internal/models"
)

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	u := &models.User{}

	// No token at all counts as expired.
	assert.True(t, TokenExpired(u, now))

	SetToken(u, 42, now)
	assert.False(t, TokenExpired(u, now))
	assert.False(t, TokenExpired(u, now.Add(TokenTTL-time.Second)))
	assert.True(t, TokenExpired(u, now.Add(TokenTTL)))
	assert.True(t, TokenExpired(u, now.Add(TokenTTL+time.Hour)))
}

func TestSetTokenReplacesPrevious(t *testing.T) {
	now := time.Now()
	u := &models.User{}

	SetToken(u, 1, now)
	later := now.Add(time.Minute)
	SetToken(u, 2, later)

	require.NotNil(t, u.Token)
	assert.EqualValues(t, 2, *u.Token)
	assert.True(t, u.TokenIssuedAt.Equal(later))
}

func TestApplyVerification(t *testing.T) {
	now := time.Now()
	u := &models.User{Status: models.StatusUnverified}
	SetToken(u, 42, now)

	ApplyVerification(u, now)

	assert.Equal(t, models.StatusVerified, u.Status)
	require.NotNil(t, u.VerifiedAt)
	assert.Nil(t, u.Token)
	assert.Nil(t, u.TokenIssuedAt)
}

func TestApplyPasswordReset(t *testing.T) {
	now := time.Now()
	pending := "new-hash"
	u := &models.User{
		PasswordHash:        "old-hash",
		PendingPasswordHash: &pending,
		Locked:              true,
		FailedLoginAttempts: 5,
	}
	SetToken(u, 42, now)

	ApplyPasswordReset(u, now)

	assert.Equal(t, "new-hash", u.PasswordHash)
	assert.Nil(t, u.PendingPasswordHash)
	assert.Nil(t, u.Token)
	assert.Nil(t, u.TokenIssuedAt)
	assert.False(t, u.Locked)
	assert.Zero(t, u.FailedLoginAttempts)
	require.NotNil(t, u.PasswordChangedAt)
}

func TestApplyPasswordResetWithoutPendingKeepsHash(t *testing.T) {
	u := &models.User{PasswordHash: "old-hash"}
	ApplyPasswordReset(u, time.Now())
	assert.Equal(t, "old-hash", u.PasswordHash)
}

func TestRecordLoginFailureThresholds(t *testing.T) {
	u := &models.User{}

	outcomes := make([]LoginOutcome, 0, 6)
	for i := 0; i < 6; i++ {
		outcomes = append(outcomes, RecordLoginFailure(u))
	}

	assert.Equal(t, []LoginOutcome{
		LoginWrongPassword,
		LoginWrongPassword,
		LoginWarnLockout,
		LoginWrongPassword,
		LoginLocked,
		LoginWrongPassword,
	}, outcomes)
	assert.True(t, u.Locked)
	assert.EqualValues(t, 6, u.FailedLoginAttempts)
}

func TestRecordLoginFailureSaturates(t *testing.T) {
	u := &models.User{FailedLoginAttempts: 255}
	RecordLoginFailure(u)
	assert.EqualValues(t, 255, u.FailedLoginAttempts)
}

func TestRecordLoginSuccessResetsCounter(t *testing.T) {
	now := time.Now()
	u := &models.User{FailedLoginAttempts: 4}

	RecordLoginSuccess(u, now)

	assert.Zero(t, u.FailedLoginAttempts)
	require.NotNil(t, u.LastLogin)
	assert.True(t, u.LastLogin.Equal(now))
}

func TestSoftDelete(t *testing.T) {
	u := &models.User{Status: models.StatusVerified}
	SoftDelete(u)
	assert.Equal(t, models.StatusDeleted, u.Status)
	assert.True(t, u.IsDeleted())
}
