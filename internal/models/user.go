package models

import (
	"time"
)

// Account lifecycle statuses. Soft deletion is a status change, not a row
// removal; locked and banned are independent overlay flags, not statuses.
const (
	StatusUnverified = "unverified"
	StatusVerified   = "verified"
	StatusDeleted    = "deleted"
)

// Gender values for the profile field.
const (
	GenderNotSpecified = "not_specified"
	GenderFemale       = "female"
	GenderMale         = "male"
)

type User struct {
	ID                  int64
	FirstName           string
	MiddleName          string
	LastName            string
	Gender              string
	DateOfBirth         *time.Time
	Username            string
	Email               string
	PasswordHash        string
	PendingPasswordHash *string // held while a password reset is in flight
	Status              string
	Locked              bool
	Banned              bool
	Subscribed          bool
	CustomUsername      bool // username chosen explicitly rather than defaulted from email
	Token               *int64
	TokenIssuedAt       *time.Time // both nil or both set, together with Token
	FailedLoginAttempts uint8
	LastLogin           *time.Time
	PasswordChangedAt   *time.Time
	RegisteredAt        time.Time
	VerifiedAt          *time.Time
	Roles               []Role
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (u *User) IsDeleted() bool {
	return u.Status == StatusDeleted
}

// DisplayName resolves how the user is addressed in notifications:
// an explicitly chosen username wins, then the first name, then the email.
func (u *User) DisplayName() string {
	if u.CustomUsername {
		return u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Email
}
