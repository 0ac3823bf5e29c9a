package entity

import (
	"time"

	"github.com/google/uuid"
)

type VerificationPurpose string

const (
	EmailActivation VerificationPurpose = "email_activation"
	PasswordReset   VerificationPurpose = "password_reset"
)

const (
	CodeLength        = 8
	MaxVerifyAttempts = 5
	ActivationCodeTTL = 24 * time.Hour
	PasswordResetTTL  = 1 * time.Hour
)

// VerificationCode is the single live code per (email, purpose). Issuing a
// new one overwrites the row, so a resend kills the previous code
// immediately.
type VerificationCode struct {
	ID      uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email   string              `gorm:"type:varchar(255);not null;uniqueIndex:idx_verification_email_purpose"`
	Purpose VerificationPurpose `gorm:"type:verification_purpose;not null;uniqueIndex:idx_verification_email_purpose"`

	Code string `gorm:"type:varchar(16);not null"`

	IssuedAt   time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	Attempts   int `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (v *VerificationCode) IsConsumed() bool {
	return v.ConsumedAt != nil
}

func (v *VerificationCode) IsExpired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

// Usable reports whether the code can still be checked against a
// submission: not consumed, not expired, attempts not exhausted.
func (v *VerificationCode) Usable(now time.Time) bool {
	return !v.IsConsumed() && !v.IsExpired(now) && v.Attempts < MaxVerifyAttempts
}

// TTLFor returns the validity window for a purpose. Activation codes ride
// in a welcome email the user may open much later; reset codes guard a
// credential change and stay short-lived.
func TTLFor(purpose VerificationPurpose) time.Duration {
	if purpose == PasswordReset {
		return PasswordResetTTL
	}
	return ActivationCodeTTL
}
