package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AuditAction string

const (
	LoginSuccess     AuditAction = "login_success"
	LoginFailed      AuditAction = "login_failed"
	Logout           AuditAction = "logout"
	AccountActivated AuditAction = "account_activated"
	CodeIssued       AuditAction = "code_issued"
	CodeRejected     AuditAction = "code_rejected"
	PasswordChanged  AuditAction = "password_changed"
	UnknownEmail     AuditAction = "unknown_email"
	SessionRevoked   AuditAction = "session_revoked"
)

type AuditLog struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	UserID *uuid.UUID `gorm:"type:uuid;index"`
	User   *User      `gorm:"constraint:OnDelete:SET NULL"`

	IPAddress *string     `gorm:"type:varchar(45)"`
	Action    AuditAction `gorm:"type:audit_action;not null"`

	Metadata datatypes.JSON

	CreatedAt time.Time
}
