package entity

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

type UserStatus string

const (
	UserStatusPending UserStatus = "pending"
	UserStatusActive  UserStatus = "active"
)

type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string     `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash *string    `gorm:"type:text"`
	FirstName    string     `gorm:"type:varchar(100)"`
	LastName     string     `gorm:"type:varchar(100)"`
	Role         UserRole   `gorm:"type:user_role;default:'user';not null"`
	Status       UserStatus `gorm:"type:user_status;default:'pending';not null"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Sessions []Session
}

func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
