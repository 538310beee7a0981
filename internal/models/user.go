package models

import (
	"time"

	"gorm.io/gorm"
)

// Role gates what a user may do in the back office.
type Role string

const (
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleStaff:
		return true
	}
	return false
}

// CanApprove reports whether the role may sign off a stock count.
func (r Role) CanApprove() bool {
	return r == RoleOwner || r == RoleAdmin
}

// UserAuth represents a back-office user
type UserAuth struct {
	ID                  string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Username            string     `gorm:"unique;not null" json:"username"`
	Password            string     `gorm:"not null" json:"-"`
	Email               string     `gorm:"unique;not null" json:"email"`
	Name                string     `json:"name,omitempty"`
	Role                Role       `gorm:"type:varchar(16);default:'staff'" json:"role"`
	IsActive            bool       `gorm:"default:true" json:"is_active"`
	LastLogin           *time.Time `json:"last_login,omitempty"`
	FailedLoginAttempts int        `gorm:"default:0" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for UserAuth model
func (UserAuth) TableName() string {
	return "user_auths"
}
