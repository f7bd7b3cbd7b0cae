package domain

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Roles
const (
	RoleAdmin     = "admin"
	RoleManager   = "manager"
	RoleClient    = "client"
	RoleITSupport = "it-support"
)

// Account statuses
const (
	AccountActive    = "active"
	AccountInactive  = "inactive"
	AccountSuspended = "suspended"
)

// Roles lists every assignable role.
var Roles = []string{RoleAdmin, RoleManager, RoleClient, RoleITSupport}

// AccountStatuses lists every account status.
var AccountStatuses = []string{AccountActive, AccountInactive, AccountSuspended}

// NormalizeRole maps legacy role names onto the canonical set.
// Unknown roles are returned lowercased so validation can reject them.
func NormalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	switch role {
	case "web-manager":
		return RoleManager
	case "user":
		return RoleClient
	}
	return role
}

// User represents a user in the system
type User struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Name             string     `gorm:"not null" json:"name"`
	Email            string     `gorm:"uniqueIndex;not null" json:"email"`
	Password         string     `gorm:"not null" json:"-"`
	Role             string     `gorm:"not null;default:'client';index" json:"role"`
	AccountStatus    string     `gorm:"not null;default:'active'" json:"account_status"`
	Phone            *string    `json:"phone,omitempty"`
	Company          *string    `json:"company,omitempty"`
	LoginAttempts    int        `gorm:"not null;default:0" json:"-"`
	LockUntil        *time.Time `json:"-"`
	LastLogin        *time.Time `json:"last_login,omitempty"`
	ResetCodeHash    *string    `json:"-"`
	ResetCodeExpires *time.Time `json:"-"`
	ResetAttempts    int        `gorm:"not null;default:0" json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// BeforeCreate hook
func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = RoleClient
	}
	if u.AccountStatus == "" {
		u.AccountStatus = AccountActive
	}
	return nil
}

// IsLocked reports whether the account is inside a lockout window at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// IsActive reports whether the account may log in.
func (u *User) IsActive() bool {
	return u.AccountStatus == AccountActive
}

// HasRole reports whether the user's role is one of roles.
func (u *User) HasRole(roles ...string) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}
