package domain

import (
	"time"

	"gorm.io/gorm"
)

// Contact statuses
const (
	ContactNew        = "new"
	ContactPending    = "pending"
	ContactInProgress = "in-progress"
	ContactReplied    = "replied"
	ContactResolved   = "resolved"
	ContactClosed     = "closed"
)

// ContactStatuses lists every contact status. Any status may follow any other.
var ContactStatuses = []string{ContactNew, ContactPending, ContactInProgress, ContactReplied, ContactResolved, ContactClosed}

// Contact represents a contact form submission
type Contact struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	FromName      string     `gorm:"not null" json:"from_name"`
	UserEmail     string     `gorm:"not null;index" json:"user_email"`
	FromContact   *string    `json:"from_contact,omitempty"`
	Subject       *string    `json:"subject,omitempty"`
	Message       string     `gorm:"type:text;not null" json:"message"`
	Status        string     `gorm:"not null;default:'new';index" json:"status"`
	AdminResponse *string    `gorm:"type:text" json:"admin_response,omitempty"`
	RespondedAt   *time.Time `json:"responded_at,omitempty"`
	RespondedBy   *string    `json:"responded_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Contact
func (Contact) TableName() string {
	return "contacts"
}

// BeforeCreate hook
func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.Status == "" {
		c.Status = ContactNew
	}
	return nil
}
