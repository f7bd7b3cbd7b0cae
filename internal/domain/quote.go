package domain

import (
	"time"

	"gorm.io/gorm"
)

// Quote statuses
const (
	QuoteNew        = "new"
	QuoteReviewed   = "reviewed"
	QuoteInProgress = "in-progress"
	QuoteQuoted     = "quoted"
	QuoteCompleted  = "completed"
)

// QuoteStatuses lists every quote status.
var QuoteStatuses = []string{QuoteNew, QuoteReviewed, QuoteInProgress, QuoteQuoted, QuoteCompleted}

// Quote represents a quote request from a prospective client
type Quote struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"not null" json:"name"`
	Email     string       `gorm:"not null;index" json:"email"`
	Phone     *string      `json:"phone,omitempty"`
	Company   *string      `json:"company,omitempty"`
	Service   string       `gorm:"not null" json:"service"`
	Budget    *string      `json:"budget,omitempty"`
	Timeline  *string      `json:"timeline,omitempty"`
	Details   string       `gorm:"type:text;not null" json:"details"`
	Status    string       `gorm:"not null;default:'new';index" json:"status"`
	Replies   []QuoteReply `gorm:"foreignKey:QuoteID" json:"replies"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TableName specifies the table name for Quote
func (Quote) TableName() string {
	return "quotes"
}

// BeforeCreate hook
func (q *Quote) BeforeCreate(tx *gorm.DB) error {
	if q.Status == "" {
		q.Status = QuoteNew
	}
	return nil
}

// EnsureReplies makes an empty reply log encode as [] rather than null.
func (q *Quote) EnsureReplies() {
	if q.Replies == nil {
		q.Replies = []QuoteReply{}
	}
}

// QuoteReply is one entry of a quote's append-only reply log. Each reply is
// its own row so concurrent replies never overwrite each other.
type QuoteReply struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	QuoteID   uint      `gorm:"not null;index" json:"-"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Sender    string    `gorm:"not null" json:"sender"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for QuoteReply
func (QuoteReply) TableName() string {
	return "quote_replies"
}
