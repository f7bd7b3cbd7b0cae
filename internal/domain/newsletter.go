package domain

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Subscriber is a newsletter recipient. One row per email; subscribe and
// unsubscribe toggle IsSubscribed on the same row.
type Subscriber struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Email              string     `gorm:"uniqueIndex;not null" json:"email"`
	IsSubscribed       bool       `gorm:"not null;default:true;index" json:"is_subscribed"`
	SubscriptionDate   time.Time  `json:"subscription_date"`
	UnsubscriptionDate *time.Time `json:"unsubscription_date,omitempty"`
	Tags               []string   `gorm:"serializer:json" json:"tags"`
	Source             *string    `json:"source,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Subscriber
func (Subscriber) TableName() string {
	return "newsletter_subscribers"
}

// BeforeCreate hook
func (s *Subscriber) BeforeCreate(tx *gorm.DB) error {
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	if s.SubscriptionDate.IsZero() {
		s.SubscriptionDate = time.Now().UTC()
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	return nil
}

// MaxSubscriberTags caps the tags kept on one subscriber.
const MaxSubscriberTags = 20

// MergeTags adds tags not already present, keeping existing order. Tags past
// MaxSubscriberTags are dropped.
func (s *Subscriber) MergeTags(tags []string) {
	seen := make(map[string]bool, len(s.Tags))
	for _, t := range s.Tags {
		seen[t] = true
	}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		if len(s.Tags) >= MaxSubscriberTags {
			return
		}
		seen[t] = true
		s.Tags = append(s.Tags, t)
	}
}

// Campaign statuses
const (
	CampaignDraft     = "draft"
	CampaignScheduled = "scheduled"
	CampaignSent      = "sent"
	CampaignPaused    = "paused"
)

// Newsletter is an email campaign. Only drafts are editable; sending is a
// one-way transition.
type Newsletter struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Title          string     `gorm:"not null" json:"title"`
	Subject        string     `gorm:"not null" json:"subject"`
	HTMLContent    string     `gorm:"type:text;not null" json:"html_content"`
	Status         string     `gorm:"not null;default:'draft';index" json:"status"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	Recipients     []string   `gorm:"serializer:json" json:"recipients"`
	RecipientCount int        `gorm:"not null;default:0" json:"recipient_count"`
	DeliveredCount int        `gorm:"not null;default:0" json:"delivered_count"`
	FailedCount    int        `gorm:"not null;default:0" json:"failed_count"`
	DeliveryError  *string    `json:"delivery_error,omitempty"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Newsletter
func (Newsletter) TableName() string {
	return "newsletters"
}

// BeforeCreate hook
func (n *Newsletter) BeforeCreate(tx *gorm.DB) error {
	if n.Status == "" {
		n.Status = CampaignDraft
	}
	if n.Recipients == nil {
		n.Recipients = []string{}
	}
	return nil
}

// IsEditable reports whether the campaign may still be changed or deleted.
func (n *Newsletter) IsEditable() bool {
	return n.Status == CampaignDraft
}
