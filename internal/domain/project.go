package domain

import (
	"time"

	"gorm.io/gorm"
)

// Project statuses
const (
	ProjectActive   = "active"
	ProjectInactive = "inactive"
	ProjectDraft    = "draft"
)

// ProjectStatuses lists every project status.
var ProjectStatuses = []string{ProjectActive, ProjectInactive, ProjectDraft}

// Slide is an image hosted on the asset store.
type Slide struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// Project is a portfolio entry.
type Project struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"uniqueIndex;not null" json:"title"`
	Description  string    `gorm:"type:text;not null" json:"description"`
	Category     *string   `gorm:"index" json:"category,omitempty"`
	Client       *string   `json:"client,omitempty"`
	URL          *string   `json:"url,omitempty"`
	Technologies []string  `gorm:"serializer:json" json:"technologies"`
	Slides       []Slide   `gorm:"serializer:json" json:"slides"`
	Status       string    `gorm:"not null;default:'active';index" json:"status"`
	Featured     bool      `gorm:"not null;default:false" json:"featured"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for Project
func (Project) TableName() string {
	return "projects"
}

// BeforeCreate hook
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.Status == "" {
		p.Status = ProjectActive
	}
	if p.Technologies == nil {
		p.Technologies = []string{}
	}
	if p.Slides == nil {
		p.Slides = []Slide{}
	}
	return nil
}

// RemoveSlide drops the slide with publicID and reports whether it existed.
func (p *Project) RemoveSlide(publicID string) bool {
	for i, s := range p.Slides {
		if s.PublicID == publicID {
			p.Slides = append(p.Slides[:i], p.Slides[i+1:]...)
			return true
		}
	}
	return false
}
