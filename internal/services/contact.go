package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"pixelforge/internal/domain"
	"pixelforge/internal/metrics"
)

// ContactSubmitPayload is the public contact form.
type ContactSubmitPayload struct {
	FromName    string  `json:"from_name" validate:"notblank,max=100"`
	UserEmail   string  `json:"user_email" validate:"notblank,email"`
	FromContact *string `json:"from_contact" validate:"omitempty,max=50"`
	Subject     *string `json:"subject" validate:"omitempty,max=200"`
	Message     string  `json:"message" validate:"notblank,max=5000"`
}

// ContactUpdatePayload changes a contact's status and optionally records a
// response that is mailed back to the sender.
type ContactUpdatePayload struct {
	Status        string  `json:"status" validate:"notblank,oneof=new pending in-progress replied resolved closed"`
	AdminResponse *string `json:"admin_response" validate:"omitempty,max=5000"`
}

// ContactService implements the contact service
type ContactService struct {
	db         *gorm.DB
	outbox     *Outbox
	adminEmail string
	log        *zap.Logger
	now        func() time.Time
}

// NewContactService creates a new contact service
func NewContactService(db *gorm.DB, outbox *Outbox, adminEmail string, log *zap.Logger) *ContactService {
	return &ContactService{
		db:         db,
		outbox:     outbox,
		adminEmail: adminEmail,
		log:        log.Named("contact"),
		now:        time.Now,
	}
}

// Submit stores a contact form submission and alerts the admin inbox.
func (s *ContactService) Submit(ctx context.Context, p *ContactSubmitPayload) (*domain.Contact, error) {
	if err := validatePayload(p); err != nil {
		s.log.Info("submit rejected", zap.Error(err))
		return nil, err
	}

	contact := &domain.Contact{
		FromName:    strings.TrimSpace(p.FromName),
		UserEmail:   strings.ToLower(strings.TrimSpace(p.UserEmail)),
		FromContact: trimmedOrNil(p.FromContact),
		Subject:     trimmedOrNil(p.Subject),
		Message:     strings.TrimSpace(p.Message),
		Status:      domain.ContactNew,
	}
	if err := s.db.WithContext(ctx).Create(contact).Error; err != nil {
		return nil, internalError("failed to save contact", err)
	}

	s.log.Info("contact submitted", zap.Uint("id", contact.ID), zap.String("email", contact.UserEmail))
	metrics.RecordContactSubmission()

	s.outbox.SendAsync(s.adminEmail, fmt.Sprintf("New contact message from %s", contact.FromName), tmplContactAdmin, struct {
		*domain.Contact
		Submitted string
	}{contact, contact.CreatedAt.Format("January 2, 2006 at 3:04 PM")})

	return contact, nil
}

// List returns one page of contacts, newest first.
func (s *ContactService) List(ctx context.Context, params ListParams) (*Page[domain.Contact], error) {
	params = params.normalized()
	query := s.db.WithContext(ctx).Model(&domain.Contact{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Search != "" {
		like := likePattern(params.Search)
		query = query.Where("LOWER(from_name) LIKE ? OR LOWER(user_email) LIKE ? OR LOWER(message) LIKE ?", like, like, like)
	}

	page, err := paginate[domain.Contact](query, params)
	if err != nil {
		return nil, internalError("failed to list contacts", err)
	}
	return page, nil
}

// Get returns one contact.
func (s *ContactService) Get(ctx context.Context, id uint) (*domain.Contact, error) {
	var contact domain.Contact
	if err := s.db.WithContext(ctx).First(&contact, id).Error; err != nil {
		return nil, lookupError(err, "contact")
	}
	return &contact, nil
}

// Update sets the contact status. Any status may follow any other. A
// non-empty admin response is stamped with the responder and mailed to the
// sender.
func (s *ContactService) Update(ctx context.Context, id uint, p *ContactUpdatePayload) (*domain.Contact, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validatePayload(p); err != nil {
		return nil, err
	}

	contact, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	contact.Status = p.Status
	response := trimmedOrNil(p.AdminResponse)
	if response != nil {
		now := s.now().UTC()
		contact.AdminResponse = response
		contact.RespondedAt = &now
		contact.RespondedBy = &user.Email
	}

	if err := s.db.WithContext(ctx).Save(contact).Error; err != nil {
		return nil, internalError("failed to update contact", err)
	}
	s.log.Info("contact updated",
		zap.Uint("id", contact.ID),
		zap.String("status", contact.Status),
		zap.Bool("responded", response != nil),
		zap.String("by", user.Email))

	if response != nil {
		subject := "Re: your message"
		if contact.Subject != nil {
			subject = "Re: " + *contact.Subject
		}
		s.outbox.SendAsync(contact.UserEmail, subject, tmplContactReply, struct {
			FromName string
			Response string
			Message  string
		}{contact.FromName, *response, contact.Message})
	}

	return contact, nil
}

// Delete removes a contact.
func (s *ContactService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&domain.Contact{}, id)
	if res.Error != nil {
		return internalError("failed to delete contact", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("contact not found")
	}
	s.log.Info("contact deleted", zap.Uint("id", id))
	return nil
}

// trimmedOrNil returns nil for a nil or blank string.
func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
