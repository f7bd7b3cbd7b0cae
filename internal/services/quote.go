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

const smsTimeout = 15 * time.Second

// QuoteSubmitPayload is the public quote request form.
type QuoteSubmitPayload struct {
	Name     string  `json:"name" validate:"notblank,max=100"`
	Email    string  `json:"email" validate:"notblank,email"`
	Phone    *string `json:"phone" validate:"omitempty,max=20"`
	Company  *string `json:"company" validate:"omitempty,max=200"`
	Service  string  `json:"service" validate:"notblank,max=100"`
	Budget   *string `json:"budget" validate:"omitempty,max=100"`
	Timeline *string `json:"timeline" validate:"omitempty,max=100"`
	Details  string  `json:"details" validate:"notblank,max=10000"`
}

// QuoteStatusPayload sets a quote's status.
type QuoteStatusPayload struct {
	Status string `json:"status" validate:"notblank,oneof=new reviewed in-progress quoted completed"`
}

// QuoteReplyPayload appends a reply to a quote.
type QuoteReplyPayload struct {
	Message string `json:"message" validate:"notblank,max=10000"`
}

// QuoteService implements the quote service
type QuoteService struct {
	db         *gorm.DB
	outbox     *Outbox
	sms        SMSSender
	adminEmail string
	log        *zap.Logger
	now        func() time.Time
}

// NewQuoteService creates a new quote service
func NewQuoteService(db *gorm.DB, outbox *Outbox, sms SMSSender, adminEmail string, log *zap.Logger) *QuoteService {
	return &QuoteService{
		db:         db,
		outbox:     outbox,
		sms:        sms,
		adminEmail: adminEmail,
		log:        log.Named("quote"),
		now:        time.Now,
	}
}

// Submit stores a quote request, alerts the admin inbox and, when a phone
// number is given, acknowledges by SMS.
func (s *QuoteService) Submit(ctx context.Context, p *QuoteSubmitPayload) (*domain.Quote, error) {
	if err := validatePayload(p); err != nil {
		s.log.Info("submit rejected", zap.Error(err))
		return nil, err
	}

	quote := &domain.Quote{
		Name:     strings.TrimSpace(p.Name),
		Email:    strings.ToLower(strings.TrimSpace(p.Email)),
		Phone:    trimmedOrNil(p.Phone),
		Company:  trimmedOrNil(p.Company),
		Service:  strings.TrimSpace(p.Service),
		Budget:   trimmedOrNil(p.Budget),
		Timeline: trimmedOrNil(p.Timeline),
		Details:  strings.TrimSpace(p.Details),
		Status:   domain.QuoteNew,
		Replies:  []domain.QuoteReply{},
	}
	if err := s.db.WithContext(ctx).Create(quote).Error; err != nil {
		return nil, internalError("failed to save quote", err)
	}

	s.log.Info("quote submitted", zap.Uint("id", quote.ID), zap.String("email", quote.Email), zap.String("service", quote.Service))
	metrics.RecordQuoteSubmission()

	s.outbox.SendAsync(s.adminEmail, fmt.Sprintf("New quote request: %s from %s", quote.Service, quote.Name), tmplQuoteAdmin, quote)

	if quote.Phone != nil && s.sms != nil && s.sms.IsEnabled() {
		phone := *quote.Phone
		message := fmt.Sprintf("Hi %s, we received your %s quote request and will be in touch shortly.", quote.Name, quote.Service)
		s.outbox.Go("quote_sms", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), smsTimeout)
			defer cancel()
			return s.sms.Send(ctx, phone, message)
		})
	}

	return quote, nil
}

// List returns one page of quotes, newest first, replies included.
func (s *QuoteService) List(ctx context.Context, params ListParams) (*Page[domain.Quote], error) {
	params = params.normalized()
	query := s.db.WithContext(ctx).Model(&domain.Quote{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Search != "" {
		like := likePattern(params.Search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(company) LIKE ? OR LOWER(service) LIKE ?", like, like, like, like)
	}

	page, err := paginate[domain.Quote](query, params, preloadReplies)
	if err != nil {
		return nil, internalError("failed to list quotes", err)
	}
	for i := range page.Items {
		page.Items[i].EnsureReplies()
	}
	return page, nil
}

// Get returns one quote with its replies, oldest reply first.
func (s *QuoteService) Get(ctx context.Context, id uint) (*domain.Quote, error) {
	var quote domain.Quote
	if err := s.db.WithContext(ctx).Scopes(preloadReplies).First(&quote, id).Error; err != nil {
		return nil, lookupError(err, "quote")
	}
	quote.EnsureReplies()
	return &quote, nil
}

// UpdateStatus sets the quote status. Any status may follow any other.
func (s *QuoteService) UpdateStatus(ctx context.Context, id uint, p *QuoteStatusPayload) (*domain.Quote, error) {
	if err := validatePayload(p); err != nil {
		return nil, err
	}
	quote, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(quote).Update("status", p.Status).Error; err != nil {
		return nil, internalError("failed to update quote", err)
	}
	quote.Status = p.Status
	s.log.Info("quote status updated", zap.Uint("id", id), zap.String("status", p.Status))
	return quote, nil
}

// Reply appends a reply, moves the quote to in-progress and mails the
// submitter. Replies are separate rows so concurrent replies all survive.
func (s *QuoteService) Reply(ctx context.Context, id uint, p *QuoteReplyPayload) (*domain.Quote, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validatePayload(p); err != nil {
		return nil, err
	}

	var quote domain.Quote
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&quote, id).Error; err != nil {
			return lookupError(err, "quote")
		}
		reply := domain.QuoteReply{
			QuoteID:   quote.ID,
			Message:   strings.TrimSpace(p.Message),
			Sender:    user.Email,
			CreatedAt: s.now().UTC(),
		}
		if err := tx.Create(&reply).Error; err != nil {
			return internalError("failed to save reply", err)
		}
		if err := tx.Model(&quote).Update("status", domain.QuoteInProgress).Error; err != nil {
			return internalError("failed to update quote", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("quote replied", zap.Uint("id", id), zap.Int("replies", len(updated.Replies)), zap.String("by", user.Email))

	s.outbox.SendAsync(updated.Email, fmt.Sprintf("Update on your %s quote request", updated.Service), tmplQuoteReply, struct {
		Name    string
		Service string
		Message string
		Status  string
	}{updated.Name, updated.Service, strings.TrimSpace(p.Message), updated.Status})

	return updated, nil
}

// Delete removes a quote and its replies.
func (s *QuoteService) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quote_id = ?", id).Delete(&domain.QuoteReply{}).Error; err != nil {
			return internalError("failed to delete quote replies", err)
		}
		res := tx.Delete(&domain.Quote{}, id)
		if res.Error != nil {
			return internalError("failed to delete quote", res.Error)
		}
		if res.RowsAffected == 0 {
			return notFound("quote not found")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("quote deleted", zap.Uint("id", id))
	return nil
}

func preloadReplies(db *gorm.DB) *gorm.DB {
	return db.Preload("Replies", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC").Order("id ASC")
	})
}
