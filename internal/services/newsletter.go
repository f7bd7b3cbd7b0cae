package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/yuin/goldmark"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"pixelforge/internal/domain"
	"pixelforge/internal/metrics"
	"pixelforge/internal/util"
)

// Campaign actions
const (
	ActionDraft    = "draft"
	ActionSchedule = "schedule"
	ActionSend     = "send"
)

// SubscribePayload subscribes an email to the newsletter.
type SubscribePayload struct {
	Email  string   `json:"email" validate:"notblank,email"`
	Tags   []string `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	Source *string  `json:"source" validate:"omitempty,max=100"`
}

// UnsubscribePayload unsubscribes an email.
type UnsubscribePayload struct {
	Email string `json:"email" validate:"notblank,email"`
}

// SubscribeResult reports what a subscribe call did.
type SubscribeResult struct {
	Subscriber *domain.Subscriber `json:"subscriber"`
	Message    string             `json:"message"`
	Created    bool               `json:"-"`
}

// SubscriberFilter narrows the subscriber list.
type SubscriberFilter struct {
	ListParams
	Subscribed *bool
}

// CampaignPayload creates a campaign. Markdown content is used only when no
// HTML content is given.
type CampaignPayload struct {
	Title           string     `json:"title" validate:"notblank,max=200"`
	Subject         string     `json:"subject" validate:"notblank,max=200"`
	HTMLContent     string     `json:"html_content"`
	MarkdownContent string     `json:"markdown_content"`
	Action          string     `json:"action" validate:"omitempty,oneof=draft schedule send"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
}

// CampaignUpdatePayload edits a draft campaign. Nil fields are left as is.
type CampaignUpdatePayload struct {
	Title           *string    `json:"title" validate:"omitempty,notblank,max=200"`
	Subject         *string    `json:"subject" validate:"omitempty,notblank,max=200"`
	HTMLContent     *string    `json:"html_content"`
	MarkdownContent *string    `json:"markdown_content"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
}

// NewsletterService implements subscriptions and campaigns
type NewsletterService struct {
	db          *gorm.DB
	mailer      Mailer
	renderer    *Renderer
	outbox      *Outbox
	concurrency int
	log         *zap.Logger
	now         func() time.Time
}

// NewNewsletterService creates a new newsletter service. concurrency caps
// parallel campaign sends; 0 means no cap.
func NewNewsletterService(db *gorm.DB, mailer Mailer, renderer *Renderer, outbox *Outbox, concurrency int, log *zap.Logger) *NewsletterService {
	return &NewsletterService{
		db:          db,
		mailer:      mailer,
		renderer:    renderer,
		outbox:      outbox,
		concurrency: concurrency,
		log:         log.Named("newsletter"),
		now:         time.Now,
	}
}

// Subscribe creates a subscriber, resubscribes a lapsed one on the same row
// with tags merged, or does nothing for a current subscriber.
func (s *NewsletterService) Subscribe(ctx context.Context, p *SubscribePayload) (*SubscribeResult, error) {
	if err := validatePayload(p); err != nil {
		return nil, err
	}
	email := util.NormalizeEmail(p.Email)

	var sub domain.Subscriber
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&sub).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		sub = domain.Subscriber{
			Email:            email,
			IsSubscribed:     true,
			SubscriptionDate: s.now().UTC(),
			Source:           trimmedOrNil(p.Source),
		}
		sub.MergeTags(p.Tags)
		if err := s.db.WithContext(ctx).Create(&sub).Error; err != nil {
			if isDuplicateKey(err) {
				// Lost a race with a concurrent subscribe for the same email.
				return s.Subscribe(ctx, p)
			}
			return nil, internalError("failed to save subscriber", err)
		}
		s.log.Info("subscribed", zap.String("email", email))
		metrics.RecordSubscription("subscribe")
		s.sendWelcome(email)
		return &SubscribeResult{Subscriber: &sub, Message: "Successfully subscribed to the newsletter", Created: true}, nil

	case err != nil:
		return nil, internalError("failed to load subscriber", err)
	}

	if sub.IsSubscribed {
		return &SubscribeResult{Subscriber: &sub, Message: "Email is already subscribed"}, nil
	}

	sub.IsSubscribed = true
	sub.SubscriptionDate = s.now().UTC()
	sub.UnsubscriptionDate = nil
	sub.MergeTags(p.Tags)
	if sub.Source == nil {
		sub.Source = trimmedOrNil(p.Source)
	}
	if err := s.db.WithContext(ctx).Save(&sub).Error; err != nil {
		return nil, internalError("failed to resubscribe", err)
	}
	s.log.Info("resubscribed", zap.String("email", email), zap.Strings("tags", sub.Tags))
	metrics.RecordSubscription("resubscribe")
	s.sendWelcome(email)
	return &SubscribeResult{Subscriber: &sub, Message: "Welcome back! You have been resubscribed"}, nil
}

func (s *NewsletterService) sendWelcome(email string) {
	s.outbox.SendAsync(email, "Welcome to our newsletter", tmplNewsletterWelcome, struct{ Email string }{email})
}

// Unsubscribe flips the subscriber's flag off and stamps the date.
func (s *NewsletterService) Unsubscribe(ctx context.Context, p *UnsubscribePayload) (*domain.Subscriber, error) {
	if err := validatePayload(p); err != nil {
		return nil, err
	}
	email := util.NormalizeEmail(p.Email)

	var sub domain.Subscriber
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&sub).Error; err != nil {
		return nil, lookupError(err, "subscriber")
	}
	if !sub.IsSubscribed {
		return &sub, nil
	}

	now := s.now().UTC()
	sub.IsSubscribed = false
	sub.UnsubscriptionDate = &now
	if err := s.db.WithContext(ctx).Save(&sub).Error; err != nil {
		return nil, internalError("failed to unsubscribe", err)
	}
	s.log.Info("unsubscribed", zap.String("email", email))
	metrics.RecordSubscription("unsubscribe")
	return &sub, nil
}

// ListSubscribers returns one page of subscribers, newest first.
func (s *NewsletterService) ListSubscribers(ctx context.Context, f SubscriberFilter) (*Page[domain.Subscriber], error) {
	params := f.ListParams.normalized()
	query := s.db.WithContext(ctx).Model(&domain.Subscriber{})
	if f.Subscribed != nil {
		query = query.Where("is_subscribed = ?", *f.Subscribed)
	}
	if params.Search != "" {
		query = query.Where("LOWER(email) LIKE ?", likePattern(params.Search))
	}

	page, err := paginate[domain.Subscriber](query, params)
	if err != nil {
		return nil, internalError("failed to list subscribers", err)
	}
	return page, nil
}

// CreateCampaign stores a campaign as a draft, schedules it, or sends it
// right away depending on the action.
func (s *NewsletterService) CreateCampaign(ctx context.Context, p *CampaignPayload) (*domain.Newsletter, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validatePayload(p); err != nil {
		return nil, err
	}
	content, err := campaignContent(p.HTMLContent, p.MarkdownContent)
	if err != nil {
		return nil, err
	}

	n := &domain.Newsletter{
		Title:       strings.TrimSpace(p.Title),
		Subject:     strings.TrimSpace(p.Subject),
		HTMLContent: content,
		Status:      domain.CampaignDraft,
		ScheduledAt: p.ScheduledAt,
		CreatedBy:   user.Email,
	}

	switch p.Action {
	case "", ActionDraft:
	case ActionSchedule:
		if p.ScheduledAt == nil {
			return nil, badRequest("scheduled_at is required to schedule a campaign")
		}
		if !p.ScheduledAt.After(s.now()) {
			return nil, badRequest("scheduled_at must be in the future")
		}
		at := p.ScheduledAt.UTC()
		n.ScheduledAt = &at
		n.Status = domain.CampaignScheduled
	case ActionSend:
		recipients, err := s.recipients(ctx)
		if err != nil {
			return nil, err
		}
		if len(recipients) == 0 {
			return nil, badRequest("no subscribed recipients")
		}
		now := s.now().UTC()
		n.Status = domain.CampaignSent
		n.SentAt = &now
		n.Recipients = recipients
		n.RecipientCount = len(recipients)
	}

	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, internalError("failed to save campaign", err)
	}
	s.log.Info("campaign created",
		zap.Uint("id", n.ID),
		zap.String("status", n.Status),
		zap.Int("recipients", n.RecipientCount),
		zap.String("by", user.Email))

	if n.Status == domain.CampaignSent {
		s.deliver(ctx, n)
	}
	return n, nil
}

// ListCampaigns returns one page of campaigns, newest first.
func (s *NewsletterService) ListCampaigns(ctx context.Context, params ListParams) (*Page[domain.Newsletter], error) {
	params = params.normalized()
	query := s.db.WithContext(ctx).Model(&domain.Newsletter{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Search != "" {
		like := likePattern(params.Search)
		query = query.Where("LOWER(title) LIKE ? OR LOWER(subject) LIKE ?", like, like)
	}

	page, err := paginate[domain.Newsletter](query, params)
	if err != nil {
		return nil, internalError("failed to list campaigns", err)
	}
	return page, nil
}

// GetCampaign returns one campaign.
func (s *NewsletterService) GetCampaign(ctx context.Context, id uint) (*domain.Newsletter, error) {
	var n domain.Newsletter
	if err := s.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, lookupError(err, "campaign")
	}
	return &n, nil
}

// UpdateCampaign edits a draft campaign.
func (s *NewsletterService) UpdateCampaign(ctx context.Context, id uint, p *CampaignUpdatePayload) (*domain.Newsletter, error) {
	if err := validatePayload(p); err != nil {
		return nil, err
	}
	n, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if !n.IsEditable() {
		return nil, badRequest("only draft campaigns can be edited")
	}

	if p.Title != nil {
		n.Title = strings.TrimSpace(*p.Title)
	}
	if p.Subject != nil {
		n.Subject = strings.TrimSpace(*p.Subject)
	}
	if p.HTMLContent != nil || p.MarkdownContent != nil {
		var htmlContent, markdown string
		if p.HTMLContent != nil {
			htmlContent = *p.HTMLContent
		}
		if p.MarkdownContent != nil {
			markdown = *p.MarkdownContent
		}
		content, err := campaignContent(htmlContent, markdown)
		if err != nil {
			return nil, err
		}
		n.HTMLContent = content
	}
	if p.ScheduledAt != nil {
		at := p.ScheduledAt.UTC()
		n.ScheduledAt = &at
	}

	if err := s.db.WithContext(ctx).Save(n).Error; err != nil {
		return nil, internalError("failed to update campaign", err)
	}
	s.log.Info("campaign updated", zap.Uint("id", n.ID))
	return n, nil
}

// DeleteCampaign removes a draft campaign.
func (s *NewsletterService) DeleteCampaign(ctx context.Context, id uint) error {
	n, err := s.GetCampaign(ctx, id)
	if err != nil {
		return err
	}
	if !n.IsEditable() {
		return badRequest("only draft campaigns can be deleted")
	}
	if err := s.db.WithContext(ctx).Delete(n).Error; err != nil {
		return internalError("failed to delete campaign", err)
	}
	s.log.Info("campaign deleted", zap.Uint("id", id))
	return nil
}

// SendCampaign sends an unsent campaign to every current subscriber.
func (s *NewsletterService) SendCampaign(ctx context.Context, id uint) (*domain.Newsletter, error) {
	n, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Status == domain.CampaignSent {
		return nil, badRequest("campaign has already been sent")
	}
	if err := s.dispatch(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// DispatchDue sends every scheduled campaign whose time has come and
// returns how many were sent. A due campaign with no recipients is paused.
func (s *NewsletterService) DispatchDue(ctx context.Context) (int, error) {
	var due []domain.Newsletter
	err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", domain.CampaignScheduled, s.now().UTC()).
		Order("scheduled_at ASC").
		Find(&due).Error
	if err != nil {
		return 0, internalError("failed to load scheduled campaigns", err)
	}

	sent := 0
	for i := range due {
		n := &due[i]
		err := s.dispatch(ctx, n)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, errNoRecipients):
			s.pause(ctx, n, "no subscribed recipients")
		case errors.Is(err, errAlreadySent):
		default:
			s.log.Error("scheduled dispatch failed", zap.Uint("id", n.ID), zap.Error(err))
		}
	}
	return sent, nil
}

var (
	errNoRecipients = badRequest("no subscribed recipients")
	errAlreadySent  = badRequest("campaign has already been sent")
)

// dispatch claims the campaign for sending, snapshots recipients and
// delivers. The claim is a conditional update, so a campaign is only ever
// sent once even when a manual send races the scheduler.
func (s *NewsletterService) dispatch(ctx context.Context, n *domain.Newsletter) error {
	recipients, err := s.recipients(ctx)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return errNoRecipients
	}

	now := s.now().UTC()
	res := s.db.WithContext(ctx).Model(&domain.Newsletter{}).
		Where("id = ? AND status <> ?", n.ID, domain.CampaignSent).
		Select("status", "sent_at", "recipients", "recipient_count").
		Updates(&domain.Newsletter{
			Status:         domain.CampaignSent,
			SentAt:         &now,
			Recipients:     recipients,
			RecipientCount: len(recipients),
		})
	if res.Error != nil {
		return internalError("failed to mark campaign sent", res.Error)
	}
	if res.RowsAffected == 0 {
		return errAlreadySent
	}

	n.Status = domain.CampaignSent
	n.SentAt = &now
	n.Recipients = recipients
	n.RecipientCount = len(recipients)
	s.log.Info("campaign dispatched", zap.Uint("id", n.ID), zap.Int("recipients", n.RecipientCount))

	s.deliver(ctx, n)
	return nil
}

func (s *NewsletterService) pause(ctx context.Context, n *domain.Newsletter, reason string) {
	err := s.db.WithContext(ctx).Model(n).Updates(map[string]any{
		"status":         domain.CampaignPaused,
		"delivery_error": reason,
	}).Error
	if err != nil {
		s.log.Error("failed to pause campaign", zap.Uint("id", n.ID), zap.Error(err))
		return
	}
	s.log.Warn("scheduled campaign paused", zap.Uint("id", n.ID), zap.String("reason", reason))
}

// recipients returns the emails of every current subscriber.
func (s *NewsletterService) recipients(ctx context.Context) ([]string, error) {
	emails := []string{}
	err := s.db.WithContext(ctx).Model(&domain.Subscriber{}).
		Where("is_subscribed = ?", true).
		Order("id ASC").
		Pluck("email", &emails).Error
	if err != nil {
		return nil, internalError("failed to load recipients", err)
	}
	return emails, nil
}

// deliver sends one email per recipient concurrently. The campaign is
// already claimed as sent, so delivery runs detached from the caller's
// cancellation and every recipient gets exactly one attempt. A failed
// recipient is counted and never stops the others; only a failure of the
// round itself is recorded as the campaign's delivery error.
func (s *NewsletterService) deliver(ctx context.Context, n *domain.Newsletter) {
	ctx = context.WithoutCancel(ctx)
	var delivered, failed atomic.Int64
	roundErr := s.sendAll(n, &delivered, &failed)

	updates := map[string]any{
		"delivered_count": int(delivered.Load()),
		"failed_count":    int(failed.Load()),
	}
	n.DeliveredCount = int(delivered.Load())
	n.FailedCount = int(failed.Load())
	if roundErr != nil {
		msg := roundErr.Error()
		n.DeliveryError = &msg
		updates["delivery_error"] = msg
		s.log.Error("campaign delivery failed", zap.Uint("id", n.ID), zap.Error(roundErr))
	}

	if err := s.db.WithContext(ctx).Model(&domain.Newsletter{}).Where("id = ?", n.ID).Updates(updates).Error; err != nil {
		s.log.Error("failed to record delivery counts", zap.Uint("id", n.ID), zap.Error(err))
	}
	s.log.Info("campaign delivered",
		zap.Uint("id", n.ID),
		zap.Int("delivered", n.DeliveredCount),
		zap.Int("failed", n.FailedCount))
}

func (s *NewsletterService) sendAll(n *domain.Newsletter, delivered, failed *atomic.Int64) error {
	// Render once up front so a broken template fails the round, not every
	// recipient.
	if _, _, err := s.renderCampaign(n, n.Recipients[0]); err != nil {
		failed.Store(int64(len(n.Recipients)))
		return fmt.Errorf("render campaign: %w", err)
	}

	g := new(errgroup.Group)
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for _, email := range n.Recipients {
		g.Go(func() error {
			htmlBody, textBody, err := s.renderCampaign(n, email)
			if err == nil {
				err = s.mailer.SendHTMLEmail(email, n.Subject, htmlBody, textBody)
			}
			metrics.RecordNewsletterDelivery(err == nil)
			if err != nil {
				failed.Add(1)
				s.log.Warn("newsletter delivery failed", zap.Uint("id", n.ID), zap.String("to", email), zap.Error(err))
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	return g.Wait()
}

func (s *NewsletterService) renderCampaign(n *domain.Newsletter, email string) (string, string, error) {
	return s.renderer.Render(tmplNewsletterCampaign, n.Subject, struct {
		Email string
		Body  htmltemplate.HTML
		Text  string
	}{email, htmltemplate.HTML(n.HTMLContent), plainText(n.HTMLContent)})
}

// campaignContent returns the HTML body, rendering markdown when no HTML
// is given.
func campaignContent(htmlContent, markdown string) (string, error) {
	if strings.TrimSpace(htmlContent) != "" {
		return htmlContent, nil
	}
	if strings.TrimSpace(markdown) == "" {
		return "", validationError("html_content is required")
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", badRequest("markdown_content could not be rendered")
	}
	return buf.String(), nil
}

var blankLinePattern = regexp.MustCompile(`\n{3,}`)

// plainText strips markup for the text/plain alternative. Script and style
// bodies are dropped; block ends become line breaks.
func plainText(s string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
tokens:
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			break tokens
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style:
				if tt == html.StartTagToken {
					skip++
				}
			case atom.Br:
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style:
				if skip > 0 {
					skip--
				}
			case atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Li, atom.Tr:
				b.WriteByte('\n')
			}
		}
	}

	lines := strings.Split(b.String(), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	out := strings.Join(lines, "\n")
	return strings.TrimSpace(blankLinePattern.ReplaceAllString(out, "\n\n"))
}
