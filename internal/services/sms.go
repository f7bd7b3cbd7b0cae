package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"pixelforge/internal/config"
)

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

// SMSSender delivers a short text message.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
	IsEnabled() bool
}

// SMSService handles sending SMS messages
type SMSService struct {
	cfg     *config.SMSConfig
	log     *zap.Logger
	client  *http.Client
	baseURL string
}

// NewSMSService creates a new SMS service
func NewSMSService(cfg *config.SMSConfig, log *zap.Logger) *SMSService {
	return &SMSService{
		cfg:     cfg,
		log:     log.Named("sms"),
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: twilioBaseURL,
	}
}

// Send sends message to phone through the configured provider
func (s *SMSService) Send(ctx context.Context, phone, message string) error {
	if !s.cfg.Enabled {
		s.log.Info("sms disabled, not sending", zap.String("to", phone))
		return nil
	}

	switch strings.ToLower(s.cfg.Provider) {
	case "twilio":
		return s.sendViaTwilio(ctx, phone, message)
	case "console", "dev", "development":
		s.log.Info("sms", zap.String("to", phone), zap.String("body", message))
		return nil
	default:
		return fmt.Errorf("unsupported SMS provider: %s", s.cfg.Provider)
	}
}

// IsEnabled returns whether SMS service is enabled
func (s *SMSService) IsEnabled() bool {
	return s.cfg.Enabled
}

// NormalizePhone prefixes a country code when none is present, assuming US
// numbers.
func NormalizePhone(phone string) string {
	phone = strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '(' || r == ')' || r == '.' {
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
	if phone == "" || strings.HasPrefix(phone, "+") {
		return phone
	}
	if strings.HasPrefix(phone, "1") && len(phone) == 11 {
		return "+" + phone
	}
	return "+1" + phone
}

// sendViaTwilio sends SMS via the Twilio Messages API
func (s *SMSService) sendViaTwilio(ctx context.Context, phone, message string) error {
	if s.cfg.TwilioSID == "" || s.cfg.TwilioAuth == "" || s.cfg.TwilioFrom == "" {
		return fmt.Errorf("twilio not properly configured")
	}

	form := url.Values{}
	form.Set("From", s.cfg.TwilioFrom)
	form.Set("To", NormalizePhone(phone))
	form.Set("Body", message)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, s.cfg.TwilioSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(s.cfg.TwilioSID, s.cfg.TwilioAuth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("twilio API error (status %d, code %d): %s", resp.StatusCode, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("twilio API error (status %d)", resp.StatusCode)
	}
	return nil
}
