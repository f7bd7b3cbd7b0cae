package services

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"pixelforge/internal/config"
	"pixelforge/internal/database"
	"pixelforge/internal/domain"
	"pixelforge/internal/util"
	apperrors "pixelforge/pkg/errors"
)

type sentMail struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type fakeMailer struct {
	mu     sync.Mutex
	sent   []sentMail
	failTo map[string]bool
	onSend func(subject string)
}

func (m *fakeMailer) SendHTMLEmail(to, subject, htmlBody, textBody string) error {
	m.mu.Lock()
	if m.failTo[to] {
		m.mu.Unlock()
		return errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, HTML: htmlBody, Text: textBody})
	hook := m.onSend
	m.mu.Unlock()
	if hook != nil {
		hook(subject)
	}
	return nil
}

func (m *fakeMailer) to(addr string) []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentMail
	for _, s := range m.sent {
		if s.To == addr {
			out = append(out, s)
		}
	}
	return out
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fixture struct {
	db       *gorm.DB
	mailer   *fakeMailer
	renderer *Renderer
	notifier *Notifier
	outbox   *Outbox
	auth     *config.AuthConfig
	log      *zap.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(&config.DatabaseConfig{URL: "sqlite:///:memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	renderer, err := NewRenderer("Pixelforge", "https://pixelforge.test")
	require.NoError(t, err)

	log := zap.NewNop()
	mailer := &fakeMailer{failTo: map[string]bool{}}
	notifier := NewNotifier(log)
	return &fixture{
		db:       db,
		mailer:   mailer,
		renderer: renderer,
		notifier: notifier,
		outbox:   NewOutbox(mailer, renderer, notifier),
		auth: &config.AuthConfig{
			SecretKey:           "test-secret-key-with-at-least-32-chars",
			TokenExpiryMinutes:  60,
			MaxLoginAttempts:    5,
			LockDurationMinutes: 120,
			ResetCodeTTLMinutes: 15,
			ResetRequestsPerMin: 5,
		},
		log: log,
	}
}

// user inserts an account with the given role and password.
func (f *fixture) user(t *testing.T, email, role, password string) *domain.User {
	t.Helper()
	hashed, err := util.HashPassword(password)
	require.NoError(t, err)
	u := &domain.User{Name: "Test " + role, Email: email, Password: hashed, Role: role, AccountStatus: domain.AccountActive}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

// as returns a context authenticated as u.
func as(u *domain.User) context.Context {
	return WithUser(context.Background(), u)
}

var sixDigits = regexp.MustCompile(`\b\d{6}\b`)

func strPtr(s string) *string { return &s }

func requireCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected an AppError, got %v", err)
	require.Equal(t, code, appErr.Code, appErr.Message)
}
