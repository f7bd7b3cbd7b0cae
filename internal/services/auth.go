package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"pixelforge/internal/config"
	"pixelforge/internal/domain"
	"pixelforge/internal/metrics"
	"pixelforge/internal/util"
)

const invalidCredentials = "invalid email or password"

// RegisterPayload creates a client account.
type RegisterPayload struct {
	Name     string  `json:"name" validate:"notblank,max=100"`
	Email    string  `json:"email" validate:"notblank,email"`
	Password string  `json:"password" validate:"notblank,min=8,max=128"`
	Phone    *string `json:"phone" validate:"omitempty,max=20"`
	Company  *string `json:"company" validate:"omitempty,max=200"`
}

// LoginPayload carries credentials.
type LoginPayload struct {
	Email    string `json:"email" validate:"notblank,email"`
	Password string `json:"password" validate:"notblank"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	User      *domain.User `json:"user"`
}

// ProfilePayload edits the caller's own profile. Nil fields are left as is.
type ProfilePayload struct {
	Name    *string `json:"name" validate:"omitempty,notblank,max=100"`
	Phone   *string `json:"phone" validate:"omitempty,max=20"`
	Company *string `json:"company" validate:"omitempty,max=200"`
}

// ChangePasswordPayload changes the caller's password.
type ChangePasswordPayload struct {
	CurrentPassword string `json:"current_password" validate:"notblank"`
	NewPassword     string `json:"new_password" validate:"notblank,min=8,max=128"`
}

// ForgotPasswordPayload requests a reset code.
type ForgotPasswordPayload struct {
	Email string `json:"email" validate:"notblank,email"`
}

// ResetPasswordPayload sets a new password using a mailed code.
type ResetPasswordPayload struct {
	Email    string `json:"email" validate:"notblank,email"`
	Code     string `json:"code" validate:"notblank,len=6,numeric"`
	Password string `json:"password" validate:"notblank,min=8,max=128"`
}

// MessageResult is a body that only carries a message.
type MessageResult struct {
	Message string `json:"message"`
}

// AuthService implements registration, login and password management
type AuthService struct {
	db      *gorm.DB
	cfg     *config.AuthConfig
	outbox  *Outbox
	limiter *util.RateLimiter
	log     *zap.Logger
	now     func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(db *gorm.DB, cfg *config.AuthConfig, outbox *Outbox, log *zap.Logger) *AuthService {
	return &AuthService{
		db:      db,
		cfg:     cfg,
		outbox:  outbox,
		limiter: util.NewRateLimiter(cfg.ResetRequestsPerMin),
		log:     log.Named("auth"),
		now:     time.Now,
	}
}

// Register creates an active client account and signs a token for it.
func (s *AuthService) Register(ctx context.Context, p *RegisterPayload) (*AuthResult, error) {
	if err := validatePayload(p); err != nil {
		return nil, err
	}
	email := util.NormalizeEmail(p.Email)

	if taken, err := emailTaken(ctx, s.db, email, 0); err != nil {
		return nil, err
	} else if taken {
		s.log.Info("register rejected: email taken", zap.String("email", email))
		return nil, conflict("email already registered")
	}

	hashed, err := util.HashPassword(p.Password)
	if err != nil {
		return nil, internalError("failed to hash password", err)
	}
	user := &domain.User{
		Name:          strings.TrimSpace(p.Name),
		Email:         email,
		Password:      hashed,
		Role:          domain.RoleClient,
		AccountStatus: domain.AccountActive,
		Phone:         trimmedOrNil(p.Phone),
		Company:       trimmedOrNil(p.Company),
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, conflict("email already registered")
		}
		return nil, internalError("failed to create user", err)
	}

	token, err := util.GenerateToken(s.cfg, user)
	if err != nil {
		return nil, internalError("failed to generate token", err)
	}
	s.log.Info("user registered", zap.Uint("id", user.ID), zap.String("email", email))
	return &AuthResult{Token: token, TokenType: "bearer", User: user}, nil
}

// Login checks credentials and runs the lockout state machine: every wrong
// password counts an attempt, reaching the limit locks the account for the
// lock window, and a locked account is refused regardless of password until
// the window passes. A correct password clears the counter.
func (s *AuthService) Login(ctx context.Context, p *LoginPayload) (*AuthResult, error) {
	if err := validatePayload(p); err != nil {
		return nil, err
	}
	email := util.NormalizeEmail(p.Email)

	var user domain.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Info("login failed: unknown email", zap.String("email", email))
			metrics.RecordAuthAttempt("failure")
			return nil, unauthorized(invalidCredentials)
		}
		return nil, internalError("failed to load user", err)
	}

	now := s.now().UTC()
	if user.IsLocked(now) {
		s.log.Info("login refused: account locked", zap.String("email", email), zap.Time("lock_until", *user.LockUntil))
		metrics.RecordAuthAttempt("locked")
		return nil, locked("account is temporarily locked due to too many failed login attempts")
	}

	if !util.CheckPasswordHash(p.Password, user.Password) {
		if err := s.recordFailure(ctx, &user, now); err != nil {
			return nil, err
		}
		metrics.RecordAuthAttempt("failure")
		return nil, unauthorized(invalidCredentials)
	}

	if !user.IsActive() {
		s.log.Info("login refused: account not active", zap.String("email", email), zap.String("status", user.AccountStatus))
		metrics.RecordAuthAttempt("failure")
		return nil, forbidden("account is " + user.AccountStatus)
	}

	user.LoginAttempts = 0
	user.LockUntil = nil
	user.LastLogin = &now
	err := s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"login_attempts": 0,
		"lock_until":     nil,
		"last_login":     now,
	}).Error
	if err != nil {
		return nil, internalError("failed to record login", err)
	}

	token, err := util.GenerateToken(s.cfg, &user)
	if err != nil {
		return nil, internalError("failed to generate token", err)
	}
	s.log.Info("login successful", zap.Uint("id", user.ID), zap.String("email", email), zap.String("role", user.Role))
	metrics.RecordAuthAttempt("success")
	return &AuthResult{Token: token, TokenType: "bearer", User: &user}, nil
}

// recordFailure counts a wrong password. A lock that has already expired
// starts a fresh count.
func (s *AuthService) recordFailure(ctx context.Context, user *domain.User, now time.Time) error {
	attempts := user.LoginAttempts + 1
	if user.LockUntil != nil {
		attempts = 1
	}

	var lockUntil *time.Time
	if attempts >= s.cfg.MaxLoginAttempts {
		until := now.Add(time.Duration(s.cfg.LockDurationMinutes) * time.Minute)
		lockUntil = &until
	}

	user.LoginAttempts = attempts
	user.LockUntil = lockUntil
	err := s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"login_attempts": attempts,
		"lock_until":     lockUntil,
	}).Error
	if err != nil {
		return internalError("failed to record login attempt", err)
	}

	if lockUntil != nil {
		s.log.Warn("account locked", zap.String("email", user.Email), zap.Int("attempts", attempts), zap.Time("lock_until", *lockUntil))
	} else {
		s.log.Info("login failed: wrong password", zap.String("email", user.Email), zap.Int("attempts", attempts))
	}
	return nil
}

// Logout acknowledges a logout. Tokens are stateless and stay valid until
// they expire; the client discards its copy.
func (s *AuthService) Logout(ctx context.Context) (*MessageResult, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Info("logout", zap.Uint("id", user.ID))
	return &MessageResult{Message: "Successfully logged out"}, nil
}

// Me returns the authenticated user.
func (s *AuthService) Me(ctx context.Context) (*domain.User, error) {
	return currentUser(ctx)
}

// UpdateProfile edits the caller's name, phone and company.
func (s *AuthService) UpdateProfile(ctx context.Context, p *ProfilePayload) (*domain.User, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validatePayload(p); err != nil {
		return nil, err
	}

	if p.Name != nil {
		user.Name = strings.TrimSpace(*p.Name)
	}
	if p.Phone != nil {
		user.Phone = trimmedOrNil(p.Phone)
	}
	if p.Company != nil {
		user.Company = trimmedOrNil(p.Company)
	}
	err = s.db.WithContext(ctx).Model(user).Select("name", "phone", "company").Updates(user).Error
	if err != nil {
		return nil, internalError("failed to update profile", err)
	}
	s.log.Info("profile updated", zap.Uint("id", user.ID))
	return user, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, p *ChangePasswordPayload) (*MessageResult, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validatePayload(p); err != nil {
		return nil, err
	}
	if !util.CheckPasswordHash(p.CurrentPassword, user.Password) {
		return nil, unauthorized("current password is incorrect")
	}

	hashed, err := util.HashPassword(p.NewPassword)
	if err != nil {
		return nil, internalError("failed to hash password", err)
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password", hashed).Error; err != nil {
		return nil, internalError("failed to change password", err)
	}
	user.Password = hashed
	s.log.Info("password changed", zap.Uint("id", user.ID))
	return &MessageResult{Message: "Password changed successfully"}, nil
}

const forgotPasswordMessage = "If an account exists for this email, a reset code has been sent"

// ForgotPassword mails a reset code when the account exists. The response
// is the same either way so callers cannot probe for accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, p *ForgotPasswordPayload) (*MessageResult, error) {
	if err := validatePayload(p); err != nil {
		return nil, err
	}
	email := util.NormalizeEmail(p.Email)
	result := &MessageResult{Message: forgotPasswordMessage}

	if err := s.limiter.Allow(email); err != nil {
		s.log.Warn("reset code request throttled", zap.String("email", email), zap.Error(err))
		return result, nil
	}

	var user domain.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Info("reset code requested for unknown email", zap.String("email", email))
			return result, nil
		}
		return nil, internalError("failed to load user", err)
	}

	code, err := util.GenerateResetCode()
	if err != nil {
		return nil, internalError("failed to generate reset code", err)
	}
	hash := util.HashResetCode(code)
	expires := s.now().UTC().Add(time.Duration(s.cfg.ResetCodeTTLMinutes) * time.Minute)
	err = s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"reset_code_hash":    hash,
		"reset_code_expires": expires,
		"reset_attempts":     0,
	}).Error
	if err != nil {
		return nil, internalError("failed to store reset code", err)
	}

	s.log.Info("reset code issued", zap.Uint("id", user.ID))
	s.outbox.SendAsync(user.Email, "Your password reset code", tmplPasswordReset, struct {
		Name       string
		Code       string
		TTLMinutes int
	}{user.Name, code, s.cfg.ResetCodeTTLMinutes})
	return result, nil
}

const invalidResetCode = "invalid or expired reset code"

// ResetPassword sets a new password when the code matches. Too many wrong
// codes invalidate the outstanding code.
func (s *AuthService) ResetPassword(ctx context.Context, p *ResetPasswordPayload) (*MessageResult, error) {
	if err := validatePayload(p); err != nil {
		return nil, err
	}
	email := util.NormalizeEmail(p.Email)

	var user domain.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, badRequest(invalidResetCode)
		}
		return nil, internalError("failed to load user", err)
	}

	now := s.now().UTC()
	if user.ResetCodeHash == nil || user.ResetCodeExpires == nil || !user.ResetCodeExpires.After(now) {
		return nil, badRequest(invalidResetCode)
	}

	if !util.ResetCodeMatches(p.Code, *user.ResetCodeHash) {
		attempts := user.ResetAttempts + 1
		updates := map[string]any{"reset_attempts": attempts}
		if attempts >= util.MaxResetCodeAttempts {
			updates["reset_code_hash"] = nil
			updates["reset_code_expires"] = nil
			s.log.Warn("reset code invalidated after too many attempts", zap.Uint("id", user.ID))
		}
		if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return nil, internalError("failed to record reset attempt", err)
		}
		return nil, badRequest(invalidResetCode)
	}

	hashed, err := util.HashPassword(p.Password)
	if err != nil {
		return nil, internalError("failed to hash password", err)
	}
	err = s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"password":           hashed,
		"reset_code_hash":    nil,
		"reset_code_expires": nil,
		"reset_attempts":     0,
		"login_attempts":     0,
		"lock_until":         nil,
	}).Error
	if err != nil {
		return nil, internalError("failed to reset password", err)
	}
	s.log.Info("password reset", zap.Uint("id", user.ID))
	return &MessageResult{Message: "Password has been reset"}, nil
}
