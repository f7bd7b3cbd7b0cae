package services

import (
	"context"
	"errors"

	"goa.design/goa/v3/security"
	"gorm.io/gorm"

	"pixelforge/internal/config"
	"pixelforge/internal/domain"
	"pixelforge/internal/util"
)

// Scopes used by JWT security schemes. A scheme's RequiredScopes lists the
// roles allowed through; an empty list admits any authenticated user.
var (
	StaffScopes = []string{domain.RoleAdmin, domain.RoleManager}
	AdminScopes = []string{domain.RoleAdmin}
)

type ctxKey int

const userKey ctxKey = iota

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user stored by the gate.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userKey).(*domain.User)
	return user, ok && user != nil
}

func currentUser(ctx context.Context) (*domain.User, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return nil, unauthorized("authentication required")
	}
	return user, nil
}

// AuthGate checks bearer tokens and role membership.
type AuthGate struct {
	db  *gorm.DB
	cfg *config.AuthConfig
}

// NewAuthGate creates a new auth gate
func NewAuthGate(db *gorm.DB, cfg *config.AuthConfig) *AuthGate {
	return &AuthGate{db: db, cfg: cfg}
}

// JWTAuth implements the authorization logic for the JWT security scheme
func (g *AuthGate) JWTAuth(ctx context.Context, token string, scheme *security.JWTScheme) (context.Context, error) {
	claims, err := util.ValidateToken(g.cfg, token)
	if err != nil {
		return ctx, unauthorized("invalid or expired token")
	}
	id, err := claims.UserID()
	if err != nil {
		return ctx, unauthorized("invalid or expired token")
	}

	var user domain.User
	if err := g.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ctx, unauthorized("user not found")
		}
		return ctx, internalError("failed to load user", err)
	}

	if !user.IsActive() {
		return ctx, unauthorized("user account is not active")
	}

	if scheme != nil && len(scheme.RequiredScopes) > 0 && !user.HasRole(scheme.RequiredScopes...) {
		return ctx, forbidden("insufficient permissions")
	}

	return WithUser(ctx, &user), nil
}
