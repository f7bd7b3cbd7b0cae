package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goa.design/goa/v3/security"

	"pixelforge/internal/domain"
	"pixelforge/internal/util"
	apperrors "pixelforge/pkg/errors"
)

func TestJWTAuth(t *testing.T) {
	f := newFixture(t)
	gate := NewAuthGate(f.db, f.auth)
	manager := f.user(t, "manager@pixelforge.test", domain.RoleManager, "password123")
	token, err := util.GenerateToken(f.auth, manager)
	require.NoError(t, err)

	ctx, err := gate.JWTAuth(context.Background(), token, &security.JWTScheme{Name: "jwt", RequiredScopes: StaffScopes})
	require.NoError(t, err)
	got, ok := UserFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, manager.ID, got.ID)

	_, err = gate.JWTAuth(context.Background(), token, &security.JWTScheme{Name: "jwt", RequiredScopes: AdminScopes})
	requireCode(t, err, apperrors.ErrCodeForbidden)

	_, err = gate.JWTAuth(context.Background(), token+"x", &security.JWTScheme{Name: "jwt"})
	requireCode(t, err, apperrors.ErrCodeUnauthorized)

	require.NoError(t, f.db.Model(manager).Update("account_status", domain.AccountInactive).Error)
	_, err = gate.JWTAuth(context.Background(), token, &security.JWTScheme{Name: "jwt"})
	requireCode(t, err, apperrors.ErrCodeUnauthorized)

	require.NoError(t, f.db.Delete(manager).Error)
	_, err = gate.JWTAuth(context.Background(), token, &security.JWTScheme{Name: "jwt"})
	requireCode(t, err, apperrors.ErrCodeUnauthorized)
}
