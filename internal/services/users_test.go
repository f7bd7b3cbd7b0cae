package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelforge/internal/domain"
	apperrors "pixelforge/pkg/errors"
)

func TestUserCreateAndUpdate(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.db, f.log)
	admin := f.user(t, "admin@pixelforge.test", domain.RoleAdmin, "password123")
	ctx := as(admin)

	u, err := svc.Create(ctx, &UserCreatePayload{Name: "Web", Email: "web@pixelforge.test", Password: "password123", Role: "web-manager"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, u.Role)
	assert.Equal(t, domain.AccountActive, u.AccountStatus)

	_, err = svc.Create(ctx, &UserCreatePayload{Name: "Dup", Email: "WEB@pixelforge.test", Password: "password123"})
	requireCode(t, err, apperrors.ErrCodeConflict)

	_, err = svc.Create(ctx, &UserCreatePayload{Name: "Odd", Email: "odd@pixelforge.test", Password: "password123", Role: "owner"})
	requireCode(t, err, apperrors.ErrCodeValidation)

	_, err = svc.Update(ctx, u.ID, &UserUpdatePayload{Email: strPtr("admin@pixelforge.test")})
	requireCode(t, err, apperrors.ErrCodeConflict)

	updated, err := svc.Update(ctx, u.ID, &UserUpdatePayload{Role: strPtr("it-support"), AccountStatus: strPtr(domain.AccountSuspended)})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleITSupport, updated.Role)
	assert.Equal(t, domain.AccountSuspended, updated.AccountStatus)

	_, err = svc.Update(ctx, 999, &UserUpdatePayload{Name: strPtr("Nobody")})
	requireCode(t, err, apperrors.ErrCodeNotFound)
}

func TestUserListAndDelete(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.db, f.log)
	admin := f.user(t, "admin@pixelforge.test", domain.RoleAdmin, "password123")
	client := f.user(t, "client@example.com", domain.RoleClient, "password123")
	f.user(t, "other@example.com", domain.RoleClient, "password123")
	ctx := as(admin)

	page, err := svc.List(ctx, UserFilter{Role: "user"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	page, err = svc.List(ctx, UserFilter{ListParams: ListParams{Search: "CLIENT@"}})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, client.ID, page.Items[0].ID)

	requireCode(t, svc.Delete(ctx, admin.ID), apperrors.ErrCodeBadRequest)
	require.NoError(t, svc.Delete(ctx, client.ID))
	requireCode(t, svc.Delete(ctx, client.ID), apperrors.ErrCodeNotFound)

	_, err = svc.Get(ctx, client.ID)
	requireCode(t, err, apperrors.ErrCodeNotFound)
}
