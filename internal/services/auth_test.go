package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelforge/internal/domain"
	apperrors "pixelforge/pkg/errors"
)

func login(svc *AuthService, email, password string) (*AuthResult, error) {
	return svc.Login(context.Background(), &LoginPayload{Email: email, Password: password})
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	svc := NewAuthService(f.db, f.auth, f.outbox, f.log)

	res, err := svc.Register(context.Background(), &RegisterPayload{
		Name: "Dana", Email: "Dana@Example.com", Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "bearer", res.TokenType)
	assert.Equal(t, "dana@example.com", res.User.Email)
	assert.Equal(t, domain.RoleClient, res.User.Role)
	assert.NotEqual(t, "correct-horse", res.User.Password)

	_, err = svc.Register(context.Background(), &RegisterPayload{
		Name: "Dana again", Email: "dana@example.com", Password: "another-pass",
	})
	requireCode(t, err, apperrors.ErrCodeConflict)

	_, err = svc.Register(context.Background(), &RegisterPayload{Name: "Short", Email: "s@example.com", Password: "short"})
	requireCode(t, err, apperrors.ErrCodeValidation)
}

func TestLoginLockout(t *testing.T) {
	f := newFixture(t)
	svc := NewAuthService(f.db, f.auth, f.outbox, f.log)
	f.user(t, "locked@example.com", domain.RoleClient, "right-password")

	for i := 1; i <= f.auth.MaxLoginAttempts; i++ {
		_, err := login(svc, "locked@example.com", "wrong-password")
		requireCode(t, err, apperrors.ErrCodeUnauthorized)
	}

	var u domain.User
	require.NoError(t, f.db.Where("email = ?", "locked@example.com").First(&u).Error)
	assert.Equal(t, f.auth.MaxLoginAttempts, u.LoginAttempts)
	require.NotNil(t, u.LockUntil)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), *u.LockUntil, time.Minute)

	_, err := login(svc, "locked@example.com", "right-password")
	requireCode(t, err, apperrors.ErrCodeLocked)

	// Once the window passes, a failure starts a fresh count.
	svc.now = func() time.Time { return time.Now().Add(3 * time.Hour) }
	_, err = login(svc, "locked@example.com", "wrong-password")
	requireCode(t, err, apperrors.ErrCodeUnauthorized)
	var reloaded domain.User
	require.NoError(t, f.db.First(&reloaded, u.ID).Error)
	assert.Equal(t, 1, reloaded.LoginAttempts)
	assert.Nil(t, reloaded.LockUntil)

	res, err := login(svc, "locked@example.com", "right-password")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	var afterLogin domain.User
	require.NoError(t, f.db.First(&afterLogin, u.ID).Error)
	assert.Zero(t, afterLogin.LoginAttempts)
	assert.NotNil(t, afterLogin.LastLogin)
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t)
	svc := NewAuthService(f.db, f.auth, f.outbox, f.log)

	_, err := login(svc, "nobody@example.com", "whatever-pass")
	requireCode(t, err, apperrors.ErrCodeUnauthorized)

	u := f.user(t, "inactive@example.com", domain.RoleClient, "right-password")
	require.NoError(t, f.db.Model(u).Update("account_status", domain.AccountSuspended).Error)

	_, err = login(svc, "inactive@example.com", "right-password")
	requireCode(t, err, apperrors.ErrCodeForbidden)
}

func TestProfileAndPassword(t *testing.T) {
	f := newFixture(t)
	svc := NewAuthService(f.db, f.auth, f.outbox, f.log)
	u := f.user(t, "client@example.com", domain.RoleClient, "old-password")
	ctx := as(u)

	me, err := svc.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, u.ID, me.ID)

	_, err = svc.Me(context.Background())
	requireCode(t, err, apperrors.ErrCodeUnauthorized)

	updated, err := svc.UpdateProfile(ctx, &ProfilePayload{Name: strPtr(" Client Co "), Company: strPtr("Acme")})
	require.NoError(t, err)
	assert.Equal(t, "Client Co", updated.Name)
	require.NotNil(t, updated.Company)
	assert.Equal(t, "Acme", *updated.Company)

	_, err = svc.ChangePassword(ctx, &ChangePasswordPayload{CurrentPassword: "not-it", NewPassword: "new-password"})
	requireCode(t, err, apperrors.ErrCodeUnauthorized)

	_, err = svc.ChangePassword(ctx, &ChangePasswordPayload{CurrentPassword: "old-password", NewPassword: "new-password"})
	require.NoError(t, err)

	_, err = login(svc, "client@example.com", "new-password")
	require.NoError(t, err)

	out, err := svc.Logout(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, out.Message)
}

func resetCodeFor(t *testing.T, f *fixture, email string) string {
	t.Helper()
	f.notifier.Wait()
	mails := f.mailer.to(email)
	require.NotEmpty(t, mails)
	code := sixDigits.FindString(mails[len(mails)-1].Text)
	require.Len(t, code, 6)
	return code
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	svc := NewAuthService(f.db, f.auth, f.outbox, f.log)
	u := f.user(t, "forgetful@example.com", domain.RoleClient, "old-password")
	require.NoError(t, f.db.Model(u).Updates(map[string]any{"login_attempts": 5, "lock_until": time.Now().UTC().Add(time.Hour)}).Error)

	unknown, err := svc.ForgotPassword(context.Background(), &ForgotPasswordPayload{Email: "ghost@example.com"})
	require.NoError(t, err)
	known, err := svc.ForgotPassword(context.Background(), &ForgotPasswordPayload{Email: "forgetful@example.com"})
	require.NoError(t, err)
	assert.Equal(t, unknown.Message, known.Message)

	code := resetCodeFor(t, f, "forgetful@example.com")
	assert.Empty(t, f.mailer.to("ghost@example.com"))

	_, err = svc.ResetPassword(context.Background(), &ResetPasswordPayload{Email: "forgetful@example.com", Code: code, Password: "new-password"})
	require.NoError(t, err)

	res, err := login(svc, "forgetful@example.com", "new-password")
	require.NoError(t, err, "reset clears the lockout")
	assert.NotEmpty(t, res.Token)

	_, err = svc.ResetPassword(context.Background(), &ResetPasswordPayload{Email: "forgetful@example.com", Code: code, Password: "another-password"})
	requireCode(t, err, apperrors.ErrCodeBadRequest)
}

func TestResetCodeInvalidatedAfterWrongAttempts(t *testing.T) {
	f := newFixture(t)
	svc := NewAuthService(f.db, f.auth, f.outbox, f.log)
	f.user(t, "target@example.com", domain.RoleClient, "old-password")

	_, err := svc.ForgotPassword(context.Background(), &ForgotPasswordPayload{Email: "target@example.com"})
	require.NoError(t, err)
	code := resetCodeFor(t, f, "target@example.com")

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 0; i < 5; i++ {
		_, err := svc.ResetPassword(context.Background(), &ResetPasswordPayload{Email: "target@example.com", Code: wrong, Password: "new-password"})
		requireCode(t, err, apperrors.ErrCodeBadRequest)
	}

	_, err = svc.ResetPassword(context.Background(), &ResetPasswordPayload{Email: "target@example.com", Code: code, Password: "new-password"})
	requireCode(t, err, apperrors.ErrCodeBadRequest)
}

func TestResetCodeExpires(t *testing.T) {
	f := newFixture(t)
	svc := NewAuthService(f.db, f.auth, f.outbox, f.log)
	f.user(t, "slow@example.com", domain.RoleClient, "old-password")

	_, err := svc.ForgotPassword(context.Background(), &ForgotPasswordPayload{Email: "slow@example.com"})
	require.NoError(t, err)
	code := resetCodeFor(t, f, "slow@example.com")

	svc.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	_, err = svc.ResetPassword(context.Background(), &ResetPasswordPayload{Email: "slow@example.com", Code: code, Password: "new-password"})
	requireCode(t, err, apperrors.ErrCodeBadRequest)
}

func TestForgotPasswordThrottled(t *testing.T) {
	f := newFixture(t)
	f.auth.ResetRequestsPerMin = 1
	svc := NewAuthService(f.db, f.auth, f.outbox, f.log)
	f.user(t, "busy@example.com", domain.RoleClient, "old-password")

	for i := 0; i < 3; i++ {
		res, err := svc.ForgotPassword(context.Background(), &ForgotPasswordPayload{Email: "busy@example.com"})
		require.NoError(t, err)
		assert.Equal(t, forgotPasswordMessage, res.Message)
	}
	f.notifier.Wait()
	assert.Len(t, f.mailer.to("busy@example.com"), 1)
}

func TestCorrectLoginResetsAttempts(t *testing.T) {
	f := newFixture(t)
	svc := NewAuthService(f.db, f.auth, f.outbox, f.log)
	u := f.user(t, "careful@example.com", domain.RoleClient, "right-password")

	for i := 0; i < f.auth.MaxLoginAttempts-1; i++ {
		_, err := login(svc, "careful@example.com", "wrong-password")
		requireCode(t, err, apperrors.ErrCodeUnauthorized)
	}
	_, err := login(svc, "careful@example.com", "right-password")
	require.NoError(t, err)

	var stored domain.User
	require.NoError(t, f.db.First(&stored, u.ID).Error)
	assert.Zero(t, stored.LoginAttempts)

	for i := 0; i < f.auth.MaxLoginAttempts-1; i++ {
		_, err := login(svc, "careful@example.com", "wrong-password")
		requireCode(t, err, apperrors.ErrCodeUnauthorized)
	}
	_, err = login(svc, "careful@example.com", "right-password")
	assert.NoError(t, err, "the earlier failures no longer count")
}
