package services

import (
	"testing"

	"talent-registration-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestAuth(t *testing.T) (*AuthService, *gorm.DB) {
	t.Helper()
	t.Setenv("JWT_SIGNING_KEY", "test-signing-key")
	db := newTestDB(t)
	codes := NewCodeService(db)
	email := NewEmailService(&LogSender{})
	return NewAuthService(db, codes, email), db
}

func latestCode(t *testing.T, db *gorm.DB, email string) string {
	t.Helper()
	var vc models.VerificationCode
	require.NoError(t, db.Where("email = ?", email).Order("created_at DESC").First(&vc).Error)
	return vc.Code
}

func TestStartRegistrationCreatesUserAndDraft(t *testing.T) {
	auth, db := newTestAuth(t)

	user, reg, err := auth.StartRegistration("New@Example.com", "Ada", "Obi", models.KindIndividual)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	assert.False(t, user.EmailVerified)
	assert.Equal(t, models.RegistrationDraft, reg.Status)
	assert.Equal(t, user.ID, reg.UserID)

	var codeCount int64
	require.NoError(t, db.Model(&models.VerificationCode{}).Where("email = ?", "new@example.com").Count(&codeCount).Error)
	assert.EqualValues(t, 1, codeCount)
}

func TestStartRegistrationSupersedesStaleAttempt(t *testing.T) {
	auth, _ := newTestAuth(t)

	first, firstReg, err := auth.StartRegistration("retry@example.com", "Old", "Name", models.KindIndividual)
	require.NoError(t, err)

	// Unverified email re-registers: same identity row, refreshed names,
	// same draft reused.
	second, secondReg, err := auth.StartRegistration("retry@example.com", "New", "Name", models.KindIndividual)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "New", second.FirstName)
	assert.Equal(t, firstReg.ID, secondReg.ID)
}

func TestStartRegistrationRejectsVerifiedEmail(t *testing.T) {
	auth, db := newTestAuth(t)

	user, _, err := auth.StartRegistration("done@example.com", "A", "B", models.KindIndividual)
	require.NoError(t, err)
	require.NoError(t, db.Model(user).Update("email_verified", true).Error)

	_, _, err = auth.StartRegistration("done@example.com", "A", "B", models.KindIndividual)
	assert.Error(t, err)
}

func TestVerifyThenSetPasswordBurnsCodeOnce(t *testing.T) {
	auth, db := newTestAuth(t)

	_, _, err := auth.StartRegistration("flow@example.com", "Ada", "Obi", models.KindIndividual)
	require.NoError(t, err)
	code := latestCode(t, db, "flow@example.com")

	// Verification peeks; the code survives for the credentials call.
	user, err := auth.VerifyEmail("flow@example.com", code)
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)

	user, err = auth.SetPassword("flow@example.com", code, "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, user.PasswordSet)

	// The code was consumed by SetPassword; a replay must fail.
	_, err = auth.SetPassword("flow@example.com", code, "another-pass")
	assert.Error(t, err)
}

func TestVerifyEmailRejectsBadCode(t *testing.T) {
	auth, _ := newTestAuth(t)

	_, _, err := auth.StartRegistration("bad@example.com", "A", "B", models.KindIndividual)
	require.NoError(t, err)

	_, err = auth.VerifyEmail("bad@example.com", "000000")
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	auth, db := newTestAuth(t)

	_, _, err := auth.StartRegistration("login@example.com", "Ada", "Obi", models.KindIndividual)
	require.NoError(t, err)
	code := latestCode(t, db, "login@example.com")
	_, err = auth.SetPassword("login@example.com", code, "s3cret-pass")
	require.NoError(t, err)

	token, user, err := auth.Login("login@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, models.RoleContestant, user.Role)

	_, _, err = auth.Login("login@example.com", "wrong-pass")
	assert.Error(t, err)
	_, _, err = auth.Login("ghost@example.com", "s3cret-pass")
	assert.Error(t, err)
}

func TestPasswordResetFlow(t *testing.T) {
	auth, db := newTestAuth(t)

	_, _, err := auth.StartRegistration("reset@example.com", "Ada", "Obi", models.KindIndividual)
	require.NoError(t, err)
	code := latestCode(t, db, "reset@example.com")
	_, err = auth.SetPassword("reset@example.com", code, "first-pass")
	require.NoError(t, err)

	// Verified identity gets a password_reset code.
	auth.ForgotPassword("reset@example.com")
	var vc models.VerificationCode
	require.NoError(t, db.Where("email = ? AND purpose = ?", "reset@example.com", models.PurposePasswordReset).
		Order("created_at DESC").First(&vc).Error)

	require.NoError(t, auth.ResetPassword("reset@example.com", vc.Code, "second-pass"))

	_, _, err = auth.Login("reset@example.com", "first-pass")
	assert.Error(t, err)
	_, _, err = auth.Login("reset@example.com", "second-pass")
	assert.NoError(t, err)

	// Unknown emails are silently ignored.
	auth.ForgotPassword("ghost@example.com")
	var ghostCodes int64
	require.NoError(t, db.Model(&models.VerificationCode{}).Where("email = ?", "ghost@example.com").Count(&ghostCodes).Error)
	assert.Zero(t, ghostCodes)
}
