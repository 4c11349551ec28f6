package services

import (
	"testing"
	"time"

	"talent-registration-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndConsumeCode(t *testing.T) {
	db := newTestDB(t)
	svc := NewCodeService(db)

	vc, err := svc.Issue("Alice@Example.com", models.PurposeEmailVerification, 0)
	require.NoError(t, err)
	assert.Len(t, vc.Code, 6)
	assert.Equal(t, "alice@example.com", vc.Email)

	// Email matching is case-insensitive via lowercasing on both sides.
	ok, err := svc.Consume("alice@example.com", vc.Code, models.PurposeEmailVerification)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second consume of the same code must lose.
	ok, err = svc.Consume("alice@example.com", vc.Code, models.PurposeEmailVerification)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsumeTargetsNewestCode(t *testing.T) {
	db := newTestDB(t)
	svc := NewCodeService(db)

	older, err := svc.Issue("bob@example.com", models.PurposeEmailVerification, time.Hour)
	require.NoError(t, err)
	// Force distinct created_at ordering; sqlite timestamps can collide.
	require.NoError(t, db.Model(older).Update("created_at", time.Now().Add(-time.Minute)).Error)

	newer, err := svc.Issue("bob@example.com", models.PurposeEmailVerification, time.Hour)
	require.NoError(t, err)

	// Issuing again does not invalidate the earlier code; both remain
	// individually consumable.
	ok, err := svc.Consume("bob@example.com", newer.Code, models.PurposeEmailVerification)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Consume("bob@example.com", older.Code, models.PurposeEmailVerification)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConsumeRejectsWrongPurposeAndExpiry(t *testing.T) {
	db := newTestDB(t)
	svc := NewCodeService(db)

	vc, err := svc.Issue("carol@example.com", models.PurposeEmailVerification, time.Hour)
	require.NoError(t, err)

	ok, err := svc.Consume("carol@example.com", vc.Code, models.PurposePasswordReset)
	require.NoError(t, err)
	assert.False(t, ok, "purpose mismatch must not consume")

	expired := &models.VerificationCode{
		ID:        uuid.NewString(),
		Email:     "carol@example.com",
		Code:      "111222",
		Purpose:   models.PurposeEmailVerification,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, db.Create(expired).Error)

	ok, err = svc.Consume("carol@example.com", "111222", models.PurposeEmailVerification)
	require.NoError(t, err)
	assert.False(t, ok, "expired code must not consume")
}

func TestPeekDoesNotBurn(t *testing.T) {
	db := newTestDB(t)
	svc := NewCodeService(db)

	vc, err := svc.Issue("dan@example.com", models.PurposeEmailVerification, time.Hour)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ok, err := svc.Peek("dan@example.com", vc.Code, models.PurposeEmailVerification)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := svc.Consume("dan@example.com", vc.Code, models.PurposeEmailVerification)
	require.NoError(t, err)
	assert.True(t, ok, "peeked code must still be consumable")
}

func TestDetectPurpose(t *testing.T) {
	db := newTestDB(t)
	svc := NewCodeService(db)

	assert.Equal(t, models.PurposeEmailVerification, svc.DetectPurpose("nobody@example.com"))

	require.NoError(t, db.Create(&models.User{
		ID:    uuid.NewString(),
		Email: "eve@example.com",
	}).Error)
	assert.Equal(t, models.PurposeEmailVerification, svc.DetectPurpose("eve@example.com"))

	require.NoError(t, db.Model(&models.User{}).
		Where("email = ?", "eve@example.com").
		Update("email_verified", true).Error)
	assert.Equal(t, models.PurposePasswordReset, svc.DetectPurpose("eve@example.com"))
}

func TestPurgeExpired(t *testing.T) {
	db := newTestDB(t)
	svc := NewCodeService(db)

	_, err := svc.Issue("live@example.com", models.PurposeEmailVerification, time.Hour)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.VerificationCode{
		ID:        uuid.NewString(),
		Email:     "dead@example.com",
		Code:      "000000",
		Purpose:   models.PurposeEmailVerification,
		ExpiresAt: time.Now().Add(-time.Hour),
	}).Error)

	n, err := svc.PurgeExpired()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var remaining int64
	require.NoError(t, db.Model(&models.VerificationCode{}).Count(&remaining).Error)
	assert.EqualValues(t, 1, remaining)
}
