package models

import (
	"time"
)

const (
	PurposeEmailVerification = "email_verification"
	PurposePasswordReset     = "password_reset"
)

// VerificationCode is a short-lived numeric one-time code bound to
// (email, purpose). Issuing never invalidates older codes; validation
// always targets the newest unused, unexpired, matching row. Used flips
// to true exactly once — the update is conditioned on used = false so
// only one concurrent consumer wins.
type VerificationCode struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"index;not null"`
	Code      string    `json:"-" gorm:"type:varchar(8);not null"`
	Purpose   string    `json:"purpose" gorm:"type:varchar(32);not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	Used      bool      `json:"used" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

// Valid reports whether the code can still be consumed at t.
func (v *VerificationCode) Valid(t time.Time) bool {
	return !v.Used && v.ExpiresAt.After(t)
}
