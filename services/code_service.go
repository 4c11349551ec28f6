package services

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"talent-registration-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const codeLength = 6

// DefaultCodeTTL applies when a caller does not pick a lifetime.
const DefaultCodeTTL = 15 * time.Minute

// CodeService issues and consumes one-time numeric verification codes
// bound to (email, purpose). Issuing never invalidates earlier codes;
// validation always targets the newest matching row.
type CodeService struct {
	DB *gorm.DB
}

func NewCodeService(db *gorm.DB) *CodeService {
	return &CodeService{DB: db}
}

// Issue stores a fresh fixed-length numeric code for (email, purpose).
func (s *CodeService) Issue(email, purpose string, ttl time.Duration) (*models.VerificationCode, error) {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	code, err := generateNumericCode(codeLength)
	if err != nil {
		return nil, err
	}
	vc := &models.VerificationCode{
		ID:        uuid.NewString(),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.DB.Create(vc).Error; err != nil {
		return nil, err
	}
	return vc, nil
}

// Consume validates the newest matching unused, unexpired code and
// burns it. The flip to used is conditioned on used = false, so under a
// double-submit race exactly one caller gets valid = true. The reason a
// code is invalid (missing, expired, already used) is deliberately not
// reported.
func (s *CodeService) Consume(email, code, purpose string) (bool, error) {
	vc, err := s.find(email, code, purpose)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	res := s.DB.Model(&models.VerificationCode{}).
		Where("id = ? AND used = ?", vc.ID, false).
		Update("used", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Peek runs the same validity check as Consume without burning the
// code. Used when a later call in a multi-step flow must re-validate
// the code the earlier call already checked.
func (s *CodeService) Peek(email, code, purpose string) (bool, error) {
	_, err := s.find(email, code, purpose)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DetectPurpose infers the purpose when a caller omits it:
// password_reset once the identity is verified, email_verification
// before that.
func (s *CodeService) DetectPurpose(email string) string {
	var user models.User
	err := s.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err == nil && user.EmailVerified {
		return models.PurposePasswordReset
	}
	return models.PurposeEmailVerification
}

// PurgeExpired removes dead rows. Expiry itself is enforced by
// timestamp comparison on every lookup; this is storage hygiene only.
func (s *CodeService) PurgeExpired() (int64, error) {
	res := s.DB.Where("expires_at < ?", time.Now()).Delete(&models.VerificationCode{})
	return res.RowsAffected, res.Error
}

func (s *CodeService) find(email, code, purpose string) (*models.VerificationCode, error) {
	var vc models.VerificationCode
	err := s.DB.
		Where("email = ? AND code = ? AND purpose = ? AND used = ? AND expires_at > ?",
			strings.ToLower(strings.TrimSpace(email)), code, purpose, false, time.Now()).
		Order("created_at DESC").
		First(&vc).Error
	if err != nil {
		return nil, err
	}
	return &vc, nil
}

func generateNumericCode(n int) (string, error) {
	const digits = "0123456789"
	var b strings.Builder
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		b.WriteByte(digits[idx.Int64()])
	}
	return b.String(), nil
}
