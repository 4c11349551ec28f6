package services

import (
	"log"
	"os"
	"strings"
	"time"

	"talent-registration-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService owns identity: registration bootstrap, email
// verification, credential setting, login, and password resets.
type AuthService struct {
	DB         *gorm.DB
	Codes      *CodeService
	Email      *EmailService
	SigningKey []byte
	TokenTTL   time.Duration
}

func NewAuthService(db *gorm.DB, codes *CodeService, email *EmailService) *AuthService {
	key := os.Getenv("JWT_SIGNING_KEY")
	if key == "" {
		log.Fatal("JWT_SIGNING_KEY environment variable not set")
	}
	return &AuthService{
		DB:         db,
		Codes:      codes,
		Email:      email,
		SigningKey: []byte(key),
		TokenTTL:   24 * time.Hour,
	}
}

// StartRegistration bootstraps a contestant: a user row, a draft
// registration, and an emailed verification code. Re-registering with
// an email that never finished verification supersedes the stale
// attempt instead of failing on the unique email index.
func (s *AuthService) StartRegistration(email, firstName, lastName, kind string) (*models.User, *models.Registration, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if kind != models.KindGroup {
		kind = models.KindIndividual
	}

	var user models.User
	var reg *models.Registration
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", email).First(&user).Error
		switch {
		case err == nil && user.EmailVerified:
			return fiber.NewError(fiber.StatusConflict, "email is already registered")
		case err == nil:
			// Stale unverified attempt: refresh names and reuse the row.
			if err := tx.Model(&user).Updates(map[string]interface{}{
				"first_name": firstName,
				"last_name":  lastName,
			}).Error; err != nil {
				return err
			}
		case err == gorm.ErrRecordNotFound:
			user = models.User{
				ID:        uuid.NewString(),
				FirstName: firstName,
				LastName:  lastName,
				Email:     email,
				Role:      models.RoleContestant,
				Active:    true,
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		default:
			return err
		}

		var existing models.Registration
		err = tx.Where("user_id = ? AND status = ?", user.ID, models.RegistrationDraft).First(&existing).Error
		if err == nil {
			reg = &existing
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		reg = &models.Registration{
			ID:     uuid.NewString(),
			UserID: user.ID,
			Kind:   kind,
			Status: models.RegistrationDraft,
		}
		return tx.Create(reg).Error
	})
	if err != nil {
		return nil, nil, err
	}

	vc, err := s.Codes.Issue(email, models.PurposeEmailVerification, DefaultCodeTTL)
	if err != nil {
		return nil, nil, err
	}
	s.Email.SendCode(email, vc.Code, models.PurposeEmailVerification)

	return &user, reg, nil
}

// VerifyEmail checks the code without burning it, so the follow-up
// SetPassword call can consume the same code. One code covers the whole
// verify-then-set-credentials flow.
func (s *AuthService) VerifyEmail(email, code string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	ok, err := s.Codes.Peek(email, code, models.PurposeEmailVerification)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid or expired code")
	}

	var user models.User
	if err := s.DB.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	if !user.EmailVerified {
		if err := s.DB.Model(&user).Update("email_verified", true).Error; err != nil {
			return nil, err
		}
		user.EmailVerified = true
	}
	return &user, nil
}

// SetPassword burns the verification code and stores the bcrypt hash.
// Consuming here (rather than at VerifyEmail) means the code is spent
// exactly once per completed flow.
func (s *AuthService) SetPassword(email, code, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(password) < 8 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "password must be at least 8 characters")
	}
	ok, err := s.Codes.Consume(email, code, models.PurposeEmailVerification)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid or expired code")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	hashStr := string(hash)

	var user models.User
	if err := s.DB.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&user).Updates(map[string]interface{}{
		"password_hash":  hashStr,
		"password_set":   true,
		"email_verified": true,
	}).Error; err != nil {
		return nil, err
	}
	user.PasswordHash = &hashStr
	user.PasswordSet = true
	user.EmailVerified = true
	return &user, nil
}

// Login verifies credentials and mints a signed token.
func (s *AuthService) Login(email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.DB.Where("email = ? AND active = ?", email, true).First(&user).Error; err != nil {
		return "", nil, fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}
	if user.PasswordHash == nil || !user.PasswordSet {
		return "", nil, fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return "", nil, fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"role":  user.Role,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.TokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.SigningKey)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

// ForgotPassword issues a reset (or verification) code. The response is
// identical whether or not the email exists, so the endpoint cannot be
// used to enumerate accounts.
func (s *AuthService) ForgotPassword(email string) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.DB.Where("email = ?", email).First(&user).Error; err != nil {
		return
	}
	purpose := s.Codes.DetectPurpose(email)
	vc, err := s.Codes.Issue(email, purpose, DefaultCodeTTL)
	if err != nil {
		log.Printf("❌ Failed to issue %s code for %s: %v", purpose, email, err)
		return
	}
	s.Email.SendCode(email, vc.Code, purpose)
}

// ResetPassword burns a password_reset code and replaces the hash.
func (s *AuthService) ResetPassword(email, code, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(password) < 8 {
		return fiber.NewError(fiber.StatusBadRequest, "password must be at least 8 characters")
	}
	ok, err := s.Codes.Consume(email, code, models.PurposePasswordReset)
	if err != nil {
		return err
	}
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "invalid or expired code")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.DB.Model(&models.User{}).
		Where("email = ?", email).
		Updates(map[string]interface{}{
			"password_hash": string(hash),
			"password_set":  true,
		}).Error
}

/* --- HTTP handlers --- */

// StartRegistrationHandler handles POST /auth/register.
func (s *AuthService) StartRegistrationHandler(c *fiber.Ctx) error {
	var req struct {
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Kind      string `json:"kind"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email is required"})
	}

	user, reg, err := s.StartRegistration(req.Email, req.FirstName, req.LastName, req.Kind)
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to start registration"})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":         user,
		"registration": reg,
		"message":      "verification code sent",
	})
}

// VerifyEmailHandler handles POST /auth/verify-email.
func (s *AuthService) VerifyEmailHandler(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	user, err := s.VerifyEmail(req.Email, req.Code)
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "verification failed"})
	}
	return c.JSON(fiber.Map{"user": user, "verified": true})
}

// SetPasswordHandler handles POST /auth/set-password.
func (s *AuthService) SetPasswordHandler(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Code     string `json:"code"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	user, err := s.SetPassword(req.Email, req.Code, req.Password)
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to set password"})
	}
	return c.JSON(fiber.Map{"user": user})
}

// LoginHandler handles POST /auth/login.
func (s *AuthService) LoginHandler(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	token, user, err := s.Login(req.Email, req.Password)
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "login failed"})
	}
	return c.JSON(fiber.Map{"token": token, "user": user})
}

// ForgotPasswordHandler handles POST /auth/forgot-password. Always 200.
func (s *AuthService) ForgotPasswordHandler(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	s.ForgotPassword(req.Email)
	return c.JSON(fiber.Map{"message": "if that email is registered, a code has been sent"})
}

// ResetPasswordHandler handles POST /auth/reset-password.
func (s *AuthService) ResetPasswordHandler(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Code     string `json:"code"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if err := s.ResetPassword(req.Email, req.Code, req.Password); err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to reset password"})
	}
	return c.JSON(fiber.Map{"message": "password updated"})
}
