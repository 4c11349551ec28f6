package services

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"talent-registration-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MinPoolSlots = 2
	MaxPoolSlots = 50
)

// BulkService manages sponsor slot pools: a prepaid capacity consumed
// one slot per named participant. Capacity is enforced with a
// conditional used_slots increment, never an in-memory lock.
type BulkService struct {
	DB           *gorm.DB
	Payments     *PaymentService
	PricePerSlot float64
}

func NewBulkService(db *gorm.DB, payments *PaymentService, pricePerSlot float64) *BulkService {
	return &BulkService{DB: db, Payments: payments, PricePerSlot: pricePerSlot}
}

// PricePerSlotFromEnv reads PRICE_PER_SLOT with a default.
func PricePerSlotFromEnv() float64 {
	if v := os.Getenv("PRICE_PER_SLOT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return 5000
}

// CreatePool opens a draft pool of 2..50 slots for a sponsor.
func (s *BulkService) CreatePool(ownerID string, totalSlots int) (*models.BulkRegistration, error) {
	if totalSlots < MinPoolSlots || totalSlots > MaxPoolSlots {
		return nil, fmt.Errorf("total_slots must be between %d and %d", MinPoolSlots, MaxPoolSlots)
	}
	pool := &models.BulkRegistration{
		ID:            uuid.NewString(),
		UserID:        ownerID,
		TotalSlots:    totalSlots,
		PricePerSlot:  s.PricePerSlot,
		TotalAmount:   s.PricePerSlot * float64(totalSlots),
		Status:        models.PoolDraft,
		PaymentStatus: models.FeePending,
	}
	if err := s.DB.Create(pool).Error; err != nil {
		return nil, err
	}
	return pool, nil
}

// InitiatePoolPayment creates the payment intent for the whole pool and
// parks it in payment_pending until the reconciler activates it.
func (s *BulkService) InitiatePoolPayment(poolID string) (*models.PaymentRecord, error) {
	var pool models.BulkRegistration
	if err := s.DB.Where("id = ?", poolID).First(&pool).Error; err != nil {
		return nil, err
	}
	switch pool.Status {
	case models.PoolDraft, models.PoolPaymentPending:
	default:
		return nil, fmt.Errorf("pool is %s; payment can no longer be initiated", pool.Status)
	}

	reference := NewReference("BLK")
	var rec *models.PaymentRecord
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		rec, err = s.Payments.CreateIntent(tx, reference, pool.TotalAmount, models.SubjectBulk, pool.ID, map[string]interface{}{
			"type":        "bulk_registration_payment",
			"total_slots": pool.TotalSlots,
		})
		if err != nil {
			return err
		}
		return tx.Model(&pool).Updates(map[string]interface{}{
			"status":            models.PoolPaymentPending,
			"payment_reference": reference,
			"payment_status":    models.FeeProcessing,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// AddParticipant consumes exactly one slot. The increment is guarded by
// a conditional write that re-checks status and remaining capacity, so
// concurrent adds can never overshoot TotalSlots. The pool flips to
// completed when the last slot is taken.
func (s *BulkService) AddParticipant(poolID string, participant models.BulkParticipant) (*models.BulkRegistration, error) {
	var pool models.BulkRegistration
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.BulkRegistration{}).
			Where("id = ? AND status = ? AND used_slots < total_slots", poolID, models.PoolActive).
			Update("used_slots", gorm.Expr("used_slots + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Where("id = ?", poolID).First(&pool).Error; err != nil {
				return err
			}
			// A completed pool is a full pool: capacity, not state, is
			// what rejected the add.
			switch pool.Status {
			case models.PoolActive, models.PoolCompleted:
				return ErrPoolExhausted
			default:
				return ErrPoolNotActive
			}
		}

		participant.ID = uuid.NewString()
		participant.BulkRegistrationID = poolID
		participant.InvitationStatus = models.InvitationPending
		if err := tx.Create(&participant).Error; err != nil {
			return err
		}

		if err := tx.Where("id = ?", poolID).First(&pool).Error; err != nil {
			return err
		}
		if pool.UsedSlots >= pool.TotalSlots {
			if err := tx.Model(&pool).Where("status = ?", models.PoolActive).
				Update("status", models.PoolCompleted).Error; err != nil {
				return err
			}
			pool.Status = models.PoolCompleted
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

// ExpireStalePools marks unpaid pools older than maxAge as expired.
// Called from the maintenance scheduler.
func (s *BulkService) ExpireStalePools(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	res := s.DB.Model(&models.BulkRegistration{}).
		Where("status IN ? AND created_at < ?", []string{models.PoolDraft, models.PoolPaymentPending}, cutoff).
		Update("status", models.PoolExpired)
	return res.RowsAffected, res.Error
}

/* --- HTTP handlers --- */

// CreatePoolHandler handles POST /bulk-registrations.
func (s *BulkService) CreatePoolHandler(c *fiber.Ctx) error {
	var req struct {
		TotalSlots int `json:"total_slots"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	userID, _ := c.Locals("user_id").(string)
	pool, err := s.CreatePool(userID, req.TotalSlots)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(pool)
}

// GetPool handles GET /bulk-registrations/:id.
func (s *BulkService) GetPool(c *fiber.Ctx) error {
	var pool models.BulkRegistration
	if err := s.DB.Preload("Participants").Where("id = ?", c.Params("id")).First(&pool).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "pool not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if !ownerOrAdmin(c, pool.UserID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your pool"})
	}
	return c.JSON(pool)
}

// InitiatePoolPaymentHandler handles POST /bulk-registrations/:id/payment.
func (s *BulkService) InitiatePoolPaymentHandler(c *fiber.Ctx) error {
	rec, err := s.InitiatePoolPayment(c.Params("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "pool not found"})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"reference": rec.Reference,
		"amount":    rec.Amount,
		"currency":  rec.Currency,
	})
}

// AddParticipantHandler handles POST /bulk-registrations/:id/participants.
func (s *BulkService) AddParticipantHandler(c *fiber.Ctx) error {
	var req struct {
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email is required"})
	}

	pool, err := s.AddParticipant(c.Params("id"), models.BulkParticipant{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	switch {
	case err == nil:
		return c.Status(fiber.StatusCreated).JSON(pool)
	case errors.Is(err, ErrPoolNotActive):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "pool is not active"})
	case errors.Is(err, ErrPoolExhausted):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "pool has no remaining slots"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "pool not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
