package services

import (
	"errors"
	"os"
	"strconv"

	"talent-registration-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VoteService owns the append-only paid-vote ledger. Intents are
// recorded here; credit happens only through the payment reconciler so
// the contestant aggregate and the ledger move together.
type VoteService struct {
	DB        *gorm.DB
	Payments  *PaymentService
	VotePrice float64
}

func NewVoteService(db *gorm.DB, payments *PaymentService, votePrice float64) *VoteService {
	return &VoteService{DB: db, Payments: payments, VotePrice: votePrice}
}

// VotePriceFromEnv reads VOTE_PRICE with a default.
func VotePriceFromEnv() float64 {
	if v := os.Getenv("VOTE_PRICE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return 100
}

// RecordVoteIntent creates the PaymentRecord + pending VoteRecord pair
// sharing one unique reference, before the payer is redirected to the
// gateway.
func (s *VoteService) RecordVoteIntent(contestantID, voterEmail string, numberOfVotes int) (*models.VoteRecord, *models.PaymentRecord, error) {
	if numberOfVotes <= 0 {
		return nil, nil, errors.New("number_of_votes must be positive")
	}

	var contestant models.Contestant
	if err := s.DB.Where("id = ? AND status = ?", contestantID, "active").First(&contestant).Error; err != nil {
		return nil, nil, err
	}

	amount := float64(numberOfVotes) * s.VotePrice
	reference := NewReference("VOTE")

	vote := &models.VoteRecord{
		ID:               uuid.NewString(),
		ContestantID:     contestant.ID,
		VoterEmail:       voterEmail,
		NumberOfVotes:    numberOfVotes,
		AmountPaid:       amount,
		PaymentReference: reference,
		PaymentStatus:    models.FeePending,
	}

	var rec *models.PaymentRecord
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		rec, err = s.Payments.CreateIntent(tx, reference, amount, models.SubjectVote, contestant.ID, map[string]interface{}{
			"type":           "vote_payment",
			"contestantId":   contestant.ID,
			"votesPurchased": numberOfVotes,
		})
		if err != nil {
			return err
		}
		return tx.Create(vote).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return vote, rec, nil
}

/* --- HTTP handlers --- */

// CreateVoteIntentHandler handles POST /votes.
func (s *VoteService) CreateVoteIntentHandler(c *fiber.Ctx) error {
	var req struct {
		ContestantID  string `json:"contestant_id"`
		VoterEmail    string `json:"voter_email"`
		NumberOfVotes int    `json:"number_of_votes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.ContestantID == "" || req.NumberOfVotes <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "contestant_id and a positive number_of_votes are required"})
	}

	vote, rec, err := s.RecordVoteIntent(req.ContestantID, req.VoterEmail, req.NumberOfVotes)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "contestant not found"})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"reference": rec.Reference,
		"amount":    rec.Amount,
		"currency":  rec.Currency,
		"vote":      vote,
	})
}

// ListContestants handles GET /contestants — public tally listing. The
// denormalized counters only ever include completed payments, so they
// are served as-is.
func (s *VoteService) ListContestants(c *fiber.Ctx) error {
	var contestants []models.Contestant
	if err := s.DB.Where("status = ?", "active").
		Order("total_votes DESC").
		Find(&contestants).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(contestants)
}

// GetContestantVotes handles GET /contestants/:slug/votes. Pending and
// failed records stay visible for audit but never count toward totals.
func (s *VoteService) GetContestantVotes(c *fiber.Ctx) error {
	var contestant models.Contestant
	if err := s.DB.Where("slug = ? OR id = ?", c.Params("slug"), c.Params("slug")).First(&contestant).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "contestant not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var records []models.VoteRecord
	if err := s.DB.Where("contestant_id = ?", contestant.ID).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(fiber.Map{
		"contestant":        contestant,
		"total_votes":       contestant.TotalVotes,
		"total_vote_amount": contestant.TotalVoteAmount,
		"records":           records,
	})
}
