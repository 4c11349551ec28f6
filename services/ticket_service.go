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

// TicketService sells event tickets. Orders are created pending;
// admission tickets are minted by the payment reconciler when the
// order's payment settles.
type TicketService struct {
	DB          *gorm.DB
	Payments    *PaymentService
	TicketPrice float64
}

func NewTicketService(db *gorm.DB, payments *PaymentService, ticketPrice float64) *TicketService {
	return &TicketService{DB: db, Payments: payments, TicketPrice: ticketPrice}
}

// TicketPriceFromEnv reads TICKET_PRICE with a default.
func TicketPriceFromEnv() float64 {
	if v := os.Getenv("TICKET_PRICE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return 2000
}

// CreateOrder records a pending purchase and its payment intent.
func (s *TicketService) CreateOrder(buyerEmail, buyerName string, quantity int) (*models.TicketPurchase, *models.PaymentRecord, error) {
	if quantity <= 0 {
		return nil, nil, errors.New("quantity must be positive")
	}

	reference := NewReference("TKT")
	purchase := &models.TicketPurchase{
		ID:               uuid.NewString(),
		BuyerEmail:       buyerEmail,
		BuyerName:        buyerName,
		Quantity:         quantity,
		Amount:           float64(quantity) * s.TicketPrice,
		PaymentReference: reference,
		Status:           models.TicketOrderPending,
	}

	var rec *models.PaymentRecord
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(purchase).Error; err != nil {
			return err
		}
		var err error
		rec, err = s.Payments.CreateIntent(tx, reference, purchase.Amount, models.SubjectTicket, purchase.ID, map[string]interface{}{
			"type":     "ticket_payment",
			"quantity": quantity,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return purchase, rec, nil
}

/* --- HTTP handlers --- */

// CreateOrderHandler handles POST /tickets.
func (s *TicketService) CreateOrderHandler(c *fiber.Ctx) error {
	var req struct {
		BuyerEmail string `json:"buyer_email"`
		BuyerName  string `json:"buyer_name"`
		Quantity   int    `json:"quantity"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.BuyerEmail == "" || req.Quantity <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "buyer_email and a positive quantity are required"})
	}

	purchase, rec, err := s.CreateOrder(req.BuyerEmail, req.BuyerName, req.Quantity)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"purchase":  purchase,
		"reference": rec.Reference,
		"amount":    rec.Amount,
		"currency":  rec.Currency,
	})
}

// GetPurchase handles GET /tickets/:id.
func (s *TicketService) GetPurchase(c *fiber.Ctx) error {
	var purchase models.TicketPurchase
	if err := s.DB.Preload("Tickets").Where("id = ?", c.Params("id")).First(&purchase).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "purchase not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(purchase)
}
