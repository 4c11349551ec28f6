package models

import (
	"time"
)

// Ticket purchase statuses.
const (
	TicketOrderPending   = "pending"
	TicketOrderCompleted = "completed"
	TicketOrderFailed    = "failed"
)

// TicketPurchase is a paid order for event tickets. Tickets are minted
// exactly once, by the reconciler, when the payment settles.
type TicketPurchase struct {
	ID         string  `json:"id" gorm:"primaryKey"`
	BuyerEmail string  `json:"buyer_email" gorm:"index;not null"`
	BuyerName  string  `json:"buyer_name"`
	Quantity   int     `json:"quantity" gorm:"not null"`
	Amount     float64 `json:"amount" gorm:"not null"`

	PaymentReference string `json:"payment_reference" gorm:"uniqueIndex;not null"`
	Status           string `json:"status" gorm:"type:varchar(16);default:'pending'"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Tickets []Ticket `json:"tickets,omitempty" gorm:"foreignKey:PurchaseID"`
}

// Ticket is one admission unit minted from a completed purchase.
type Ticket struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	PurchaseID   string    `json:"purchase_id" gorm:"index;not null"`
	TicketNumber string    `json:"ticket_number" gorm:"uniqueIndex;not null"`
	IssuedAt     time.Time `json:"issued_at" gorm:"autoCreateTime"`
}
