package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentRecord lifecycle. A record moves exactly once from a
// non-terminal to a terminal status; Reference is the idempotency key
// for the whole reconciler.
const (
	PaymentInitiated  = "initiated"
	PaymentPending    = "pending"
	PaymentSuccessful = "successful"
	PaymentFailed     = "failed"
	PaymentCancelled  = "cancelled"
	PaymentRefunded   = "refunded"
)

// What a payment settles. Drives the reconciler fan-out.
const (
	SubjectRegistration = "registration"
	SubjectBulk         = "bulk"
	SubjectVote         = "vote"
	SubjectTicket       = "ticket"
)

// PaymentRecord is created at payment-intent time, before the payer is
// redirected to the gateway. Replays of the same reference observe the
// terminal status and skip side effects.
type PaymentRecord struct {
	ID        string  `json:"id" gorm:"primaryKey"`
	Reference string  `json:"reference" gorm:"uniqueIndex;not null"`
	Amount    float64 `json:"amount" gorm:"not null"`
	Currency  string  `json:"currency" gorm:"type:varchar(8);default:'NGN'"`
	Status    string  `json:"status" gorm:"type:varchar(16);default:'initiated'"`

	SubjectType string `json:"subject_type" gorm:"type:varchar(16);not null;index"`
	SubjectID   string `json:"subject_id" gorm:"index;not null"`

	Metadata datatypes.JSONMap `json:"metadata,omitempty"`

	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// IsTerminal reports whether no further transition is permitted.
func (p *PaymentRecord) IsTerminal() bool {
	switch p.Status {
	case PaymentSuccessful, PaymentFailed, PaymentCancelled, PaymentRefunded:
		return true
	default:
		return false
	}
}

// Gateway event processing statuses.
const (
	GatewayEventReceived  = "received"
	GatewayEventProcessed = "processed"
	GatewayEventAmbiguous = "ambiguous"
	GatewayEventFailed    = "failed"
)

// PaymentGatewayEvent logs every webhook / verification payload as
// delivered, for audit and manual reconciliation of ambiguous statuses.
// Many rows per payment are expected under at-least-once delivery.
type PaymentGatewayEvent struct {
	ID        string         `json:"id" gorm:"primaryKey"`
	Reference string         `json:"reference" gorm:"index"`
	Source    string         `json:"source" gorm:"type:varchar(16)"` // webhook | verify | requery
	Payload   datatypes.JSON `json:"payload"`
	Status    string         `json:"status" gorm:"type:varchar(16);default:'received'"`
	Error     *string        `json:"error,omitempty"`

	ReceivedAt  time.Time  `json:"received_at" gorm:"autoCreateTime"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
