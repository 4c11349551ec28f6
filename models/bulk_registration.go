package models

import (
	"time"
)

// Slot pool statuses. Participants may only be added while the pool is
// active, i.e. after its payment completed and before it fills up.
const (
	PoolDraft          = "draft"
	PoolPaymentPending = "payment_pending"
	PoolActive         = "active"
	PoolCompleted      = "completed"
	PoolExpired        = "expired"
)

// Participant invitation statuses.
const (
	InvitationPending    = "pending"
	InvitationSent       = "sent"
	InvitationRegistered = "registered"
	InvitationCompleted  = "completed"
)

// BulkRegistration is a prepaid pool of registration slots purchased by
// a sponsor. Invariant: UsedSlots == count(Participants) <= TotalSlots,
// enforced by a conditional increment rather than serialized access.
type BulkRegistration struct {
	ID     string `json:"id" gorm:"primaryKey"`
	UserID string `json:"user_id" gorm:"index;not null"`

	TotalSlots   int     `json:"total_slots" gorm:"not null"`
	UsedSlots    int     `json:"used_slots" gorm:"default:0"`
	PricePerSlot float64 `json:"price_per_slot"`
	TotalAmount  float64 `json:"total_amount"`

	PaymentStatus    string `json:"payment_status" gorm:"type:varchar(16);default:'pending'"`
	PaymentReference string `json:"payment_reference" gorm:"index"`

	Status    string     `json:"status" gorm:"type:varchar(16);default:'draft'"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Participants []BulkParticipant `json:"participants,omitempty" gorm:"foreignKey:BulkRegistrationID"`
}

// BulkParticipant is one consumed slot: a named invitee who registers
// through the sponsor's pool.
type BulkParticipant struct {
	ID                 string `json:"id" gorm:"primaryKey"`
	BulkRegistrationID string `json:"bulk_registration_id" gorm:"index;not null"`
	Email              string `json:"email" gorm:"not null"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`

	ParticipantUserID *string `json:"participant_user_id,omitempty"`
	RegistrationID    *string `json:"registration_id,omitempty"`
	InvitationStatus  string  `json:"invitation_status" gorm:"type:varchar(16);default:'pending'"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
