package models

import (
	"time"
)

// Contestant is the votable projection of an approved registration.
// TotalVotes / TotalVoteAmount are denormalized and must always equal
// the sum over completed VoteRecords; both sides are written in the
// same transaction by the payment reconciler.
type Contestant struct {
	ID             string `json:"id" gorm:"primaryKey"`
	RegistrationID string `json:"registration_id" gorm:"uniqueIndex;not null"`
	UserID         string `json:"user_id" gorm:"index"`
	StageName      string `json:"stage_name" gorm:"not null"`
	Slug           string `json:"slug" gorm:"uniqueIndex;not null"`
	TalentCategory string `json:"talent_category"`

	TotalVotes      int64   `json:"total_votes" gorm:"default:0"`
	TotalVoteAmount float64 `json:"total_vote_amount" gorm:"default:0"`

	Status    string    `json:"status" gorm:"type:varchar(16);default:'active'"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// VoteRecord is one append-only paid-vote entry. Pending and failed
// rows remain visible for audit but never count toward tallies.
type VoteRecord struct {
	ID           string `json:"id" gorm:"primaryKey"`
	ContestantID string `json:"contestant_id" gorm:"index;not null"`
	VoterEmail   string `json:"voter_email"`

	NumberOfVotes int     `json:"number_of_votes" gorm:"not null"`
	AmountPaid    float64 `json:"amount_paid" gorm:"not null"`

	PaymentReference string `json:"payment_reference" gorm:"uniqueIndex;not null"`
	PaymentStatus    string `json:"payment_status" gorm:"type:varchar(16);default:'pending'"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
