package models

import (
	"time"
)

// Platform roles. Sponsors own bulk slot pools; contestants own their
// registration workflow.
const (
	RoleContestant = "contestant"
	RoleSponsor    = "sponsor"
	RoleAdmin      = "admin"
)

// User is the durable identity record. Created when a registration
// starts, mutated by code verification (EmailVerified) and by the
// credential-set step (PasswordHash, PasswordSet). A stale unverified
// user is superseded when the same email re-registers.
type User struct {
	ID            string  `json:"id" gorm:"primaryKey"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	Email         string  `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash  *string `json:"-"`
	EmailVerified bool    `json:"email_verified" gorm:"default:false"`
	PasswordSet   bool    `json:"password_set" gorm:"default:false"`
	Role          string  `json:"role" gorm:"type:varchar(16);default:'contestant'"`
	Active        bool    `json:"active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
