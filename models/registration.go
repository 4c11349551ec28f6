package models

import (
	"time"

	"gorm.io/datatypes"
)

// Registration kinds.
const (
	KindIndividual = "individual"
	KindGroup      = "group"
	KindBulk       = "bulk"
)

// Registration statuses.
const (
	RegistrationDraft        = "draft"
	RegistrationSubmitted    = "submitted"
	RegistrationUnderReview  = "under_review"
	RegistrationApproved     = "approved"
	RegistrationRejected     = "rejected"
	RegistrationQualified    = "qualified"
	RegistrationDisqualified = "disqualified"
)

// Per-registration payment statuses (fee settlement, not the
// PaymentRecord lifecycle).
const (
	FeePending    = "pending"
	FeeProcessing = "processing"
	FeeCompleted  = "completed"
	FeeFailed     = "failed"
	FeeRefunded   = "refunded"
)

// Wizard step numbers. Step 8 (payment) is never completed by a step
// update; the payment reconciler flips it when the fee settles.
const (
	StepPersonal = 1
	StepTalent   = 2
	StepGroup    = 3
	StepGuardian = 4
	StepMedia    = 5
	StepAudition = 6
	StepTerms    = 7
	StepPayment  = 8
)

// RequiredSteps returns the kind-dependent set of steps that must be
// complete before submission. Groups add group info and skip guardian.
func RequiredSteps(kind string) []int {
	if kind == KindGroup {
		return []int{StepPersonal, StepTalent, StepGroup, StepMedia, StepAudition, StepTerms, StepPayment}
	}
	return []int{StepPersonal, StepTalent, StepGuardian, StepMedia, StepAudition, StepTerms, StepPayment}
}

// Registration drives the ordered, resumable multi-step wizard. Each
// step keeps its own JSON payload slot so concurrent edits to different
// steps never clobber each other. Terminal once submitted.
type Registration struct {
	ID     string `json:"id" gorm:"primaryKey"`
	UserID string `json:"user_id" gorm:"index;not null"`
	Kind   string `json:"kind" gorm:"type:varchar(16);default:'individual'"`

	CurrentStep    int                      `json:"current_step" gorm:"default:0"`
	CompletedSteps datatypes.JSONSlice[int] `json:"completed_steps"`

	Personal datatypes.JSONMap `json:"personal,omitempty"`
	Talent   datatypes.JSONMap `json:"talent,omitempty"`
	Group    datatypes.JSONMap `json:"group,omitempty" gorm:"column:group_info"`
	Guardian datatypes.JSONMap `json:"guardian,omitempty"`
	Media    datatypes.JSONMap `json:"media,omitempty"`
	Audition datatypes.JSONMap `json:"audition,omitempty"`
	Terms    datatypes.JSONMap `json:"terms,omitempty"`

	Status string `json:"status" gorm:"type:varchar(16);default:'draft'"`

	PaymentAmount    float64 `json:"payment_amount" gorm:"default:0"`
	PaymentStatus    string  `json:"payment_status" gorm:"type:varchar(16);default:'pending'"`
	PaymentReference string  `json:"payment_reference" gorm:"index"`

	// Set when this registration was created through a sponsor slot pool.
	BulkRegistrationID *string `json:"bulk_registration_id,omitempty" gorm:"index"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// StepPayload returns a pointer to the JSON slot backing the given
// step, or nil for unknown / payment steps.
func (r *Registration) StepPayload(step int) *datatypes.JSONMap {
	switch step {
	case StepPersonal:
		return &r.Personal
	case StepTalent:
		return &r.Talent
	case StepGroup:
		return &r.Group
	case StepGuardian:
		return &r.Guardian
	case StepMedia:
		return &r.Media
	case StepAudition:
		return &r.Audition
	case StepTerms:
		return &r.Terms
	default:
		return nil
	}
}

// StepColumn maps a step number to its database column name.
func StepColumn(step int) string {
	switch step {
	case StepPersonal:
		return "personal"
	case StepTalent:
		return "talent"
	case StepGroup:
		return "group_info"
	case StepGuardian:
		return "guardian"
	case StepMedia:
		return "media"
	case StepAudition:
		return "audition"
	case StepTerms:
		return "terms"
	default:
		return ""
	}
}

// HasCompleted reports whether step is in the completed set.
func (r *Registration) HasCompleted(step int) bool {
	for _, s := range r.CompletedSteps {
		if s == step {
			return true
		}
	}
	return false
}
