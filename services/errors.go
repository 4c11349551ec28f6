package services

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors shared across services. Handlers translate these into
// HTTP statuses; everything else surfaces as a 500.
var (
	// ErrUnknownReference means no payment intent exists for a gateway
	// outcome; the intent must be created before redirecting the payer.
	ErrUnknownReference = errors.New("unknown payment reference")

	// ErrAmbiguousStatus means the gateway payload carried a status this
	// integration does not recognize. Never applied, held for review.
	ErrAmbiguousStatus = errors.New("ambiguous gateway status")

	// ErrSubjectNotFound means a payment record points at a
	// registration, pool, contestant or purchase that no longer exists.
	// Surfaced to an operator, never auto-healed.
	ErrSubjectNotFound = errors.New("payment subject not found")

	ErrWorkflowTerminal = errors.New("registration already submitted")
	ErrPoolNotActive    = errors.New("slot pool is not active")
	ErrPoolExhausted    = errors.New("slot pool has no remaining slots")
)

// StepValidationError names the conditional field that blocked a step
// update.
type StepValidationError struct {
	Step  int
	Field string
}

func (e *StepValidationError) Error() string {
	return fmt.Sprintf("step %d: missing required field %q", e.Step, e.Field)
}

// WorkflowIncompleteError enumerates what still blocks submission.
type WorkflowIncompleteError struct {
	MissingSteps   []int
	MissingPayment bool
}

func (e *WorkflowIncompleteError) Error() string {
	var parts []string
	if len(e.MissingSteps) > 0 {
		parts = append(parts, fmt.Sprintf("incomplete steps %v", e.MissingSteps))
	}
	if e.MissingPayment {
		parts = append(parts, "registration fee not completed")
	}
	return "registration not submittable: " + strings.Join(parts, "; ")
}
