package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"talent-registration-system/models"
	"talent-registration-system/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrStepNotApplicable rejects step payloads that do not belong to the
// registration's kind (e.g. group info on an individual registration).
var ErrStepNotApplicable = errors.New("step not applicable to this registration kind")

// RegistrationService drives the ordered, resumable wizard. Step
// updates merge partial payloads; submission is gated on the
// kind-dependent required-step set plus a completed fee.
type RegistrationService struct {
	DB              *gorm.DB
	Payments        *PaymentService
	RegistrationFee float64

	validate *validator.Validate
}

func NewRegistrationService(db *gorm.DB, payments *PaymentService, fee float64) *RegistrationService {
	v := validator.New()
	// Report json field names in validation errors, not Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RegistrationService{DB: db, Payments: payments, RegistrationFee: fee, validate: v}
}

// RegistrationFeeFromEnv reads REGISTRATION_FEE with a default.
func RegistrationFeeFromEnv() float64 {
	if v := os.Getenv("REGISTRATION_FEE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return 10000
}

/* --- per-step conditional rules --- */

type personalStepPayload struct {
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	DateOfBirth string `json:"date_of_birth" validate:"required"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Region      string `json:"region"`
}

type talentStepPayload struct {
	Category               string `json:"category" validate:"required"`
	OtherCategory          string `json:"other_category" validate:"required_if=Category Other"`
	StageName              string `json:"stage_name"`
	PreviouslyParticipated string `json:"previously_participated"`
	CompetitionName        string `json:"competition_name" validate:"required_if=PreviouslyParticipated Yes"`
}

type groupStepPayload struct {
	GroupName   string `json:"group_name" validate:"required"`
	MemberCount int    `json:"member_count" validate:"omitempty,min=2"`
}

type guardianStepPayload struct {
	GuardianName  string `json:"guardian_name" validate:"required"`
	GuardianPhone string `json:"guardian_phone" validate:"required"`
	Relationship  string `json:"relationship"`
}

type auditionStepPayload struct {
	Location string `json:"location" validate:"required"`
	Date     string `json:"date"`
}

type termsStepPayload struct {
	Accepted bool `json:"accepted" validate:"required"`
}

// validateStep checks the merged payload for the step's conditional
// field rules. The merged map (not just the delta) is validated so a
// partial update cannot complete a step that is still missing fields.
func (s *RegistrationService) validateStep(step int, merged map[string]interface{}) error {
	var target interface{}
	switch step {
	case models.StepPersonal:
		target = &personalStepPayload{}
	case models.StepTalent:
		target = &talentStepPayload{}
	case models.StepGroup:
		target = &groupStepPayload{}
	case models.StepGuardian:
		target = &guardianStepPayload{}
	case models.StepAudition:
		target = &auditionStepPayload{}
	case models.StepTerms:
		target = &termsStepPayload{}
	default:
		return nil // media step carries uploaded URLs only
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return &StepValidationError{Step: step, Field: "payload"}
	}
	if err := s.validate.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &StepValidationError{Step: step, Field: verrs[0].Field()}
		}
		return err
	}
	return nil
}

// UpdateStep merges payload into the step's slot, marks the step
// complete and derives the next actionable step. Rejected once the
// registration is submitted. Concurrent edits to different steps touch
// independent columns and are safe; the later write wins on the same
// step.
func (s *RegistrationService) UpdateStep(regID string, step int, payload map[string]interface{}, nextStep *int) (*models.Registration, error) {
	if step < models.StepPersonal || step > models.StepTerms {
		return nil, &StepValidationError{Step: step, Field: "step"}
	}

	var reg models.Registration
	if err := s.DB.Where("id = ?", regID).First(&reg).Error; err != nil {
		return nil, err
	}
	if reg.Status == models.RegistrationSubmitted {
		return nil, ErrWorkflowTerminal
	}
	if step == models.StepGroup && reg.Kind != models.KindGroup {
		return nil, ErrStepNotApplicable
	}
	if step == models.StepGuardian && reg.Kind == models.KindGroup {
		return nil, ErrStepNotApplicable
	}

	merged := map[string]interface{}{}
	if existing := reg.StepPayload(step); existing != nil {
		for k, v := range *existing {
			merged[k] = v
		}
	}
	for k, v := range payload {
		merged[k] = v
	}

	if err := s.validateStep(step, merged); err != nil {
		return nil, err
	}

	completed := reg.CompletedSteps
	if !reg.HasCompleted(step) {
		completed = append(completed, step)
		sort.Ints(completed)
	}
	reg.CompletedSteps = completed

	current := s.deriveNextStep(&reg, nextStep)

	res := s.DB.Model(&models.Registration{}).
		Where("id = ? AND status <> ?", reg.ID, models.RegistrationSubmitted).
		Updates(map[string]interface{}{
			models.StepColumn(step): datatypes.JSONMap(merged),
			"completed_steps":       completed,
			"current_step":          current,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrWorkflowTerminal
	}

	if err := s.DB.Where("id = ?", reg.ID).First(&reg).Error; err != nil {
		return nil, err
	}
	return &reg, nil
}

// deriveNextStep honors a caller-supplied next step, else picks the
// lowest not-yet-completed required step.
func (s *RegistrationService) deriveNextStep(reg *models.Registration, nextStep *int) int {
	if nextStep != nil && *nextStep >= 0 && *nextStep <= models.StepPayment {
		return *nextStep
	}
	for _, step := range models.RequiredSteps(reg.Kind) {
		if !reg.HasCompleted(step) {
			return step
		}
	}
	return models.StepPayment
}

// Submit checks the full invariant and performs the one-way transition
// to submitted. The fee (step 8) counts as complete only when the
// reconciler has settled it.
func (s *RegistrationService) Submit(regID string) (*models.Registration, error) {
	var reg models.Registration
	if err := s.DB.Where("id = ?", regID).First(&reg).Error; err != nil {
		return nil, err
	}
	if reg.Status == models.RegistrationSubmitted {
		return &reg, nil
	}

	incomplete := &WorkflowIncompleteError{}
	for _, step := range models.RequiredSteps(reg.Kind) {
		if step == models.StepPayment {
			continue
		}
		if !reg.HasCompleted(step) {
			incomplete.MissingSteps = append(incomplete.MissingSteps, step)
		}
	}
	if reg.PaymentStatus != models.FeeCompleted {
		incomplete.MissingPayment = true
	}
	if len(incomplete.MissingSteps) > 0 || incomplete.MissingPayment {
		return nil, incomplete
	}

	now := time.Now()
	res := s.DB.Model(&models.Registration{}).
		Where("id = ? AND status <> ?", reg.ID, models.RegistrationSubmitted).
		Updates(map[string]interface{}{
			"status":       models.RegistrationSubmitted,
			"submitted_at": now,
			"current_step": models.StepPayment,
		})
	if res.Error != nil {
		return nil, res.Error
	}

	if err := s.DB.Where("id = ?", reg.ID).First(&reg).Error; err != nil {
		return nil, err
	}
	return &reg, nil
}

// InitiateFeePayment creates the registration-fee payment intent the
// reconciler will later settle against.
func (s *RegistrationService) InitiateFeePayment(regID string) (*models.PaymentRecord, error) {
	var reg models.Registration
	if err := s.DB.Where("id = ?", regID).First(&reg).Error; err != nil {
		return nil, err
	}
	if reg.Status == models.RegistrationSubmitted {
		return nil, ErrWorkflowTerminal
	}
	if reg.PaymentStatus == models.FeeCompleted {
		return nil, fmt.Errorf("registration fee already settled")
	}

	reference := NewReference("REG")
	var rec *models.PaymentRecord
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		rec, err = s.Payments.CreateIntent(tx, reference, s.RegistrationFee, models.SubjectRegistration, reg.ID, map[string]interface{}{
			"type": "registration_payment",
		})
		if err != nil {
			return err
		}
		return tx.Model(&reg).Updates(map[string]interface{}{
			"payment_reference": reference,
			"payment_status":    models.FeeProcessing,
			"payment_amount":    s.RegistrationFee,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateStatus moves a submitted registration through review. Approval
// mints the votable Contestant projection.
func (s *RegistrationService) UpdateStatus(regID, status string) (*models.Registration, error) {
	allowed := map[string]bool{
		models.RegistrationUnderReview:  true,
		models.RegistrationApproved:     true,
		models.RegistrationRejected:     true,
		models.RegistrationQualified:    true,
		models.RegistrationDisqualified: true,
	}
	if !allowed[status] {
		return nil, fmt.Errorf("invalid review status %q", status)
	}

	var reg models.Registration
	if err := s.DB.Where("id = ?", regID).First(&reg).Error; err != nil {
		return nil, err
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&reg).Update("status", status).Error; err != nil {
			return err
		}
		if status == models.RegistrationApproved {
			return s.mintContestant(tx, &reg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	reg.Status = status
	return &reg, nil
}

// mintContestant creates the contestant once per registration; a second
// approval is a no-op.
func (s *RegistrationService) mintContestant(tx *gorm.DB, reg *models.Registration) error {
	var count int64
	if err := tx.Model(&models.Contestant{}).Where("registration_id = ?", reg.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	stageName, _ := reg.Talent["stage_name"].(string)
	if stageName == "" {
		first, _ := reg.Personal["first_name"].(string)
		last, _ := reg.Personal["last_name"].(string)
		stageName = strings.TrimSpace(first + " " + last)
	}
	if stageName == "" {
		stageName = "Contestant"
	}
	category, _ := reg.Talent["category"].(string)

	contestant := models.Contestant{
		ID:             uuid.NewString(),
		RegistrationID: reg.ID,
		UserID:         reg.UserID,
		StageName:      stageName,
		Slug:           fmt.Sprintf("%s-%s", slug.Make(stageName), reg.ID[:8]),
		TalentCategory: category,
	}
	return tx.Create(&contestant).Error
}

/* --- HTTP handlers --- */

// GetRegistration returns the workflow state so the wizard can resume.
func (s *RegistrationService) GetRegistration(c *fiber.Ctx) error {
	var reg models.Registration
	if err := s.DB.Where("id = ?", c.Params("id")).First(&reg).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "registration not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if !ownerOrAdmin(c, reg.UserID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your registration"})
	}
	return c.JSON(reg)
}

// UpdateStepHandler handles PUT /registrations/:id/steps/:step.
func (s *RegistrationService) UpdateStepHandler(c *fiber.Ctx) error {
	step, err := c.ParamsInt("step")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid step number"})
	}

	var req struct {
		Payload  map[string]interface{} `json:"payload"`
		NextStep *int                   `json:"next_step,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.Payload == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "payload is required"})
	}

	if ok, resp := s.guardOwnership(c); !ok {
		return resp
	}

	reg, err := s.UpdateStep(c.Params("id"), step, req.Payload, req.NextStep)
	if err != nil {
		return s.renderWorkflowError(c, err)
	}
	return c.JSON(reg)
}

// SubmitHandler handles POST /registrations/:id/submit.
func (s *RegistrationService) SubmitHandler(c *fiber.Ctx) error {
	if ok, resp := s.guardOwnership(c); !ok {
		return resp
	}
	reg, err := s.Submit(c.Params("id"))
	if err != nil {
		return s.renderWorkflowError(c, err)
	}
	return c.JSON(fiber.Map{"message": "registration submitted", "registration": reg})
}

// InitiateFeeHandler handles POST /registrations/:id/payment.
func (s *RegistrationService) InitiateFeeHandler(c *fiber.Ctx) error {
	if ok, resp := s.guardOwnership(c); !ok {
		return resp
	}
	rec, err := s.InitiateFeePayment(c.Params("id"))
	if err != nil {
		return s.renderWorkflowError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"reference": rec.Reference,
		"amount":    rec.Amount,
		"currency":  rec.Currency,
	})
}

// UploadMediaHandler stores an uploaded file and merges its URL into
// the media step. Upload failure aborts only this step update.
func (s *RegistrationService) UploadMediaHandler(c *fiber.Ctx) error {
	if ok, resp := s.guardOwnership(c); !ok {
		return resp
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}
	field := c.FormValue("field", "audition_video_url")

	key := fmt.Sprintf("registrations/%s/%s-%s", c.Params("id"), uuid.NewString()[:8], fileHeader.Filename)
	url, err := utils.UploadMedia(fileHeader, key)
	if err != nil {
		log.Printf("❌ [MEDIA] upload failed for registration %s: %v", c.Params("id"), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "media upload failed"})
	}

	reg, err := s.UpdateStep(c.Params("id"), models.StepMedia, map[string]interface{}{field: url}, nil)
	if err != nil {
		return s.renderWorkflowError(c, err)
	}
	return c.JSON(fiber.Map{"url": url, "registration": reg})
}

// UpdateStatusHandler handles PATCH /admin/registrations/:id/status.
func (s *RegistrationService) UpdateStatusHandler(c *fiber.Ctx) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil || req.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "status is required"})
	}
	reg, err := s.UpdateStatus(c.Params("id"), req.Status)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "registration not found"})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(reg)
}

// guardOwnership writes the error response itself and reports whether
// the caller may proceed.
func (s *RegistrationService) guardOwnership(c *fiber.Ctx) (bool, error) {
	var reg models.Registration
	if err := s.DB.Select("id, user_id").Where("id = ?", c.Params("id")).First(&reg).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "registration not found"})
		}
		return false, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if !ownerOrAdmin(c, reg.UserID) {
		return false, c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your registration"})
	}
	return true, nil
}

func (s *RegistrationService) renderWorkflowError(c *fiber.Ctx, err error) error {
	var stepErr *StepValidationError
	var incomplete *WorkflowIncompleteError
	switch {
	case errors.Is(err, ErrWorkflowTerminal):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "registration already submitted"})
	case errors.Is(err, ErrStepNotApplicable):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &stepErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "step validation failed",
			"step":  stepErr.Step,
			"field": stepErr.Field,
		})
	case errors.As(err, &incomplete):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":           "registration incomplete",
			"missing_steps":   incomplete.MissingSteps,
			"missing_payment": incomplete.MissingPayment,
		})
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "registration not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

// ownerOrAdmin checks the user context set by the auth middleware.
func ownerOrAdmin(c *fiber.Ctx, ownerID string) bool {
	userID, _ := c.Locals("user_id").(string)
	role, _ := c.Locals("user_role").(string)
	return userID == ownerID || role == models.RoleAdmin
}
