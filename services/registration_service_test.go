package services

import (
	"testing"

	"talent-registration-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistration(t *testing.T) (*RegistrationService, *PaymentService) {
	t.Helper()
	db := newTestDB(t)
	payments := newTestPayments(db)
	return NewRegistrationService(db, payments, 10000), payments
}

func seedDraft(t *testing.T, svc *RegistrationService, kind string) *models.Registration {
	t.Helper()
	reg := &models.Registration{
		ID:     uuid.NewString(),
		UserID: uuid.NewString(),
		Kind:   kind,
		Status: models.RegistrationDraft,
	}
	require.NoError(t, svc.DB.Create(reg).Error)
	return reg
}

func completeNonPaymentSteps(t *testing.T, svc *RegistrationService, reg *models.Registration) {
	t.Helper()
	payloads := map[int]map[string]interface{}{
		models.StepPersonal: {"first_name": "Ada", "last_name": "Obi", "date_of_birth": "2001-04-12"},
		models.StepTalent:   {"category": "Singing", "stage_name": "Ada O"},
		models.StepGroup:    {"group_name": "The Notes", "member_count": 4},
		models.StepGuardian: {"guardian_name": "Ngozi Obi", "guardian_phone": "+2348000000000"},
		models.StepMedia:    {"audition_video_url": "https://cdn.example.com/a.mp4"},
		models.StepAudition: {"location": "Lagos"},
		models.StepTerms:    {"accepted": true},
	}
	for _, step := range models.RequiredSteps(reg.Kind) {
		if step == models.StepPayment {
			continue
		}
		_, err := svc.UpdateStep(reg.ID, step, payloads[step], nil)
		require.NoErrorf(t, err, "step %d", step)
	}
}

func TestStepsCompleteInAnyOrder(t *testing.T) {
	svc, _ := newTestRegistration(t)
	reg := seedDraft(t, svc, models.KindIndividual)

	// Terms before personal info: order is advisory, not enforced.
	got, err := svc.UpdateStep(reg.ID, models.StepTerms, map[string]interface{}{"accepted": true}, nil)
	require.NoError(t, err)
	assert.True(t, got.HasCompleted(models.StepTerms))
	assert.Equal(t, models.StepPersonal, got.CurrentStep, "next actionable step is the lowest incomplete one")

	got, err = svc.UpdateStep(reg.ID, models.StepPersonal, map[string]interface{}{
		"first_name": "Ada", "last_name": "Obi", "date_of_birth": "2001-04-12",
	}, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{models.StepPersonal, models.StepTerms}, []int(got.CompletedSteps))
}

func TestStepPayloadsMergeAcrossUpdates(t *testing.T) {
	svc, _ := newTestRegistration(t)
	reg := seedDraft(t, svc, models.KindIndividual)

	_, err := svc.UpdateStep(reg.ID, models.StepPersonal, map[string]interface{}{
		"first_name": "Ada", "last_name": "Obi", "date_of_birth": "2001-04-12",
	}, nil)
	require.NoError(t, err)

	got, err := svc.UpdateStep(reg.ID, models.StepPersonal, map[string]interface{}{
		"phone": "+2348000000000",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Personal["first_name"], "earlier fields survive a partial update")
	assert.Equal(t, "+2348000000000", got.Personal["phone"])
}

func TestConditionalFieldRules(t *testing.T) {
	svc, _ := newTestRegistration(t)
	reg := seedDraft(t, svc, models.KindIndividual)

	// Category "Other" demands other_category.
	_, err := svc.UpdateStep(reg.ID, models.StepTalent, map[string]interface{}{"category": "Other"}, nil)
	var stepErr *StepValidationError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "other_category", stepErr.Field)

	_, err = svc.UpdateStep(reg.ID, models.StepTalent, map[string]interface{}{
		"category": "Other", "other_category": "Beatboxing",
	}, nil)
	require.NoError(t, err)

	// previously_participated=Yes demands the competition name, checked
	// against the merged payload.
	_, err = svc.UpdateStep(reg.ID, models.StepTalent, map[string]interface{}{
		"previously_participated": "Yes",
	}, nil)
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "competition_name", stepErr.Field)

	_, err = svc.UpdateStep(reg.ID, models.StepTalent, map[string]interface{}{
		"previously_participated": "Yes", "competition_name": "City Stars 2024",
	}, nil)
	require.NoError(t, err)
}

func TestStepApplicabilityByKind(t *testing.T) {
	svc, _ := newTestRegistration(t)

	individual := seedDraft(t, svc, models.KindIndividual)
	_, err := svc.UpdateStep(individual.ID, models.StepGroup, map[string]interface{}{"group_name": "X"}, nil)
	assert.ErrorIs(t, err, ErrStepNotApplicable)

	group := seedDraft(t, svc, models.KindGroup)
	_, err = svc.UpdateStep(group.ID, models.StepGuardian, map[string]interface{}{"guardian_name": "Y", "guardian_phone": "1"}, nil)
	assert.ErrorIs(t, err, ErrStepNotApplicable)
}

func TestSubmitReportsEverythingMissing(t *testing.T) {
	svc, _ := newTestRegistration(t)
	reg := seedDraft(t, svc, models.KindIndividual)

	_, err := svc.UpdateStep(reg.ID, models.StepPersonal, map[string]interface{}{
		"first_name": "Ada", "last_name": "Obi", "date_of_birth": "2001-04-12",
	}, nil)
	require.NoError(t, err)

	_, err = svc.Submit(reg.ID)
	var incomplete *WorkflowIncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.ElementsMatch(t,
		[]int{models.StepTalent, models.StepGuardian, models.StepMedia, models.StepAudition, models.StepTerms},
		incomplete.MissingSteps)
	assert.True(t, incomplete.MissingPayment)
}

func TestSubmitGatedOnSettledFee(t *testing.T) {
	svc, payments := newTestRegistration(t)
	reg := seedDraft(t, svc, models.KindIndividual)
	completeNonPaymentSteps(t, svc, reg)

	// All steps done but the fee never settled.
	_, err := svc.Submit(reg.ID)
	var incomplete *WorkflowIncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Empty(t, incomplete.MissingSteps)
	assert.True(t, incomplete.MissingPayment)

	rec, err := svc.InitiateFeePayment(reg.ID)
	require.NoError(t, err)
	_, err = payments.Apply(rec.Reference, GatewayOutcome{Kind: OutcomeSuccess, Reference: rec.Reference})
	require.NoError(t, err)

	got, err := svc.Submit(reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationSubmitted, got.Status)
	require.NotNil(t, got.SubmittedAt)

	// Submission is one-way and idempotent.
	again, err := svc.Submit(reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationSubmitted, again.Status)

	// No further edits once submitted.
	_, err = svc.UpdateStep(reg.ID, models.StepPersonal, map[string]interface{}{"phone": "+234"}, nil)
	assert.ErrorIs(t, err, ErrWorkflowTerminal)
}

func TestGroupRegistrationRequiredSteps(t *testing.T) {
	svc, payments := newTestRegistration(t)
	reg := seedDraft(t, svc, models.KindGroup)
	completeNonPaymentSteps(t, svc, reg)

	rec, err := svc.InitiateFeePayment(reg.ID)
	require.NoError(t, err)
	_, err = payments.Apply(rec.Reference, GatewayOutcome{Kind: OutcomeSuccess, Reference: rec.Reference})
	require.NoError(t, err)

	got, err := svc.Submit(reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationSubmitted, got.Status)
	assert.True(t, got.HasCompleted(models.StepGroup))
	assert.False(t, got.HasCompleted(models.StepGuardian))
}

func TestApprovalMintsContestantOnce(t *testing.T) {
	svc, _ := newTestRegistration(t)
	reg := seedDraft(t, svc, models.KindIndividual)
	_, err := svc.UpdateStep(reg.ID, models.StepTalent, map[string]interface{}{
		"category": "Singing", "stage_name": "Ada O",
	}, nil)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(reg.ID, models.RegistrationApproved)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(reg.ID, models.RegistrationApproved)
	require.NoError(t, err)

	var contestants []models.Contestant
	require.NoError(t, svc.DB.Where("registration_id = ?", reg.ID).Find(&contestants).Error)
	require.Len(t, contestants, 1)
	assert.Equal(t, "Ada O", contestants[0].StageName)
	assert.Contains(t, contestants[0].Slug, "ada-o-")

	_, err = svc.UpdateStatus(reg.ID, "bogus")
	assert.Error(t, err)
}
