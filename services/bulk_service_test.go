package services

import (
	"fmt"
	"testing"
	"time"

	"talent-registration-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBulk(t *testing.T) (*BulkService, *PaymentService) {
	t.Helper()
	db := newTestDB(t)
	payments := newTestPayments(db)
	return NewBulkService(db, payments, 5000), payments
}

func TestCreatePoolBounds(t *testing.T) {
	bulk, _ := newTestBulk(t)

	_, err := bulk.CreatePool(uuid.NewString(), 1)
	assert.Error(t, err)
	_, err = bulk.CreatePool(uuid.NewString(), 51)
	assert.Error(t, err)

	pool, err := bulk.CreatePool(uuid.NewString(), 10)
	require.NoError(t, err)
	assert.Equal(t, models.PoolDraft, pool.Status)
	assert.Equal(t, float64(50000), pool.TotalAmount)
	assert.Equal(t, 0, pool.UsedSlots)
}

func TestPoolActivationViaPayment(t *testing.T) {
	bulk, payments := newTestBulk(t)

	pool, err := bulk.CreatePool(uuid.NewString(), 3)
	require.NoError(t, err)

	rec, err := bulk.InitiatePoolPayment(pool.ID)
	require.NoError(t, err)
	assert.Equal(t, pool.TotalAmount, rec.Amount)

	var pending models.BulkRegistration
	require.NoError(t, bulk.DB.Where("id = ?", pool.ID).First(&pending).Error)
	assert.Equal(t, models.PoolPaymentPending, pending.Status)

	_, err = payments.Apply(rec.Reference, GatewayOutcome{Kind: OutcomeSuccess, Reference: rec.Reference})
	require.NoError(t, err)

	var active models.BulkRegistration
	require.NoError(t, bulk.DB.Where("id = ?", pool.ID).First(&active).Error)
	assert.Equal(t, models.PoolActive, active.Status)
	assert.Equal(t, models.FeeCompleted, active.PaymentStatus)
}

func TestAddParticipantRequiresActivePool(t *testing.T) {
	bulk, _ := newTestBulk(t)

	pool, err := bulk.CreatePool(uuid.NewString(), 2)
	require.NoError(t, err)

	_, err = bulk.AddParticipant(pool.ID, models.BulkParticipant{Email: "early@example.com"})
	assert.ErrorIs(t, err, ErrPoolNotActive, "draft pool must not accept participants")
}

func TestSlotPoolCapacity(t *testing.T) {
	bulk, payments := newTestBulk(t)

	pool, err := bulk.CreatePool(uuid.NewString(), 3)
	require.NoError(t, err)
	rec, err := bulk.InitiatePoolPayment(pool.ID)
	require.NoError(t, err)
	_, err = payments.Apply(rec.Reference, GatewayOutcome{Kind: OutcomeSuccess, Reference: rec.Reference})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := bulk.AddParticipant(pool.ID, models.BulkParticipant{
			Email: fmt.Sprintf("p%d@example.com", i),
		})
		require.NoError(t, err)
	}

	// The pool completed on its final slot; the fourth add is a
	// capacity rejection, not a state one.
	_, err = bulk.AddParticipant(pool.ID, models.BulkParticipant{Email: "late@example.com"})
	assert.ErrorIs(t, err, ErrPoolExhausted)

	var got models.BulkRegistration
	require.NoError(t, bulk.DB.Preload("Participants").Where("id = ?", pool.ID).First(&got).Error)
	assert.Equal(t, models.PoolCompleted, got.Status)
	assert.Equal(t, 3, got.UsedSlots)
	assert.Len(t, got.Participants, 3)
	for _, p := range got.Participants {
		assert.Equal(t, models.InvitationPending, p.InvitationStatus)
	}
}

func TestPoolPaymentFailureKeepsPoolInactive(t *testing.T) {
	bulk, payments := newTestBulk(t)

	pool, err := bulk.CreatePool(uuid.NewString(), 2)
	require.NoError(t, err)
	rec, err := bulk.InitiatePoolPayment(pool.ID)
	require.NoError(t, err)

	_, err = payments.Apply(rec.Reference, GatewayOutcome{Kind: OutcomeFailure, Reference: rec.Reference})
	require.NoError(t, err)

	var got models.BulkRegistration
	require.NoError(t, bulk.DB.Where("id = ?", pool.ID).First(&got).Error)
	assert.Equal(t, models.PoolPaymentPending, got.Status)
	assert.Equal(t, models.FeeFailed, got.PaymentStatus)

	_, err = bulk.AddParticipant(pool.ID, models.BulkParticipant{Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrPoolNotActive)
}

func TestStaleIntentFailureDoesNotDeactivatePool(t *testing.T) {
	bulk, payments := newTestBulk(t)

	pool, err := bulk.CreatePool(uuid.NewString(), 2)
	require.NoError(t, err)

	// First attempt abandoned, second one paid.
	abandoned, err := bulk.InitiatePoolPayment(pool.ID)
	require.NoError(t, err)
	fresh, err := bulk.InitiatePoolPayment(pool.ID)
	require.NoError(t, err)

	_, err = payments.Apply(fresh.Reference, GatewayOutcome{Kind: OutcomeSuccess, Reference: fresh.Reference})
	require.NoError(t, err)

	// The abandoned intent failing late must not touch the active pool.
	_, err = payments.Apply(abandoned.Reference, GatewayOutcome{Kind: OutcomeFailure, Reference: abandoned.Reference})
	require.NoError(t, err)

	var got models.BulkRegistration
	require.NoError(t, bulk.DB.Where("id = ?", pool.ID).First(&got).Error)
	assert.Equal(t, models.PoolActive, got.Status)
	assert.Equal(t, models.FeeCompleted, got.PaymentStatus)

	_, err = bulk.AddParticipant(pool.ID, models.BulkParticipant{Email: "ok@example.com"})
	assert.NoError(t, err)
}

func TestExpireStalePools(t *testing.T) {
	bulk, _ := newTestBulk(t)

	pool, err := bulk.CreatePool(uuid.NewString(), 2)
	require.NoError(t, err)
	require.NoError(t, bulk.DB.Model(&models.BulkRegistration{}).
		Where("id = ?", pool.ID).
		Update("created_at", time.Now().Add(-72*time.Hour)).Error)

	n, err := bulk.ExpireStalePools(48 * time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var got models.BulkRegistration
	require.NoError(t, bulk.DB.Where("id = ?", pool.ID).First(&got).Error)
	assert.Equal(t, models.PoolExpired, got.Status)
}
