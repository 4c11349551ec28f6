package services

import (
	"testing"

	"talent-registration-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedContestant(t *testing.T, votes *VoteService) *models.Contestant {
	t.Helper()
	c := &models.Contestant{
		ID:             uuid.NewString(),
		RegistrationID: uuid.NewString(),
		StageName:      "Ada O",
		Slug:           "ada-o-" + uuid.NewString()[:8],
		Status:         "active",
	}
	require.NoError(t, votes.DB.Create(c).Error)
	return c
}

func newTestVotes(t *testing.T) (*VoteService, *PaymentService) {
	t.Helper()
	db := newTestDB(t)
	payments := newTestPayments(db)
	return NewVoteService(db, payments, 100), payments
}

func TestRecordVoteIntent(t *testing.T) {
	votes, _ := newTestVotes(t)
	contestant := seedContestant(t, votes)

	vote, rec, err := votes.RecordVoteIntent(contestant.ID, "fan@example.com", 5)
	require.NoError(t, err)
	assert.Equal(t, float64(500), vote.AmountPaid)
	assert.Equal(t, models.FeePending, vote.PaymentStatus)
	assert.Equal(t, vote.PaymentReference, rec.Reference)
	assert.Equal(t, models.PaymentInitiated, rec.Status)

	_, _, err = votes.RecordVoteIntent(contestant.ID, "fan@example.com", 0)
	assert.Error(t, err)
	_, _, err = votes.RecordVoteIntent(uuid.NewString(), "fan@example.com", 1)
	assert.Error(t, err, "unknown contestant must not accept intents")
}

func TestVoteCreditMatchesLedger(t *testing.T) {
	votes, payments := newTestVotes(t)
	contestant := seedContestant(t, votes)

	v1, r1, err := votes.RecordVoteIntent(contestant.ID, "a@example.com", 5)
	require.NoError(t, err)
	_, r2, err := votes.RecordVoteIntent(contestant.ID, "b@example.com", 3)
	require.NoError(t, err)
	_, r3, err := votes.RecordVoteIntent(contestant.ID, "c@example.com", 7)
	require.NoError(t, err)

	// Settle two, fail one; pending/failed never count.
	_, err = payments.Apply(r1.Reference, GatewayOutcome{Kind: OutcomeSuccess, Reference: r1.Reference})
	require.NoError(t, err)
	_, err = payments.Apply(r2.Reference, GatewayOutcome{Kind: OutcomeFailure, Reference: r2.Reference})
	require.NoError(t, err)
	_ = r3 // stays pending

	var got models.Contestant
	require.NoError(t, votes.DB.Where("id = ?", contestant.ID).First(&got).Error)
	assert.EqualValues(t, 5, got.TotalVotes)
	assert.Equal(t, float64(500), got.TotalVoteAmount)

	var credited models.VoteRecord
	require.NoError(t, votes.DB.Where("id = ?", v1.ID).First(&credited).Error)
	assert.Equal(t, models.FeeCompleted, credited.PaymentStatus)
}

func TestVoteCreditIsExactlyOnce(t *testing.T) {
	votes, payments := newTestVotes(t)
	contestant := seedContestant(t, votes)

	_, rec, err := votes.RecordVoteIntent(contestant.ID, "fan@example.com", 10)
	require.NoError(t, err)

	outcome := GatewayOutcome{Kind: OutcomeSuccess, Reference: rec.Reference}
	_, err = payments.Apply(rec.Reference, outcome)
	require.NoError(t, err)
	// Duplicate webhook delivery for the same reference.
	_, err = payments.Apply(rec.Reference, outcome)
	require.NoError(t, err)

	var got models.Contestant
	require.NoError(t, votes.DB.Where("id = ?", contestant.ID).First(&got).Error)
	assert.EqualValues(t, 10, got.TotalVotes, "replay must not double-count votes")
	assert.Equal(t, float64(1000), got.TotalVoteAmount)
}
