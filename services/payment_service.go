package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"talent-registration-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StatusConvention selects how a gateway integration encodes outcomes.
// The convention is configured per integration, never inferred from the
// payload: a raw value that is only meaningful under the other
// convention is treated as ambiguous.
type StatusConvention int

const (
	// StatusStrings: "successful|success|completed|paid" vs
	// "failed|failure|declined|error".
	StatusStrings StatusConvention = iota
	// StatusNumeric: 0 is success, 1 is failure.
	StatusNumeric
)

// ConventionFromEnv parses a GATEWAY_*_STATUS_FORMAT value.
func ConventionFromEnv(v string, fallback StatusConvention) StatusConvention {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "numeric":
		return StatusNumeric
	case "string", "strings":
		return StatusStrings
	default:
		return fallback
	}
}

// OutcomeKind tags a normalized gateway outcome.
type OutcomeKind int

const (
	OutcomeAmbiguous OutcomeKind = iota
	OutcomeSuccess
	OutcomeFailure
)

// GatewayOutcome is the canonical result of one gateway payload:
// success or failure for a reference and observed amount, or ambiguous
// when the payload cannot be trusted either way.
type GatewayOutcome struct {
	Kind      OutcomeKind
	Reference string
	Amount    float64
	Raw       map[string]interface{}
}

// Normalizer maps heterogeneous gateway payloads onto GatewayOutcome.
// Pure; safe to test without the reconciler.
type Normalizer struct {
	Convention StatusConvention
}

var successStrings = map[string]bool{
	"successful": true, "success": true, "completed": true, "paid": true,
}

var failureStrings = map[string]bool{
	"failed": true, "failure": true, "declined": true, "error": true,
}

// Normalize accepts any of the documented field-name variants for
// reference, status and amount. Anything unrecognized is Ambiguous —
// fail closed, never guess.
func (n Normalizer) Normalize(payload map[string]interface{}) GatewayOutcome {
	out := GatewayOutcome{Kind: OutcomeAmbiguous, Raw: payload}
	out.Reference = firstString(payload, "reference", "transRef", "businessRef")
	out.Amount = firstNumber(payload, "transAmount", "amount")
	if out.Reference == "" {
		return out
	}

	raw, ok := firstValue(payload, "status", "transaction_status", "paymentStatus")
	if !ok {
		return out
	}

	switch n.Convention {
	case StatusNumeric:
		num, isNum := asNumber(raw)
		if !isNum {
			return out
		}
		switch num {
		case 0:
			out.Kind = OutcomeSuccess
		case 1:
			out.Kind = OutcomeFailure
		}
	case StatusStrings:
		str, isStr := raw.(string)
		if !isStr {
			return out
		}
		s := strings.ToLower(strings.TrimSpace(str))
		if successStrings[s] {
			out.Kind = OutcomeSuccess
		} else if failureStrings[s] {
			out.Kind = OutcomeFailure
		}
	}
	return out
}

// MetadataTags flattens the optional insightTag metadata array.
func MetadataTags(payload map[string]interface{}) map[string]string {
	tags := map[string]string{}
	items, ok := payload["metadata"].([]interface{})
	if !ok {
		return tags
	}
	for _, it := range items {
		m, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		tag, _ := m["insightTag"].(string)
		if tag == "" {
			continue
		}
		tags[tag] = fmt.Sprintf("%v", m["insightTagValue"])
	}
	return tags
}

// PaymentService is the reconciler: it owns payment intents and applies
// gateway outcomes to their subjects exactly once per reference.
type PaymentService struct {
	DB                *gorm.DB
	Gateway           *GatewayClient
	WebhookNormalizer Normalizer
	VerifyNormalizer  Normalizer
}

func NewPaymentService(db *gorm.DB, gateway *GatewayClient, webhook, verify Normalizer) *PaymentService {
	return &PaymentService{
		DB:                db,
		Gateway:           gateway,
		WebhookNormalizer: webhook,
		VerifyNormalizer:  verify,
	}
}

// NewReference builds a unique payment reference with a subject prefix.
func NewReference(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:20])
}

// CreateIntent stores the PaymentRecord a later outcome will be applied
// against. Must happen before the payer is redirected to the gateway.
func (s *PaymentService) CreateIntent(tx *gorm.DB, reference string, amount float64, subjectType, subjectID string, metadata map[string]interface{}) (*models.PaymentRecord, error) {
	if tx == nil {
		tx = s.DB
	}
	rec := &models.PaymentRecord{
		ID:          uuid.NewString(),
		Reference:   reference,
		Amount:      amount,
		Status:      models.PaymentInitiated,
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Metadata:    datatypes.JSONMap(metadata),
	}
	if err := tx.Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// Apply reconciles one outcome against its payment record.
//
// Replays are safe: a record already in a terminal status is returned
// unchanged and no side effect runs. Two concurrent appliers race on a
// conditional status update; only the winner performs the fan-out, in
// the same transaction, so duplicate webhook delivery and re-POSTed
// verification calls cannot double-apply.
func (s *PaymentService) Apply(reference string, outcome GatewayOutcome) (*models.PaymentRecord, error) {
	if outcome.Kind == OutcomeAmbiguous {
		return nil, ErrAmbiguousStatus
	}

	var applied *models.PaymentRecord
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var rec models.PaymentRecord
		if err := tx.Where("reference = ?", reference).First(&rec).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrUnknownReference
			}
			return err
		}
		if rec.IsTerminal() {
			applied = &rec
			return nil
		}

		terminal := models.PaymentFailed
		if outcome.Kind == OutcomeSuccess {
			terminal = models.PaymentSuccessful
		}
		if outcome.Amount > 0 && outcome.Amount != rec.Amount {
			log.Printf("⚠️  [RECONCILER] amount mismatch on %s: expected %.2f observed %.2f", reference, rec.Amount, outcome.Amount)
		}

		now := time.Now()
		res := tx.Model(&models.PaymentRecord{}).
			Where("reference = ? AND status IN ?", reference, []string{models.PaymentInitiated, models.PaymentPending}).
			Updates(map[string]interface{}{"status": terminal, "processed_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race to another applier; report its result.
			if err := tx.Where("reference = ?", reference).First(&rec).Error; err != nil {
				return err
			}
			applied = &rec
			return nil
		}

		rec.Status = terminal
		rec.ProcessedAt = &now
		if err := s.fanOut(tx, &rec, outcome.Kind == OutcomeSuccess); err != nil {
			return err
		}
		applied = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

// fanOut performs the single domain mutation matching the record's
// subject. Runs only in the winning applier's transaction.
func (s *PaymentService) fanOut(tx *gorm.DB, rec *models.PaymentRecord, success bool) error {
	switch rec.SubjectType {
	case models.SubjectRegistration:
		return s.settleRegistrationFee(tx, rec, success)
	case models.SubjectBulk:
		return s.settlePool(tx, rec, success)
	case models.SubjectVote:
		return s.creditVotes(tx, rec, success)
	case models.SubjectTicket:
		return s.settleTickets(tx, rec, success)
	default:
		return fmt.Errorf("payment %s: unknown subject type %q", rec.Reference, rec.SubjectType)
	}
}

func (s *PaymentService) settleRegistrationFee(tx *gorm.DB, rec *models.PaymentRecord, success bool) error {
	var reg models.Registration
	if err := tx.Where("id = ?", rec.SubjectID).First(&reg).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrSubjectNotFound
		}
		return err
	}
	if !success {
		// Only the intent currently attached to the registration may
		// mark the fee failed; a stale abandoned reference resolving
		// late must not un-settle a fee paid under a newer one.
		return tx.Model(&models.Registration{}).
			Where("id = ? AND payment_reference = ? AND payment_status <> ?",
				reg.ID, rec.Reference, models.FeeCompleted).
			Update("payment_status", models.FeeFailed).Error
	}
	if !reg.HasCompleted(models.StepPayment) {
		reg.CompletedSteps = append(reg.CompletedSteps, models.StepPayment)
	}
	return tx.Model(&reg).Updates(map[string]interface{}{
		"payment_status":  models.FeeCompleted,
		"completed_steps": reg.CompletedSteps,
	}).Error
}

// settlePool activates a slot pool exactly once per successful outcome.
// A replay on an already-active pool is a no-op by construction: only
// the winning applier reaches this code.
func (s *PaymentService) settlePool(tx *gorm.DB, rec *models.PaymentRecord, success bool) error {
	var pool models.BulkRegistration
	if err := tx.Where("id = ?", rec.SubjectID).First(&pool).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrSubjectNotFound
		}
		return err
	}
	if !success {
		// Same stale-reference guard as the registration fee.
		return tx.Model(&models.BulkRegistration{}).
			Where("id = ? AND payment_reference = ? AND payment_status <> ?",
				pool.ID, rec.Reference, models.FeeCompleted).
			Update("payment_status", models.FeeFailed).Error
	}
	res := tx.Model(&models.BulkRegistration{}).
		Where("id = ? AND status IN ?", pool.ID, []string{models.PoolDraft, models.PoolPaymentPending}).
		Updates(map[string]interface{}{
			"status":         models.PoolActive,
			"payment_status": models.FeeCompleted,
		})
	return res.Error
}

// creditVotes flips the vote record and bumps the contestant counters
// in one place so the aggregate is never observably ahead of or behind
// the ledger.
func (s *PaymentService) creditVotes(tx *gorm.DB, rec *models.PaymentRecord, success bool) error {
	var vote models.VoteRecord
	if err := tx.Where("payment_reference = ?", rec.Reference).First(&vote).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrSubjectNotFound
		}
		return err
	}
	if !success {
		return tx.Model(&vote).Update("payment_status", models.FeeFailed).Error
	}

	res := tx.Model(&models.VoteRecord{}).
		Where("id = ? AND payment_status = ?", vote.ID, models.FeePending).
		Update("payment_status", models.FeeCompleted)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Already credited through another path; do not double-count.
		return nil
	}

	res = tx.Model(&models.Contestant{}).
		Where("id = ?", vote.ContestantID).
		Updates(map[string]interface{}{
			"total_votes":       gorm.Expr("total_votes + ?", vote.NumberOfVotes),
			"total_vote_amount": gorm.Expr("total_vote_amount + ?", vote.AmountPaid),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSubjectNotFound
	}
	return nil
}

func (s *PaymentService) settleTickets(tx *gorm.DB, rec *models.PaymentRecord, success bool) error {
	var purchase models.TicketPurchase
	if err := tx.Where("payment_reference = ?", rec.Reference).First(&purchase).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrSubjectNotFound
		}
		return err
	}
	if !success {
		return tx.Model(&purchase).Update("status", models.TicketOrderFailed).Error
	}
	for i := 1; i <= purchase.Quantity; i++ {
		ticket := models.Ticket{
			ID:           uuid.NewString(),
			PurchaseID:   purchase.ID,
			TicketNumber: fmt.Sprintf("TKT-%s-%03d", rec.Reference, i),
		}
		if err := tx.Create(&ticket).Error; err != nil {
			return err
		}
	}
	return tx.Model(&purchase).Update("status", models.TicketOrderCompleted).Error
}

// logEvent records a delivered gateway payload for audit and manual
// reconciliation.
func (s *PaymentService) logEvent(reference, source string, payload []byte, status string, procErr error) {
	ev := models.PaymentGatewayEvent{
		ID:        uuid.NewString(),
		Reference: reference,
		Source:    source,
		Payload:   datatypes.JSON(payload),
		Status:    status,
	}
	if procErr != nil {
		msg := procErr.Error()
		ev.Error = &msg
	}
	if status == models.GatewayEventProcessed {
		now := time.Now()
		ev.ProcessedAt = &now
	}
	if err := s.DB.Create(&ev).Error; err != nil {
		log.Printf("❌ [RECONCILER] failed to log gateway event for %s: %v", reference, err)
	}
}

// HandleWebhook is the gateway's at-least-once delivery path.
// Ambiguous or failed applications are never acked with a 2xx, so the
// gateway keeps retrying them.
func (s *PaymentService) HandleWebhook(c *fiber.Ctx) error {
	body := append([]byte(nil), c.Body()...)
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON payload"})
	}

	outcome := s.WebhookNormalizer.Normalize(payload)
	return s.applyAndRespond(c, outcome, "webhook", body)
}

// VerifyPayment is the client-initiated reconciliation path: re-ask the
// gateway for the authoritative transaction state and apply it. Safe to
// re-POST on timeout; idempotency comes from the reference.
func (s *PaymentService) VerifyPayment(c *fiber.Ctx) error {
	var req struct {
		Reference string `json:"reference"`
	}
	if err := c.BodyParser(&req); err != nil || req.Reference == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reference is required"})
	}

	payload, err := s.Gateway.VerifyTransaction(c.Context(), req.Reference)
	if err != nil {
		log.Printf("❌ [RECONCILER] gateway verification failed for %s: %v", req.Reference, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "gateway verification failed"})
	}
	body, _ := json.Marshal(payload)

	outcome := s.VerifyNormalizer.Normalize(payload)
	if outcome.Reference == "" {
		outcome.Reference = req.Reference
	}
	return s.applyAndRespond(c, outcome, "verify", body)
}

// Requery re-asks the gateway about one reference and applies the
// answer. Used by the background sweep over payments stuck in pending.
func (s *PaymentService) Requery(ctx context.Context, reference string) (*models.PaymentRecord, error) {
	payload, err := s.Gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(payload)

	outcome := s.VerifyNormalizer.Normalize(payload)
	if outcome.Reference == "" {
		outcome.Reference = reference
	}
	if outcome.Kind == OutcomeAmbiguous {
		s.logEvent(outcome.Reference, "requery", raw, models.GatewayEventAmbiguous, ErrAmbiguousStatus)
		return nil, ErrAmbiguousStatus
	}

	rec, err := s.Apply(outcome.Reference, outcome)
	if err != nil {
		s.logEvent(outcome.Reference, "requery", raw, models.GatewayEventFailed, err)
		return nil, err
	}
	s.logEvent(outcome.Reference, "requery", raw, models.GatewayEventProcessed, nil)
	return rec, nil
}

// PendingReferences lists non-terminal payments older than cutoff, for
// the requery sweep.
func (s *PaymentService) PendingReferences(cutoff time.Time, limit int) ([]models.PaymentRecord, error) {
	var recs []models.PaymentRecord
	err := s.DB.
		Where("status IN ? AND created_at < ?", []string{models.PaymentInitiated, models.PaymentPending}, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

func (s *PaymentService) applyAndRespond(c *fiber.Ctx, outcome GatewayOutcome, source string, raw []byte) error {
	if outcome.Kind == OutcomeAmbiguous {
		s.logEvent(outcome.Reference, source, raw, models.GatewayEventAmbiguous, ErrAmbiguousStatus)
		log.Printf("⚠️  [RECONCILER] ambiguous %s payload for reference %q held for review", source, outcome.Reference)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "unrecognized gateway status"})
	}

	rec, err := s.Apply(outcome.Reference, outcome)
	switch {
	case err == nil:
		if tag, ok := MetadataTags(outcome.Raw)["subjectType"]; ok && tag != rec.SubjectType {
			log.Printf("⚠️  [RECONCILER] metadata subjectType %q disagrees with record %q on %s", tag, rec.SubjectType, rec.Reference)
		}
		s.logEvent(outcome.Reference, source, raw, models.GatewayEventProcessed, nil)
		return c.JSON(fiber.Map{"reference": rec.Reference, "status": rec.Status})
	case errors.Is(err, ErrUnknownReference):
		s.logEvent(outcome.Reference, source, raw, models.GatewayEventFailed, err)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown payment reference"})
	case errors.Is(err, ErrSubjectNotFound):
		s.logEvent(outcome.Reference, source, raw, models.GatewayEventFailed, err)
		log.Printf("🚨 [RECONCILER] payment %s references a missing subject — operator attention required", outcome.Reference)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "payment subject not found"})
	default:
		s.logEvent(outcome.Reference, source, raw, models.GatewayEventFailed, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to apply payment", "details": err.Error()})
	}
}

// GetPayment returns one payment record by reference, for status polls.
func (s *PaymentService) GetPayment(c *fiber.Ctx) error {
	ref := c.Params("reference")
	var rec models.PaymentRecord
	if err := s.DB.Where("reference = ?", ref).First(&rec).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "payment not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(rec)
}

func firstString(payload map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := payload[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func firstNumber(payload map[string]interface{}, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			if n, isNum := asNumber(v); isNum {
				return n
			}
		}
	}
	return 0
}

func firstValue(payload map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
