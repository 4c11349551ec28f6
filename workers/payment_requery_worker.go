package workers

import (
	"context"
	"errors"
	"log"
	"time"

	"talent-registration-system/services"
)

// PaymentRequeryWorker sweeps payments that never received a terminal
// outcome and asks the gateway for their authoritative state. Pending
// intents are never auto-cancelled; this sweep is the only path that
// moves them, and Apply keeps a replay harmless.
type PaymentRequeryWorker struct {
	payments *services.PaymentService
	interval time.Duration
	minAge   time.Duration
	batch    int
}

func NewPaymentRequeryWorker(payments *services.PaymentService) *PaymentRequeryWorker {
	return &PaymentRequeryWorker{
		payments: payments,
		interval: 5 * time.Minute,
		minAge:   10 * time.Minute,
		batch:    50,
	}
}

func (w *PaymentRequeryWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting payment requery worker…")
	go w.run(ctx)
}

func (w *PaymentRequeryWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️ Payment requery worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *PaymentRequeryWorker) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.minAge)
	recs, err := w.payments.PendingReferences(cutoff, w.batch)
	if err != nil {
		log.Printf("❌ [REQUERY] failed to list pending payments: %v", err)
		return
	}
	if len(recs) == 0 {
		return
	}
	log.Printf("📡 [REQUERY] checking %d stale payment(s) with the gateway", len(recs))

	var settled, held int
	for _, rec := range recs {
		if ctx.Err() != nil {
			return
		}
		applied, err := w.payments.Requery(ctx, rec.Reference)
		switch {
		case err == nil:
			settled++
			log.Printf("✅ [REQUERY] %s settled as %s", applied.Reference, applied.Status)
		case errors.Is(err, services.ErrAmbiguousStatus):
			held++
		default:
			// Gateway still unsure or unreachable; the next sweep retries.
			log.Printf("⚠️ [REQUERY] %s not resolved: %v", rec.Reference, err)
		}
	}
	if settled > 0 || held > 0 {
		log.Printf("📊 [REQUERY] sweep done: %d settled, %d held for review", settled, held)
	}
}
