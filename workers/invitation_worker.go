package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"talent-registration-system/models"
	"talent-registration-system/services"

	"gorm.io/gorm"
)

// InvitationWorker delivers slot-pool invitations. Sends happen outside
// the add-participant transaction; a participant stays pending until a
// send succeeds, so failed deliveries are retried on the next tick.
type InvitationWorker struct {
	db       *gorm.DB
	email    *services.EmailService
	interval time.Duration
	batch    int
}

func NewInvitationWorker(db *gorm.DB, email *services.EmailService) *InvitationWorker {
	return &InvitationWorker{
		db:       db,
		email:    email,
		interval: 1 * time.Minute,
		batch:    100,
	}
}

func (w *InvitationWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting invitation worker…")
	go w.run(ctx)
}

func (w *InvitationWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️ Invitation worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *InvitationWorker) sweep(ctx context.Context) {
	var pending []models.BulkParticipant
	err := w.db.
		Where("invitation_status = ?", models.InvitationPending).
		Order("created_at ASC").
		Limit(w.batch).
		Find(&pending).Error
	if err != nil {
		log.Printf("❌ [INVITE] failed to list pending invitations: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	log.Printf("📨 [INVITE] sending %d pending invitation(s)", len(pending))

	for _, p := range pending {
		if ctx.Err() != nil {
			return
		}
		sponsor, err := w.sponsorName(p.BulkRegistrationID)
		if err != nil {
			log.Printf("⚠️ [INVITE] cannot resolve sponsor for participant %s: %v", p.ID, err)
			continue
		}
		name := p.FirstName
		if name == "" {
			name = p.Email
		}
		if err := w.email.SendInvitation(p.Email, name, sponsor); err != nil {
			log.Printf("⚠️ [INVITE] send to %s failed, will retry: %v", p.Email, err)
			continue
		}
		// Conditional flip keeps a concurrent sweep from double-marking.
		res := w.db.Model(&models.BulkParticipant{}).
			Where("id = ? AND invitation_status = ?", p.ID, models.InvitationPending).
			Update("invitation_status", models.InvitationSent)
		if res.Error != nil {
			log.Printf("❌ [INVITE] failed to mark %s as sent: %v", p.ID, res.Error)
		}
	}
}

func (w *InvitationWorker) sponsorName(poolID string) (string, error) {
	var pool models.BulkRegistration
	if err := w.db.Where("id = ?", poolID).First(&pool).Error; err != nil {
		return "", err
	}
	var owner models.User
	if err := w.db.Where("id = ?", pool.UserID).First(&owner).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s", owner.FirstName, owner.LastName), nil
}
