package services

import (
	"testing"

	"talent-registration-system/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a throwaway in-memory database with the full schema.
// Single connection: sqlite's :memory: is per-connection.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.VerificationCode{},
		&models.Registration{},
		&models.BulkRegistration{},
		&models.BulkParticipant{},
		&models.PaymentRecord{},
		&models.PaymentGatewayEvent{},
		&models.Contestant{},
		&models.VoteRecord{},
		&models.TicketPurchase{},
		&models.Ticket{},
	))
	return db
}

// newTestPayments wires a reconciler without a live gateway; Apply and
// the normalizers never touch the network.
func newTestPayments(db *gorm.DB) *PaymentService {
	return NewPaymentService(db, nil,
		Normalizer{Convention: StatusNumeric},
		Normalizer{Convention: StatusStrings})
}
