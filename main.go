package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"talent-registration-system/handlers"
	"talent-registration-system/models"
	"talent-registration-system/services"
	"talent-registration-system/utils"
	"talent-registration-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 200 * 1024 * 1024, // audition videos
	})

	// CORS — allowed origins from environment
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Webhook-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitStorage(); err != nil {
		log.Fatal("failed to initialize media storage:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
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
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// Per-integration status conventions; never inferred from payloads.
	webhookNorm := services.Normalizer{
		Convention: services.ConventionFromEnv(os.Getenv("GATEWAY_WEBHOOK_STATUS_FORMAT"), services.StatusNumeric),
	}
	verifyNorm := services.Normalizer{
		Convention: services.ConventionFromEnv(os.Getenv("GATEWAY_VERIFY_STATUS_FORMAT"), services.StatusStrings),
	}

	gateway := services.NewGatewayClient()
	paymentService := services.NewPaymentService(db, gateway, webhookNorm, verifyNorm)
	codeService := services.NewCodeService(db)
	emailService := services.NewEmailService(services.NewSenderFromEnv())
	authService := services.NewAuthService(db, codeService, emailService)
	registrationService := services.NewRegistrationService(db, paymentService, services.RegistrationFeeFromEnv())
	bulkService := services.NewBulkService(db, paymentService, services.PricePerSlotFromEnv())
	voteService := services.NewVoteService(db, paymentService, services.VotePriceFromEnv())
	ticketService := services.NewTicketService(db, paymentService, services.TicketPriceFromEnv())
	locationService := services.NewLocationService()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workers.NewPaymentRequeryWorker(paymentService).Start(ctx)
	workers.NewInvitationWorker(db, emailService).Start(ctx)
	services.StartMaintenanceScheduler(codeService, bulkService)

	handlers.SetupAuthRoutes(app, authService)
	handlers.SetupRegistrationRoutes(app, registrationService, locationService)
	handlers.SetupBulkRoutes(app, bulkService)
	handlers.SetupPaymentRoutes(app, paymentService)
	handlers.SetupVoteRoutes(app, voteService)
	handlers.SetupTicketRoutes(app, ticketService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5400"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Payment requery worker running")
	log.Println("✅ Invitation worker running")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
