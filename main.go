package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/medlane-ng/medlane-backend/database"
	"github.com/medlane-ng/medlane-backend/internal/config"
	"github.com/medlane-ng/medlane-backend/internal/handlers"
	"github.com/medlane-ng/medlane-backend/internal/jobs"
	"github.com/medlane-ng/medlane-backend/internal/models"
	"github.com/medlane-ng/medlane-backend/internal/routes"
	"github.com/medlane-ng/medlane-backend/internal/services"
	"github.com/medlane-ng/medlane-backend/internal/storage"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Storage
	var store storage.Store
	var db *gorm.DB
	if cfg.Database.UseMemoryStore {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Println("📦 Connecting to PostgreSQL database...")
		if err := database.Connect(cfg.Database); err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		db = database.DB

		log.Println("🔄 Running database migrations...")
		err := db.AutoMigrate(
			&models.Session{},
			&models.User{},
			&models.Product{},
			&models.CartItem{},
			&models.Order{},
			&models.OrderItem{},
			&models.Doctor{},
			&models.Appointment{},
			&models.LabTest{},
			&models.LabBooking{},
			&models.OTP{},
			&models.Prescription{},
			&models.SupportTicket{},
		)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(db)
	}

	// Optional Redis for webhook dedup
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		log.Printf("✅ Redis webhook dedup enabled (%s)", cfg.Redis.Addr)
	} else {
		log.Println("⚠️  REDIS_ADDR not set - webhook dedup disabled")
	}

	// Messaging
	messenger, err := services.NewTwilioMessenger(cfg.Twilio)
	if err != nil {
		log.Fatal("Failed to initialize Twilio messenger:", err)
	}
	log.Println("✅ Twilio messenger initialized")

	// Intent table
	intentTable, err := services.LoadIntentTable(os.Getenv("INTENT_TABLE_PATH"))
	if err != nil {
		log.Fatal("Failed to load intent table:", err)
	}
	log.Printf("✅ Intent table loaded (%d intents)", len(intentTable.Intents))

	// Services
	sessions := services.NewSessionService(store, cfg.Session)
	classifier := services.NewClassifier(intentTable)
	otps := services.NewOTPService(store)
	catalog := services.NewCatalogService(store, cfg.Catalog)
	orders := services.NewOrderService(store, cfg.Catalog, cfg.Retry)
	payments := services.NewPaymentService(store, messenger, cfg.Payment)
	emails := services.NewEmailService(cfg.Email)
	ocr := services.NewOCRService(cfg.OCR)

	engine := services.NewEngine(store, sessions, classifier, messenger, otps, catalog, orders, payments, emails, ocr)

	// Background maintenance
	maintenance := jobs.NewMaintenanceJob(store, cfg.Session)
	maintenance.Start()

	// HTTP
	app := fiber.New(fiber.Config{
		AppName: "Medlane Backend v" + version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	routes.SetupRoutes(app, routes.Deps{
		Config:  cfg,
		Webhook: handlers.NewWebhookHandler(engine, messenger),
		Payment: handlers.NewPaymentHandler(payments),
		Admin:   handlers.NewAdminHandler(store),
		Health:  handlers.NewHealthHandler(version, db),
		Redis:   rdb,
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("\n🛑 Gracefully shutting down...")
		maintenance.Stop()
		_ = app.Shutdown()
	}()

	log.Println("========================================")
	log.Printf("🚀 Medlane Backend starting on port %s", cfg.Server.Port)
	log.Printf("🌍 Environment: %s", cfg.Server.Environment)
	log.Printf("📊 Storage: %s", storageType(cfg))
	log.Println("========================================")

	log.Fatal(app.Listen(":" + cfg.Server.Port))
}

func storageType(cfg *config.Config) string {
	if cfg.Database.UseMemoryStore {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}
