package main

import (
	"alcyxob/fitness-booking/internal/api"
	"alcyxob/fitness-booking/internal/config"
	"alcyxob/fitness-booking/internal/jobs"
	"alcyxob/fitness-booking/internal/payment"
	"alcyxob/fitness-booking/internal/repository"
	"alcyxob/fitness-booking/internal/repository/memory"
	"alcyxob/fitness-booking/internal/repository/mongo"
	"alcyxob/fitness-booking/internal/service"
	"alcyxob/fitness-booking/internal/storage"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

// repositories groups the storage backends chosen at startup.
type repositories struct {
	users     repository.UserRepository
	templates repository.ClassTemplateRepository
	bookings  repository.BookingRepository
	state     repository.SchedulerStateRepository
}

// @title Fitness Class Booking API
// @version 1.0
// @description Weekly class schedules, seat reservations and payments for a fitness studio.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	log.Println("Starting Fitness Booking Server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Printf("Configuration loaded (window %d weeks, timezone %s).", cfg.Scheduler.WindowWeeks, cfg.Scheduler.Timezone)

	// --- Repositories ---
	var repos repositories
	if cfg.Database.URI == "" {
		log.Println("WARN: database.uri is empty, using the in-memory store. Data is lost on restart.")
		repos = repositories{
			users:     memory.NewUserRepository(),
			templates: memory.NewClassTemplateRepository(),
			bookings:  memory.NewBookingRepository(),
			state:     memory.NewSchedulerStateRepository(),
		}
	} else {
		dbClient, err := mongo.ConnectDB(cfg.Database.URI, "fitness-booking")
		if err != nil {
			log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
		}
		defer func() {
			log.Println("Disconnecting MongoDB...")
			if err := mongo.DisconnectDB(dbClient); err != nil {
				log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
			}
		}()
		appDB := dbClient.Database(cfg.Database.Name)
		log.Println("Database connection established.")

		go func() { // Run index creation in the background
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
			defer cancel()
			mongo.EnsureIndexes(ctx, appDB)
			log.Println("Index creation process completed.")
		}()

		repos = repositories{
			users:     mongo.NewMongoUserRepository(appDB),
			templates: mongo.NewMongoClassTemplateRepository(appDB),
			bookings:  mongo.NewMongoBookingRepository(appDB),
			state:     mongo.NewMongoSchedulerStateRepository(appDB),
		}
	}

	// --- Initialize Storage ---
	fileStorage, err := storage.NewS3Storage(context.Background(), cfg.S3)
	if errors.Is(err, storage.ErrStorageDisabled) {
		log.Println("WARN: s3.bucket_name is empty, class cover images are disabled.")
		fileStorage = storage.NewDisabledStorage()
	} else if err != nil {
		log.Fatalf("FATAL: Failed to initialize S3 storage: %v", err)
	}

	// --- Payment Gateway ---
	gateway, err := payment.NewHostedCheckout(cfg.Payment.CheckoutBaseURL, cfg.Payment.Currency, cfg.Scheduler.PendingTTL)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize payment gateway: %v", err)
	}
	if cfg.Payment.WebhookSecret == "" {
		log.Println("WARN: payment.webhook_secret is empty, payment callbacks will be rejected.")
	}

	// --- Initialize Services ---
	log.Println("Initializing services...")
	authService := service.NewAuthService(repos.users, cfg.JWT.Secret, cfg.JWT.Expiration)
	classService := service.NewClassService(repos.templates, repos.users, fileStorage)
	schedulerService := service.NewSchedulerService(
		repos.templates, repos.bookings, repos.state, gateway,
		service.WithWindowWeeks(cfg.Scheduler.WindowWeeks),
		service.WithLocation(cfg.Scheduler.Location()),
		service.WithPendingTTL(cfg.Scheduler.PendingTTL),
	)

	if cfg.Admin.Email != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := authService.EnsureAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			log.Printf("ERROR: Failed to seed admin user: %v", err)
		}
		cancel()
	}

	// --- Background Jobs ---
	scheduler, err := jobs.NewCleanupScheduler(cfg.Scheduler.CleanupCron, cfg.Scheduler.Location(), schedulerService, jobs.DefaultTimeout)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	scheduler.Start()

	// --- Initialize Gin Engine ---
	router := gin.Default() // Includes Logger and Recovery middleware
	api.SetupRoutes(router, cfg.JWT.Secret, cfg.Payment.WebhookSecret, api.Services{
		Auth:      authService,
		Classes:   classService,
		Scheduler: schedulerService,
	})

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Let a sweep in progress finish before the database goes away.
	<-scheduler.Stop().Done()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Printf("ERROR: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
