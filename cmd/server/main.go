// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Doc-Scripter/HelpingHand/config"
	"github.com/Doc-Scripter/HelpingHand/internal/events"
	"github.com/Doc-Scripter/HelpingHand/internal/handler"
	"github.com/Doc-Scripter/HelpingHand/internal/middleware"
	"github.com/Doc-Scripter/HelpingHand/internal/provider"
	"github.com/Doc-Scripter/HelpingHand/internal/provider/mpesa"
	"github.com/Doc-Scripter/HelpingHand/internal/repository"
	"github.com/Doc-Scripter/HelpingHand/internal/router"
	"github.com/Doc-Scripter/HelpingHand/internal/usecase"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using process environment")
	}

	logger.Info("starting helpinghand donation service")

	// Load configuration
	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.Bool("simulation", cfg.Mpesa.Simulation))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	dbPool, err := config.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	if cfg.Database.AutoMigrate {
		if err := repository.RunMigrations(cfg.Database.DSN(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Redis backs the donate rate limiter only
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, donate rate limiting will fail open", zap.Error(err))
	}

	// Event publisher
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled() {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		logger.Info("publishing donation events",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}
	defer publisher.Close()

	// Initialize repositories
	store := repository.NewStore(dbPool)

	// Initialize provider
	var gateway provider.Gateway
	var simulator *mpesa.Simulator
	if cfg.Mpesa.Simulation {
		simulator = mpesa.NewSimulator(logger)
		gateway = simulator
	} else {
		gateway = mpesa.NewClient(cfg.Mpesa, logger)
	}

	// Initialize usecases
	callbackUC := usecase.NewCallbackUsecase(store.Pending, store, publisher, logger)
	donationUC := usecase.NewDonationUsecase(store.Projects, store.Pending, gateway, cfg.Donation.RefPrefix, logger)
	if simulator != nil {
		donationUC.EnableSimulatedSettlement(simulator, callbackUC)
	}
	statusUC := usecase.NewStatusUsecase(store.Pending, gateway, publisher, logger)
	projectUC := usecase.NewProjectUsecase(store.Projects, store.Donations, logger)

	// Initialize handlers
	handlers := router.Handlers{
		Health:   handler.NewHealthHandler(dbPool, cfg.Mpesa.Simulation, logger),
		Projects: handler.NewProjectHandler(projectUC, logger),
		Donation: handler.NewDonationHandler(donationUC, statusUC, logger),
		Callback: handler.NewCallbackHandler(callbackUC, logger),
	}
	donateLimiter := middleware.RateLimiter(rdb,
		cfg.Donation.RateLimit,
		cfg.Donation.RateLimitWindow,
		cfg.Donation.RateLimitBlock,
		"donate",
		logger)

	// Setup routes
	r := router.SetupRoutes(handlers, donateLimiter, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
