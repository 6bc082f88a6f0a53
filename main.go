package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raushankrgupta/birthday-club/api"
	"github.com/raushankrgupta/birthday-club/config"
	"github.com/raushankrgupta/birthday-club/notification"
	"github.com/raushankrgupta/birthday-club/ratelimit"
	"github.com/raushankrgupta/birthday-club/repository"
	"github.com/raushankrgupta/birthday-club/service"
	"github.com/raushankrgupta/birthday-club/utils"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()

	logger, err := utils.NewLogger(config.Environment, config.LogLevel, config.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// MongoDB is connected lazily on the first request
	mongoProvider := utils.NewMongoProvider(config.MongoURI, logger)
	users := repository.NewUserRepository(mongoProvider.Collection(config.MainDBName, "users"))
	archive := repository.NewArchiveRepository(mongoProvider.Collection(config.ArchiveDBName, "deletedusers"))
	counters := repository.NewRateLimitRepository(mongoProvider.Collection(config.MainDBName, "ratelimiters"))

	notifier := notification.New(newSender(logger), logger,
		notification.WithBatchSize(config.EmailBatchSize),
		notification.WithRetry(config.EmailMaxRetries, config.EmailRetryDelay),
	)

	location, err := time.LoadLocation(config.BirthdayTimezone)
	if err != nil {
		logger.Fatal("Invalid BIRTHDAY_TIMEZONE", zap.String("timezone", config.BirthdayTimezone), zap.Error(err))
	}

	opts := []service.Option{service.WithLocation(location)}
	if config.ArchiveExportBucket != "" {
		exporter, err := utils.NewS3ArchiveExporter(context.Background(), config.AWSRegion, config.ArchiveExportBucket)
		if err != nil {
			logger.Fatal("Failed to initialize archive export", zap.Error(err))
		}
		opts = append(opts, service.WithExporter(exporter))
		logger.Info("Archive export enabled", zap.String("bucket", config.ArchiveExportBucket))
	}

	svc := service.New(users, archive, ratelimit.New(counters), notifier, logger, opts...)

	if config.APIKey == "" {
		if config.AllowUnauthenticatedMaintenance {
			logger.Warn("API_KEY is not set and ALLOW_UNAUTHENTICATED_MAINTENANCE is enabled, maintenance endpoints are open")
		} else {
			logger.Warn("API_KEY is not set, maintenance endpoints only accept JWT bearer tokens")
		}
	}
	auth := api.NewMaintenanceAuth(config.APIKey, config.JWTSecret, config.AllowUnauthenticatedMaintenance, logger)
	router := api.NewRouter(api.NewHandler(svc, logger), auth, config.CORSAllowedOrigins, logger)

	server := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      api.BroadcastTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", config.Port), zap.String("environment", config.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := mongoProvider.Disconnect(ctx); err != nil {
		logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
	}
	logger.Info("Server exited")
}

// newSender picks SendGrid when a key is configured. Outside production a
// missing key falls back to logging the emails.
func newSender(logger *zap.Logger) notification.Sender {
	sender, err := utils.NewSendGridSender(config.SendGridAPIKey, config.EmailFromName, config.EmailFromAddress, logger)
	if err == nil {
		return sender
	}
	if config.IsProduction() {
		logger.Fatal("Email delivery is not configured", zap.Error(err))
	}
	logger.Warn("SENDGRID_API_KEY is not set, emails will only be logged")
	return utils.NewLogSender(logger)
}
