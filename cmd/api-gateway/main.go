package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/Rzouga01/LearnHub-sub001/api/swagger"
	"github.com/Rzouga01/LearnHub-sub001/internal/handler"
	"github.com/Rzouga01/LearnHub-sub001/internal/middleware"
	"github.com/Rzouga01/LearnHub-sub001/internal/policy"
	"github.com/Rzouga01/LearnHub-sub001/internal/repository"
	"github.com/Rzouga01/LearnHub-sub001/internal/service"
	"github.com/Rzouga01/LearnHub-sub001/pkg/cache"
	"github.com/Rzouga01/LearnHub-sub001/pkg/config"
	"github.com/Rzouga01/LearnHub-sub001/pkg/database"
	"github.com/Rzouga01/LearnHub-sub001/pkg/jobs"
	"github.com/Rzouga01/LearnHub-sub001/pkg/logger"
	"github.com/Rzouga01/LearnHub-sub001/pkg/mailer"
	"github.com/Rzouga01/LearnHub-sub001/pkg/storage"
)

// @title LearnHub Trainer Applications API
// @version 1.0.0
// @description Public intake and staff review of trainer applications.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database, logr); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Redis only backs the summary cache and rate limiter; both degrade.
		logr.Warn("redis unavailable, continuing without it", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	metrics := service.NewMetricsService()

	fileStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		return fmt.Errorf("init upload storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
	attachments := service.NewAttachmentService(fileStore, signer, logr, service.AttachmentServiceConfig{
		MaxFileSize:  cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
		APIPrefix:    cfg.APIPrefix,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier, err := newNotifier(ctx, cfg.Notifications, logr, metrics)
	if err != nil {
		return err
	}
	// Workers outlive the signal context so requests drained during shutdown can still enqueue.
	notifier.Start(context.Background())
	defer notifier.Stop()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, "learnhub:")
	}
	summaryCache := service.NewCacheService(cacheRepo, metrics, cfg.Applications.SummaryCacheTTL, logr)

	guard := policy.NewGuard()
	applications := service.NewTrainerApplicationService(
		repository.NewTrainerApplicationRepository(db),
		repository.NewUserRepository(db),
		service.NewApplicationValidator(validator.New()),
		attachments,
		guard,
		service.TrainerApplicationConfig{
			RejectDuplicates: cfg.Applications.DuplicatePolicy == config.DuplicatePolicyReject,
			SummaryTTL:       cfg.Applications.SummaryCacheTTL,
		},
		logr,
		service.WithSummaryCache(summaryCache),
		service.WithApplicationMetrics(metrics),
		service.WithNotifier(notifier),
	)

	scheduler := jobs.NewScheduler(logr, cfg.Notifications.SendTimeout)
	if err := scheduler.Add("backlog_digest", cfg.Notifications.DigestCron, applications.SendBacklogDigest); err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		scheduler.Stop(stopCtx)
	}()

	router := handler.NewRouter(handler.RouterDeps{
		Config: cfg,
		Logger: logr,
		Tokens: service.NewTokenService(service.TokenConfig{
			Secret:   cfg.JWT.Secret,
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
		}),
		Guard:        guard,
		Applications: handler.NewTrainerApplicationHandler(applications),
		Operations:   handler.NewMetricsHandler(metrics, readinessChecks(db.PingContext, redisClient)),
		Observer:     metrics,
		SubmitLimit: middleware.NewRateLimiter(redisClient, middleware.RateLimitConfig{
			Prefix: "learnhub:ratelimit:submit:",
			Limit:  cfg.RateLimit.SubmitLimit,
			Window: cfg.RateLimit.SubmitWindow,
		}, logr, metrics),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newNotifier(ctx context.Context, cfg config.NotificationsConfig, logr *zap.Logger, metrics *service.MetricsService) (*service.NotificationService, error) {
	var transport mailer.Transport
	switch cfg.Transport {
	case config.TransportSMTP:
		transport = mailer.NewSMTPTransport(mailer.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		})
	case config.TransportSES:
		ses, err := mailer.NewSESTransportFromRegion(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("init ses transport: %w", err)
		}
		transport = ses
	default:
		transport = mailer.NewLogTransport(logr)
	}

	opts := []service.NotificationOption{service.WithDispatchMetrics(metrics)}
	if cfg.SNSTopicARN != "" {
		publisher, err := mailer.NewSNSPublisherFromRegion(ctx, cfg.AWSRegion, cfg.SNSTopicARN)
		if err != nil {
			return nil, fmt.Errorf("init sns publisher: %w", err)
		}
		opts = append(opts, service.WithStaffPublisher(publisher))
	}

	return service.NewNotificationService(transport, service.NotificationConfig{
		Enabled:         cfg.Enabled,
		FromEmail:       cfg.FromEmail,
		StaffRecipients: cfg.StaffRecipients,
		StatusChanges:   cfg.StatusChanges,
		Workers:         cfg.Workers,
		MaxRetries:      cfg.MaxRetries,
		RetryDelay:      cfg.RetryDelay,
		SendTimeout:     cfg.SendTimeout,
	}, logr, opts...), nil
}

func readinessChecks(pingDB func(context.Context) error, client *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{"database": pingDB}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	return checks
}
