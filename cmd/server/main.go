package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"google.golang.org/api/idtoken"

	"github.com/iliyamo/property-listings/internal/config"
	"github.com/iliyamo/property-listings/internal/database"
	"github.com/iliyamo/property-listings/internal/handler"
	"github.com/iliyamo/property-listings/internal/logger"
	"github.com/iliyamo/property-listings/internal/mailer"
	"github.com/iliyamo/property-listings/internal/metrics"
	"github.com/iliyamo/property-listings/internal/middleware"
	"github.com/iliyamo/property-listings/internal/otp"
	"github.com/iliyamo/property-listings/internal/queue"
	"github.com/iliyamo/property-listings/internal/repository"
	"github.com/iliyamo/property-listings/internal/router"
	"github.com/iliyamo/property-listings/internal/service"
	"github.com/iliyamo/property-listings/internal/storage"
	"github.com/iliyamo/property-listings/internal/tasks"
	"github.com/iliyamo/property-listings/internal/validation"
	"github.com/iliyamo/property-listings/internal/workflow"
)

func main() {
	_ = godotenv.Load()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.NewForEnvironment(cfg.Env, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.MigrateUp(db); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable: rate limits and one-time codes are kept in process, response cache disabled")
	} else {
		defer rdb.Close()
	}

	m := metrics.New()
	runner := tasks.New(tasks.Config{Workers: cfg.TaskWorkers, QueueSize: cfg.TaskQueueSize, Timeout: 30 * time.Second}, log, m)
	runner.Start(ctx)

	storageCfg := config.LoadStorageConfig()
	objects, err := newStorage(ctx, storageCfg, cfg.Port, log)
	if err != nil {
		return err
	}

	mailCfg := config.LoadMailConfig()
	var sender mailer.Sender = mailer.LogSender{Logger: log.Named("mail")}
	if mailCfg.Host != "" {
		sender = mailer.NewSMTPSender(mailCfg)
	} else {
		log.Warn("SMTP_HOST not set: emails are logged, not sent")
	}
	mail := mailer.New(sender, mailCfg.SiteURL)

	var notifier service.Notifier = service.MailNotifier{Mailer: mail}
	broker := config.LoadBrokerConfig()
	if broker.URL != "" {
		notifier = service.NewQueuePublisher(broker.URL, broker.Queue, log)
		consumer := queue.NewConsumer(broker.URL, broker.Queue, func(ctx context.Context, ev queue.NotificationEvent) error {
			return mail.Send(ctx, ev.Message())
		}, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("notification consumer stopped", zap.Error(err))
			}
		}()
	}

	users := repository.NewUserRepo(db)
	listings := repository.NewListingRepo(db)
	images := repository.NewImageRepo(db)
	analyses := repository.NewAnalysisRepo(db)
	activity := repository.NewActivityRepo(db)

	errs := handler.Errors{Production: cfg.IsProduction(), Logger: log}
	auth := &handler.AuthHandler{
		Cfg:      cfg,
		Users:    users,
		Tokens:   repository.NewTokenRepo(db),
		Codes:    otp.New(rdb),
		Runner:   runner,
		Notifier: notifier,
		Activity: activity,
		Errors:   errs,
	}
	if cfg.GoogleClientID != "" {
		v, err := idtoken.NewValidator(ctx)
		if err != nil {
			return fmt.Errorf("google token validator: %w", err)
		}
		auth.Google = v
	}

	listingSvc := service.NewListingService(service.ListingDeps{
		Listings: listings,
		Images:   images,
		Users:    users,
		Objects:  objects,
		Runner:   runner,
		Notifier: notifier,
		Activity: activity,
		Counter:  m,
		Logger:   log,
	})
	imageSvc := service.NewImageService(listings, images, objects, runner, log)

	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.NewValidator()
	e.Use(echomw.RequestID())
	e.Use(logger.RequestLogger(log))
	e.Use(logger.Recover(log))
	e.Use(echomw.BodyLimit("64M"))

	router.Register(e, router.Handlers{
		Auth:     auth,
		Listings: handler.NewListingHandler(listingSvc, errs),
		Images: handler.NewImageHandler(imageSvc,
			service.ImageLimits{MaxFileSize: storageCfg.MaxUploadSize, MaxBatchSize: storageCfg.MaxBatchSize, MaxImages: storageCfg.MaxImages},
			service.ImageLimits{MaxFileSize: storageCfg.MaxBatchSize},
			errs),
		Library: &handler.LibraryHandler{Analyses: analyses, Errors: errs},
		Analysis: &handler.AnalysisHandler{
			Workflow: workflow.NewClient(config.LoadWorkflowConfig()),
			Library:  analyses,
			Runner:   runner,
			Activity: activity,
			Errors:   errs,
		},
		Ready:   handler.Ready(db),
		Metrics: m.Handler(),
	}, router.Guards{
		JWTSecret: cfg.JWTSecret,
		Limiter:   middleware.NewRateLimiter(config.LoadRateLimitConfig(), rdb, m, log),
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	return runner.Stop(shutdownCtx)
}

// newStorage returns the S3 bucket when one is configured and an
// in-memory store otherwise. The latter is for local development only.
func newStorage(ctx context.Context, cfg config.StorageConfig, port string, log *zap.Logger) (storage.Storage, error) {
	if cfg.Bucket == "" {
		log.Warn("S3_BUCKET not set: images are kept in memory and lost on restart")
		return storage.NewMemoryStorage("http://localhost:" + port + "/objects"), nil
	}
	s3, err := storage.NewS3Storage(ctx, cfg, storage.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if err := s3.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return s3, nil
}
