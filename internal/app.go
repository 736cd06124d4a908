package internal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"attachment-api/config"
	"attachment-api/internal/application/policy"
	"attachment-api/internal/application/ports"
	"attachment-api/internal/application/services"
	"attachment-api/internal/infrastructure/db/postgres"
	"attachment-api/internal/infrastructure/db/postgres/attachment"
	"attachment-api/internal/infrastructure/db/postgres/parent"
	"attachment-api/internal/infrastructure/jwt"
	"attachment-api/internal/infrastructure/metrics"
	"attachment-api/internal/infrastructure/mq"
	"attachment-api/internal/infrastructure/sanitizer"
	"attachment-api/internal/infrastructure/signing"
	"attachment-api/internal/infrastructure/storage"
	"attachment-api/internal/infrastructure/storage/backend"
	"attachment-api/internal/interface/api/rest"
	"attachment-api/internal/interface/api/rest/middleware"
	"attachment-api/pkg/rmqconsumer"
)

type App struct {
	logger       *zap.Logger
	cfg          config.Config
	db           *pgxpool.Pool
	storage      ports.StorageBackend
	closeStorage func() error
	httpSrv      *http.Server
	router       *gin.Engine
	mCounter     *prometheus.CounterVec
	audit        ports.AuditSink
	mq           ports.AuditPublisher
	mqConsumer   ports.AuditConsumer
}

func NewApp(ctx context.Context) (*App, error) {
	// logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("cannot initialize zap logger: %v", err)
	}

	// config; a missing .env is fine outside local development
	if err = godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Fatal("error loading .env file", zap.Error(err))
	}
	cfg := config.Load()
	if cfg.App.JWTSecret == "" {
		logger.Fatal("SERVICE_JWT_SECRET is required")
	}

	// metrics
	mCounter := metrics.NewCounter()

	// router
	switch cfg.App.Env {
	case gin.ReleaseMode, "prod", "production":
		gin.SetMode(gin.ReleaseMode)
	case gin.TestMode:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.App.CORSOrigins)))
	r.Use(middleware.RequestLogGin(logger, mCounter))

	// httpServer
	httpSrv := &http.Server{
		Addr:              cfg.App.Host + ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// db
	dbDsn, err := cfg.DBDSN()
	if err != nil {
		logger.Fatal("DB config error", zap.Error(err))
	}
	dbPool, err := postgres.New(ctx, logger, dbDsn)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	// storage
	store, closeStorage, err := backend.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to init storage backend", zap.Error(err), zap.String("backend", cfg.Storage.Backend))
	}
	logger.Info("storage backend ready", zap.String("backend", cfg.Storage.Backend))

	a := &App{
		logger:       logger,
		cfg:          cfg,
		db:           dbPool,
		storage:      store,
		closeStorage: closeStorage,
		httpSrv:      httpSrv,
		router:       r,
		mCounter:     mCounter,
		audit:        mq.NewLogSink(logger),
	}

	if !cfg.MQEnabled() {
		logger.Info("rabbitMQ not configured, audit events go to the log")
		return a, nil
	}

	// rabbitMQ
	rabbitDsn, err := cfg.AMQPDSN()
	if err != nil {
		logger.Fatal("RabbitMQ config error", zap.Error(err))
	}
	rbMQ := mq.New(cfg.MQ, logger, mCounter)
	if err = rbMQ.Connect(ctx, rabbitDsn); err != nil {
		logger.Fatal("failed to connect to rabbitMQ", zap.Error(err))
	}
	if err = rbMQ.Init(); err != nil {
		logger.Fatal("failed init rabbitMQ", zap.Error(err))
	}
	// rmqConsumer
	rmqConsumer := rmqconsumer.New(cfg.MQ, logger, rbMQ.GetConn())
	if err = rmqConsumer.Connect(rabbitDsn); err != nil {
		logger.Fatal("failed to connect rabbitMQ consumer", zap.Error(err))
	}
	if err = rmqConsumer.Init(); err != nil {
		logger.Fatal("failed to init rabbitMQ consumer", zap.Error(err))
	}

	a.mq = rbMQ
	a.audit = rbMQ
	a.mqConsumer = rmqConsumer

	return a, nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	c.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "If-None-Match"}
	c.ExposeHeaders = []string{"ETag", "Content-Disposition"}
	return c
}

func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.closeStorage != nil {
		if err := a.closeStorage(); err != nil {
			a.logger.Warn("storage close error", zap.Error(err))
		}
	}
	if a.mq != nil && a.mq.GetConn() != nil {
		_ = a.mq.GetConn().Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// Run - The central place to launch and manage our application and
// parallel processes through a single context.
func (a *App) Run(ctx context.Context) error {
	// context with os signals cancel chan
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("starting "+a.cfg.App.Name, zap.String("addr", a.httpSrv.Addr))
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server "+a.cfg.App.Name+" error: %w", err)
		}

		return nil
	})

	if a.mq != nil {
		g.Go(func() error {
			a.mq.PublisherWorker(ctx)
			return nil
		})
	}

	if a.mqConsumer != nil {
		g.Go(func() error {
			a.mqConsumer.DeliveryWorker(ctx)
			return nil
		})
	}

	<-ctx.Done()

	a.logger.Info("shutting down " + a.cfg.App.Name + " gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if a.httpSrv != nil {
		if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown "+a.cfg.App.Name+" error", zap.Error(err))
			return err
		}
	}

	if err := g.Wait(); err != nil {
		a.logger.Error(a.cfg.App.Name+" returning an error", zap.Error(err))
		return err
	}

	a.logger.Info(a.cfg.App.Name + " gracefully stopped")

	return nil
}

func (a *App) InitControllers() error {
	// repos
	attachmentRepo := attachment.NewRepository(a.db)
	parentRepo := parent.NewRepository(a.db)

	// services
	uploadPolicy := policy.New(policy.Config{
		AllowedContentTypes: a.cfg.Policy.AllowedContentTypes,
		AllowedExtensions:   a.cfg.Policy.AllowedExtensions,
		MaxSizeBytes:        a.cfg.Policy.MaxSizeBytes,
		DefaultTTLMinutes:   a.cfg.Signing.DefaultTTLMinutes,
		MaxTTLMinutes:       a.cfg.Signing.MaxTTLMinutes,
	})
	signer, err := signing.New(a.cfg.Signing.Secret, a.cfg.App.PublicBaseURL)
	if err != nil {
		return fmt.Errorf("signed urls: %w", err)
	}
	jwtService := jwt.New(a.cfg.App.JWTSecret)
	attachmentService := services.NewAttachmentService(services.AttachmentDeps{
		Repository: attachmentRepo,
		Parents:    parentRepo,
		Storage:    a.storage,
		Policy:     uploadPolicy,
		Sanitizer:  sanitizer.New(a.storage, a.cfg.Policy.MaxSizeBytes, a.cfg.Policy.JPEGQuality, a.logger),
		Sanitize:   a.cfg.Policy.SanitizeOnComplete,
		Signer:     signer,
		Audit:      a.audit,
		MCounter:   a.mCounter,
		Logger:     a.logger,
	})

	// controllers
	rest.NewAttachmentController(a.router, attachmentService, a.logger, jwtService)
	if receiver, ok := a.storage.(ports.ObjectReceiver); ok && a.cfg.Storage.Backend == string(storage.KindLoopback) {
		rest.NewLoopbackController(a.router, receiver, a.cfg.Policy.MaxSizeBytes, a.logger)
	}

	// ops
	a.router.GET(rest.RouteHealth, func(c *gin.Context) { c.Status(http.StatusOK) })
	a.router.GET(rest.RouteMetrics, gin.WrapH(promhttp.Handler()))

	return nil
}

func (a *App) Logger() *zap.Logger { return a.logger }
