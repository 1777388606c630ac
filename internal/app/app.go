package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"school-directory/internal/auth"
	"school-directory/internal/config"
	"school-directory/internal/db"
	"school-directory/internal/events"
	"school-directory/internal/health"
	"school-directory/internal/kafka"
	"school-directory/internal/logger"
	"school-directory/internal/mailer"
	"school-directory/internal/messaging"
	"school-directory/internal/middleware"
	"school-directory/internal/school"
	"school-directory/internal/storage"
	"school-directory/internal/telemetry"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
)

const sessionCleanupInterval = time.Hour

type App struct {
	config    *config.Config
	router    chi.Router
	server    *http.Server
	logger    *slog.Logger
	db        *bun.DB
	redis     *redis.Client
	producer  events.Producer
	telemetry *telemetry.Telemetry
	provider  *auth.OTPProvider

	stopCleanup context.CancelFunc
	cleanupDone chan struct{}
}

func New() (*App, error) {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version)
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application", "git_commit", GitCommit, "build_time", BuildTime)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env)

	ctx := context.Background()

	tel, err := telemetry.Init(ctx, ServiceName, Version, cfg.Telemetry.OTLPEndpoint, slogLogger)
	if err != nil {
		return nil, err
	}

	database, err := db.New(ctx, cfg.Database, slogLogger)
	if err != nil {
		return nil, err
	}
	if err := tel.Metrics.Database.RegisterDB(database.DB, otel.Meter(ServiceName)); err != nil {
		slogLogger.Warn("failed to register database pool metrics", "error", err)
	}
	if err := db.Migrate(ctx, database, slogLogger, (*school.School)(nil), (*auth.User)(nil), (*auth.SessionRecord)(nil)); err != nil {
		return nil, err
	}

	a := &App{
		config:    cfg,
		router:    chi.NewRouter(),
		logger:    slogLogger,
		db:        database,
		telemetry: tel,
	}

	store, err := storage.NewS3Store(cfg.Storage)
	if err != nil {
		return nil, err
	}

	challenges := a.challengeStore(ctx)

	mail, err := mailer.New(cfg.Mail, slogLogger)
	if err != nil {
		return nil, err
	}

	a.producer = a.eventProducer()

	// Auth
	authRepo := auth.NewRepository(database, tel.Metrics)
	a.provider = auth.NewOTPProvider(
		challenges,
		mail,
		authRepo,
		auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		auth.OTPConfig{
			CodeTTL:        cfg.Auth.OTPTTL(),
			MaxAttempts:    cfg.Auth.OTPMaxAttempts,
			ResendCooldown: cfg.Auth.ResendCooldown(),
			SessionTTL:     cfg.Auth.SessionTTL(),
		},
		slogLogger,
		tel.Metrics,
	)
	authMiddleware := auth.NewMiddleware(a.provider, auth.CookieConfig{
		Name:   cfg.Auth.CookieName,
		Secure: cfg.Env == "prod" || cfg.Env == "production",
	}, slogLogger)
	authHandler := auth.NewHandler(authMiddleware, slogLogger)

	// Schools
	schoolRepo := school.NewRepository(database, tel.Metrics)
	schoolService := school.NewService(schoolRepo, store, a.producer, slogLogger, tel.Metrics)
	schoolHandler := school.NewHandler(schoolService, slogLogger, cfg.Server.MaxUploadMB<<20)

	healthHandler := health.NewHandler().
		WithRecorder(tel.Metrics.Health).
		AddCheck("database", database.PingContext).
		AddCheck("storage", store.Ping)
	if a.redis != nil {
		healthHandler.AddCheck("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	if natsProducer, ok := a.producer.(*messaging.Producer); ok {
		healthHandler.AddOptionalCheck("nats", func(context.Context) error {
			return natsProducer.Ping()
		})
	}

	a.router.Use(chimw.RequestID)
	a.router.Use(chimw.RealIP)
	a.router.Use(middleware.RequestLogger(slogLogger))
	a.router.Use(chimw.Recoverer)
	a.router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	// Health endpoints skip session lookup
	healthHandler.RegisterRoutes(a.router)

	a.router.Group(func(r chi.Router) {
		r.Use(authMiddleware.LoadSession)
		authHandler.RegisterRoutes(r)
		schoolHandler.RegisterRoutes(r, authMiddleware.RequireSession)
	})

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	cleanupCtx, cancel := context.WithCancel(context.Background())
	a.stopCleanup = cancel
	a.cleanupDone = make(chan struct{})
	go a.cleanupSessions(cleanupCtx)

	slogLogger.Info("application initialized successfully")

	return a, nil
}

func (a *App) challengeStore(ctx context.Context) auth.ChallengeStore {
	if a.config.Redis.Addr == "" {
		a.logger.Warn("redis not configured, keeping OTP challenges in memory")
		return auth.NewMemoryChallengeStore()
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.config.Redis.Addr,
		Password: a.config.Redis.Password,
		DB:       a.config.Redis.DB,
	})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		a.logger.Warn("redis ping failed", "addr", a.config.Redis.Addr, "error", err)
	} else {
		a.logger.Info("redis connected", "addr", a.config.Redis.Addr)
	}
	return auth.NewRedisChallengeStore(a.redis)
}

// eventProducer never fails startup; events are best-effort.
func (a *App) eventProducer() events.Producer {
	cfg := a.config.Events

	switch cfg.Driver {
	case "nats":
		p, err := messaging.NewProducer(cfg.NATS.URL, cfg.NATS.Subject, a.logger)
		if err != nil {
			a.logger.Warn("failed to initialize NATS producer", "error", err)
			return events.Noop{}
		}
		return p
	case "kafka":
		p, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, a.logger)
		if err != nil {
			a.logger.Warn("failed to initialize kafka producer", "error", err)
			return events.Noop{}
		}
		return p
	default:
		return events.Noop{}
	}
}

func (a *App) Run() error {
	a.logger.Info("server starting", "port", a.config.Server.Port)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) cleanupSessions(ctx context.Context) {
	defer close(a.cleanupDone)

	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.provider.PurgeExpiredSessions(ctx)
			if err != nil {
				a.logger.Error("failed to purge expired sessions", "error", err)
				continue
			}
			if n > 0 {
				a.logger.Info("purged expired sessions", "count", n)
			}
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	a.stopCleanup()
	<-a.cleanupDone

	if err := a.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close producer: %w", err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	db.Close(a.db)

	if err := a.telemetry.Shutdown(ctx, a.logger); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
