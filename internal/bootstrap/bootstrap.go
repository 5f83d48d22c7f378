package bootstrap

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/hostel-outing-api/internal/models"
	"github.com/noah-isme/hostel-outing-api/internal/repository"
	"github.com/noah-isme/hostel-outing-api/internal/service"
	"github.com/noah-isme/hostel-outing-api/pkg/cache"
	"github.com/noah-isme/hostel-outing-api/pkg/config"
	"github.com/noah-isme/hostel-outing-api/pkg/database"
	"github.com/noah-isme/hostel-outing-api/pkg/export"
	"github.com/noah-isme/hostel-outing-api/pkg/qrcode"
)

// App holds the wired services shared by the API server and the CLI.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	DB    *sqlx.DB
	Redis *redis.Client

	Metrics   *service.MetricsService
	Events    *service.EventNotifier
	Audit     *repository.AuditRepository
	Students  *service.StudentDirectory
	Passes    *service.QRTokenService
	Outings   *service.OutingService
	Gate      *service.GateScanService
	Scheduler *service.ExpiryScheduler
	Tokens    *service.TokenVerifier
	Renderer  *export.PassRenderer
}

// New connects to the backing stores and builds every service. Redis is
// optional: without it student lookups skip the cache and events stay local.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{Config: cfg, Logger: logger}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	app.DB = db
	if err := database.EnsureSchema(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	if cfg.Redis.Host != "" {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, continuing without cache and events", zap.Error(err))
		} else {
			app.Redis = client
		}
	}

	sweep, err := service.ParseSweepClock(cfg.Scheduler.SweepTime)
	if err != nil {
		app.Close()
		return nil, err
	}
	loc := cfg.Outing.Location()
	policy := service.PassPolicy{
		Location:        loc,
		PreReturnOffset: cfg.Outing.PreReturnOffset,
		LateGrace:       cfg.Outing.LateGrace,
		Sweep:           sweep,
		ConflictRetries: cfg.Scheduler.ConflictRetries,
	}

	codec, err := qrcode.NewCodec(cfg.Outing.QRSecret, string(models.DirectionOutgoing), string(models.DirectionIncoming))
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Tokens, err = service.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Metrics = service.NewMetricsService()
	app.Audit = repository.NewAuditRepository(db)
	outings := repository.NewOutingRepository(db)

	cacheRepo := repository.NewCacheRepository(app.Redis, logger)
	cacheSvc := service.NewCacheService(cacheRepo, app.Metrics, cfg.Outing.StudentCacheTTL, logger, app.Redis != nil)
	app.Students = service.NewStudentDirectory(repository.NewStudentRepository(db), cacheSvc, cfg.Outing.StudentCacheTTL, logger)

	opts := []service.Option{
		service.WithAudit(app.Audit),
		service.WithMetrics(app.Metrics),
		service.WithLogger(logger),
	}
	if cfg.Events.Enabled && app.Redis != nil {
		app.Events = service.NewEventNotifier(
			repository.NewRedisEventPublisher(app.Redis, cfg.Events.Channel),
			service.EventNotifierConfig{
				Workers:    cfg.Events.Workers,
				BufferSize: cfg.Events.BufferSize,
				MaxRetries: cfg.Events.MaxRetries,
			},
			logger,
		)
		opts = append(opts, service.WithNotifier(app.Events))
	}

	app.Passes = service.NewQRTokenService(outings, codec, policy, opts...)
	app.Outings = service.NewOutingService(outings, app.Passes, validator.New(), policy, opts...)
	app.Gate = service.NewGateScanService(app.Passes, app.Students, policy, opts...)
	app.Scheduler = service.NewExpiryScheduler(outings, app.Passes, policy, service.SchedulerConfig{
		TickInterval:    cfg.Scheduler.TickInterval,
		ConflictRetries: cfg.Scheduler.ConflictRetries,
	}, opts...)
	app.Renderer = export.NewPassRenderer(loc)

	return app, nil
}

// Start launches the background workers.
func (a *App) Start(ctx context.Context, withScheduler bool) {
	if a.Events != nil {
		a.Events.Start(ctx)
	}
	if withScheduler {
		a.Scheduler.Start(ctx)
	}
}

// Close stops the workers and releases connections.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Events != nil {
		a.Events.Stop()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("close database", zap.Error(err))
		}
	}
}
