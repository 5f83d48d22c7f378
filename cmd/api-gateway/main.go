package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/hostel-outing-api/api/swagger"
	"github.com/noah-isme/hostel-outing-api/internal/bootstrap"
	"github.com/noah-isme/hostel-outing-api/internal/handler"
	internalmiddleware "github.com/noah-isme/hostel-outing-api/internal/middleware"
	"github.com/noah-isme/hostel-outing-api/pkg/config"
	"github.com/noah-isme/hostel-outing-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/hostel-outing-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/hostel-outing-api/pkg/middleware/requestid"
)

// @title Hostel Outing API
// @version 1.0.0
// @description Outing requests, tiered approvals and QR gate passes for hostel residents.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.Env, cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("bootstrap failed", zap.Error(err))
	}
	defer app.Close()
	app.Start(ctx, cfg.Scheduler.Enabled)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(app.Metrics))

	metricsHandler := handler.NewMetricsHandler(app.Metrics, nil)
	if app.Events != nil {
		metricsHandler = handler.NewMetricsHandler(app.Metrics, app.Events)
	}
	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Routes{
		Outings:   handler.NewOutingHandler(app.Outings, app.Passes, app.Students, app.Renderer, cfg.Outing.Location()),
		Gate:      handler.NewGateHandler(app.Gate),
		Scheduler: handler.NewSchedulerHandler(app.Scheduler),
		Students:  handler.NewStudentHandler(app.Students),
		Metrics:   metricsHandler,
		Auth:      app.Tokens,
		Audit:     app.Audit,
	}.Register(r.Group(cfg.APIPrefix))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
