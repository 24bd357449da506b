package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/facility-booking-api/api/swagger"
	"github.com/noah-isme/facility-booking-api/internal/handler"
	"github.com/noah-isme/facility-booking-api/internal/middleware"
	"github.com/noah-isme/facility-booking-api/internal/repository"
	"github.com/noah-isme/facility-booking-api/internal/service"
	"github.com/noah-isme/facility-booking-api/pkg/cache"
	"github.com/noah-isme/facility-booking-api/pkg/config"
	"github.com/noah-isme/facility-booking-api/pkg/database"
	"github.com/noah-isme/facility-booking-api/pkg/logger"
)

// @title Facility Booking API
// @version 1.0.0
// @description Residential facility booking scheduler
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

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logr); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.FacilityCache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, facility cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	metricsSvc := service.NewMetricsService()

	bookingRepo := repository.NewBookingRepository(db)
	facilityRepo := repository.NewFacilityRepository(db)
	outboxRepo := repository.NewNotificationOutboxRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.FacilityCache.TTL, logr, redisClient != nil)
	facilitySvc := service.NewFacilityService(facilityRepo, cacheSvc, cfg.FacilityCache.TTL, logr)
	rules := service.NewRuleValidator(cfg.Booking.DefaultTimezone)
	bookingSvc := service.NewBookingService(service.BookingServiceParams{
		Store:      bookingRepo,
		Facilities: facilitySvc,
		Outbox:     outboxRepo,
		Rules:      rules,
		Lifecycle:  service.NewLifecycleManager(),
		Metrics:    metricsSvc,
		Logger:     logr,
	})
	calendarSvc := service.NewCalendarService(facilitySvc, bookingRepo, rules, logr)
	tokenSvc := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	var dispatcher *service.NotificationDispatcher
	if cfg.Notifications.Enabled {
		dispatcher = service.NewNotificationDispatcher(outboxRepo, service.NewLogNotifier(logr), service.NotificationDispatcherConfig{
			PollInterval: cfg.Notifications.PollInterval,
			BatchSize:    cfg.Notifications.BatchSize,
			Workers:      cfg.Notifications.Workers,
			MaxAttempts:  cfg.Notifications.MaxAttempts,
		}, metricsSvc, logr)
		dispatcher.Start(ctx)
		logr.Info("notification dispatcher started")
	}

	router := newRouter(cfg, logr, routerDeps{
		tokens:   tokenSvc,
		limiter:  middleware.NewRateLimiter(cfg.Booking.RateLimitPerMinute, cfg.Booking.RateLimitBurst, logr),
		metrics:  metricsSvc,
		health:   handler.NewMetricsHandler(metricsSvc, db, logr),
		bookings: handler.NewBookingHandler(bookingSvc),
		facility: handler.NewFacilityHandler(facilitySvc, bookingSvc, calendarSvc),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if dispatcher != nil {
		dispatcher.Stop()
	}
}
