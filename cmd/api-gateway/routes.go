package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/facility-booking-api/internal/handler"
	"github.com/noah-isme/facility-booking-api/internal/middleware"
	"github.com/noah-isme/facility-booking-api/internal/service"
	"github.com/noah-isme/facility-booking-api/pkg/config"
	"github.com/noah-isme/facility-booking-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/facility-booking-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/facility-booking-api/pkg/middleware/requestid"
)

type routerDeps struct {
	tokens   middleware.TokenValidator
	limiter  *middleware.RateLimiter
	metrics  *service.MetricsService
	health   *handler.MetricsHandler
	bookings *handler.BookingHandler
	facility *handler.FacilityHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.health.Health)
	r.GET("/ready", deps.health.Ready)
	r.GET("/metrics", deps.health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(deps.tokens))

	writes := deps.limiter.Middleware()

	bookings := api.Group("/bookings")
	bookings.GET("", deps.bookings.Mine)
	bookings.POST("", writes, deps.bookings.Create)
	bookings.GET("/:id", deps.bookings.Get)
	bookings.PUT("/:id", writes, deps.bookings.Reschedule)
	bookings.DELETE("/:id", middleware.RequireAdmin(), middleware.Audit(logr, "delete", "booking"), deps.bookings.Delete)
	bookings.POST("/:id/cancel", writes, deps.bookings.Cancel)
	bookings.POST("/:id/approve", middleware.RequireAdmin(), middleware.Audit(logr, "approve", "booking"), deps.bookings.Approve)
	bookings.POST("/:id/reject", middleware.RequireAdmin(), middleware.Audit(logr, "reject", "booking"), deps.bookings.Reject)
	bookings.POST("/:id/complete", middleware.RequireAdmin(), middleware.Audit(logr, "complete", "booking"), deps.bookings.Complete)

	facilities := api.Group("/facilities")
	facilities.GET("", deps.facility.List)
	facilities.GET("/:id", deps.facility.Get)
	facilities.GET("/:id/availability", deps.facility.Availability)
	facilities.GET("/:id/bookings", middleware.RequireAdmin(), deps.facility.Bookings)
	facilities.GET("/:id/day-sheet", middleware.RequireAdmin(), deps.facility.DaySheet)
	facilities.POST("/:id/cache/evict", middleware.RequireAdmin(), middleware.Audit(logr, "evict_cache", "facility"), deps.facility.Evict)

	admin := api.Group("/admin", middleware.RequireAdmin())
	admin.POST("/bookings/complete-elapsed", middleware.Audit(logr, "complete_elapsed", "booking"), deps.bookings.CompleteElapsed)

	return r
}
