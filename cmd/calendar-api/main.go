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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/fleetops/tms-calendar-api/api/swagger"
	"github.com/fleetops/tms-calendar-api/internal/handler"
	"github.com/fleetops/tms-calendar-api/internal/models"
	"github.com/fleetops/tms-calendar-api/internal/middleware"
	"github.com/fleetops/tms-calendar-api/internal/repository"
	"github.com/fleetops/tms-calendar-api/internal/service"
	"github.com/fleetops/tms-calendar-api/pkg/cache"
	"github.com/fleetops/tms-calendar-api/pkg/config"
	"github.com/fleetops/tms-calendar-api/pkg/database"
	"github.com/fleetops/tms-calendar-api/pkg/logger"
	corsmiddleware "github.com/fleetops/tms-calendar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/fleetops/tms-calendar-api/pkg/middleware/requestid"
)

// @title TMS Calendar API
// @version 0.1.0
// @description Dispatch calendar: event store, range/layout engine and window exports
// @BasePath /
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The service degrades to uncached layout passes without Redis.
		logr.Sugar().Warnw("redis unavailable, view caching disabled", "error", err)
		redisClient = nil
	}

	metricsSvc := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Calendar.CacheTTL, logr, redisClient != nil)

	eventRepo := repository.NewEventRepository(db)
	validate := validator.New()
	eventSvc := service.NewEventService(eventRepo, cacheSvc, validate, logr)

	viewSession := service.NewViewSession(time.Now().UTC().Truncate(24*time.Hour), models.ViewModeMonth)
	viewSession.OnDateChange = func(focus time.Time) {
		logr.Debug("calendar focus changed", zap.Time("focus", focus))
	}

	calendarSvc := service.NewCalendarService(eventRepo, cacheSvc, metricsSvc, viewSession, service.CalendarConfig{
		Grid: service.GridOptions{
			DayStartHour: cfg.Calendar.DayStartHour,
			DayEndHour:   cfg.Calendar.DayEndHour,
			SlotMinutes:  cfg.Calendar.SlotMinutes,
		},
		MaxVisiblePerCell:     cfg.Calendar.MaxVisiblePerCell,
		CompactVisiblePerCell: cfg.Calendar.CompactVisiblePerCell,
		MaxOccurrences:        cfg.Calendar.MaxOccurrences,
		CacheTTL:              cfg.Calendar.CacheTTL,
	}, logr)
	exportSvc := service.NewExportService(eventRepo, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Rollover.Enabled {
		rolloverSvc := service.NewRolloverService(eventRepo, cacheSvc, cfg.Rollover.Schedule, logr)
		if err := rolloverSvc.Start(ctx); err != nil {
			logr.Sugar().Fatalw("failed to start status rollover", "error", err)
		}
		defer rolloverSvc.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", handler.NewMetricsHandler(metricsSvc).Scrape)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		events := handler.NewEventHandler(eventSvc)
		api.GET("/events", events.List)
		api.POST("/events", events.Create)
		api.GET("/events/:id", events.Get)
		api.PATCH("/events/:id", events.Update)
		api.POST("/events/:id/move", events.Move)
		api.DELETE("/events/:id", events.Delete)

		calendar := handler.NewCalendarHandler(calendarSvc, viewSession)
		api.GET("/calendar/view", calendar.View)

		if cfg.Exports.Enabled {
			exports := handler.NewExportHandler(exportSvc)
			api.GET("/calendar/export", exports.Export)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}
