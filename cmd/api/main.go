package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/akademik-fk/curriculum-api/internal/handler"
	"github.com/akademik-fk/curriculum-api/internal/repository"
	"github.com/akademik-fk/curriculum-api/internal/scheduling"
	"github.com/akademik-fk/curriculum-api/internal/service"
	"github.com/akademik-fk/curriculum-api/pkg/cache"
	"github.com/akademik-fk/curriculum-api/pkg/config"
	"github.com/akademik-fk/curriculum-api/pkg/database"
	"github.com/akademik-fk/curriculum-api/pkg/logger"
	corsmiddleware "github.com/akademik-fk/curriculum-api/pkg/middleware/cors"
	reqidmiddleware "github.com/akademik-fk/curriculum-api/pkg/middleware/requestid"
)

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

	var redisClient *redis.Client
	if cfg.Lookup.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, lookup cache disabled", "error", err)
			redisClient = nil
		}
	}

	// Repositories.
	sessionRepo := repository.NewSessionRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	lecturerRepo := repository.NewLecturerRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	termRepo := repository.NewTermRepository(db)
	entrySource := repository.NewEntrySource(db)

	// Services.
	metrics := service.NewMetricsService()
	notifier := service.NewQueueNotifier(service.NewLogNotifier(logr), cfg.Notify.Workers, logr)
	notifier.Start(context.Background())
	defer notifier.Stop()
	metrics.RegisterQueueDepth("notifications", func() float64 { return float64(notifier.Depth()) })
	directory := service.NewResourceDirectory(roomRepo, lecturerRepo, groupRepo, redisClient, cfg.Lookup.CacheTTL, logr)
	capacity := scheduling.NewCapacityValidator(directory, directory)
	scheduleSvc := service.NewScheduleService(sessionRepo, assignmentRepo, termRepo, directory, entrySource, capacity, notifier, metrics, logr)
	confirmationSvc := service.NewConfirmationService(assignmentRepo, sessionRepo, notifier, logr)
	importSvc := service.NewImportService(scheduleSvc, sessionRepo, capacity, notifier, metrics, cfg.Import.MaxRows, logr)
	termSvc := service.NewTermScheduleService(termRepo, entrySource, logr)

	// Handlers.
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	confirmationHandler := handler.NewConfirmationHandler(confirmationSvc)
	importHandler := handler.NewImportHandler(importSvc, cfg.Import.MaxFileSizeBytes)
	termHandler := handler.NewTermHandler(termSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(requestMetrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	{
		sessions := api.Group("/schedules/:kind")
		{
			sessions.GET("", scheduleHandler.List)
			sessions.POST("", scheduleHandler.Create)
			sessions.POST("/validate", scheduleHandler.Validate)
			sessions.GET("/:id", scheduleHandler.Get)
			sessions.PUT("/:id", scheduleHandler.Update)
			sessions.DELETE("/:id", scheduleHandler.Delete)

			sessions.GET("/:id/lecturers", confirmationHandler.Roster)
			sessions.POST("/:id/lecturers/:lecturerId/confirmation", confirmationHandler.Apply)
			sessions.GET("/:id/lecturers/:lecturerId/confirmation/history", confirmationHandler.History)
		}

		api.POST("/schedules/import", importHandler.Import)

		api.GET("/terms/:id/schedule", termHandler.Schedule)
		if cfg.Export.Enabled {
			api.GET("/terms/:id/schedule/export/csv", termHandler.ExportCSV)
			api.GET("/terms/:id/schedule/export/pdf", termHandler.ExportPDF)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func requestMetrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.ObserveHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
