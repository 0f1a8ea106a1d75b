package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/acadplan/timetable-api/api/swagger"
	"github.com/acadplan/timetable-api/internal/handler"
	"github.com/acadplan/timetable-api/internal/middleware"
	"github.com/acadplan/timetable-api/internal/models"
	"github.com/acadplan/timetable-api/internal/repository"
	"github.com/acadplan/timetable-api/internal/service"
	"github.com/acadplan/timetable-api/pkg/cache"
	"github.com/acadplan/timetable-api/pkg/config"
	"github.com/acadplan/timetable-api/pkg/database"
	"github.com/acadplan/timetable-api/pkg/logger"
	corsmiddleware "github.com/acadplan/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/acadplan/timetable-api/pkg/middleware/requestid"
	"github.com/acadplan/timetable-api/pkg/storage"
)

// @title Timetable API
// @version 1.0.0
// @description Genetic-algorithm university timetable scheduler
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	catalog, err := service.NewCatalog()
	if err != nil {
		logr.Sugar().Fatalw("invalid scheduling domain", "error", err)
	}

	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Scheduler.ConfigCacheTTL, logr, redisClient != nil)
	validate := validator.New()

	formatter := service.NewFormatter(catalog)
	timetableRepo := repository.NewTimetableRepository(db)
	timetables := service.NewTimetableService(timetableRepo, db, cacheSvc, metrics, catalog, formatter, validate, logr, cfg.Scheduler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	timetables.Start(ctx)
	defer timetables.Stop()

	var exports *service.ExportService
	if archive, err := storage.NewLocalStorage("./exports"); err != nil {
		logr.Sugar().Warnw("export archive unavailable", "error", err)
		exports = service.NewExportService(catalog, nil, logr, cfg.Exports.PDFTitle)
	} else {
		exports = service.NewExportService(catalog, archive, logr, cfg.Exports.PDFTitle)
	}

	tokens := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: "timetable-api",
	}, logr)

	timetableHandler := handler.NewTimetableHandler(timetables, exports, logr)
	metricsHandler := handler.NewMetricsHandler(metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/timetables/generate", timetableHandler.Generate)
		api.GET("/timetables/proposals/:id", timetableHandler.GetProposal)
		api.GET("/timetables", timetableHandler.List)
		api.GET("/timetables/:id", timetableHandler.Get)
		api.GET("/timetables/:id/export", timetableHandler.Export)
		api.GET("/configuration", timetableHandler.Configuration)
		api.GET("/metrics/system", metricsHandler.Snapshot)

		protected := api.Group("")
		protected.Use(middleware.JWT(tokens))
		protected.Use(middleware.RBAC(models.RoleAdmin, models.RolePlanner))
		protected.POST("/timetables", timetableHandler.Save)
		protected.POST("/timetables/:id/publish", timetableHandler.Publish)
		protected.DELETE("/timetables/:id", timetableHandler.Delete)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
