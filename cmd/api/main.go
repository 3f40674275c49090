package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/xamle/civic-api/api/swagger"
	"github.com/xamle/civic-api/internal/handler"
	"github.com/xamle/civic-api/internal/middleware"
	"github.com/xamle/civic-api/internal/models"
	"github.com/xamle/civic-api/internal/repository"
	"github.com/xamle/civic-api/internal/service"
	"github.com/xamle/civic-api/pkg/cache"
	"github.com/xamle/civic-api/pkg/config"
	"github.com/xamle/civic-api/pkg/database"
	"github.com/xamle/civic-api/pkg/export"
	"github.com/xamle/civic-api/pkg/logger"
	corsmiddleware "github.com/xamle/civic-api/pkg/middleware/cors"
	reqidmiddleware "github.com/xamle/civic-api/pkg/middleware/requestid"
	"github.com/xamle/civic-api/pkg/search"
	"github.com/xamle/civic-api/pkg/storage"
)

// @title Xamle Civic API
// @version 1.0.0
// @description Public-policy transparency platform core
// @BasePath /api/v1
// @schemes http https

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
		logr.Sugar().Warnw("redis unavailable, cache and events disabled", "error", err)
		redisClient = nil
	}

	var searchClient = search.NewMeilisearch(cfg.Search)
	searchRepo := repository.NewSearchRepository(searchClient, cfg.Search.IndexName)
	if searchClient != nil {
		if err := searchRepo.EnsureIndex(); err != nil {
			logr.Sugar().Warnw("search index setup failed, queries will degrade", "error", err)
		}
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logr.Sugar().Fatalw("failed to init object store", "error", err)
	}
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := objectStore.EnsureBuckets(ctx); err != nil {
			logr.Sugar().Warnw("bucket setup failed", "error", err)
		}
		cancel()
	}

	validate := validator.New()

	policyRepo := repository.NewPolicyRepository(db)
	contributionRepo := repository.NewContributionRepository(db)
	ministryRepo := repository.NewMinistryRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)
	defer cacheRepo.Close() //nolint:errcheck
	events := repository.NewEventPublisher(redisClient)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.PolicyTTL, logr, cfg.Cache.Enabled)
	tokenSvc := service.NewTokenService(cfg.JWT.Secret)

	policySvc := service.NewPolicyService(
		policyRepo, userRepo, contributionRepo, auditRepo,
		cacheSvc, metricsSvc, searchRepo, events, validate, logr,
		service.PolicyServiceConfig{PolicyTTL: cfg.Cache.PolicyTTL, StatsTTL: cfg.Cache.StatsTTL},
	)
	contributionSvc := service.NewContributionService(
		contributionRepo, userRepo, policyRepo, objectStore,
		auditRepo, events, validate, logr, cfg.Storage.MaxFileSize,
	)
	ministrySvc := service.NewMinistryService(
		ministryRepo, policyRepo, auditRepo, cacheSvc, metricsSvc, validate, logr,
		service.MinistryServiceConfig{ListTTL: cfg.Cache.MinistryTTL, RankingTTL: cfg.Cache.RankingTTL},
	)
	searchSvc := service.NewSearchService(searchRepo, policyRepo, logr)
	exportSvc := service.NewExportService(
		policyRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr,
		service.ExportConfig{Enabled: cfg.Export.Enabled, MaxRows: cfg.Export.MaxRows, Title: cfg.Export.Title},
	)
	userSvc := service.NewUserService(userRepo, auditRepo, logr)
	auditSvc := service.NewAuditService(auditRepo, logr)

	policyH := handler.NewPolicyHandler(policySvc)
	contributionH := handler.NewContributionHandler(contributionSvc)
	ministryH := handler.NewMinistryHandler(ministrySvc)
	searchH := handler.NewSearchHandler(searchSvc)
	exportH := handler.NewExportHandler(exportSvc)
	userH := handler.NewUserHandler(userSvc)
	auditH := handler.NewAuditHandler(auditSvc)
	metricsH := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsH.Health)
	r.GET("/metrics", metricsH.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group("/api/v1")

	public := api.Group("")
	public.Use(middleware.OptionalJWT(tokenSvc))
	{
		public.GET("/policies", policyH.List)
		public.GET("/policies/:id", policyH.Get)
		public.GET("/policies/:id/history", policyH.History)
		public.GET("/stats", policyH.GlobalStats)
		public.GET("/ministries", ministryH.List)
		public.GET("/ministries/ranking", ministryH.Ranking)
		public.GET("/ministries/:id", ministryH.Get)
		public.GET("/search", searchH.Search)
		public.GET("/contributions", contributionH.List)
		public.GET("/contributions/:id", contributionH.Get)
		public.GET("/export/policies", exportH.PolicyRegister)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(tokenSvc))
	{
		authed.GET("/users/me", userH.Me)
		authed.GET("/users/:id", userH.Get)
		authed.POST("/contributions", contributionH.Create)

		editors := authed.Group("")
		editors.Use(middleware.RequireRoles(models.RoleEditor, models.RoleAdmin, models.RoleSuperAdmin))
		{
			editors.POST("/policies", policyH.Create)
			editors.PUT("/policies/:id", policyH.Update)
			editors.PATCH("/policies/:id/status", policyH.ChangeStatus)
		}

		moderators := authed.Group("")
		moderators.Use(middleware.RequireRoles(models.RoleModerator, models.RoleAdmin, models.RoleSuperAdmin))
		{
			moderators.PATCH("/contributions/:id/moderate", contributionH.Moderate)
		}

		admins := authed.Group("")
		admins.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
		{
			admins.POST("/policies/:id/publish", policyH.Publish)
			admins.POST("/ministries", ministryH.Create)
			admins.PUT("/ministries/:id", ministryH.Update)
			admins.DELETE("/users/:id", userH.Deactivate)
			admins.GET("/admin/audit", auditH.List)
			admins.POST("/admin/search/reindex", policyH.Reindex)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
