package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/jobcoach-api/api/swagger"
	"github.com/noah-isme/jobcoach-api/internal/handler"
	"github.com/noah-isme/jobcoach-api/internal/middleware"
	"github.com/noah-isme/jobcoach-api/internal/models"
	"github.com/noah-isme/jobcoach-api/internal/repository"
	"github.com/noah-isme/jobcoach-api/internal/service"
	"github.com/noah-isme/jobcoach-api/pkg/cache"
	"github.com/noah-isme/jobcoach-api/pkg/config"
	"github.com/noah-isme/jobcoach-api/pkg/database"
	"github.com/noah-isme/jobcoach-api/pkg/jobs"
	"github.com/noah-isme/jobcoach-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/jobcoach-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/jobcoach-api/pkg/middleware/requestid"
)

// @title Job Coach API
// @version 1.0.0
// @description Coaching backend with capacity-bounded user to admin assignment
// @BasePath /
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, stats cache disabled", zap.Error(err))
		} else {
			redisClient = client
			defer client.Close()
		}
	}

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}
	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	directoryRepo := repository.NewAssignmentDirectoryRepository(db)
	queueRepo := repository.NewAssignmentQueueRepository(db)
	detailsRepo := repository.NewPersonalDetailsRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Assignment.StatsCacheTTL, logr, redisClient != nil)
	configStore := service.NewAssignmentConfigStore(models.AssignmentConfig{
		MaxUsersPerAdmin:       cfg.Assignment.MaxUsersPerAdmin,
		SelectionPolicy:        models.SelectionPolicy(cfg.Assignment.SelectionPolicy),
		QueueProcessingEnabled: cfg.Assignment.QueueProcessingEnabled,
	})
	assignmentSvc := service.NewAssignmentService(service.AssignmentServiceParams{
		Directory:     directoryRepo,
		Queue:         queueRepo,
		Config:        configStore,
		Cache:         cacheSvc,
		Metrics:       metrics,
		Validator:     validate,
		Logger:        logr,
		StatsCacheTTL: cfg.Assignment.StatsCacheTTL,
	})
	triggerSvc := service.NewAssignmentTriggerService(assignmentSvc, directoryRepo, queueRepo, metrics, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var triggerQueue *jobs.Queue
	if cfg.Assignment.AsyncTriggers {
		triggerQueue = jobs.NewQueue("assignment-triggers", triggerSvc.HandleJob, jobs.QueueConfig{
			Workers:     cfg.Assignment.TriggerWorkers,
			MaxRetries:  cfg.Assignment.TriggerRetries,
			RetryDelay:  cfg.Assignment.TriggerRetryDelay,
			Logger:      logr,
			OnExhausted: triggerSvc.HandleExhausted,
		})
		triggerQueue.Start(ctx)
		triggerSvc.UseDispatcher(triggerQueue)
	}

	lifecycleSvc := service.NewUserLifecycleService(userRepo, detailsRepo, applicationRepo, adminRepo, triggerSvc, assignmentSvc, validate, logr)
	exportSvc := service.NewExportService(assignmentSvc, nil, nil, logr)
	tokenSvc := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer, Expiry: cfg.JWT.Expiration})

	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc, exportSvc)
	userHandler := handler.NewUserHandler(lifecycleSvc)
	checks := map[string]handler.Pinger{"database": db}
	if redisClient != nil {
		checks["redis"] = cacheRepo
	}
	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if metrics != nil {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokenSvc))

	me := api.Group("/me", middleware.RequireRoles(models.RoleUser))
	me.PUT("/personal-details", userHandler.SubmitPersonalDetails)

	admin := api.Group("/admin", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	admin.POST("/users/:id/complete", userHandler.MarkCompleted)
	admin.POST("/users/:id/applications", userHandler.RecordApplication)

	super := api.Group("/super-admin", middleware.RequireRoles(models.RoleSuperAdmin))
	super.PUT("/users/:id/status", userHandler.UpdateStatus)
	super.DELETE("/users/:id/admin", assignmentHandler.ReleaseUser)
	super.DELETE("/admins/:id", userHandler.DeleteAdmin)

	assignment := super.Group("/assignment")
	assignment.POST("/auto-assign", assignmentHandler.AutoAssign)
	assignment.POST("/process-queue", assignmentHandler.ProcessQueue)
	assignment.POST("/rebalance", assignmentHandler.Rebalance)
	assignment.POST("/assign-users", assignmentHandler.AssignUsers)
	assignment.GET("/stats", assignmentHandler.Stats)
	assignment.GET("/queue", assignmentHandler.Queue)
	assignment.GET("/config", assignmentHandler.GetConfig)
	assignment.PUT("/config", assignmentHandler.UpdateConfig)
	assignment.GET("/workload/export", assignmentHandler.ExportWorkload)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
	}
	if triggerQueue != nil {
		if pending := triggerQueue.Pending(); pending > 0 {
			logr.Warn("dropping undispatched assignment triggers", zap.Int("pending", pending))
		}
		triggerQueue.Stop()
	}
}
