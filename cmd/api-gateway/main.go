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
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/uni-admin-api/api/swagger"
	"github.com/noah-isme/uni-admin-api/internal/handler"
	internalmiddleware "github.com/noah-isme/uni-admin-api/internal/middleware"
	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/internal/repository"
	"github.com/noah-isme/uni-admin-api/internal/service"
	"github.com/noah-isme/uni-admin-api/pkg/cache"
	"github.com/noah-isme/uni-admin-api/pkg/config"
	"github.com/noah-isme/uni-admin-api/pkg/database"
	"github.com/noah-isme/uni-admin-api/pkg/jobs"
	"github.com/noah-isme/uni-admin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/uni-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/uni-admin-api/pkg/middleware/requestid"
	"github.com/noah-isme/uni-admin-api/pkg/storage"
)

// @title Uni Admin API
// @version 1.0.0
// @description Organisation structure and training management for a university
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	cacheSvc := newCacheService(ctx, cfg, metrics, logr)
	validate := validator.New()

	// repositories
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	orgUnitRepo := repository.NewOrgUnitRepository(db)
	relationRepo := repository.NewOrgUnitRelationRepository(db)
	assignmentRepo := repository.NewOrgAssignmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	programRepo := repository.NewProgramRepository(db)
	groupRepo := repository.NewProgramBlockGroupRepository(db)
	ruleRepo := repository.NewProgramBlockGroupRuleRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)

	// services
	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	orgUnitSvc := service.NewOrgUnitService(orgUnitRepo, auditRepo, cacheSvc, validate, logr)
	relationSvc := service.NewOrgRelationService(relationRepo, auditRepo, validate, logr)
	assignmentSvc := service.NewOrgAssignmentService(assignmentRepo, auditRepo, validate, logr)
	workflowSvc := service.NewWorkflowService(workflowRepo, cacheSvc, metrics, validate, logr, cfg.Workflow.StrictTransitions)
	courseSvc := service.NewCourseService(courseRepo, workflowSvc, validate, logr)
	programSvc := service.NewProgramService(programRepo, workflowSvc, cacheSvc, metrics, validate, logr)
	groupSvc := service.NewProgramBlockGroupService(groupRepo, programRepo, cacheSvc, validate, logr)
	ruleSvc := service.NewProgramBlockGroupRuleService(ruleRepo, programRepo, cacheSvc, validate, logr)

	var exportJobs *service.ExportJobService
	if cfg.Exports.Enabled {
		var queue *jobs.Queue
		exportJobs, queue, err = newExportPipeline(ctx, cfg, db, programSvc, metrics, validate, logr)
		if err != nil {
			logr.Fatal("failed to initialise exports", zap.Error(err))
		}
		defer queue.Stop()
	}

	// handlers
	authHandler := handler.NewAuthHandler(authSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, db)
	orgUnitHandler := handler.NewOrgUnitHandler(orgUnitSvc)
	relationHandler := handler.NewOrgRelationHandler(relationSvc)
	assignmentHandler := handler.NewOrgAssignmentHandler(assignmentSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	workflowHandler := handler.NewWorkflowHandler(workflowSvc)
	var programHandler *handler.ProgramHandler
	if exportJobs != nil {
		programHandler = handler.NewProgramHandler(programSvc, exportJobs)
	} else {
		programHandler = handler.NewProgramHandler(programSvc, nil)
	}
	groupHandler := handler.NewProgramBlockGroupHandler(groupSvc, ruleSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics", "/health", "/ready"))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", internalmiddleware.JWT(authSvc), authHandler.Me)

	org := api.Group("/org")
	org.Use(internalmiddleware.JWT(authSvc))
	org.Use(internalmiddleware.RequireRolesForWrites(models.RoleSuperAdmin, models.RoleAdmin))
	{
		org.GET("/units", orgUnitHandler.List)
		org.GET("/units/tree", orgUnitHandler.Tree)
		org.GET("/units/:id", orgUnitHandler.Get)
		org.GET("/units/:id/history", orgUnitHandler.History)
		org.POST("/units", orgUnitHandler.Create)
		org.PUT("/units/:id", orgUnitHandler.Update)
		org.DELETE("/units/:id", orgUnitHandler.Retire)

		org.GET("/unit-relations", relationHandler.List)
		org.POST("/unit-relations", relationHandler.Create)
		org.GET("/unit-relations/*key", relationHandler.Get)
		org.PUT("/unit-relations/*key", relationHandler.Update)
		org.DELETE("/unit-relations/*key", relationHandler.Delete)

		org.GET("/assignments", assignmentHandler.List)
		org.GET("/assignments/:id", assignmentHandler.Get)
		org.POST("/assignments", assignmentHandler.Create)
		org.PUT("/assignments/:id", assignmentHandler.Update)
		org.DELETE("/assignments/:id", assignmentHandler.Delete)
	}

	tms := api.Group("/tms")
	if exportJobs != nil {
		exportHandler := handler.NewExportHandler(exportJobs)
		// Signed links are opened directly by browsers.
		tms.GET("/exports/download/:token", exportHandler.Download)
		tms.GET("/exports/:id", internalmiddleware.JWT(authSvc), exportHandler.Status)
	}

	secured := tms.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))
	secured.Use(internalmiddleware.RequireRolesForWrites(
		models.RoleSuperAdmin,
		models.RoleAdmin,
		models.RoleFaculty,
		models.RoleAcademicOffice,
		models.RoleAcademicBoard,
	))

	courses := secured.Group("/courses")
	courses.Use(internalmiddleware.Audit(auditRepo, models.AuditResourceCourse, logr))
	{
		courses.GET("", courseHandler.List)
		courses.GET("/:id", courseHandler.Get)
		courses.POST("", courseHandler.Create)
		courses.PUT("/:id", courseHandler.Update)
		courses.DELETE("/:id", courseHandler.Delete)
		courses.POST("/:id/workflow/:action", workflowHandler.Apply(models.EntityCourse))
		courses.GET("/:id/workflow/history", workflowHandler.History(models.EntityCourse))
		courses.GET("/:id/workflow/actions", workflowHandler.Actions(models.EntityCourse))
	}

	programs := secured.Group("/programs")
	programs.Use(internalmiddleware.Audit(auditRepo, models.AuditResourceProgram, logr))
	{
		programs.GET("", programHandler.List)
		programs.GET("/:id", programHandler.Get)
		programs.POST("", programHandler.Create)
		programs.PATCH("/:id", programHandler.Update)
		programs.GET("/:id/structure", programHandler.Structure)
		programs.POST("/:id/blocks", programHandler.CreateBlock)
		programs.PUT("/:id/blocks/:blockId", programHandler.UpdateBlock)
		programs.DELETE("/:id/blocks/:blockId", programHandler.DeleteBlock)
		programs.POST("/:id/courses", programHandler.AddCourse)
		programs.DELETE("/:id/courses/:mapId", programHandler.RemoveCourse)
		programs.POST("/:id/exports", programHandler.Export)
		programs.POST("/:id/workflow/:action", workflowHandler.Apply(models.EntityProgram))
		programs.GET("/:id/workflow/history", workflowHandler.History(models.EntityProgram))
		programs.GET("/:id/workflow/actions", workflowHandler.Actions(models.EntityProgram))
	}

	groups := secured.Group("/program-block-groups")
	{
		groups.GET("", groupHandler.ListGroups)
		groups.GET("/:id", groupHandler.GetGroup)
		groups.POST("", groupHandler.CreateGroup)
		groups.PUT("/:id", groupHandler.UpdateGroup)
		groups.DELETE("/:id", groupHandler.DeleteGroup)
	}

	rules := secured.Group("/program-block-group-rules")
	{
		rules.GET("", groupHandler.ListRules)
		rules.GET("/:id", groupHandler.GetRule)
		rules.POST("", groupHandler.CreateRule)
		rules.PUT("/:id", groupHandler.UpdateRule)
		rules.DELETE("/:id", groupHandler.DeleteRule)
	}

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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

// newCacheService connects Redis when caching is enabled. A failed connection
// downgrades to a disabled cache instead of aborting startup.
func newCacheService(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) *service.CacheService {
	if !cfg.Cache.Enabled {
		return service.NewCacheService(nil, metrics, cfg.Cache.TTL, logr, false)
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, cache disabled", zap.Error(err))
		return service.NewCacheService(nil, metrics, cfg.Cache.TTL, logr, false)
	}
	return service.NewCacheService(repository.NewCacheRepository(client), metrics, cfg.Cache.TTL, logr, true)
}

func newExportPipeline(ctx context.Context, cfg *config.Config, db *sqlx.DB, programs *service.ProgramService, metrics *service.MetricsService, validate *validator.Validate, logr *zap.Logger) (*service.ExportJobService, *jobs.Queue, error) {
	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exporter := service.NewExportService(programs, files, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr)

	exportRepo := repository.NewExportJobRepository(db)
	worker := service.NewExportWorker(exportRepo, exporter, metrics, cfg.Exports.WorkerRetries, logr)
	queue := jobs.NewQueue("curriculum-exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)

	svc := service.NewExportJobService(exportRepo, programs, queue, exporter, metrics, validate, logr, service.ExportJobServiceConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	svc.RecoverPendingJobs(ctx)
	svc.StartCleanup(ctx)
	return svc, queue, nil
}
