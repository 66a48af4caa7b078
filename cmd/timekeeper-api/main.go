package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/terminusgps/timekeeper-api/api/swagger"
	"github.com/terminusgps/timekeeper-api/internal/handler"
	"github.com/terminusgps/timekeeper-api/internal/middleware"
	"github.com/terminusgps/timekeeper-api/internal/models"
	"github.com/terminusgps/timekeeper-api/internal/repository"
	"github.com/terminusgps/timekeeper-api/internal/service"
	"github.com/terminusgps/timekeeper-api/pkg/cache"
	"github.com/terminusgps/timekeeper-api/pkg/config"
	"github.com/terminusgps/timekeeper-api/pkg/database"
	"github.com/terminusgps/timekeeper-api/pkg/export"
	"github.com/terminusgps/timekeeper-api/pkg/logger"
	corsmiddleware "github.com/terminusgps/timekeeper-api/pkg/middleware/cors"
	reqidmiddleware "github.com/terminusgps/timekeeper-api/pkg/middleware/requestid"
	"github.com/terminusgps/timekeeper-api/pkg/secrets"
	"github.com/terminusgps/timekeeper-api/pkg/storage"
)

// @title Timekeeper API
// @version 1.0.0
// @description Employee time tracking: punch recording, shift reconstruction and report PDFs
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
	sugar := logr.Sugar()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	cipher, err := secrets.NewCipher(cfg.Timeclock.CodeEncryptionKey)
	if err != nil {
		sugar.Fatalw("failed to init fingerprint code cipher", "error", err)
	}

	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		sugar.Fatalw("failed to init report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	// Rendered PDFs can always be re-derived from the stored shifts, so old
	// files are safe to expire.
	if cfg.Reports.RetentionTTL > 0 {
		go func() {
			ticker := time.NewTicker(6 * time.Hour)
			defer ticker.Stop()
			for range ticker.C {
				deleted, err := store.CleanupOlderThan(cfg.Reports.RetentionTTL)
				if err != nil {
					sugar.Warnw("report file cleanup failed", "error", err)
					continue
				}
				if len(deleted) > 0 {
					sugar.Infow("expired report files removed", "count", len(deleted))
				}
			}
		}()
	}

	metrics := service.NewMetricsService()

	var cacheService *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			sugar.Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheService = service.NewCacheService(cacheRepo, metrics, cfg.Cache.RosterTTL, logr, true)
		}
	}

	userRepo := repository.NewUserRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	logRepo := repository.NewLogRepository(db)
	reportRepo := repository.NewReportRepository(db)
	shiftRepo := repository.NewShiftRepository(db)

	validate := validator.New()
	passwords := secrets.RandomPasswordGenerator{}

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "timekeeper-api",
	})
	employeeService := service.NewEmployeeService(employeeRepo, userRepo, cacheService, metrics, cipher, passwords, validate, logr)
	importService := service.NewImportService(employeeRepo, userRepo, cacheService, passwords, logr, cfg.Imports.MaxFileSizeBytes)
	reportService := service.NewReportService(reportRepo, logRepo, shiftRepo, userRepo, cacheService, cfg.Cache.ShiftTTL, metrics,
		export.NewPDFExporter(), export.NewCSVExporter(), store, signer, validate, logr)
	logService := service.NewLogService(logRepo, logr)

	authHandler := handler.NewAuthHandler(authService)
	employeeHandler := handler.NewEmployeeHandler(employeeService, importService)
	punchHandler := handler.NewPunchHandler(employeeService)
	logHandler := handler.NewLogHandler(logService)
	reportHandler := handler.NewReportHandler(reportService)
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

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Scanner and download endpoints authenticate by code and signed token
	// respectively, not by JWT.
	api.POST("/punch", punchHandler.Punch)
	api.GET("/reports/download", reportHandler.Download)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	authed := auth.Group("")
	authed.Use(middleware.JWT(authService))
	authed.POST("/logout", authHandler.Logout)
	authed.POST("/change-password", authHandler.ChangePassword)
	authed.GET("/me", authHandler.Me)

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleOperator)

	employees := api.Group("/employees")
	employees.Use(middleware.JWT(authService), staff)
	employees.GET("", employeeHandler.List)
	employees.POST("", middleware.Audit(userRepo, models.AuditActionEmployeeCreate, "employee"), employeeHandler.Create)
	employees.POST("/import", middleware.Audit(userRepo, models.AuditActionEmployeeImport, "employee"), employeeHandler.BatchImport)
	employees.GET("/:id", employeeHandler.Get)
	employees.PATCH("/:id", employeeHandler.Update)

	logs := api.Group("/logs")
	logs.Use(middleware.JWT(authService), staff)
	logs.GET("", logHandler.List)

	reports := api.Group("/reports")
	reports.Use(middleware.JWT(authService), staff)
	reports.GET("", reportHandler.List)
	reports.POST("", reportHandler.Create)
	reports.GET("/:id", reportHandler.Get)
	reports.POST("/:id/logs", reportHandler.AssignLogs)
	reports.GET("/:id/shifts", reportHandler.ListShifts)
	reports.POST("/:id/shifts", reportHandler.GenerateShifts)
	reports.POST("/:id/pdf", reportHandler.GeneratePDF)
	reports.GET("/:id/shifts.csv", reportHandler.ExportCSV)

	system := api.Group("/system")
	system.Use(middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin))
	system.GET("/metrics", metricsHandler.Snapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		sugar.Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	sugar.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		sugar.Errorw("forced shutdown", "error", err)
	}
}
