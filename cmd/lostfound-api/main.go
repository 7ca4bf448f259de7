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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lostfound-api/api/swagger"
	"github.com/noah-isme/lostfound-api/internal/handler"
	"github.com/noah-isme/lostfound-api/internal/middleware"
	"github.com/noah-isme/lostfound-api/internal/repository"
	"github.com/noah-isme/lostfound-api/internal/service"
	"github.com/noah-isme/lostfound-api/pkg/config"
	"github.com/noah-isme/lostfound-api/pkg/database"
	"github.com/noah-isme/lostfound-api/pkg/jobs"
	"github.com/noah-isme/lostfound-api/pkg/kvstore"
	"github.com/noah-isme/lostfound-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lostfound-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lostfound-api/pkg/middleware/requestid"
	"github.com/noah-isme/lostfound-api/pkg/storage"
)

// @title Lost & Found API
// @version 1.0.0
// @description Campus lost and found registry: items, pickup lifecycle and reports
// @BasePath /api
// @schemes http https
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

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		migrator, err := database.NewMigrator(db, logr)
		if err != nil {
			logr.Fatal("failed to load migrations", zap.Error(err))
		}
		if _, err := migrator.Up(ctx); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	checks := map[string]handler.Pinger{"database": db}

	var sessions repository.SessionStore
	if cfg.Redis.Enabled {
		client, err := kvstore.NewRedis(cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer client.Close()
		sessions = repository.NewRedisSessionStore(client)
		checks["redis"] = pingRedis(client)
	} else {
		logr.Warn("redis disabled, sessions are kept in process memory")
		sessions = repository.NewMemorySessionStore()
	}

	uploads, err := storage.NewLocalStorage(cfg.Uploads.Dir, cfg.Uploads.PublicPath)
	if err != nil {
		logr.Fatal("failed to prepare upload directory", zap.Error(err))
	}

	metricsSvc := service.NewMetricsService()
	validate := service.NewValidator()

	photos := service.NewPhotoService(uploads, cfg.Uploads.MaxBytes, metricsSvc, logr)
	cleanup := jobs.NewQueue("photo-cleanup", photos.HandleCleanup, jobs.QueueConfig{
		Workers:     cfg.Cleanup.Workers,
		MaxRetries:  cfg.Cleanup.Retries,
		RetryDelay:  cfg.Cleanup.RetryDelay,
		Logger:      logr,
		OnExhausted: photos.Abandoned,
	})
	cleanup.Start(context.Background())
	photos.UseQueue(cleanup)
	checks["photo_cleanup"] = handler.PingFunc(func(context.Context) error {
		if !cleanup.Running() {
			return jobs.ErrNotRunning
		}
		return nil
	})

	userRepo := repository.NewUserRepository(db)
	itemRepo := repository.NewItemRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	authSvc := service.NewAuthService(userRepo, sessions, auditRepo, metricsSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, photos, auditRepo, validate, logr)
	itemSvc := service.NewItemService(itemRepo, photos, auditRepo, metricsSvc, validate, logr, service.ItemConfig{
		ExpiryMonths: cfg.Items.ExpiryMonths,
	})
	reportSvc := service.NewReportService(itemRepo, itemSvc, logr, nil, nil)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.Static(uploads.PublicPath(), uploads.Dir())

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Routes{
		Auth:        handler.NewAuthHandler(authSvc, cfg.Cookie),
		Items:       handler.NewItemHandler(itemSvc, reportSvc),
		Users:       handler.NewUserHandler(userSvc),
		Tokens:      authSvc,
		CookieName:  cfg.Cookie.Name,
		UploadLimit: photos.MaxBytes(),
	})

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
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	cleanup.Stop(shutdownCtx)
}

func pingRedis(client *redis.Client) handler.PingFunc {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
