package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsapp-templates/internal/api"
	"whatsapp-templates/internal/cache"
	"whatsapp-templates/internal/config"
	"whatsapp-templates/internal/credentials"
	"whatsapp-templates/internal/database"
	"whatsapp-templates/internal/logger"
	"whatsapp-templates/internal/service"
	"whatsapp-templates/internal/store"
	"whatsapp-templates/internal/webhook"
	"whatsapp-templates/internal/whatsapp"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer log.Sync()

	db := database.InitGorm(cfg, log)
	drafts := store.NewDraftStore(db)
	approvals := store.NewApprovalStore(db)
	accounts := store.NewAccountStore(db)

	credCache := newCache(cfg, log)
	resolver := credentials.NewResolver(accounts, credCache, cfg, log)

	client := whatsapp.NewClient(cfg, log)
	uploader := whatsapp.NewUploadClient(client, cfg, log)
	registry := whatsapp.NewSubmissionClient(client)

	resyncer := service.NewResyncer(approvals, resolver, registry, log)
	orchestrator := service.NewSubmissionOrchestrator(drafts, approvals, resolver, uploader, registry, resyncer, log)
	lifecycle := service.NewLifecycleService(drafts, approvals, resolver, registry, log)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Tenant-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	webhook.NewHandler(cfg.VerifyToken, resolver, resyncer, log).RegisterRoutes(r)
	api.RegisterRoutes(r,
		api.NewTemplateHandler(orchestrator, lifecycle),
		api.NewApprovalHandler(resyncer, approvals),
	)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.ResyncSchedule != "" {
		scheduler, err := service.ScheduleResync(cfg.ResyncSchedule, resyncer, log)
		if err != nil {
			log.Fatal("Failed to schedule resync", zap.Error(err))
		}
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
		log.Info("Approval resync scheduled", zap.String("schedule", cfg.ResyncSchedule))
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info("Server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	resyncer.Wait()
	log.Info("Server exited")
}

// newCache prefers Redis and falls back to an in-process cache when it is not configured or unreachable.
func newCache(cfg *config.Config, log *zap.Logger) cache.Cache {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		log.Warn("Redis unavailable, using in-memory credential cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		return cache.NewMemoryCache()
	}
	log.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
	return cache.NewRedisCache(client, log)
}
