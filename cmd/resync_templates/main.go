package main

import (
	"context"
	"flag"
	"time"

	"whatsapp-templates/internal/cache"
	"whatsapp-templates/internal/config"
	"whatsapp-templates/internal/credentials"
	"whatsapp-templates/internal/database"
	"whatsapp-templates/internal/logger"
	"whatsapp-templates/internal/service"
	"whatsapp-templates/internal/store"
	"whatsapp-templates/internal/whatsapp"

	"go.uber.org/zap"
)

func main() {
	tenant := flag.String("tenant", "", "reconcile a single tenant instead of every known tenant")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline")
	flag.Parse()

	cfg := config.LoadConfig()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer log.Sync()

	db := database.InitGorm(cfg, log)
	approvals := store.NewApprovalStore(db)
	resolver := credentials.NewResolver(store.NewAccountStore(db), cache.NewMemoryCache(), cfg, log)
	registry := whatsapp.NewSubmissionClient(whatsapp.NewClient(cfg, log))
	resyncer := service.NewResyncer(approvals, resolver, registry, log)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *tenant != "" {
		res, err := resyncer.Reconcile(ctx, *tenant)
		if err != nil {
			log.Fatal("Resync failed", zap.String("tenant_id", *tenant), zap.Error(err))
		}
		log.Info("Resync done",
			zap.String("tenant_id", res.TenantID),
			zap.Int("confirmed", res.Confirmed),
			zap.Int("imported", res.Imported),
			zap.Int("deactivated", res.Deactivated))
		return
	}

	if err := resyncer.ReconcileAll(ctx); err != nil {
		log.Fatal("Resync finished with errors", zap.Error(err))
	}
	log.Info("DONE!")
}
