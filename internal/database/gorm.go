package database

import (
	"fmt"

	"whatsapp-templates/internal/config"
	"whatsapp-templates/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to PostgreSQL or SQLite depending on cfg.DBDriver.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if cfg.Environment == "development" {
		gormCfg.Logger = logger.Default.LogMode(logger.Info)
	}

	switch cfg.DBDriver {
	case "postgres":
		return gorm.Open(postgres.Open(PostgresDSN(cfg)), gormCfg)
	case "sqlite", "":
		return gorm.Open(sqlite.Open(cfg.DBPath), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

func PostgresDSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
}

// AutoMigrate creates or updates every table owned by the template pipeline.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.TemplateDraft{},
		&models.TemplateVariant{},
		&models.TemplateApproval{},
		&models.WhatsAppAccount{},
	)
}

// InitGorm opens the database and migrates it, exiting the process on failure.
func InitGorm(cfg *config.Config, log *zap.Logger) *gorm.DB {
	db, err := Open(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	log.Info("Connected to database", zap.String("driver", cfg.DBDriver))

	if err := AutoMigrate(db); err != nil {
		log.Fatal("Failed to run auto-migration", zap.Error(err))
	}
	log.Info("Database migration completed")
	return db
}
