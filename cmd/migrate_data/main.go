package main

import (
	"flag"

	"whatsapp-templates/internal/config"
	"whatsapp-templates/internal/database"
	"whatsapp-templates/internal/logger"
	"whatsapp-templates/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const batchSize = 200

func main() {
	source := flag.String("source", "", "SQLite file to copy from (defaults to DB_PATH)")
	flag.Parse()

	cfg := config.LoadConfig()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer log.Sync()

	sqlitePath := cfg.DBPath
	if *source != "" {
		sqlitePath = *source
	}

	// 1. Connect to SQLite (Source)
	sqliteDB, err := gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to SQLite", zap.String("path", sqlitePath), zap.Error(err))
	}
	log.Info("Connected to SQLite", zap.String("path", sqlitePath))

	// 2. Connect to PostgreSQL (Destination), migrating the schema first
	cfg.DBDriver = "postgres"
	pgDB := database.InitGorm(cfg, log)

	log.Info("Starting data migration")

	// Drafts before variants; existing rows in the destination are kept.
	var accounts []models.WhatsAppAccount
	migrateTable(log, sqliteDB, pgDB, "whatsapp_accounts", &accounts)

	var drafts []models.TemplateDraft
	migrateTable(log, sqliteDB, pgDB, "template_drafts", &drafts)

	var variants []models.TemplateVariant
	migrateTable(log, sqliteDB, pgDB, "template_variants", &variants)

	var approvals []models.TemplateApproval
	migrateTable(log, sqliteDB, pgDB, "template_approvals", &approvals)

	log.Info("Migration completed")
}

// migrateTable copies every row of dest's model from src; dest must be a pointer to a slice.
func migrateTable(log *zap.Logger, src, dst *gorm.DB, table string, dest interface{}) {
	log.Info("Migrating table", zap.String("table", table))

	if err := src.Find(dest).Error; err != nil {
		log.Error("Error reading from SQLite", zap.String("table", table), zap.Error(err))
		return
	}

	err := dst.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(dest, batchSize).Error
	})
	if err != nil {
		log.Error("Error writing to Postgres", zap.String("table", table), zap.Error(err))
		return
	}
	log.Info("Successfully migrated", zap.String("table", table))
}
