package store

import (
	"context"

	"whatsapp-templates/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type accountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) AccountStore {
	return &accountStore{db: db}
}

func (s *accountStore) GetByTenant(ctx context.Context, tenantID string) (*models.WhatsAppAccount, error) {
	var account models.WhatsAppAccount
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&account).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (s *accountStore) GetByWabaID(ctx context.Context, wabaID string) (*models.WhatsAppAccount, error) {
	var account models.WhatsAppAccount
	if err := s.db.WithContext(ctx).Where("waba_id = ?", wabaID).First(&account).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (s *accountStore) SaveAccount(ctx context.Context, account *models.WhatsAppAccount) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token", "graph_base_url", "graph_version", "waba_id", "phone_number_id", "app_id", "updated_at",
		}),
	}).Create(account).Error
}
