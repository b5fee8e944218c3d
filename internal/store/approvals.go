package store

import (
	"context"

	"whatsapp-templates/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type approvalStore struct {
	db *gorm.DB
}

func NewApprovalStore(db *gorm.DB) ApprovalStore {
	return &approvalStore{db: db}
}

// UpsertApproval writes the record keyed by (tenant, name, language).
func (s *approvalStore) UpsertApproval(ctx context.Context, approval *models.TemplateApproval) error {
	if approval.ID == "" {
		approval.ID = uuid.NewString()
	}
	return translate(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "name"}, {Name: "language"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"draft_id",
			"category",
			"provider_template_id",
			"status",
			"sync_state",
			"rejection_reason",
			"active",
			"last_synced_at",
			"updated_at",
		}),
	}).Create(approval).Error)
}

func (s *approvalStore) FindApproval(ctx context.Context, tenantID, name, language string) (*models.TemplateApproval, error) {
	var approval models.TemplateApproval
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND name = ? AND language = ?", tenantID, name, language).
		First(&approval).Error
	if err != nil {
		return nil, translate(err)
	}
	return &approval, nil
}

// NameTaken counts only records that still hold the name at the provider.
func (s *approvalStore) NameTaken(ctx context.Context, tenantID, name, language string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.TemplateApproval{}).
		Where("tenant_id = ? AND name = ? AND language = ? AND active = ? AND sync_state <> ?",
			tenantID, name, language, true, models.SyncFailed).
		Count(&count).Error
	return count > 0, err
}

func (s *approvalStore) ListActive(ctx context.Context, tenantID string) ([]models.TemplateApproval, error) {
	var approvals []models.TemplateApproval
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Order("name ASC, language ASC").
		Find(&approvals).Error
	return approvals, err
}

func (s *approvalStore) ListTenants(ctx context.Context) ([]string, error) {
	var tenants []string
	err := s.db.WithContext(ctx).Model(&models.TemplateApproval{}).
		Where("active = ?", true).
		Distinct("tenant_id").
		Order("tenant_id ASC").
		Pluck("tenant_id", &tenants).Error
	return tenants, err
}

func (s *approvalStore) Deactivate(ctx context.Context, tenantID, name, language string) error {
	return s.db.WithContext(ctx).Model(&models.TemplateApproval{}).
		Where("tenant_id = ? AND name = ? AND language = ?", tenantID, name, language).
		Updates(map[string]interface{}{
			"active": false,
			"status": models.ApprovalDeleted,
		}).Error
}
