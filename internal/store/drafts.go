package store

import (
	"context"
	"errors"
	"time"

	apperrors "whatsapp-templates/internal/errors"
	"whatsapp-templates/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type draftStore struct {
	db *gorm.DB
}

func NewDraftStore(db *gorm.DB) DraftStore {
	return &draftStore{db: db}
}

// CreateDraft inserts the draft together with any variants attached to it.
func (s *draftStore) CreateDraft(ctx context.Context, draft *models.TemplateDraft) error {
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}
	for i := range draft.Variants {
		if draft.Variants[i].ID == "" {
			draft.Variants[i].ID = uuid.NewString()
		}
		draft.Variants[i].DraftID = draft.ID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.TemplateDraft{}).
			Where("tenant_id = ? AND draft_key = ?", draft.TenantID, draft.Key).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperrors.ErrDuplicateKey
		}
		return translate(tx.Create(draft).Error)
	})
}

func (s *draftStore) GetDraft(ctx context.Context, tenantID, draftID string) (*models.TemplateDraft, error) {
	var draft models.TemplateDraft
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ? AND archived_at IS NULL", draftID, tenantID).
		First(&draft).Error
	if err != nil {
		return nil, translate(err)
	}
	return &draft, nil
}

// KeyExists includes archived drafts: an archived key stays referenced by its submitted name.
func (s *draftStore) KeyExists(ctx context.Context, tenantID, key string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.TemplateDraft{}).
		Where("tenant_id = ? AND draft_key = ?", tenantID, key).
		Count(&count).Error
	return count > 0, err
}

func (s *draftStore) ListVariants(ctx context.Context, draftID string) ([]models.TemplateVariant, error) {
	var variants []models.TemplateVariant
	err := s.db.WithContext(ctx).Where("draft_id = ?", draftID).Order("language ASC").Find(&variants).Error
	return variants, err
}

func (s *draftStore) GetVariant(ctx context.Context, draftID, language string) (*models.TemplateVariant, error) {
	var variant models.TemplateVariant
	err := s.db.WithContext(ctx).Where("draft_id = ? AND language = ?", draftID, language).First(&variant).Error
	if err != nil {
		return nil, translate(err)
	}
	return &variant, nil
}

// UpsertVariant inserts or replaces the variant keyed by (draft id, language).
func (s *draftStore) UpsertVariant(ctx context.Context, variant *models.TemplateVariant) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.TemplateVariant
		err := tx.Where("draft_id = ? AND language = ?", variant.DraftID, variant.Language).First(&existing).Error
		switch {
		case err == nil:
			variant.ID = existing.ID
			variant.CreatedAt = existing.CreatedAt
			return tx.Save(variant).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			if variant.ID == "" {
				variant.ID = uuid.NewString()
			}
			return translate(tx.Create(variant).Error)
		default:
			return err
		}
	})
}

func (s *draftStore) SaveValidation(ctx context.Context, variantID string, ready bool, errs []models.FieldError) error {
	return s.db.WithContext(ctx).Model(&models.TemplateVariant{ID: variantID}).
		Select("ready", "last_errors").
		Updates(&models.TemplateVariant{Ready: ready, LastErrors: errs}).Error
}

func (s *draftStore) UpdateMediaRef(ctx context.Context, variantID, ref string) error {
	return s.db.WithContext(ctx).Model(&models.TemplateVariant{ID: variantID}).
		Update("header_media_ref", ref).Error
}

func (s *draftStore) MarkSubmitted(ctx context.Context, draftID string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.TemplateDraft{ID: draftID}).
		Update("submitted_at", at).Error
}

func (s *draftStore) ArchiveDraft(ctx context.Context, tenantID, draftID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.TemplateDraft{}).
		Where("id = ? AND tenant_id = ? AND archived_at IS NULL", draftID, tenantID).
		Update("archived_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// DeleteDraft hard-deletes the draft and cascades to its variants.
func (s *draftStore) DeleteDraft(ctx context.Context, tenantID, draftID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var draft models.TemplateDraft
		if err := tx.Where("id = ? AND tenant_id = ?", draftID, tenantID).First(&draft).Error; err != nil {
			return translate(err)
		}
		if err := tx.Where("draft_id = ?", draft.ID).Delete(&models.TemplateVariant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&draft).Error
	})
}
