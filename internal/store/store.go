// Package store persists drafts, variants, approval records and tenant accounts with gorm.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "whatsapp-templates/internal/errors"
	"whatsapp-templates/internal/models"

	"gorm.io/gorm"
)

// DraftStore is CRUD over drafts and their per-language variants.
type DraftStore interface {
	CreateDraft(ctx context.Context, draft *models.TemplateDraft) error
	GetDraft(ctx context.Context, tenantID, draftID string) (*models.TemplateDraft, error)
	KeyExists(ctx context.Context, tenantID, key string) (bool, error)
	ListVariants(ctx context.Context, draftID string) ([]models.TemplateVariant, error)
	GetVariant(ctx context.Context, draftID, language string) (*models.TemplateVariant, error)
	UpsertVariant(ctx context.Context, variant *models.TemplateVariant) error
	SaveValidation(ctx context.Context, variantID string, ready bool, errs []models.FieldError) error
	UpdateMediaRef(ctx context.Context, variantID, ref string) error
	MarkSubmitted(ctx context.Context, draftID string, at time.Time) error
	ArchiveDraft(ctx context.Context, tenantID, draftID string, at time.Time) error
	DeleteDraft(ctx context.Context, tenantID, draftID string) error
}

// ApprovalStore holds the local approval records, keyed by tenant+name+language.
type ApprovalStore interface {
	UpsertApproval(ctx context.Context, approval *models.TemplateApproval) error
	FindApproval(ctx context.Context, tenantID, name, language string) (*models.TemplateApproval, error)
	NameTaken(ctx context.Context, tenantID, name, language string) (bool, error)
	ListActive(ctx context.Context, tenantID string) ([]models.TemplateApproval, error)
	ListTenants(ctx context.Context) ([]string, error)
	Deactivate(ctx context.Context, tenantID, name, language string) error
}

// AccountStore resolves per-tenant WhatsApp credentials.
type AccountStore interface {
	GetByTenant(ctx context.Context, tenantID string) (*models.WhatsAppAccount, error)
	GetByWabaID(ctx context.Context, wabaID string) (*models.WhatsAppAccount, error)
	SaveAccount(ctx context.Context, account *models.WhatsAppAccount) error
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.ErrNotFound
	case isUniqueViolation(err):
		return apperrors.ErrDuplicateKey
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
