package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"whatsapp-templates/internal/config"
	apperrors "whatsapp-templates/internal/errors"
	"whatsapp-templates/internal/models"
	"whatsapp-templates/internal/store"
	"whatsapp-templates/internal/templates"

	"go.uber.org/zap"
)

const maxCopyProbe = 1000

// LifecycleService duplicates and deletes drafts and removes approved templates.
type LifecycleService struct {
	drafts    store.DraftStore
	approvals store.ApprovalStore
	creds     CredentialResolver
	registry  TemplateRegistry
	log       *zap.Logger
	now       func() time.Time
}

func NewLifecycleService(drafts store.DraftStore, approvals store.ApprovalStore, creds CredentialResolver, registry TemplateRegistry, log *zap.Logger) *LifecycleService {
	return &LifecycleService{
		drafts:    drafts,
		approvals: approvals,
		creds:     creds,
		registry:  registry,
		log:       log,
		now:       time.Now,
	}
}

// DuplicateDraft copies a draft and all its variants under the first free key
// among key_copy, key_copy_2, key_copy_3 ...
func (s *LifecycleService) DuplicateDraft(ctx context.Context, tenantID, draftID string) (*models.TemplateDraft, error) {
	src, err := s.drafts.GetDraft(ctx, tenantID, draftID)
	if err != nil {
		return nil, err
	}
	variants, err := s.drafts.ListVariants(ctx, src.ID)
	if err != nil {
		return nil, err
	}

	key, err := s.copyKey(ctx, tenantID, src.Key)
	if err != nil {
		return nil, err
	}

	dup := &models.TemplateDraft{
		TenantID:        tenantID,
		Key:             key,
		Category:        src.Category,
		DefaultLanguage: src.DefaultLanguage,
	}
	for _, v := range variants {
		c := v
		c.ID = ""
		c.DraftID = ""
		c.CreatedAt = time.Time{}
		c.UpdatedAt = time.Time{}
		c.Ready, c.LastErrors = templates.ValidateVariant(&c)
		dup.Variants = append(dup.Variants, c)
	}

	if err := s.drafts.CreateDraft(ctx, dup); err != nil {
		return nil, err
	}
	s.log.Info("draft duplicated",
		zap.String("tenant_id", tenantID),
		zap.String("source_id", src.ID),
		zap.String("draft_id", dup.ID),
		zap.String("key", key))
	return dup, nil
}

func (s *LifecycleService) copyKey(ctx context.Context, tenantID, key string) (string, error) {
	for i := 1; i <= maxCopyProbe; i++ {
		suffix := "_copy"
		if i > 1 {
			suffix += "_" + strconv.Itoa(i)
		}
		base := key
		if room := templates.MaxDraftKeyLen - len(suffix); len(base) > room {
			base = strings.TrimRight(base[:room], "_")
		}
		candidate := base + suffix

		exists, err := s.drafts.KeyExists(ctx, tenantID, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free copy key for %s: %w", key, apperrors.ErrDuplicateKey)
}

// DeleteDraft archives a draft that has been submitted and hard-deletes one that has not.
// Approval records are never touched here.
func (s *LifecycleService) DeleteDraft(ctx context.Context, tenantID, draftID string) (bool, error) {
	draft, err := s.drafts.GetDraft(ctx, tenantID, draftID)
	if err != nil {
		return false, err
	}

	if draft.Submitted() {
		if err := s.drafts.ArchiveDraft(ctx, tenantID, draft.ID, s.now()); err != nil {
			return false, err
		}
		s.log.Info("draft archived", zap.String("tenant_id", tenantID), zap.String("draft_id", draft.ID))
		return true, nil
	}

	if err := s.drafts.DeleteDraft(ctx, tenantID, draft.ID); err != nil {
		return false, err
	}
	s.log.Info("draft deleted", zap.String("tenant_id", tenantID), zap.String("draft_id", draft.ID))
	return true, nil
}

// DeleteApprovedTemplate removes one language of a template at the provider and marks the
// local record inactive. A template already gone at the provider counts as deleted.
func (s *LifecycleService) DeleteApprovedTemplate(ctx context.Context, tenantID, name, language string) (bool, error) {
	if err := templates.ValidateName(name); err != nil {
		return false, err
	}
	creds, err := s.creds.Resolve(ctx, tenantID)
	if err != nil {
		return false, err
	}

	providerID := ""
	record, err := s.approvals.FindApproval(ctx, tenantID, name, language)
	switch {
	case err == nil:
		providerID = record.ProviderTemplateID
	case errors.Is(err, apperrors.ErrNotFound):
		record = nil
	default:
		return false, err
	}

	if providerID == "" {
		providerID, err = s.remoteTemplateID(ctx, creds, name, language)
		if err != nil {
			return false, err
		}
	}

	if providerID == "" {
		s.log.Info("template language not found at provider, nothing to delete remotely",
			zap.String("tenant_id", tenantID),
			zap.String("name", name),
			zap.String("language", language))
	} else if err := s.registry.DeleteTemplate(ctx, creds, name, providerID); err != nil {
		return false, err
	}

	if record != nil {
		if err := s.approvals.Deactivate(ctx, tenantID, name, language); err != nil {
			return false, err
		}
	}
	s.log.Info("approved template deleted",
		zap.String("tenant_id", tenantID),
		zap.String("name", name),
		zap.String("language", language))
	return true, nil
}

// remoteTemplateID finds the provider id of one language of a template. An empty id means
// the provider has no such language.
func (s *LifecycleService) remoteTemplateID(ctx context.Context, creds config.Credentials, name, language string) (string, error) {
	remote, err := s.registry.ListTemplates(ctx, creds)
	if err != nil {
		return "", fmt.Errorf("look up provider template %s/%s: %w", name, language, err)
	}
	for _, t := range remote {
		if t.Name == name && t.Language == language && t.ID != "" {
			return t.ID, nil
		}
	}
	return "", nil
}
