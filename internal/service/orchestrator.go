package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"whatsapp-templates/internal/config"
	apperrors "whatsapp-templates/internal/errors"
	"whatsapp-templates/internal/metrics"
	"whatsapp-templates/internal/models"
	"whatsapp-templates/internal/store"
	"whatsapp-templates/internal/templates"
	wire "whatsapp-templates/pkg/models"

	"go.uber.org/zap"
)

// SubmissionOrchestrator owns a draft from authoring to provider submission.
type SubmissionOrchestrator struct {
	drafts    store.DraftStore
	approvals store.ApprovalStore
	creds     CredentialResolver
	uploader  MediaUploader
	registry  TemplateRegistry
	resync    ResyncTrigger
	log       *zap.Logger
	now       func() time.Time
}

func NewSubmissionOrchestrator(
	drafts store.DraftStore,
	approvals store.ApprovalStore,
	creds CredentialResolver,
	uploader MediaUploader,
	registry TemplateRegistry,
	resync ResyncTrigger,
	log *zap.Logger,
) *SubmissionOrchestrator {
	return &SubmissionOrchestrator{
		drafts:    drafts,
		approvals: approvals,
		creds:     creds,
		uploader:  uploader,
		registry:  registry,
		resync:    resync,
		log:       log,
		now:       time.Now,
	}
}

func (o *SubmissionOrchestrator) CreateDraft(ctx context.Context, tenantID, key string, category models.Category, defaultLanguage string) (*models.TemplateDraft, error) {
	key = strings.TrimSpace(key)
	if errs := templates.ValidateDraftFields(key, category, defaultLanguage); len(errs) > 0 {
		return nil, &apperrors.ValidationError{Fields: errs}
	}

	draft := &models.TemplateDraft{
		TenantID:        tenantID,
		Key:             key,
		Category:        category,
		DefaultLanguage: defaultLanguage,
	}
	if err := o.drafts.CreateDraft(ctx, draft); err != nil {
		return nil, err
	}
	o.log.Info("draft created", zap.String("tenant_id", tenantID), zap.String("draft_id", draft.ID), zap.String("key", key))
	return draft, nil
}

// GetDraft returns the draft with its variants loaded.
func (o *SubmissionOrchestrator) GetDraft(ctx context.Context, tenantID, draftID string) (*models.TemplateDraft, error) {
	draft, err := o.drafts.GetDraft(ctx, tenantID, draftID)
	if err != nil {
		return nil, err
	}
	variants, err := o.drafts.ListVariants(ctx, draft.ID)
	if err != nil {
		return nil, err
	}
	draft.Variants = variants
	return draft, nil
}

// UpsertVariant stores the content for one language. Only malformed input is rejected;
// content problems are recorded on the variant as LastErrors with Ready=false.
func (o *SubmissionOrchestrator) UpsertVariant(ctx context.Context, tenantID, draftID, language string, in VariantInput) (*models.TemplateVariant, error) {
	if errs := malformedVariant(language, in); len(errs) > 0 {
		return nil, &apperrors.ValidationError{Fields: errs}
	}
	draft, err := o.drafts.GetDraft(ctx, tenantID, draftID)
	if err != nil {
		return nil, err
	}

	variant := &models.TemplateVariant{
		DraftID:        draft.ID,
		Language:       language,
		HeaderKind:     in.HeaderKind,
		HeaderText:     in.HeaderText,
		HeaderMediaRef: in.HeaderMediaRef,
		Body:           in.Body,
		Footer:         in.Footer,
		Buttons:        in.Buttons,
		Examples:       in.Examples,
	}
	if variant.HeaderKind == "" {
		variant.HeaderKind = models.HeaderNone
	}
	variant.Ready, variant.LastErrors = templates.ValidateVariant(variant)

	if err := o.drafts.UpsertVariant(ctx, variant); err != nil {
		return nil, err
	}
	return variant, nil
}

func malformedVariant(language string, in VariantInput) []models.FieldError {
	probe := &models.TemplateVariant{Language: language, HeaderKind: in.HeaderKind, Body: "x", Buttons: in.Buttons}
	_, errs := templates.ValidateVariant(probe)

	var malformed []models.FieldError
	for _, e := range errs {
		if e.Field == "language" || e.Field == "header_kind" || strings.HasSuffix(e.Field, ".type") {
			malformed = append(malformed, e)
		}
	}
	return malformed
}

// ValidateAll validates every variant of the draft and persists each variant's readiness.
func (o *SubmissionOrchestrator) ValidateAll(ctx context.Context, tenantID, draftID string) (bool, map[string][]models.FieldError, error) {
	draft, err := o.GetDraft(ctx, tenantID, draftID)
	if err != nil {
		return false, nil, err
	}

	ok, perLanguage := templates.ValidateDraft(draft, draft.Variants)
	for _, v := range draft.Variants {
		errs := perLanguage[v.Language]
		if err := o.drafts.SaveValidation(ctx, v.ID, len(errs) == 0, errs); err != nil {
			return false, nil, fmt.Errorf("save validation for %s: %w", v.Language, err)
		}
	}
	return ok, perLanguage, nil
}

// CheckNameAvailability reports whether the draft's public name is free for language.
// Names already held by this draft's own submissions count as available.
func (o *SubmissionOrchestrator) CheckNameAvailability(ctx context.Context, tenantID, draftID, language string) (*templates.Availability, error) {
	draft, err := o.drafts.GetDraft(ctx, tenantID, draftID)
	if err != nil {
		return nil, err
	}
	if language == "" {
		language = draft.DefaultLanguage
	}
	resolver := templates.NewNameResolver(&ownerAwareLookup{approvals: o.approvals, draftID: draft.ID})
	return resolver.CheckAvailability(ctx, tenantID, resolver.ComputeName(draft.Key, tenantID), language)
}

// UploadVariantMedia uploads header media for one variant and stores the resulting handle on it.
func (o *SubmissionOrchestrator) UploadVariantMedia(ctx context.Context, tenantID, draftID, language, fileName, mimeType string, r io.ReadSeeker) (*models.TemplateVariant, error) {
	draft, err := o.drafts.GetDraft(ctx, tenantID, draftID)
	if err != nil {
		return nil, err
	}
	variant, err := o.drafts.GetVariant(ctx, draft.ID, language)
	if err != nil {
		return nil, err
	}
	kind := variant.EffectiveHeaderKind()
	if !kind.IsMedia() {
		return nil, apperrors.NewValidationError("header_kind", templates.CodeInvalid,
			fmt.Sprintf("variant %s has a %s header, media upload needs IMAGE, VIDEO or DOCUMENT", language, kind))
	}

	var creds config.Credentials
	if !o.uploader.StubMode() {
		creds, err = o.creds.Resolve(ctx, tenantID)
		if err != nil {
			return nil, err
		}
	}
	res, err := o.uploader.Upload(ctx, creds, kind, fileName, mimeType, r)
	if err != nil {
		return nil, err
	}

	variant.HeaderMediaRef = models.MediaHandlePrefix + res.Handle
	if err := o.drafts.UpdateMediaRef(ctx, variant.ID, variant.HeaderMediaRef); err != nil {
		return nil, err
	}
	variant.Ready, variant.LastErrors = templates.ValidateVariant(variant)
	if err := o.drafts.SaveValidation(ctx, variant.ID, variant.Ready, variant.LastErrors); err != nil {
		return nil, err
	}
	o.log.Info("header media uploaded",
		zap.String("tenant_id", tenantID),
		zap.String("draft_id", draft.ID),
		zap.String("language", language),
		zap.String("path", res.Path),
		zap.Bool("stub", res.Stub))
	return variant, nil
}

// Submit validates the whole draft, then submits each language in turn. Validation, name
// syntax and configuration errors stop the call before any network I/O; per-language
// upload and provider failures become that language's outcome.
func (o *SubmissionOrchestrator) Submit(ctx context.Context, tenantID, draftID string) (*SubmitReport, error) {
	draft, err := o.GetDraft(ctx, tenantID, draftID)
	if err != nil {
		return nil, err
	}
	report := &SubmitReport{DraftID: draft.ID, State: StateValidating}

	variants := templates.ReferenceOrder(draft.DefaultLanguage, draft.Variants)
	if ok, perLanguage := templates.ValidateSet(variants); !ok {
		report.State = StateInvalid
		report.Errors = perLanguage
		return report, nil
	}
	report.State = StateReady

	resolver := templates.NewNameResolver(&ownerAwareLookup{approvals: o.approvals, draftID: draft.ID})
	name := resolver.ComputeName(draft.Key, tenantID)
	if err := templates.ValidateName(name); err != nil {
		return nil, err
	}
	report.Name = name

	creds, err := o.creds.Resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	report.State = StateSubmitting
	submitted := false
	for i := range variants {
		v := &variants[i]
		outcome := o.submitVariant(ctx, draft, v, name, resolver, creds)
		if outcome.created {
			submitted = true
		}
		metrics.SubmissionOutcomes.WithLabelValues(string(outcome.Status)).Inc()
		report.Outcomes = append(report.Outcomes, outcome)
	}

	if submitted {
		if err := o.drafts.MarkSubmitted(context.WithoutCancel(ctx), draft.ID, o.now()); err != nil {
			o.log.Error("failed to mark draft submitted", zap.String("draft_id", draft.ID), zap.Error(err))
		}
		if o.resync != nil {
			o.resync.Trigger(tenantID)
		}
	}

	report.Success = true
	for _, out := range report.Outcomes {
		if out.Status != OutcomePending {
			report.Success = false
		}
	}
	if report.Success {
		report.State = StateSubmittedPending
	} else {
		report.State = StateSubmittedPartialFailure
	}

	o.log.Info("draft submitted",
		zap.String("tenant_id", tenantID),
		zap.String("draft_id", draft.ID),
		zap.String("name", name),
		zap.String("state", string(report.State)))
	return report, nil
}

func (o *SubmissionOrchestrator) submitVariant(ctx context.Context, draft *models.TemplateDraft, v *models.TemplateVariant, name string, resolver *templates.NameResolver, creds config.Credentials) SubmissionOutcome {
	outcome := SubmissionOutcome{Language: v.Language}
	if ctx.Err() != nil {
		outcome.Status = OutcomeFailed
		outcome.Reason = "submission canceled"
		return outcome
	}
	logger := o.log.With(zap.String("tenant_id", draft.TenantID), zap.String("name", name), zap.String("language", v.Language))

	existing, err := o.approvals.FindApproval(ctx, draft.TenantID, name, v.Language)
	switch {
	case err == nil && existing.HoldsName() && existing.DraftID == draft.ID:
		if existing.Status == models.ApprovalRejected {
			outcome.Status = OutcomeFailed
			outcome.Reason = "rejected by provider"
			if existing.RejectionReason != "" {
				outcome.Reason += ": " + existing.RejectionReason
			}
			return outcome
		}
		outcome.Status = OutcomePending
		outcome.Reason = fmt.Sprintf("already submitted, provider status %s", existing.Status)
		return outcome
	case err == nil && existing.HoldsName():
		avail, aerr := resolver.CheckAvailability(ctx, draft.TenantID, name, v.Language)
		conflict := &apperrors.NamingConflictError{Name: name, Language: v.Language}
		if aerr == nil {
			conflict.Suggestion = avail.Suggestion
		}
		outcome.Status = OutcomeInvalid
		outcome.Reason = conflict.Error()
		outcome.Suggestion = conflict.Suggestion
		return outcome
	case err != nil && !errors.Is(err, apperrors.ErrNotFound):
		outcome.Status = OutcomeFailed
		outcome.Reason = fmt.Sprintf("check existing approval: %v", err)
		return outcome
	}

	handle := ""
	if kind := v.EffectiveHeaderKind(); kind.IsMedia() {
		h, ok := v.MediaHandle()
		if !ok {
			res, err := o.uploader.UploadFromURL(ctx, creds, kind, v.HeaderMediaRef)
			if err != nil {
				logger.Warn("header media upload failed", zap.Error(err))
				outcome.Status = OutcomeFailed
				outcome.Reason = failureReason(ctx, err)
				return outcome
			}
			h = res.Handle
			if err := o.drafts.UpdateMediaRef(ctx, v.ID, models.MediaHandlePrefix+h); err != nil {
				logger.Warn("failed to store media handle", zap.Error(err))
			}
		}
		handle = h
	}

	built := templates.Build(templates.InputFromVariant(v, handle))
	req := wire.TemplateCreateRequest{
		Name:            name,
		Language:        v.Language,
		Category:        string(draft.Category),
		ParameterFormat: built.ParameterFormat,
		Components:      built.Components,
	}

	res, err := o.registry.CreateTemplate(ctx, creds, req)
	var conflict *apperrors.NamingConflictError
	switch {
	case errors.As(err, &conflict):
		logger.Warn("template name already in use at provider", zap.Error(err))
		conflict.Name = name
		conflict.Language = v.Language
		remote := templates.NewNameResolver(&heldRemotely{
			next: &ownerAwareLookup{approvals: o.approvals, draftID: draft.ID},
			name: name,
		})
		if avail, aerr := remote.CheckAvailability(ctx, draft.TenantID, name, v.Language); aerr == nil {
			conflict.Suggestion = avail.Suggestion
		}
		outcome.Status = OutcomeInvalid
		outcome.Reason = conflict.Error()
		outcome.Suggestion = conflict.Suggestion
		return outcome
	case err != nil:
		logger.Warn("template create rejected", zap.Error(err))
		outcome.Status = OutcomeFailed
		outcome.Reason = failureReason(ctx, err)
		return outcome
	}

	outcome.Status = OutcomePending
	outcome.created = true
	outcome.ProviderTemplateID = res.ProviderTemplateID

	status := models.ApprovalPending
	if s := models.ApprovalStatus(strings.ToUpper(res.Status)); s != "" {
		status = s
	}
	record := &models.TemplateApproval{
		TenantID:           draft.TenantID,
		Name:               name,
		Language:           v.Language,
		DraftID:            draft.ID,
		Category:           draft.Category,
		ProviderTemplateID: res.ProviderTemplateID,
		Status:             status,
		SyncState:          models.SyncPending,
		Active:             true,
	}
	if err := o.approvals.UpsertApproval(context.WithoutCancel(ctx), record); err != nil {
		// The remote template exists; resync will recreate the local record.
		logger.Error("failed to record pending approval", zap.Error(err))
	}
	return outcome
}

func failureReason(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		return "submission canceled"
	}
	return err.Error()
}

// ownerAwareLookup treats names held by the given draft as free.
type ownerAwareLookup struct {
	approvals store.ApprovalStore
	draftID   string
}

func (l *ownerAwareLookup) NameTaken(ctx context.Context, tenantID, name, language string) (bool, error) {
	taken, err := l.approvals.NameTaken(ctx, tenantID, name, language)
	if err != nil || !taken {
		return false, err
	}
	rec, err := l.approvals.FindApproval(ctx, tenantID, name, language)
	if err != nil {
		return false, err
	}
	return rec.DraftID != l.draftID, nil
}

// heldRemotely marks name as taken because the provider refused it, whatever the local records say.
type heldRemotely struct {
	next templates.NameLookup
	name string
}

func (h *heldRemotely) NameTaken(ctx context.Context, tenantID, name, language string) (bool, error) {
	if name == h.name {
		return true, nil
	}
	return h.next.NameTaken(ctx, tenantID, name, language)
}
