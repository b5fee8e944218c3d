package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "whatsapp-templates/internal/errors"
	"whatsapp-templates/internal/metrics"
	"whatsapp-templates/internal/models"
	"whatsapp-templates/internal/store"

	"go.uber.org/zap"
)

const defaultResyncTimeout = 2 * time.Minute

// ResyncResult counts what one reconciliation changed.
type ResyncResult struct {
	TenantID    string `json:"tenant_id"`
	Confirmed   int    `json:"confirmed"`
	Imported    int    `json:"imported"`
	Deactivated int    `json:"deactivated"`
}

// StatusUpdate is a provider-pushed status change for one template language.
type StatusUpdate struct {
	ProviderTemplateID string
	Name               string
	Language           string
	Event              string
	Reason             string
}

// Resyncer reconciles local approval records with the provider. Every operation is
// idempotent, and a run that never happens leaves records PENDING.
type Resyncer struct {
	approvals store.ApprovalStore
	creds     CredentialResolver
	registry  TemplateRegistry
	log       *zap.Logger
	timeout   time.Duration
	now       func() time.Time
	wg        sync.WaitGroup
}

func NewResyncer(approvals store.ApprovalStore, creds CredentialResolver, registry TemplateRegistry, log *zap.Logger) *Resyncer {
	return &Resyncer{
		approvals: approvals,
		creds:     creds,
		registry:  registry,
		log:       log,
		timeout:   defaultResyncTimeout,
		now:       time.Now,
	}
}

// Reconcile pulls the provider's template list for a tenant, confirms local records,
// imports templates created elsewhere and deactivates confirmed records that disappeared.
func (r *Resyncer) Reconcile(ctx context.Context, tenantID string) (*ResyncResult, error) {
	res, err := r.reconcile(ctx, tenantID)
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.ResyncRuns.WithLabelValues(result).Inc()
	return res, err
}

func (r *Resyncer) reconcile(ctx context.Context, tenantID string) (*ResyncResult, error) {
	creds, err := r.creds.Resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	remote, err := r.registry.ListTemplates(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("list provider templates: %w", err)
	}
	local, err := r.approvals.ListActive(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	res := &ResyncResult{TenantID: tenantID}
	now := r.now()
	known := make(map[string]models.TemplateApproval, len(local))
	for _, rec := range local {
		known[rec.Name+"/"+rec.Language] = rec
	}
	seen := make(map[string]bool, len(remote))

	for _, t := range remote {
		key := t.Name + "/" + t.Language
		seen[key] = true
		status := models.ApprovalStatus(strings.ToUpper(t.Status))

		rec, ok := known[key]
		if !ok {
			if status == models.ApprovalDeleted {
				continue
			}
			rec = models.TemplateApproval{
				TenantID: tenantID,
				Name:     t.Name,
				Language: t.Language,
				Category: models.Category(strings.ToUpper(t.Category)),
				Active:   true,
			}
			res.Imported++
		} else {
			res.Confirmed++
		}
		if status == models.ApprovalDeleted {
			if err := r.approvals.Deactivate(ctx, tenantID, t.Name, t.Language); err != nil {
				return nil, err
			}
			res.Deactivated++
			continue
		}

		rec.ProviderTemplateID = t.ID
		rec.Status = status
		rec.SyncState = models.SyncConfirmed
		rec.RejectionReason = rejectionReason(status, t.RejectedReason)
		rec.LastSyncedAt = &now
		if err := r.approvals.UpsertApproval(ctx, &rec); err != nil {
			return nil, err
		}
	}

	for key, rec := range known {
		if seen[key] || rec.SyncState != models.SyncConfirmed {
			continue
		}
		if err := r.approvals.Deactivate(ctx, tenantID, rec.Name, rec.Language); err != nil {
			return nil, err
		}
		res.Deactivated++
	}

	r.log.Info("approval resync finished",
		zap.String("tenant_id", tenantID),
		zap.Int("confirmed", res.Confirmed),
		zap.Int("imported", res.Imported),
		zap.Int("deactivated", res.Deactivated))
	return res, nil
}

func rejectionReason(status models.ApprovalStatus, reason string) string {
	if status != models.ApprovalRejected || strings.EqualFold(reason, "NONE") {
		return ""
	}
	return reason
}

// ReconcileAll reconciles every tenant that has active approval records.
func (r *Resyncer) ReconcileAll(ctx context.Context) error {
	tenants, err := r.approvals.ListTenants(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, tenantID := range tenants {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := r.Reconcile(ctx, tenantID); err != nil {
			r.log.Error("approval resync failed", zap.String("tenant_id", tenantID), zap.Error(err))
			errs = append(errs, fmt.Errorf("tenant %s: %w", tenantID, err))
		}
	}
	return errors.Join(errs...)
}

// Trigger runs Reconcile in the background under its own timeout.
func (r *Resyncer) Trigger(tenantID string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if _, err := r.Reconcile(ctx, tenantID); err != nil {
			r.log.Warn("background resync failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}()
}

// Wait blocks until every triggered run has finished.
func (r *Resyncer) Wait() {
	r.wg.Wait()
}

// ApplyStatusUpdate records a pushed status change. Unknown templates and events are ignored.
func (r *Resyncer) ApplyStatusUpdate(ctx context.Context, tenantID string, u StatusUpdate) error {
	rec, err := r.approvals.FindApproval(ctx, tenantID, u.Name, u.Language)
	if errors.Is(err, apperrors.ErrNotFound) {
		r.log.Debug("status update for unknown template", zap.String("tenant_id", tenantID), zap.String("name", u.Name))
		return nil
	}
	if err != nil {
		return err
	}

	var status models.ApprovalStatus
	switch strings.ToUpper(u.Event) {
	case "APPROVED", "REINSTATED":
		status = models.ApprovalApproved
	case "REJECTED":
		status = models.ApprovalRejected
	case "PENDING":
		status = models.ApprovalPending
	case "PAUSED":
		status = models.ApprovalPaused
	case "DISABLED":
		status = models.ApprovalDisabled
	case "DELETED", "PENDING_DELETION":
		return r.approvals.Deactivate(ctx, tenantID, u.Name, u.Language)
	default:
		r.log.Debug("ignoring template event", zap.String("event", u.Event))
		return nil
	}

	now := r.now()
	rec.Status = status
	rec.SyncState = models.SyncConfirmed
	rec.RejectionReason = rejectionReason(status, u.Reason)
	rec.LastSyncedAt = &now
	if u.ProviderTemplateID != "" {
		rec.ProviderTemplateID = u.ProviderTemplateID
	}
	return r.approvals.UpsertApproval(ctx, rec)
}
