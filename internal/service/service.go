// Package service runs the template workflow: drafting, validation, submission,
// lifecycle operations and approval resync.
package service

import (
	"context"
	"io"

	"whatsapp-templates/internal/config"
	"whatsapp-templates/internal/models"
	"whatsapp-templates/internal/whatsapp"
	wire "whatsapp-templates/pkg/models"
)

// CredentialResolver supplies a tenant's Graph credentials.
type CredentialResolver interface {
	Resolve(ctx context.Context, tenantID string) (config.Credentials, error)
}

// MediaUploader turns header media into a provider handle.
type MediaUploader interface {
	Upload(ctx context.Context, creds config.Credentials, kind models.HeaderKind, fileName, mimeType string, r io.ReadSeeker) (*whatsapp.HeaderUploadResult, error)
	UploadFromURL(ctx context.Context, creds config.Credentials, kind models.HeaderKind, sourceURL string) (*whatsapp.HeaderUploadResult, error)
	// StubMode uploaders never call the provider and need no credentials.
	StubMode() bool
}

// TemplateRegistry is the provider's template namespace.
type TemplateRegistry interface {
	CreateTemplate(ctx context.Context, creds config.Credentials, req wire.TemplateCreateRequest) (*whatsapp.CreateResult, error)
	DeleteTemplate(ctx context.Context, creds config.Credentials, name, providerTemplateID string) error
	ListTemplates(ctx context.Context, creds config.Credentials) ([]wire.RemoteTemplate, error)
}

// ResyncTrigger starts a best-effort background reconciliation.
type ResyncTrigger interface {
	Trigger(tenantID string)
}

type DraftState string

const (
	StateDraft                   DraftState = "DRAFT"
	StateValidating              DraftState = "VALIDATING"
	StateInvalid                 DraftState = "INVALID"
	StateReady                   DraftState = "READY"
	StateSubmitting              DraftState = "SUBMITTING"
	StateSubmittedPending        DraftState = "SUBMITTED_PENDING"
	StateSubmittedPartialFailure DraftState = "SUBMITTED_PARTIAL_FAILURE"
)

type OutcomeStatus string

const (
	OutcomePending OutcomeStatus = "PENDING"
	OutcomeFailed  OutcomeStatus = "FAILED"
	OutcomeInvalid OutcomeStatus = "INVALID"
)

// SubmissionOutcome is the result of one language in a submission.
type SubmissionOutcome struct {
	Language           string        `json:"language"`
	Status             OutcomeStatus `json:"status"`
	Reason             string        `json:"reason,omitempty"`
	Suggestion         string        `json:"suggestion,omitempty"`
	ProviderTemplateID string        `json:"provider_template_id,omitempty"`

	// created is set when this call made the template at the provider.
	created bool
}

// SubmitReport is returned by Submit. Success is true only if every outcome is PENDING.
type SubmitReport struct {
	DraftID  string                         `json:"draft_id"`
	Name     string                         `json:"name,omitempty"`
	State    DraftState                     `json:"state"`
	Success  bool                           `json:"success"`
	Outcomes []SubmissionOutcome            `json:"outcomes,omitempty"`
	Errors   map[string][]models.FieldError `json:"errors,omitempty"`
}

// VariantInput is the editable content of one language variant.
type VariantInput struct {
	HeaderKind     models.HeaderKind `json:"header_kind"`
	HeaderText     string            `json:"header_text"`
	HeaderMediaRef string            `json:"header_media_ref"`
	Body           string            `json:"body"`
	Footer         string            `json:"footer"`
	Buttons        []models.Button   `json:"buttons"`
	Examples       map[string]string `json:"examples"`
}
