package models

import (
	"strings"
	"time"
)

// Category is the provider-side template category.
type Category string

const (
	CategoryUtility        Category = "UTILITY"
	CategoryMarketing      Category = "MARKETING"
	CategoryAuthentication Category = "AUTHENTICATION"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryUtility, CategoryMarketing, CategoryAuthentication:
		return true
	}
	return false
}

type HeaderKind string

const (
	HeaderNone     HeaderKind = "NONE"
	HeaderText     HeaderKind = "TEXT"
	HeaderImage    HeaderKind = "IMAGE"
	HeaderVideo    HeaderKind = "VIDEO"
	HeaderDocument HeaderKind = "DOCUMENT"
)

// IsMedia reports whether the header needs an uploaded media handle.
func (k HeaderKind) IsMedia() bool {
	return k == HeaderImage || k == HeaderVideo || k == HeaderDocument
}

func (k HeaderKind) Valid() bool {
	switch k {
	case HeaderNone, HeaderText, HeaderImage, HeaderVideo, HeaderDocument, "":
		return true
	}
	return false
}

type ButtonType string

const (
	ButtonQuickReply ButtonType = "QUICK_REPLY"
	ButtonURL        ButtonType = "URL"
	ButtonPhone      ButtonType = "PHONE"
)

// Button is one call-to-action or quick reply attached to a variant.
type Button struct {
	Type  ButtonType `json:"type"`
	Text  string     `json:"text"`
	URL   string     `json:"url,omitempty"`
	Phone string     `json:"phone,omitempty"`
}

// FieldError is a single structural problem found by the validator.
type FieldError struct {
	Language string `json:"language,omitempty"`
	Field    string `json:"field"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// MediaHandlePrefix marks a header media reference that already holds a provider handle.
const MediaHandlePrefix = "handle:"

// TemplateDraft is one logical template owned by a tenant.
type TemplateDraft struct {
	ID              string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID        string            `gorm:"type:varchar(64);not null;uniqueIndex:idx_draft_tenant_key" json:"tenant_id"`
	Key             string            `gorm:"column:draft_key;type:varchar(64);not null;uniqueIndex:idx_draft_tenant_key" json:"key"`
	Category        Category          `gorm:"type:varchar(32);not null" json:"category"`
	DefaultLanguage string            `gorm:"type:varchar(16);not null" json:"default_language"`
	SubmittedAt     *time.Time        `json:"submitted_at,omitempty"`
	ArchivedAt      *time.Time        `gorm:"index" json:"archived_at,omitempty"`
	Variants        []TemplateVariant `gorm:"foreignKey:DraftID;constraint:OnDelete:CASCADE;" json:"variants,omitempty"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TemplateDraft) TableName() string {
	return "template_drafts"
}

// Submitted reports whether any variant of the draft has been sent to the provider.
func (d *TemplateDraft) Submitted() bool {
	return d.SubmittedAt != nil
}

// TemplateVariant is one language rendering of a draft.
type TemplateVariant struct {
	ID             string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DraftID        string            `gorm:"type:varchar(36);not null;uniqueIndex:idx_variant_draft_language" json:"draft_id"`
	Language       string            `gorm:"type:varchar(16);not null;uniqueIndex:idx_variant_draft_language" json:"language"`
	HeaderKind     HeaderKind        `gorm:"type:varchar(16);default:'NONE'" json:"header_kind"`
	HeaderText     string            `gorm:"type:text" json:"header_text,omitempty"`
	HeaderMediaRef string            `gorm:"type:text" json:"header_media_ref,omitempty"`
	Body           string            `gorm:"type:text" json:"body"`
	Footer         string            `gorm:"type:text" json:"footer,omitempty"`
	Buttons        []Button          `gorm:"type:text;serializer:json" json:"buttons,omitempty"`
	Examples       map[string]string `gorm:"type:text;serializer:json" json:"examples,omitempty"`
	Ready          bool              `gorm:"default:false" json:"ready"`
	LastErrors     []FieldError      `gorm:"type:text;serializer:json" json:"last_errors,omitempty"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TemplateVariant) TableName() string {
	return "template_variants"
}

// MediaHandle returns the uploaded provider handle if the header reference carries one.
func (v *TemplateVariant) MediaHandle() (string, bool) {
	if strings.HasPrefix(v.HeaderMediaRef, MediaHandlePrefix) {
		h := strings.TrimPrefix(v.HeaderMediaRef, MediaHandlePrefix)
		return h, h != ""
	}
	return "", false
}

// EffectiveHeaderKind treats an empty kind as NONE.
func (v *TemplateVariant) EffectiveHeaderKind() HeaderKind {
	if v.HeaderKind == "" {
		return HeaderNone
	}
	return v.HeaderKind
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
	ApprovalPaused   ApprovalStatus = "PAUSED"
	ApprovalDisabled ApprovalStatus = "DISABLED"
	ApprovalDeleted  ApprovalStatus = "DELETED"
)

// SyncState tells whether a local approval record has been confirmed by the provider.
type SyncState string

const (
	SyncPending   SyncState = "PENDING"
	SyncConfirmed SyncState = "CONFIRMED"
	SyncFailed    SyncState = "FAILED"
)

// TemplateApproval is the locally cached approval record of a submitted template language.
type TemplateApproval struct {
	ID                 string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID           string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_approval_tenant_name_language" json:"tenant_id"`
	Name               string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_approval_tenant_name_language" json:"name"`
	Language           string         `gorm:"type:varchar(16);not null;uniqueIndex:idx_approval_tenant_name_language" json:"language"`
	DraftID            string         `gorm:"type:varchar(36);index" json:"draft_id,omitempty"`
	Category           Category       `gorm:"type:varchar(32)" json:"category"`
	ProviderTemplateID string         `gorm:"type:varchar(64)" json:"provider_template_id,omitempty"`
	Status             ApprovalStatus `gorm:"type:varchar(32)" json:"status"`
	SyncState          SyncState      `gorm:"type:varchar(16)" json:"sync_state"`
	RejectionReason    string         `gorm:"type:text" json:"rejection_reason,omitempty"`
	Active             bool           `gorm:"default:true" json:"active"`
	LastSyncedAt       *time.Time     `json:"last_synced_at,omitempty"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TemplateApproval) TableName() string {
	return "template_approvals"
}

// HoldsName reports whether the record still occupies its name in the provider namespace.
func (a *TemplateApproval) HoldsName() bool {
	return a.Active && a.SyncState != SyncFailed
}

// WhatsAppAccount stores tenant-specific WhatsApp Cloud API credentials.
type WhatsAppAccount struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID      string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"tenant_id"`
	AccessToken   string    `gorm:"type:text;not null" json:"-"`
	GraphBaseURL  string    `gorm:"type:varchar(255)" json:"graph_base_url"`
	GraphVersion  string    `gorm:"type:varchar(16)" json:"graph_version"`
	WabaID        string    `gorm:"type:varchar(64);index" json:"waba_id"`
	PhoneNumberID string    `gorm:"type:varchar(64)" json:"phone_number_id"`
	AppID         string    `gorm:"type:varchar(64)" json:"app_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WhatsAppAccount) TableName() string {
	return "whatsapp_accounts"
}
