package api

import (
	"context"
	"io"
	"net/http"

	"whatsapp-templates/internal/models"
	"whatsapp-templates/internal/service"
	"whatsapp-templates/internal/templates"

	"github.com/gin-gonic/gin"
)

// DraftWorkflow is the draft authoring and submission surface.
type DraftWorkflow interface {
	CreateDraft(ctx context.Context, tenantID, key string, category models.Category, defaultLanguage string) (*models.TemplateDraft, error)
	GetDraft(ctx context.Context, tenantID, draftID string) (*models.TemplateDraft, error)
	UpsertVariant(ctx context.Context, tenantID, draftID, language string, in service.VariantInput) (*models.TemplateVariant, error)
	ValidateAll(ctx context.Context, tenantID, draftID string) (bool, map[string][]models.FieldError, error)
	CheckNameAvailability(ctx context.Context, tenantID, draftID, language string) (*templates.Availability, error)
	UploadVariantMedia(ctx context.Context, tenantID, draftID, language, fileName, mimeType string, r io.ReadSeeker) (*models.TemplateVariant, error)
	Submit(ctx context.Context, tenantID, draftID string) (*service.SubmitReport, error)
}

// DraftLifecycle duplicates and deletes drafts and approved templates.
type DraftLifecycle interface {
	DuplicateDraft(ctx context.Context, tenantID, draftID string) (*models.TemplateDraft, error)
	DeleteDraft(ctx context.Context, tenantID, draftID string) (bool, error)
	DeleteApprovedTemplate(ctx context.Context, tenantID, name, language string) (bool, error)
}

type TemplateHandler struct {
	Workflow  DraftWorkflow
	Lifecycle DraftLifecycle
}

func NewTemplateHandler(workflow DraftWorkflow, lifecycle DraftLifecycle) *TemplateHandler {
	return &TemplateHandler{Workflow: workflow, Lifecycle: lifecycle}
}

type createDraftRequest struct {
	Key             string          `json:"key" binding:"required"`
	Category        models.Category `json:"category" binding:"required"`
	DefaultLanguage string          `json:"default_language" binding:"required"`
}

func (h *TemplateHandler) CreateDraft(c *gin.Context) {
	var req createDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft, err := h.Workflow.CreateDraft(c.Request.Context(), tenantID(c), req.Key, req.Category, req.DefaultLanguage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, draft)
}

func (h *TemplateHandler) GetDraft(c *gin.Context) {
	draft, err := h.Workflow.GetDraft(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (h *TemplateHandler) UpsertVariant(c *gin.Context) {
	var in service.VariantInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	variant, err := h.Workflow.UpsertVariant(c.Request.Context(), tenantID(c), c.Param("id"), c.Param("language"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, variant)
}

// UploadVariantMedia takes the header file as multipart form field "file".
func (h *TemplateHandler) UploadVariantMedia(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}
	defer file.Close()

	variant, err := h.Workflow.UploadVariantMedia(c.Request.Context(), tenantID(c), c.Param("id"), c.Param("language"),
		header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, variant)
}

func (h *TemplateHandler) ValidateDraft(c *gin.Context) {
	ok, errs, err := h.Workflow.ValidateAll(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": ok, "errors": errs})
}

func (h *TemplateHandler) CheckName(c *gin.Context) {
	avail, err := h.Workflow.CheckNameAvailability(c.Request.Context(), tenantID(c), c.Param("id"), c.Query("language"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, avail)
}

// SubmitDraft answers 422 when validation stopped the submission, 200 otherwise.
// A partial failure is still 200 with success=false and per-language outcomes.
func (h *TemplateHandler) SubmitDraft(c *gin.Context) {
	report, err := h.Workflow.Submit(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if report.State == service.StateInvalid {
		c.JSON(http.StatusUnprocessableEntity, report)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *TemplateHandler) DuplicateDraft(c *gin.Context) {
	draft, err := h.Lifecycle.DuplicateDraft(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, draft)
}

func (h *TemplateHandler) DeleteDraft(c *gin.Context) {
	ok, err := h.Lifecycle.DeleteDraft(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": ok})
}

// DeleteApprovedTemplate expects ?name=&language=.
func (h *TemplateHandler) DeleteApprovedTemplate(c *gin.Context) {
	name := c.Query("name")
	language := c.Query("language")
	if name == "" || language == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and language are required"})
		return
	}

	ok, err := h.Lifecycle.DeleteApprovedTemplate(c.Request.Context(), tenantID(c), name, language)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": ok})
}
