package api

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the template API under /api/templates.
func RegisterRoutes(r *gin.Engine, templates *TemplateHandler, approvals *ApprovalHandler) {
	group := r.Group("/api/templates", RequireTenant())
	{
		group.POST("/drafts", templates.CreateDraft)
		group.GET("/drafts/:id", templates.GetDraft)
		group.DELETE("/drafts/:id", templates.DeleteDraft)
		group.PUT("/drafts/:id/variants/:language", templates.UpsertVariant)
		group.POST("/drafts/:id/variants/:language/media", templates.UploadVariantMedia)
		group.POST("/drafts/:id/validate", templates.ValidateDraft)
		group.GET("/drafts/:id/name", templates.CheckName)
		group.POST("/drafts/:id/submit", templates.SubmitDraft)
		group.POST("/drafts/:id/duplicate", templates.DuplicateDraft)

		group.GET("/approved", approvals.GetTemplates)
		group.DELETE("/approved", templates.DeleteApprovedTemplate)
		group.POST("/resync", approvals.SyncTemplates)
	}
}
