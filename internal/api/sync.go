package api

import (
	"context"
	"net/http"

	"whatsapp-templates/internal/models"
	"whatsapp-templates/internal/service"

	"github.com/gin-gonic/gin"
)

type Reconciler interface {
	Reconcile(ctx context.Context, tenantID string) (*service.ResyncResult, error)
}

type ApprovalLister interface {
	ListActive(ctx context.Context, tenantID string) ([]models.TemplateApproval, error)
}

// ApprovalHandler exposes the local approval records and an on-demand resync.
type ApprovalHandler struct {
	Resync    Reconciler
	Approvals ApprovalLister
}

func NewApprovalHandler(resync Reconciler, approvals ApprovalLister) *ApprovalHandler {
	return &ApprovalHandler{Resync: resync, Approvals: approvals}
}

// SyncTemplates reconciles the tenant's approval records with the provider now.
func (h *ApprovalHandler) SyncTemplates(c *gin.Context) {
	res, err := h.Resync.Reconcile(c.Request.Context(), tenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ApprovalHandler) GetTemplates(c *gin.Context) {
	approvals, err := h.Approvals.ListActive(c.Request.Context(), tenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": approvals, "count": len(approvals)})
}
