package webhook

import (
	"context"
	"net/http"
	"strconv"

	"whatsapp-templates/internal/service"
	"whatsapp-templates/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TenantLookup maps a WhatsApp Business Account id to the owning tenant.
type TenantLookup interface {
	TenantForWaba(ctx context.Context, wabaID string) (string, error)
}

type StatusApplier interface {
	ApplyStatusUpdate(ctx context.Context, tenantID string, u service.StatusUpdate) error
}

type Handler struct {
	VerifyToken string
	Tenants     TenantLookup
	Statuses    StatusApplier
	log         *zap.Logger
}

func NewHandler(verifyToken string, tenants TenantLookup, statuses StatusApplier, log *zap.Logger) *Handler {
	return &Handler{
		VerifyToken: verifyToken,
		Tenants:     tenants,
		Statuses:    statuses,
		log:         log.Named("webhook"),
	}
}

// RegisterRoutes mounts the subscription handshake and the event receiver.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/webhook", h.VerifyWebhook)
	r.POST("/webhook", h.HandleStatusUpdate)
}

func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "" && token != "" {
		if mode == "subscribe" && h.VerifyToken != "" && token == h.VerifyToken {
			h.log.Info("webhook verified")
			c.String(http.StatusOK, challenge)
		} else {
			c.Status(http.StatusForbidden)
		}
	} else {
		c.Status(http.StatusBadRequest)
	}
}

// HandleStatusUpdate applies template status changes to the approval records.
// Individual failures are logged; the provider always gets 200 for a well-formed payload.
func (h *Handler) HandleStatusUpdate(c *gin.Context) {
	var payload models.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.log.Warn("invalid webhook payload", zap.Error(err))
		c.Status(http.StatusBadRequest)
		return
	}

	ctx := c.Request.Context()
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != models.FieldTemplateStatusUpdate {
				continue
			}
			h.apply(ctx, entry.ID, change.Value)
		}
	}

	c.Status(http.StatusOK)
}

func (h *Handler) apply(ctx context.Context, wabaID string, v models.TemplateStatusPayload) {
	tenantID, err := h.Tenants.TenantForWaba(ctx, wabaID)
	if err != nil {
		h.log.Warn("no tenant for business account", zap.String("waba_id", wabaID), zap.Error(err))
		return
	}

	u := service.StatusUpdate{
		Name:     v.MessageTemplateName,
		Language: v.MessageTemplateLanguage,
		Event:    v.Event,
		Reason:   v.Reason,
	}
	if v.MessageTemplateID != 0 {
		u.ProviderTemplateID = strconv.FormatInt(v.MessageTemplateID, 10)
	}

	if err := h.Statuses.ApplyStatusUpdate(ctx, tenantID, u); err != nil {
		h.log.Error("failed to apply template status",
			zap.String("tenant_id", tenantID),
			zap.String("name", u.Name),
			zap.String("event", u.Event),
			zap.Error(err))
		return
	}
	h.log.Info("template status updated",
		zap.String("tenant_id", tenantID),
		zap.String("name", u.Name),
		zap.String("language", u.Language),
		zap.String("event", u.Event))
}
