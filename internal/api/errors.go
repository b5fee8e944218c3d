package api

import (
	"errors"
	"net/http"

	apperrors "whatsapp-templates/internal/errors"

	"github.com/gin-gonic/gin"
)

const tenantHeader = "X-Tenant-ID"

// RequireTenant rejects requests without a tenant header.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(tenantHeader)
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": tenantHeader + " header is required"})
			return
		}
		c.Set("tenant_id", tenantID)
		c.Next()
	}
}

func tenantID(c *gin.Context) string {
	return c.GetString("tenant_id")
}

// respondError maps the error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var (
		validation *apperrors.ValidationError
		conflict   *apperrors.NamingConflictError
		cfgErr     *apperrors.ConfigurationError
		rejection  *apperrors.RemoteRejectionError
		upload     *apperrors.UploadError
	)

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": validation.Fields})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Error(), "suggestion": conflict.Suggestion})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, apperrors.ErrDuplicateKey):
		c.JSON(http.StatusConflict, gin.H{"error": "a draft with this key already exists"})
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusFailedDependency, gin.H{"error": cfgErr.Error(), "missing": cfgErr.Missing})
	case errors.As(err, &rejection):
		c.JSON(http.StatusInternalServerError, gin.H{"error": rejection.Error(), "provider": rejection})
	case errors.As(err, &upload):
		c.JSON(http.StatusInternalServerError, gin.H{"error": upload.Error(), "attempts": upload.Attempts})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
