package errors

import (
	"errors"
	"fmt"
	"testing"

	"whatsapp-templates/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Fields: []models.FieldError{
		{Language: "en", Field: "body", Code: "required", Message: "body text is required"},
		{Field: "key", Code: "format", Message: "bad key"},
	}}
	assert.Equal(t, "validation failed: en.body: body text is required; key: bad key", err.Error())
}

func TestUploadError_NamesLastPath(t *testing.T) {
	err := &UploadError{
		Path: "multipart",
		Attempts: []PathFailure{
			{Path: "session", Reason: "HTTP 500"},
			{Path: "multipart", Reason: "HTTP 502"},
		},
	}
	assert.Contains(t, err.Error(), "multipart")
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestRemoteRejectionError_PrefersExplanation(t *testing.T) {
	err := &RemoteRejectionError{StatusCode: 400, Subcode: 2388072, Message: "Invalid parameter", Explanation: "template body structure rejected for this category"}
	assert.Contains(t, err.Error(), "template body structure rejected")

	raw := &RemoteRejectionError{StatusCode: 502, Body: "bad gateway"}
	assert.Equal(t, "provider rejected request (HTTP 502): bad gateway", raw.Error())
}

func TestErrorsAs_ThroughWrapping(t *testing.T) {
	var wrapped error = fmt.Errorf("submit: %w", &NamingConflictError{Name: "promo", Suggestion: "promo_2"})

	var conflict *NamingConflictError
	assert.True(t, errors.As(wrapped, &conflict))
	assert.Equal(t, "promo_2", conflict.Suggestion)

	cfgErr := &ConfigurationError{TenantID: "t1", Missing: []string{"access_token", "waba_id"}}
	assert.Equal(t, "configuration error for tenant t1: missing access_token, waba_id", cfgErr.Error())
}
