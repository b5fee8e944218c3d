// Package errors holds the error taxonomy shared by the template pipeline.
package errors

import (
	"errors"
	"fmt"
	"strings"

	"whatsapp-templates/internal/models"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// ValidationError is a local structural failure. No network call has been made.
type ValidationError struct {
	Fields []models.FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Language != "" {
			msgs = append(msgs, fmt.Sprintf("%s.%s: %s", f.Language, f.Field, f.Message))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", f.Field, f.Message))
		}
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, code, message string) *ValidationError {
	return &ValidationError{Fields: []models.FieldError{{Field: field, Code: code, Message: message}}}
}

// NamingConflictError means the template name is unavailable locally or remotely.
type NamingConflictError struct {
	Name       string `json:"name"`
	Language   string `json:"language,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Cause      error  `json:"-"`
}

func (e *NamingConflictError) Error() string {
	msg := fmt.Sprintf("template name %q is already in use", e.Name)
	if e.Language != "" {
		msg = fmt.Sprintf("template name %q is already in use for language %s", e.Name, e.Language)
	}
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (try %q)", e.Suggestion)
	}
	return msg
}

func (e *NamingConflictError) Unwrap() error {
	return e.Cause
}

// PathFailure records why one upload strategy gave up.
type PathFailure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// UploadError means every upload strategy was exhausted.
type UploadError struct {
	Path     string        `json:"path"`
	Attempts []PathFailure `json:"attempts,omitempty"`
}

func (e *UploadError) Error() string {
	reason := ""
	if n := len(e.Attempts); n > 0 {
		reason = ": " + e.Attempts[n-1].Reason
	}
	return fmt.Sprintf("media upload failed, last attempted path %s%s", e.Path, reason)
}

// RemoteRejectionError is a structured failure returned by the provider.
type RemoteRejectionError struct {
	StatusCode  int    `json:"status_code"`
	Type        string `json:"type,omitempty"`
	Code        int    `json:"code,omitempty"`
	Subcode     int    `json:"error_subcode,omitempty"`
	Message     string `json:"message,omitempty"`
	UserTitle   string `json:"error_user_title,omitempty"`
	UserMessage string `json:"error_user_msg,omitempty"`
	TraceID     string `json:"fbtrace_id,omitempty"`
	Body        string `json:"body,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

func (e *RemoteRejectionError) Error() string {
	if e.Explanation != "" {
		return fmt.Sprintf("provider rejected request (HTTP %d, subcode %d): %s", e.StatusCode, e.Subcode, e.Explanation)
	}
	if e.Message != "" {
		if e.UserMessage != "" {
			return fmt.Sprintf("provider rejected request (HTTP %d): %s: %s", e.StatusCode, e.Message, e.UserMessage)
		}
		return fmt.Sprintf("provider rejected request (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider rejected request (HTTP %d): %s", e.StatusCode, e.Body)
}

// ConfigurationError is fatal for a whole operation: credentials or tenant settings are missing.
type ConfigurationError struct {
	TenantID string   `json:"tenant_id"`
	Missing  []string `json:"missing"`
	Cause    error    `json:"-"`
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) == 0 && e.Cause != nil {
		return fmt.Sprintf("configuration error for tenant %s: %v", e.TenantID, e.Cause)
	}
	return fmt.Sprintf("configuration error for tenant %s: missing %s", e.TenantID, strings.Join(e.Missing, ", "))
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}
