package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "whatsapp-templates/internal/errors"
	"whatsapp-templates/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeTenants map[string]string

func (f fakeTenants) TenantForWaba(_ context.Context, wabaID string) (string, error) {
	if t, ok := f[wabaID]; ok {
		return t, nil
	}
	return "", apperrors.ErrNotFound
}

type recordingApplier struct {
	tenants []string
	updates []service.StatusUpdate
	err     error
}

func (r *recordingApplier) ApplyStatusUpdate(_ context.Context, tenantID string, u service.StatusUpdate) error {
	r.tenants = append(r.tenants, tenantID)
	r.updates = append(r.updates, u)
	return r.err
}

func newRouter(t *testing.T, applier *recordingApplier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler("secret", fakeTenants{"waba-1": "t1"}, applier, zaptest.NewLogger(t))
	h.RegisterRoutes(r)
	return r
}

func TestVerifyWebhook(t *testing.T) {
	r := newRouter(t, &recordingApplier{})

	tests := []struct {
		name  string
		query string
		want  int
		body  string
	}{
		{"valid", "hub.mode=subscribe&hub.verify_token=secret&hub.challenge=abc", http.StatusOK, "abc"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=abc", http.StatusForbidden, ""},
		{"missing params", "hub.challenge=abc", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhook?"+tt.query, nil))
			assert.Equal(t, tt.want, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

const statusPayload = `{
  "object": "whatsapp_business_account",
  "entry": [
    {"id": "waba-1", "changes": [
      {"field": "message_template_status_update", "value": {
        "event": "REJECTED", "message_template_id": 1234567,
        "message_template_name": "order_update", "message_template_language": "en_US",
        "reason": "INVALID_FORMAT"}},
      {"field": "messages", "value": {}}
    ]},
    {"id": "waba-unknown", "changes": [
      {"field": "message_template_status_update", "value": {
        "event": "APPROVED", "message_template_name": "other", "message_template_language": "en_US"}}
    ]}
  ]
}`

func TestHandleStatusUpdate(t *testing.T) {
	applier := &recordingApplier{}
	r := newRouter(t, applier)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(statusPayload)))
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, applier.updates, 1)
	assert.Equal(t, []string{"t1"}, applier.tenants)
	assert.Equal(t, service.StatusUpdate{
		ProviderTemplateID: "1234567",
		Name:               "order_update",
		Language:           "en_US",
		Event:              "REJECTED",
		Reason:             "INVALID_FORMAT",
	}, applier.updates[0])
}

func TestHandleStatusUpdateApplyFailureStillAcknowledged(t *testing.T) {
	applier := &recordingApplier{err: errors.New("db down")}
	r := newRouter(t, applier)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(statusPayload)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, applier.updates, 1)
}

func TestHandleStatusUpdateBadJSON(t *testing.T) {
	r := newRouter(t, &recordingApplier{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
