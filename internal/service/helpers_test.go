package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"whatsapp-templates/internal/config"
	"whatsapp-templates/internal/database"
	"whatsapp-templates/internal/models"
	"whatsapp-templates/internal/store"
	"whatsapp-templates/internal/whatsapp"
	wire "whatsapp-templates/pkg/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// graphStub is an in-memory stand-in for the Graph API.
type graphStub struct {
	mu           sync.Mutex
	calls        []string
	created      []wire.TemplateCreateRequest
	createStatus int
	createBody   string
	uploadStatus int
	deleteStatus int
	listBody     string
}

func (g *graphStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	call := r.Method + " " + r.URL.Path
	if r.URL.RawQuery != "" {
		call += "?" + r.URL.RawQuery
	}
	g.calls = append(g.calls, call)

	switch {
	case strings.HasSuffix(r.URL.Path, "/message_templates") && r.Method == http.MethodPost:
		var req wire.TemplateCreateRequest
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &req)
		g.created = append(g.created, req)
		if g.createStatus != 0 {
			w.WriteHeader(g.createStatus)
			w.Write([]byte(g.createBody))
			return
		}
		fmt.Fprintf(w, `{"id":"tpl-%d","status":"PENDING","category":%q}`, len(g.created), req.Category)
	case strings.HasSuffix(r.URL.Path, "/message_templates") && r.Method == http.MethodGet:
		if g.listBody == "" {
			w.Write([]byte(`{"data":[]}`))
			return
		}
		w.Write([]byte(g.listBody))
	case strings.HasSuffix(r.URL.Path, "/message_templates") && r.Method == http.MethodDelete:
		if g.deleteStatus != 0 {
			w.WriteHeader(g.deleteStatus)
			w.Write([]byte(`{"error":{"message":"not found"}}`))
			return
		}
		w.Write([]byte(`{"success":true}`))
	case g.uploadStatus != 0:
		w.WriteHeader(g.uploadStatus)
	case strings.HasSuffix(r.URL.Path, "/app/uploads"):
		w.Write([]byte(`{"id":"upload:s1"}`))
	case strings.HasSuffix(r.URL.Path, "/upload:s1") && r.Method == http.MethodPost:
		w.Write([]byte(`{"h":"4::uploaded"}`))
	default:
		w.Write([]byte(`{}`))
	}
}

func (g *graphStub) count(prefix string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// matching returns the recorded calls starting with prefix.
func (g *graphStub) matching(prefix string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, c := range g.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (g *graphStub) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type staticResolver struct {
	creds config.Credentials
	err   error
}

func (s *staticResolver) Resolve(context.Context, string) (config.Credentials, error) {
	return s.creds, s.err
}

type harness struct {
	orch      *SubmissionOrchestrator
	life      *LifecycleService
	resync    *Resyncer
	drafts    store.DraftStore
	approvals store.ApprovalStore
	graph     *graphStub
	creds     *staticResolver
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	graph := &graphStub{}
	srv := httptest.NewServer(graph)
	t.Cleanup(srv.Close)

	db := setupTestDB(t)
	log := zaptest.NewLogger(t)
	cfg := &config.Config{HTTPTimeout: 5 * time.Second}
	client := whatsapp.NewClient(cfg, log)
	uploader := whatsapp.NewUploadClient(client, cfg, log)
	registry := whatsapp.NewSubmissionClient(client)

	creds := &staticResolver{creds: config.Credentials{
		AccessToken:   "tok",
		GraphBaseURL:  srv.URL,
		GraphVersion:  "v19.0",
		WabaID:        "waba",
		PhoneNumberID: "phone",
		AppID:         "app",
	}}

	drafts := store.NewDraftStore(db)
	approvals := store.NewApprovalStore(db)
	resync := NewResyncer(approvals, creds, registry, log)
	h := &harness{
		orch:      NewSubmissionOrchestrator(drafts, approvals, creds, uploader, registry, resync, log),
		life:      NewLifecycleService(drafts, approvals, creds, registry, log),
		resync:    resync,
		drafts:    drafts,
		approvals: approvals,
		graph:     graph,
		creds:     creds,
	}
	t.Cleanup(resync.Wait)
	return h
}

func (h *harness) draft(t *testing.T, key string, variants map[string]VariantInput) *models.TemplateDraft {
	t.Helper()
	ctx := context.Background()
	d, err := h.orch.CreateDraft(ctx, "t1", key, models.CategoryUtility, "en_US")
	require.NoError(t, err)
	for lang, in := range variants {
		_, err := h.orch.UpsertVariant(ctx, "t1", d.ID, lang, in)
		require.NoError(t, err)
	}
	return d
}

func greeting(body, example string) VariantInput {
	return VariantInput{Body: body, Examples: map[string]string{"1": example}}
}
