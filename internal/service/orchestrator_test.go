package service

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"whatsapp-templates/internal/config"
	apperrors "whatsapp-templates/internal/errors"
	"whatsapp-templates/internal/models"
	"whatsapp-templates/internal/templates"
	"whatsapp-templates/internal/whatsapp"
	wire "whatsapp-templates/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCreateDraft_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.CreateDraft(ctx, "t1", "Bad Key", models.Category("PROMO"), "english")
	var vErr *apperrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Fields, 3)

	_, err = h.orch.CreateDraft(ctx, "t1", "welcome", models.CategoryMarketing, "en_US")
	require.NoError(t, err)
	_, err = h.orch.CreateDraft(ctx, "t1", "welcome", models.CategoryMarketing, "en_US")
	assert.ErrorIs(t, err, apperrors.ErrDuplicateKey)
}

func TestUpsertVariant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.draft(t, "welcome", nil)

	v, err := h.orch.UpsertVariant(ctx, "t1", d.ID, "en_US", VariantInput{Body: "Hi {{1}}"})
	require.NoError(t, err)
	assert.False(t, v.Ready)
	require.NotEmpty(t, v.LastErrors)
	assert.Equal(t, templates.CodeMissingExample, v.LastErrors[0].Code)

	v, err = h.orch.UpsertVariant(ctx, "t1", d.ID, "en_US", greeting("Hi {{1}}", "Alice"))
	require.NoError(t, err)
	assert.True(t, v.Ready)
	assert.Equal(t, models.HeaderNone, v.HeaderKind)

	_, err = h.orch.UpsertVariant(ctx, "t1", d.ID, "english", greeting("Hi {{1}}", "Alice"))
	var vErr *apperrors.ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = h.orch.UpsertVariant(ctx, "t1", d.ID, "en_US", VariantInput{Body: "x", Buttons: []models.Button{{Type: "CALL", Text: "a"}}})
	assert.ErrorAs(t, err, &vErr)

	_, err = h.orch.UpsertVariant(ctx, "t2", d.ID, "en_US", greeting("Hi {{1}}", "Alice"))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSubmit_SingleVariantPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.graph.listBody = `{"data":[{"id":"tpl-1","name":"order_update","language":"en_US","status":"APPROVED","category":"UTILITY"}]}`
	d := h.draft(t, "order_update", map[string]VariantInput{"en_US": greeting("Hi {{1}}", "Alice")})

	ok, errs, err := h.orch.ValidateAll(ctx, "t1", d.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, errs)

	report, err := h.orch.Submit(ctx, "t1", d.ID)
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, StateSubmittedPending, report.State)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, OutcomePending, report.Outcomes[0].Status)
	assert.Equal(t, "tpl-1", report.Outcomes[0].ProviderTemplateID)

	require.Len(t, h.graph.created, 1)
	sent := h.graph.created[0]
	assert.Equal(t, "order_update", sent.Name)
	assert.Equal(t, "UTILITY", sent.Category)
	require.Len(t, sent.Components, 1)
	assert.Equal(t, "Hi {{1}}", sent.Components[0].Text)
	assert.Equal(t, [][]string{{"Alice"}}, sent.Components[0].Example.BodyText)

	h.resync.Wait()
	rec, err := h.approvals.FindApproval(ctx, "t1", "order_update", "en_US")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, rec.Status)
	assert.Equal(t, models.SyncConfirmed, rec.SyncState)
	assert.Equal(t, d.ID, rec.DraftID)

	got, err := h.orch.GetDraft(ctx, "t1", d.ID)
	require.NoError(t, err)
	assert.True(t, got.Submitted())
}

func TestSubmit_ParityFailureMakesNoCalls(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	en := greeting("Hi {{1}}", "Alice")
	en.Buttons = []models.Button{{Type: models.ButtonQuickReply, Text: "Yes"}, {Type: models.ButtonQuickReply, Text: "No"}}
	fr := greeting("Salut {{1}}", "Alice")
	fr.Buttons = []models.Button{{Type: models.ButtonQuickReply, Text: "Oui"}}
	d := h.draft(t, "confirm", map[string]VariantInput{"en_US": en, "fr_FR": fr})

	ok, errs, err := h.orch.ValidateAll(ctx, "t1", d.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	require.Contains(t, errs, "fr_FR")
	assert.NotContains(t, errs, "en_US")
	assert.Equal(t, templates.CodeParity, errs["fr_FR"][0].Code)

	frVariant, err := h.drafts.GetVariant(ctx, d.ID, "fr_FR")
	require.NoError(t, err)
	assert.False(t, frVariant.Ready)

	report, err := h.orch.Submit(ctx, "t1", d.ID)
	require.NoError(t, err)
	assert.False(t, report.Success)
	assert.Equal(t, StateInvalid, report.State)
	assert.Contains(t, report.Errors, "fr_FR")
	assert.Zero(t, h.graph.total())
}

func TestSubmit_UploadFailureDoesNotBlockSiblings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.graph.uploadStatus = http.StatusInternalServerError

	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes)
	}))
	defer source.Close()

	en := greeting("Your order {{1}} shipped", "A-1")
	en.HeaderKind = models.HeaderImage
	en.HeaderMediaRef = source.URL + "/banner.png"
	es := greeting("Tu pedido {{1}} fue enviado", "A-1")
	d := h.draft(t, "shipping", map[string]VariantInput{"en_US": en, "es_ES": es})

	report, err := h.orch.Submit(ctx, "t1", d.ID)
	require.NoError(t, err)
	assert.False(t, report.Success)
	assert.Equal(t, StateSubmittedPartialFailure, report.State)

	outcomes := map[string]SubmissionOutcome{}
	for _, o := range report.Outcomes {
		outcomes[o.Language] = o
	}
	assert.Equal(t, OutcomeFailed, outcomes["en_US"].Status)
	assert.Contains(t, outcomes["en_US"].Reason, whatsapp.PathMultipart)
	assert.Equal(t, OutcomePending, outcomes["es_ES"].Status)

	_, err = h.approvals.FindApproval(ctx, "t1", "shipping", "en_US")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	rec, err := h.approvals.FindApproval(ctx, "t1", "shipping", "es_ES")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, rec.Status)
	assert.Equal(t, models.SyncPending, rec.SyncState)
}

func TestSubmit_UploadsMediaFromURL(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes)
	}))
	defer source.Close()

	en := greeting("Hi {{1}}", "Alice")
	en.HeaderKind = models.HeaderImage
	en.HeaderMediaRef = source.URL + "/banner.png"
	d := h.draft(t, "banner", map[string]VariantInput{"en_US": en})

	report, err := h.orch.Submit(ctx, "t1", d.ID)
	require.NoError(t, err)
	require.True(t, report.Success)

	header := h.graph.created[0].Components[0]
	assert.Equal(t, "HEADER", header.Type)
	assert.Equal(t, "IMAGE", header.Format)
	assert.Equal(t, []string{"4::uploaded"}, header.Example.HeaderHandle)

	v, err := h.drafts.GetVariant(ctx, d.ID, "en_US")
	require.NoError(t, err)
	handle, ok := v.MediaHandle()
	assert.True(t, ok)
	assert.Equal(t, "4::uploaded", handle)
}

func TestSubmit_ConfigurationErrorIsFatal(t *testing.T) {
	h := newHarness(t)
	h.creds.err = &apperrors.ConfigurationError{TenantID: "t1", Missing: []string{"access_token"}}
	d := h.draft(t, "welcome", map[string]VariantInput{"en_US": greeting("Hi {{1}}", "Alice")})

	_, err := h.orch.Submit(context.Background(), "t1", d.ID)
	var cfgErr *apperrors.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Zero(t, h.graph.total())
}

func TestSubmit_InvalidNameShortCircuits(t *testing.T) {
	h := newHarness(t)
	d := h.draft(t, "1st_notice", map[string]VariantInput{"en_US": greeting("Hi {{1}}", "Alice")})

	_, err := h.orch.Submit(context.Background(), "t1", d.ID)
	var vErr *apperrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "name", vErr.Fields[0].Field)
	assert.Zero(t, h.graph.total())
}

func TestSubmit_NameHeldByAnotherOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.approvals.UpsertApproval(ctx, &models.TemplateApproval{
		TenantID:  "t1",
		Name:      "promo",
		Language:  "en_US",
		Status:    models.ApprovalApproved,
		SyncState: models.SyncConfirmed,
		Active:    true,
	}))
	d := h.draft(t, "promo", map[string]VariantInput{"en_US": greeting("Hi {{1}}", "Alice")})

	avail, err := h.orch.CheckNameAvailability(ctx, "t1", d.ID, "")
	require.NoError(t, err)
	assert.False(t, avail.Available)
	assert.Equal(t, "promo_2", avail.Suggestion)

	report, err := h.orch.Submit(ctx, "t1", d.ID)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, OutcomeInvalid, report.Outcomes[0].Status)
	assert.Equal(t, "promo_2", report.Outcomes[0].Suggestion)
	assert.Zero(t, h.graph.count("POST"))
}

func TestSubmit_ResubmissionSkipsSubmittedLanguages(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.draft(t, "welcome", map[string]VariantInput{"en_US": greeting("Hi {{1}}", "Alice")})

	_, err := h.orch.Submit(ctx, "t1", d.ID)
	require.NoError(t, err)
	h.resync.Wait()

	avail, err := h.orch.CheckNameAvailability(ctx, "t1", d.ID, "en_US")
	require.NoError(t, err)
	assert.True(t, avail.Available, "a draft's own submission does not block its name")

	_, err = h.orch.UpsertVariant(ctx, "t1", d.ID, "es_ES", greeting("Hola {{1}}", "Alice"))
	require.NoError(t, err)

	report, err := h.orch.Submit(ctx, "t1", d.ID)
	require.NoError(t, err)
	assert.True(t, report.Success)
	require.Len(t, h.graph.created, 2)
	assert.Equal(t, "es_ES", h.graph.created[1].Language)
}

func TestSubmit_RemoteDuplicateIsReported(t *testing.T) {
	h := newHarness(t)
	h.graph.createStatus = http.StatusBadRequest
	h.graph.createBody = `{"error":{"message":"Invalid parameter","code":100,"error_subcode":2388024}}`
	d := h.draft(t, "welcome", map[string]VariantInput{"en_US": greeting("Hi {{1}}", "Alice")})

	report, err := h.orch.Submit(context.Background(), "t1", d.ID)
	require.NoError(t, err)
	assert.Equal(t, StateSubmittedPartialFailure, report.State)
	assert.Equal(t, OutcomeInvalid, report.Outcomes[0].Status)
	assert.Contains(t, report.Outcomes[0].Reason, "already in use")
	assert.Equal(t, "welcome_2", report.Outcomes[0].Suggestion)
}

func TestSubmit_RemoteConflictSuggestionSkipsLocallyTakenNames(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.approvals.UpsertApproval(ctx, &models.TemplateApproval{
		TenantID:  "t1",
		Name:      "welcome_2",
		Language:  "en_US",
		Status:    models.ApprovalApproved,
		SyncState: models.SyncConfirmed,
		Active:    true,
	}))
	h.graph.createStatus = http.StatusConflict
	h.graph.createBody = `{"error":{"message":"Template already exists","code":100}}`
	d := h.draft(t, "welcome", map[string]VariantInput{"en_US": greeting("Hi {{1}}", "Alice")})

	report, err := h.orch.Submit(ctx, "t1", d.ID)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, OutcomeInvalid, report.Outcomes[0].Status)
	assert.Equal(t, "welcome_3", report.Outcomes[0].Suggestion)
}

func TestSubmit_CreateWithoutProviderIDMarksDraftSubmitted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.graph.createStatus = http.StatusOK
	h.graph.createBody = `{"status":"PENDING"}`
	d := h.draft(t, "welcome", map[string]VariantInput{"en_US": greeting("Hi {{1}}", "Alice")})

	report, err := h.orch.Submit(ctx, "t1", d.ID)
	require.NoError(t, err)
	require.True(t, report.Success)
	assert.Empty(t, report.Outcomes[0].ProviderTemplateID)

	stored, err := h.drafts.GetDraft(ctx, "t1", d.ID)
	require.NoError(t, err)
	assert.True(t, stored.Submitted())

	h.resync.Wait()
	assert.Equal(t, 1, h.graph.count("GET"), "a fresh submission triggers a resync")

	archived, err := h.life.DeleteDraft(ctx, "t1", d.ID)
	require.NoError(t, err)
	assert.True(t, archived)
	_, err = h.drafts.GetDraft(ctx, "t1", d.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	exists, err := h.drafts.KeyExists(ctx, "t1", "welcome")
	require.NoError(t, err)
	assert.True(t, exists, "a submitted draft is archived, not removed")
}

type cancelAfterCreate struct {
	TemplateRegistry
	cancel context.CancelFunc
}

func (c *cancelAfterCreate) CreateTemplate(ctx context.Context, creds config.Credentials, req wire.TemplateCreateRequest) (*whatsapp.CreateResult, error) {
	res, err := c.TemplateRegistry.CreateTemplate(ctx, creds, req)
	c.cancel()
	return res, err
}

func TestSubmit_CancellationKeepsCompletedLanguages(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.orch.registry = &cancelAfterCreate{TemplateRegistry: h.orch.registry, cancel: cancel}

	d := h.draft(t, "welcome", map[string]VariantInput{
		"en_US": greeting("Hi {{1}}", "Alice"),
		"es_ES": greeting("Hola {{1}}", "Alice"),
	})

	report, err := h.orch.Submit(ctx, "t1", d.ID)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, "en_US", report.Outcomes[0].Language)
	assert.Equal(t, OutcomePending, report.Outcomes[0].Status)
	assert.Equal(t, OutcomeFailed, report.Outcomes[1].Status)
	assert.Equal(t, "submission canceled", report.Outcomes[1].Reason)

	_, err = h.approvals.FindApproval(context.Background(), "t1", "welcome", "en_US")
	assert.NoError(t, err)
}

func TestUploadVariantMedia(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	img := greeting("Hi {{1}}", "Alice")
	img.HeaderKind = models.HeaderImage
	d := h.draft(t, "promo", map[string]VariantInput{"en_US": img, "es_ES": greeting("Hola {{1}}", "Alice")})

	v, err := h.drafts.GetVariant(ctx, d.ID, "en_US")
	require.NoError(t, err)
	assert.False(t, v.Ready)

	v, err = h.orch.UploadVariantMedia(ctx, "t1", d.ID, "en_US", "banner.png", "", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.True(t, v.Ready)
	assert.Equal(t, models.MediaHandlePrefix+"4::uploaded", v.HeaderMediaRef)

	_, err = h.orch.UploadVariantMedia(ctx, "t1", d.ID, "es_ES", "banner.png", "", bytes.NewReader(pngBytes))
	var vErr *apperrors.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestUploadVariantMedia_StubModeNeedsNoCredentials(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	img := greeting("Hi {{1}}", "Alice")
	img.HeaderKind = models.HeaderImage
	d := h.draft(t, "promo", map[string]VariantInput{"en_US": img})

	cfg := &config.Config{HTTPTimeout: 5 * time.Second, UploadStubMode: true}
	log := zaptest.NewLogger(t)
	h.orch.uploader = whatsapp.NewUploadClient(whatsapp.NewClient(cfg, log), cfg, log)
	h.creds.creds = config.Credentials{}
	h.creds.err = &apperrors.ConfigurationError{TenantID: "t1", Missing: []string{"access_token", "waba_id"}}

	v, err := h.orch.UploadVariantMedia(ctx, "t1", d.ID, "en_US", "banner.png", "", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(v.HeaderMediaRef, models.MediaHandlePrefix+"stub:"))
	assert.True(t, v.Ready)
	assert.Zero(t, h.graph.total())
}

func TestUploadVariantMedia_ConfigurationErrorWithoutStub(t *testing.T) {
	h := newHarness(t)
	img := greeting("Hi {{1}}", "Alice")
	img.HeaderKind = models.HeaderImage
	d := h.draft(t, "promo", map[string]VariantInput{"en_US": img})
	h.creds.err = &apperrors.ConfigurationError{TenantID: "t1", Missing: []string{"access_token"}}

	_, err := h.orch.UploadVariantMedia(context.Background(), "t1", d.ID, "en_US", "banner.png", "", bytes.NewReader(pngBytes))
	var cfgErr *apperrors.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Zero(t, h.graph.total())
}
