package service

import (
	"context"
	"net/http"
	"testing"

	apperrors "whatsapp-templates/internal/errors"
	"whatsapp-templates/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuplicateDraft(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	src := h.draft(t, "welcome", map[string]VariantInput{
		"en_US": greeting("Hi {{1}}", "Alice"),
		"es_ES": greeting("Hola {{1}}", "Alice"),
	})

	first, err := h.life.DuplicateDraft(ctx, "t1", src.ID)
	require.NoError(t, err)
	assert.Equal(t, "welcome_copy", first.Key)
	assert.NotEqual(t, src.ID, first.ID)

	second, err := h.life.DuplicateDraft(ctx, "t1", src.ID)
	require.NoError(t, err)
	assert.Equal(t, "welcome_copy_2", second.Key)

	copied, err := h.orch.GetDraft(ctx, "t1", second.ID)
	require.NoError(t, err)
	require.Len(t, copied.Variants, 2)
	for _, v := range copied.Variants {
		assert.Equal(t, second.ID, v.DraftID)
		assert.True(t, v.Ready)
	}
	assert.False(t, copied.Submitted())

	original, err := h.drafts.ListVariants(ctx, src.ID)
	require.NoError(t, err)
	assert.Len(t, original, 2)
}

func TestDeleteDraft(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	unsent := h.draft(t, "unsent", map[string]VariantInput{"en_US": greeting("Hi {{1}}", "Alice")})
	ok, err := h.life.DeleteDraft(ctx, "t1", unsent.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	exists, err := h.drafts.KeyExists(ctx, "t1", "unsent")
	require.NoError(t, err)
	assert.False(t, exists)

	sent := h.draft(t, "sent", map[string]VariantInput{"en_US": greeting("Hi {{1}}", "Alice")})
	_, err = h.orch.Submit(ctx, "t1", sent.ID)
	require.NoError(t, err)

	ok, err = h.life.DeleteDraft(ctx, "t1", sent.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = h.orch.GetDraft(ctx, "t1", sent.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	exists, err = h.drafts.KeyExists(ctx, "t1", "sent")
	require.NoError(t, err)
	assert.True(t, exists, "submitted drafts are archived, not removed")

	rec, err := h.approvals.FindApproval(ctx, "t1", "sent", "en_US")
	require.NoError(t, err)
	assert.True(t, rec.Active)

	_, err = h.life.DeleteDraft(ctx, "t1", "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteApprovedTemplate_RemoteAlreadyGone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.graph.deleteStatus = http.StatusNotFound
	require.NoError(t, h.approvals.UpsertApproval(ctx, &models.TemplateApproval{
		TenantID:           "t1",
		Name:               "promo",
		Language:           "en_US",
		ProviderTemplateID: "555",
		Status:             models.ApprovalApproved,
		SyncState:          models.SyncConfirmed,
		Active:             true,
	}))

	ok, err := h.life.DeleteApprovedTemplate(ctx, "t1", "promo", "en_US")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, h.graph.count("DELETE"))

	rec, err := h.approvals.FindApproval(ctx, "t1", "promo", "en_US")
	require.NoError(t, err)
	assert.False(t, rec.Active)
	assert.Equal(t, models.ApprovalDeleted, rec.Status)

	taken, err := h.approvals.NameTaken(ctx, "t1", "promo", "en_US")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestDeleteApprovedTemplate_RemoteFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.graph.deleteStatus = http.StatusInternalServerError
	require.NoError(t, h.approvals.UpsertApproval(ctx, &models.TemplateApproval{
		TenantID:           "t1",
		Name:               "promo",
		Language:           "en_US",
		ProviderTemplateID: "555",
		Status:             models.ApprovalApproved,
		SyncState:          models.SyncConfirmed,
		Active:             true,
	}))

	ok, err := h.life.DeleteApprovedTemplate(ctx, "t1", "promo", "en_US")
	assert.Error(t, err)
	assert.False(t, ok)

	rec, err := h.approvals.FindApproval(ctx, "t1", "promo", "en_US")
	require.NoError(t, err)
	assert.True(t, rec.Active)
}

func TestDeleteApprovedTemplate_UntrackedLanguageDeletesOnlyThatLanguage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.approvals.UpsertApproval(ctx, &models.TemplateApproval{
		TenantID:           "t1",
		Name:               "promo",
		Language:           "en_US",
		ProviderTemplateID: "111",
		Status:             models.ApprovalApproved,
		SyncState:          models.SyncConfirmed,
		Active:             true,
	}))
	h.graph.listBody = `{"data":[
		{"id":"111","name":"promo","language":"en_US","status":"APPROVED"},
		{"id":"222","name":"promo","language":"fr_FR","status":"APPROVED"}]}`

	ok, err := h.life.DeleteApprovedTemplate(ctx, "t1", "promo", "fr_FR")
	require.NoError(t, err)
	assert.True(t, ok)

	deletes := h.graph.matching("DELETE")
	require.Len(t, deletes, 1)
	assert.Contains(t, deletes[0], "hsm_id=222")
	assert.Contains(t, deletes[0], "name=promo")

	rec, err := h.approvals.FindApproval(ctx, "t1", "promo", "en_US")
	require.NoError(t, err)
	assert.True(t, rec.Active)
}

func TestDeleteApprovedTemplate_RecordWithoutProviderID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, lang := range []string{"en_US", "es_ES"} {
		require.NoError(t, h.approvals.UpsertApproval(ctx, &models.TemplateApproval{
			TenantID:  "t1",
			Name:      "promo",
			Language:  lang,
			Status:    models.ApprovalPending,
			SyncState: models.SyncPending,
			Active:    true,
		}))
	}
	h.graph.listBody = `{"data":[
		{"id":"111","name":"promo","language":"en_US","status":"PENDING"},
		{"id":"333","name":"promo","language":"es_ES","status":"PENDING"}]}`

	ok, err := h.life.DeleteApprovedTemplate(ctx, "t1", "promo", "es_ES")
	require.NoError(t, err)
	assert.True(t, ok)

	deletes := h.graph.matching("DELETE")
	require.Len(t, deletes, 1)
	assert.Contains(t, deletes[0], "hsm_id=333")

	rec, err := h.approvals.FindApproval(ctx, "t1", "promo", "es_ES")
	require.NoError(t, err)
	assert.False(t, rec.Active)
	rec, err = h.approvals.FindApproval(ctx, "t1", "promo", "en_US")
	require.NoError(t, err)
	assert.True(t, rec.Active)
}

func TestDeleteApprovedTemplate_LanguageMissingRemotely(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.approvals.UpsertApproval(ctx, &models.TemplateApproval{
		TenantID:  "t1",
		Name:      "promo",
		Language:  "de_DE",
		Status:    models.ApprovalPending,
		SyncState: models.SyncPending,
		Active:    true,
	}))
	h.graph.listBody = `{"data":[{"id":"111","name":"promo","language":"en_US","status":"APPROVED"}]}`

	ok, err := h.life.DeleteApprovedTemplate(ctx, "t1", "promo", "de_DE")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, h.graph.count("DELETE"))

	rec, err := h.approvals.FindApproval(ctx, "t1", "promo", "de_DE")
	require.NoError(t, err)
	assert.False(t, rec.Active)
}

func TestDeleteApprovedTemplate_InvalidName(t *testing.T) {
	h := newHarness(t)
	_, err := h.life.DeleteApprovedTemplate(context.Background(), "t1", "Not Valid", "en_US")
	var vErr *apperrors.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Zero(t, h.graph.total())
}
