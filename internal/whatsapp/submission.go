package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"whatsapp-templates/internal/config"
	apperrors "whatsapp-templates/internal/errors"
	wire "whatsapp-templates/pkg/models"
)

// Graph error subcodes returned by message_templates.
const (
	SubcodeLanguageBeingDeleted = 2388023
	SubcodeDuplicateTemplate    = 2388024
	SubcodeInvalidExample       = 2388043
	SubcodeInvalidHeaderFormat  = 2388047
	SubcodeCategoryMismatch     = 2388072
	SubcodeTooManyParams        = 2388293
	SubcodeDanglingParams       = 2388299
)

var subcodeExplanations = map[int]string{
	SubcodeLanguageBeingDeleted: "this name and language is still being deleted at the provider, retry later or use another name",
	SubcodeDuplicateTemplate:    "a template with this name and language already exists",
	SubcodeInvalidExample:       "example values are missing or do not match the placeholders",
	SubcodeInvalidHeaderFormat:  "header format is not accepted, check the header kind and media handle",
	SubcodeCategoryMismatch:     "template body structure rejected for this category",
	SubcodeTooManyParams:        "too many placeholders for the length of the body text",
	SubcodeDanglingParams:       "placeholders cannot start or end the body text",
}

func explainSubcode(subcode int) string {
	return subcodeExplanations[subcode]
}

const maxListPages = 50

// ErrTemplateIDRequired is returned by DeleteTemplate when no provider template id is given.
var ErrTemplateIDRequired = errors.New("provider template id is required to delete a single language")

// CreateResult is what the provider returns for an accepted template language.
type CreateResult struct {
	ProviderTemplateID string
	Status             string
	Category           string
}

// SubmissionClient creates, deletes and lists message templates.
type SubmissionClient struct {
	client *Client
}

func NewSubmissionClient(client *Client) *SubmissionClient {
	return &SubmissionClient{client: client}
}

// CreateTemplate registers one language of a template. A duplicate name comes back as
// *NamingConflictError wrapping the provider rejection; other failures as *RemoteRejectionError.
func (s *SubmissionClient) CreateTemplate(ctx context.Context, creds config.Credentials, req wire.TemplateCreateRequest) (*CreateResult, error) {
	endpoint := graphURL(creds, creds.WabaID+"/message_templates")
	body, err := s.client.sendRequest(ctx, creds, "create_template", http.MethodPost, endpoint, req, nil)
	if err != nil {
		var rej *apperrors.RemoteRejectionError
		if errors.As(err, &rej) && (rej.StatusCode == http.StatusConflict || rej.Subcode == SubcodeDuplicateTemplate) {
			return nil, &apperrors.NamingConflictError{Name: req.Name, Language: req.Language, Cause: rej}
		}
		return nil, err
	}

	var resp wire.TemplateCreateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode create template response: %w", err)
	}
	return &CreateResult{ProviderTemplateID: resp.ID, Status: resp.Status, Category: resp.Category}, nil
}

// DeleteTemplate removes one language of a template. A name-only delete would remove every
// language, so the provider id is required. 404 and 400 mean it is already gone.
func (s *SubmissionClient) DeleteTemplate(ctx context.Context, creds config.Credentials, name, providerTemplateID string) error {
	if providerTemplateID == "" {
		return ErrTemplateIDRequired
	}
	q := url.Values{}
	q.Set("name", name)
	q.Set("hsm_id", providerTemplateID)
	endpoint := graphURL(creds, creds.WabaID+"/message_templates") + "?" + q.Encode()

	_, err := s.client.sendRequest(ctx, creds, "delete_template", http.MethodDelete, endpoint, nil, nil)
	var rej *apperrors.RemoteRejectionError
	if errors.As(err, &rej) && (rej.StatusCode == http.StatusNotFound || rej.StatusCode == http.StatusBadRequest) {
		return nil
	}
	return err
}

// ListTemplates pages through every template of the tenant's business account.
func (s *SubmissionClient) ListTemplates(ctx context.Context, creds config.Credentials) ([]wire.RemoteTemplate, error) {
	var all []wire.RemoteTemplate
	after := ""
	for page := 0; page < maxListPages; page++ {
		q := url.Values{}
		q.Set("fields", "id,name,language,status,category,rejected_reason")
		q.Set("limit", "100")
		if after != "" {
			q.Set("after", after)
		}
		endpoint := graphURL(creds, creds.WabaID+"/message_templates") + "?" + q.Encode()

		body, err := s.client.sendRequest(ctx, creds, "list_templates", http.MethodGet, endpoint, nil, nil)
		if err != nil {
			return nil, err
		}
		var resp wire.RemoteTemplatePage
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode template list: %w", err)
		}
		all = append(all, resp.Data...)

		if resp.Paging.Next == "" || resp.Paging.Cursors.After == "" {
			return all, nil
		}
		after = resp.Paging.Cursors.After
	}
	return all, nil
}
