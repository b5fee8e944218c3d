package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"whatsapp-templates/internal/config"
	apperrors "whatsapp-templates/internal/errors"
	"whatsapp-templates/internal/metrics"
	"whatsapp-templates/internal/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	PathSingleShotSession = "single_shot_session"
	PathPhasedSession     = "phased_session"
	PathMultipart         = "multipart"
	pathSourceDownload    = "source_download"

	multipartMaxBytes = 25 << 20
	stubHandlePrefix  = "stub:"
)

type mediaLimit struct {
	maxBytes  int64
	mimeTypes []string
}

var mediaLimits = map[models.HeaderKind]mediaLimit{
	models.HeaderImage:    {maxBytes: 5 << 20, mimeTypes: []string{"image/jpeg", "image/png"}},
	models.HeaderVideo:    {maxBytes: 16 << 20, mimeTypes: []string{"video/mp4", "video/3gpp"}},
	models.HeaderDocument: {maxBytes: 100 << 20, mimeTypes: []string{"application/pdf"}},
}

// handleKeys is checked in order on the upload response, then on a nested "result" object.
var handleKeys = []string{"h", "handle", "asset_handle", "id"}

// HeaderUploadResult is the outcome of a successful header media upload.
type HeaderUploadResult struct {
	Handle   string `json:"handle"`
	Path     string `json:"path,omitempty"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Stub     bool   `json:"stub,omitempty"`
}

// uploadFile is a validated payload. Every strategy rewinds r before reading it.
type uploadFile struct {
	name     string
	mimeType string
	size     int64
	r        io.ReadSeeker
}

func (f *uploadFile) rewind() error {
	_, err := f.r.Seek(0, io.SeekStart)
	return err
}

// uploadStrategy is one way of turning bytes into a handle. Strategies share no session state.
type uploadStrategy interface {
	name() string
	attempt(ctx context.Context, creds config.Credentials, f *uploadFile) (string, error)
}

// UploadClient turns header media into a handle the template endpoint accepts.
type UploadClient struct {
	client     *Client
	strategies []uploadStrategy
	stub       bool
	log        *zap.Logger
}

func NewUploadClient(client *Client, cfg *config.Config, log *zap.Logger) *UploadClient {
	return &UploadClient{
		client: client,
		strategies: []uploadStrategy{
			&singleShotSession{client: client},
			&phasedSession{client: client},
			&multipartUpload{client: client},
		},
		stub: cfg.UploadStubMode,
		log:  log,
	}
}

// StubMode reports whether uploads skip the provider and return placeholder handles.
func (u *UploadClient) StubMode() bool {
	return u.stub
}

// Upload validates size and MIME type, then tries each strategy in order until one yields a handle.
// An empty mimeType is detected from the content.
func (u *UploadClient) Upload(ctx context.Context, creds config.Credentials, kind models.HeaderKind, fileName, mimeType string, r io.ReadSeeker) (*HeaderUploadResult, error) {
	f, err := prepareFile(kind, fileName, mimeType, r)
	if err != nil {
		return nil, err
	}

	if u.stub {
		u.log.Info("upload stub mode, skipping provider", zap.String("file_name", f.name))
		return &HeaderUploadResult{
			Handle:   stubHandlePrefix + uuid.NewString(),
			MimeType: f.mimeType,
			Size:     f.size,
			Stub:     true,
		}, nil
	}

	var attempts []apperrors.PathFailure
	for _, s := range u.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := f.rewind(); err != nil {
			return nil, fmt.Errorf("rewind upload stream: %w", err)
		}

		handle, err := s.attempt(ctx, creds, f)
		if err == nil && handle != "" {
			metrics.UploadAttempts.WithLabelValues(s.name(), "success").Inc()
			if s.name() == PathMultipart {
				u.log.Warn("using media id as template handle, provider may reject it", zap.String("file_name", f.name))
			}
			return &HeaderUploadResult{Handle: handle, Path: s.name(), MimeType: f.mimeType, Size: f.size}, nil
		}
		if err == nil {
			err = errors.New("no handle in response")
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}

		metrics.UploadAttempts.WithLabelValues(s.name(), "failure").Inc()
		u.log.Warn("upload path failed",
			zap.String("path", s.name()),
			zap.String("file_name", f.name),
			zap.Error(err))
		attempts = append(attempts, apperrors.PathFailure{Path: s.name(), Reason: err.Error()})
	}

	last := ""
	if n := len(attempts); n > 0 {
		last = attempts[n-1].Path
	}
	return nil, &apperrors.UploadError{Path: last, Attempts: attempts}
}

// UploadFromURL downloads the source first. The download is capped at the kind's size limit.
func (u *UploadClient) UploadFromURL(ctx context.Context, creds config.Credentials, kind models.HeaderKind, sourceURL string) (*HeaderUploadResult, error) {
	limit, ok := mediaLimits[kind]
	if !ok {
		return nil, apperrors.NewValidationError("header_kind", "invalid", fmt.Sprintf("header kind %s does not carry media", kind))
	}
	parsed, err := url.Parse(sourceURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, apperrors.NewValidationError("header_media_ref", "invalid", "media reference must be an uploaded handle or an http(s) URL")
	}

	data, contentType, err := u.download(ctx, sourceURL, limit.maxBytes)
	if err != nil {
		return nil, err
	}
	fileName := path.Base(parsed.Path)
	if fileName == "" || fileName == "/" || fileName == "." {
		fileName = "header"
	}
	return u.Upload(ctx, creds, kind, fileName, contentType, bytes.NewReader(data))
}

func (u *UploadClient) download(ctx context.Context, sourceURL string, maxBytes int64) ([]byte, string, error) {
	fail := func(reason string) error {
		return &apperrors.UploadError{
			Path:     pathSourceDownload,
			Attempts: []apperrors.PathFailure{{Path: pathSourceDownload, Reason: reason}},
		}
	}

	ctx, cancel := context.WithTimeout(ctx, u.client.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", fail(err.Error())
	}
	resp, err := u.client.http.Do(req)
	if err != nil {
		return nil, "", fail(err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, "", fail("source returned " + resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, "", fail(err.Error())
	}
	if int64(len(data)) > maxBytes {
		return nil, "", apperrors.NewValidationError("header_media_ref", "too_large",
			fmt.Sprintf("media exceeds %d bytes", maxBytes))
	}
	return data, baseMimeType(resp.Header.Get("Content-Type")), nil
}

// prepareFile checks the payload against the per-kind limits before any network call.
func prepareFile(kind models.HeaderKind, fileName, mimeType string, r io.ReadSeeker) (*uploadFile, error) {
	limit, ok := mediaLimits[kind]
	if !ok {
		return nil, apperrors.NewValidationError("header_kind", "invalid", fmt.Sprintf("header kind %s does not carry media", kind))
	}

	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("measure upload stream: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload stream: %w", err)
	}
	if size == 0 {
		return nil, apperrors.NewValidationError("header_media", "required", "media file is empty")
	}
	if size > limit.maxBytes {
		return nil, apperrors.NewValidationError("header_media", "too_large",
			fmt.Sprintf("%s media is %d bytes, limit is %d", strings.ToLower(string(kind)), size, limit.maxBytes))
	}

	mimeType = baseMimeType(mimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		detected, err := mimetype.DetectReader(r)
		if err != nil {
			return nil, fmt.Errorf("detect media type: %w", err)
		}
		mimeType = baseMimeType(detected.String())
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind upload stream: %w", err)
		}
	}
	if !allowed(limit.mimeTypes, mimeType) {
		return nil, apperrors.NewValidationError("header_media", "unsupported_type",
			fmt.Sprintf("%s is not allowed for %s headers (allowed: %s)", mimeType, kind, strings.Join(limit.mimeTypes, ", ")))
	}

	if fileName == "" {
		fileName = "header"
	}
	return &uploadFile{name: fileName, mimeType: mimeType, size: size, r: r}, nil
}

func baseMimeType(v string) string {
	v, _, _ = strings.Cut(v, ";")
	return strings.ToLower(strings.TrimSpace(v))
}

func allowed(list []string, v string) bool {
	for _, m := range list {
		if m == v {
			return true
		}
	}
	return false
}

func contentRange(size int64) string {
	return fmt.Sprintf("bytes 0-%d/%d", size-1, size)
}

// extractHandle looks for a handle under handleKeys, then inside a nested "result" object.
func extractHandle(body []byte) string {
	var m map[string]interface{}
	if err := json.Unmarshal(body, &m); err != nil {
		return ""
	}
	if h := lookupHandle(m); h != "" {
		return h
	}
	if nested, ok := m["result"].(map[string]interface{}); ok {
		return lookupHandle(nested)
	}
	return ""
}

func lookupHandle(m map[string]interface{}) string {
	for _, key := range handleKeys {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// sessionID reads the upload session id returned by an INIT or START call.
func sessionID(body []byte) string {
	var resp struct {
		ID              string `json:"id"`
		UploadSessionID string `json:"upload_session_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	if resp.ID != "" {
		return resp.ID
	}
	return resp.UploadSessionID
}

func transferHeaders(f *uploadFile) map[string]string {
	return map[string]string{
		"Content-Type":  "application/octet-stream",
		"Content-Range": contentRange(f.size),
		"file_offset":   "0",
	}
}

// singleShotSession opens a resumable session and sends the whole file in one request.
type singleShotSession struct {
	client *Client
}

func (s *singleShotSession) name() string { return PathSingleShotSession }

func (s *singleShotSession) attempt(ctx context.Context, creds config.Credentials, f *uploadFile) (string, error) {
	if creds.AppID == "" {
		return "", errors.New("app id not configured")
	}

	q := url.Values{}
	q.Set("file_name", f.name)
	q.Set("file_length", strconv.FormatInt(f.size, 10))
	q.Set("file_type", f.mimeType)
	body, err := s.client.sendRequest(ctx, creds, "upload_init", http.MethodPost,
		graphURL(creds, creds.AppID+"/uploads")+"?"+q.Encode(), nil, nil)
	if err != nil {
		return "", fmt.Errorf("init: %w", err)
	}
	session := sessionID(body)
	if session == "" {
		return "", errors.New("init: no session id in response")
	}

	transferBody, err := s.client.do(ctx, creds, "upload_transfer", http.MethodPost,
		graphURL(creds, session), f.r, f.size, transferHeaders(f))
	if err != nil {
		return "", fmt.Errorf("transfer: %w", err)
	}

	finishBody, err := s.client.sendRequest(ctx, creds, "upload_finish", http.MethodGet, graphURL(creds, session), nil, nil)
	if err != nil {
		return "", fmt.Errorf("finish: %w", err)
	}

	// The session lookup echoes the session id under "id", so the transfer response wins.
	if h := extractHandle(transferBody); h != "" {
		return h, nil
	}
	if h := extractHandle(finishBody); h != "" && h != session {
		return h, nil
	}
	return "", errors.New("no handle in transfer or finish response")
}

// phasedSession drives the upload_phase=start/transfer/finish protocol.
type phasedSession struct {
	client *Client
}

func (p *phasedSession) name() string { return PathPhasedSession }

func (p *phasedSession) attempt(ctx context.Context, creds config.Credentials, f *uploadFile) (string, error) {
	if creds.AppID == "" {
		return "", errors.New("app id not configured")
	}

	q := url.Values{}
	q.Set("upload_phase", "start")
	q.Set("file_name", f.name)
	q.Set("file_length", strconv.FormatInt(f.size, 10))
	q.Set("file_type", f.mimeType)
	body, err := p.client.sendRequest(ctx, creds, "upload_start", http.MethodPost,
		graphURL(creds, creds.AppID+"/uploads")+"?"+q.Encode(), nil, nil)
	if err != nil {
		return "", fmt.Errorf("start: %w", err)
	}
	session := sessionID(body)
	if session == "" {
		return "", errors.New("start: no session id in response")
	}

	transferBody, err := p.client.do(ctx, creds, "upload_transfer", http.MethodPost,
		graphURL(creds, session)+"?upload_phase=transfer", f.r, f.size, transferHeaders(f))
	if err != nil {
		return "", fmt.Errorf("transfer: %w", err)
	}

	finishBody, err := p.client.sendRequest(ctx, creds, "upload_finish", http.MethodPost,
		graphURL(creds, session)+"?upload_phase=finish&confirm=true", nil, nil)
	if err != nil {
		return "", fmt.Errorf("finish: %w", err)
	}

	if h := extractHandle(finishBody); h != "" && h != session {
		return h, nil
	}
	if h := extractHandle(transferBody); h != "" {
		return h, nil
	}
	return "", errors.New("no handle in finish response")
}

// multipartUpload is the classic /media endpoint. Its id is not accepted by every
// template endpoint version, so it runs last.
type multipartUpload struct {
	client *Client
}

func (m *multipartUpload) name() string { return PathMultipart }

func (m *multipartUpload) attempt(ctx context.Context, creds config.Credentials, f *uploadFile) (string, error) {
	if f.size > multipartMaxBytes {
		return "", fmt.Errorf("payload of %d bytes exceeds multipart limit", f.size)
	}
	if creds.PhoneNumberID == "" {
		return "", errors.New("phone number id not configured")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", err
	}
	if err := writer.WriteField("type", f.mimeType); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", f.name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f.r); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	respBody, err := m.client.do(ctx, creds, "upload_multipart", http.MethodPost,
		graphURL(creds, creds.PhoneNumberID+"/media"), body, int64(body.Len()),
		map[string]string{"Content-Type": writer.FormDataContentType()})
	if err != nil {
		return "", err
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decode media response: %w", err)
	}
	return resp.ID, nil
}
