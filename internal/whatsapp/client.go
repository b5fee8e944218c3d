// Package whatsapp talks to the WhatsApp Business Graph API: header media uploads,
// template creation, deletion and listing.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"whatsapp-templates/internal/config"
	apperrors "whatsapp-templates/internal/errors"
	"whatsapp-templates/internal/metrics"
	wire "whatsapp-templates/pkg/models"

	"go.uber.org/zap"
)

// Client is the shared transport for every Graph call. Credentials are passed per call
// so one Client serves every tenant.
type Client struct {
	http    *http.Client
	timeout time.Duration
	log     *zap.Logger
}

func NewClient(cfg *config.Config, log *zap.Logger) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:    &http.Client{},
		timeout: timeout,
		log:     log,
	}
}

func graphURL(creds config.Credentials, path string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(creds.GraphBaseURL, "/"), creds.GraphVersion, strings.TrimLeft(path, "/"))
}

// sendRequest marshals body as JSON. Responses with status >= 400 come back as *RemoteRejectionError.
func (c *Client) sendRequest(ctx context.Context, creds config.Credentials, op, method, url string, body interface{}, headers map[string]string) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	if headers == nil {
		headers = map[string]string{}
	}
	if _, ok := headers["Content-Type"]; !ok && body != nil {
		headers["Content-Type"] = "application/json"
	}
	return c.do(ctx, creds, op, method, url, bodyReader, -1, headers)
}

// do runs one request under the per-call timeout. contentLength < 0 leaves it to net/http.
func (c *Client) do(ctx context.Context, creds config.Credentials, op, method, url string, body io.Reader, contentLength int64, headers map[string]string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if contentLength >= 0 {
		req.ContentLength = contentLength
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.GraphRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode >= 400 {
		c.log.Debug("graph request rejected",
			zap.String("operation", op),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody))
		return respBody, parseRemoteError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// parseRemoteError reads the Graph error envelope when present, otherwise keeps the raw body.
func parseRemoteError(status int, body []byte) *apperrors.RemoteRejectionError {
	rej := &apperrors.RemoteRejectionError{StatusCode: status, Body: string(body)}

	var env wire.GraphErrorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		rej.Type = env.Error.Type
		rej.Code = env.Error.Code
		rej.Subcode = env.Error.ErrorSubcode
		rej.Message = env.Error.Message
		rej.UserTitle = env.Error.ErrorUserTitle
		rej.UserMessage = env.Error.ErrorUserMsg
		rej.TraceID = env.Error.FBTraceID
	}
	rej.Explanation = explainSubcode(rej.Subcode)
	return rej
}
