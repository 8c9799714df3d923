package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"fieldintake/internal/config"
	"fieldintake/internal/model"
)

// duplicateIndicator marks a response body reporting a server-side duplicate.
// The server already has the payload, so re-delivery is treated as success.
const duplicateIndicator = "duplicate"

// UploadClient performs the network exchange with the collection server and
// maps every raw outcome onto the closed OutcomeClass taxonomy.
type UploadClient struct {
	cfg        *config.SyncConfig
	httpClient *http.Client
}

// NewUploadClient creates a new upload client
func NewUploadClient(cfg *config.SyncConfig) *UploadClient {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	return &UploadClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.ReadTimeout,
			Transport: &http.Transport{
				DialContext: dialer.DialContext,
			},
		},
	}
}

// IsConfigured returns true if the endpoint and credential are set
func (c *UploadClient) IsConfigured() bool {
	return c.cfg.IsConfigured()
}

// Upload POSTs one serialized payload. The returned outcome is always
// non-nil; the caller decides retry policy from its class.
func (c *UploadClient) Upload(ctx context.Context, payload []byte) *model.UploadOutcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.EndpointURL, bytes.NewReader(payload))
	if err != nil {
		return &model.UploadOutcome{
			Class:   model.OutcomeUnknownError,
			Message: fmt.Sprintf("build request: %v", err),
		}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return classifyTransportError(err)
	}

	return classifyResponse(resp.StatusCode, string(body))
}

// classifyTransportError maps socket, DNS and timeout failures to
// NetworkError; anything unrecognized is UnknownError.
func classifyTransportError(err error) *model.UploadOutcome {
	cause := err
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		cause = urlErr.Err
	}

	var netErr net.Error
	if errors.As(cause, &netErr) ||
		errors.Is(cause, context.DeadlineExceeded) ||
		errors.Is(cause, context.Canceled) ||
		errors.Is(cause, io.ErrUnexpectedEOF) {
		return &model.UploadOutcome{
			Class:   model.OutcomeNetworkError,
			Message: err.Error(),
		}
	}

	return &model.UploadOutcome{
		Class:   model.OutcomeUnknownError,
		Message: err.Error(),
	}
}

func classifyResponse(statusCode int, body string) *model.UploadOutcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return &model.UploadOutcome{
			Class:      model.OutcomeSuccess,
			StatusCode: statusCode,
			Duplicate:  strings.Contains(strings.ToLower(body), duplicateIndicator),
		}
	case statusCode >= 400 && statusCode < 500:
		return &model.UploadOutcome{
			Class:      model.OutcomeClientError,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("server rejected upload: %d: %s", statusCode, truncate(body, 512)),
		}
	case statusCode >= 500 && statusCode < 600:
		return &model.UploadOutcome{
			Class:      model.OutcomeServerError,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("server error: %d: %s", statusCode, truncate(body, 512)),
		}
	default:
		return &model.UploadOutcome{
			Class:      model.OutcomeUnknownError,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("unexpected status %d", statusCode),
		}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
