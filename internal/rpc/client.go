package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"comanda/internal/dto"
	apperrors "comanda/internal/errors"
	"comanda/internal/httpx"
	"comanda/internal/infrastructure/metrics"
)

// Client makes blocking request/response calls to one collaborator service.
// Each call gets a fixed timeout and is attempted once.
type Client struct {
	service string
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewClient(service, baseURL, apiKey string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Client {
	return &Client{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With(zap.String("rpcService", service)),
		metrics: m,
	}
}

// Call sends in as JSON (when non-nil) and decodes a 2xx body into out (when non-nil).
// Structured error bodies are mapped back to typed errors.
func (c *Client) Call(ctx context.Context, method, path, tenantID string, in, out interface{}) error {
	start := time.Now()
	err := c.do(ctx, method, path, tenantID, in, out)

	result := "ok"
	if err != nil {
		result = "error"
	}
	c.metrics.RPCDuration.WithLabelValues(c.service, result).Observe(time.Since(start).Seconds())
	return err
}

func (c *Client) do(ctx context.Context, method, path, tenantID string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling %s request: %w", c.service, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building %s request: %w", c.service, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(httpx.HeaderTenantID, tenantID)
	if c.apiKey != "" {
		req.Header.Set(httpx.HeaderAPIKey, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("rpc call failed", zap.Error(err), zap.String("method", method), zap.String("path", path))
		return apperrors.NewInternalError(fmt.Sprintf("calling %s", c.service), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.NewInternalError(fmt.Sprintf("decoding %s response", c.service), err)
		}
		return nil
	}

	return c.decodeError(resp)
}

func (c *Client) decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var e dto.ErrorResponse
	if err := json.Unmarshal(raw, &e); err == nil && e.Code != 0 {
		return apperrors.FromCode(e.Code, e.Message)
	}

	msg := fmt.Sprintf("%s responded %d", c.service, resp.StatusCode)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return apperrors.NewNotFoundError(msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.NewUnauthorizedError(msg)
	case http.StatusBadRequest:
		return apperrors.NewValidationError(msg)
	case http.StatusConflict:
		return apperrors.NewConflictError(msg)
	default:
		return apperrors.NewInternalError(msg, nil)
	}
}
