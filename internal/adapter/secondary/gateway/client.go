package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/cashflow/pix-gateway/internal/core"
)

// ClientConfig contains configuration for a gateway REST client
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	MaxRetries     int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
	// Transport replaces the default round tripper, e.g. for tracing
	Transport http.RoundTripper
}

// Config is everything one gateway adapter needs
type Config struct {
	Client        ClientConfig
	WebhookSecret string
	// WebhookUserID is the account id SuperPayBR sends in the userid header
	WebhookUserID string
	// ConfirmationTTL expires stored confirmations, zero keeps them forever
	ConfirmationTTL time.Duration
}

// APIError represents a non-2xx answer from a gateway API
type APIError struct {
	Gateway    core.Gateway
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Gateway, e.StatusCode, e.Message)
}

// client handles communication with a gateway API
type client struct {
	gateway core.Gateway
	rest    *resty.Client
	logger  *zap.Logger
}

func newClient(g core.Gateway, cfg ClientConfig, logger *zap.Logger) *client {
	// Set defaults if not specified
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryDelay).
		SetRetryMaxWaitTime(cfg.RetryDelay * time.Duration(cfg.MaxRetries)).
		// 4xx answers are final, only transport errors and 5xx are retried
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.Transport != nil {
		rest.SetTransport(cfg.Transport)
	}

	return &client{
		gateway: g,
		rest:    rest,
		logger:  logger.With(zap.String("gateway", string(g))),
	}
}

// post sends body as JSON and decodes a 2xx answer into out
func (c *client) post(ctx context.Context, path string, body, out any, auth func(*resty.Request)) error {
	req := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(out)
	if auth != nil {
		auth(req)
	}

	c.logger.Debug("sending gateway request", zap.String("path", path))

	resp, err := req.Post(path)
	if err != nil {
		c.logger.Error("gateway request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%s request failed: %w", c.gateway, err)
	}
	if resp.IsError() {
		apiErr := &APIError{
			Gateway:    c.gateway,
			StatusCode: resp.StatusCode(),
			Message:    string(resp.Body()),
		}
		c.logger.Error("gateway returned error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode()),
			zap.Duration("elapsed", resp.Time()),
		)
		return apiErr
	}
	return nil
}
