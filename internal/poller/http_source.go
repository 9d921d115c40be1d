package poller

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/cashflow/pix-gateway/internal/core"
)

const (
	statusPath = "/api/v1/payments/status"
	eventsPath = "/api/v1/webhooks/events"
)

// HTTPSource reads confirmations from the API server
type HTTPSource struct {
	rest *resty.Client
}

var _ Source = (*HTTPSource)(nil)

// NewHTTPSource creates a source for the API at baseURL.
// transport may be nil.
func NewHTTPSource(baseURL string, timeout time.Duration, transport http.RoundTripper) *HTTPSource {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if transport != nil {
		rest.SetTransport(transport)
	}
	return &HTTPSource{rest: rest}
}

// Fetch returns core.ErrNotFound while the server has no record for identifier
func (s *HTTPSource) Fetch(ctx context.Context, identifier string) (*core.PaymentConfirmation, error) {
	var out core.PaymentConfirmation
	resp, err := s.rest.R().
		SetContext(ctx).
		SetQueryParam("externalId", identifier).
		SetResult(&out).
		Get(statusPath)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, core.ErrNotFound
	case resp.IsError():
		return nil, fmt.Errorf("status request failed with %d: %s", resp.StatusCode(), resp.String())
	}
	return &out, nil
}

// RecentEvents lists the latest webhook events seen by the server
func (s *HTTPSource) RecentEvents(ctx context.Context, limit int) ([]core.WebhookEvent, error) {
	var out []core.WebhookEvent
	req := s.rest.R().SetContext(ctx).SetResult(&out)
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}
	resp, err := req.Get(eventsPath)
	if err != nil {
		return nil, fmt.Errorf("events request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("events request failed with %d: %s", resp.StatusCode(), resp.String())
	}
	return out, nil
}
