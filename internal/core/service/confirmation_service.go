package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cashflow/pix-gateway/internal/core"
	"github.com/cashflow/pix-gateway/internal/port/input"
	"github.com/cashflow/pix-gateway/internal/port/output"
)

const defaultRecentEvents = 20

// ConfirmationServiceImpl implements the ConfirmationService input port
type ConfirmationServiceImpl struct {
	store     output.ConfirmationStore
	events    output.EventLog
	publisher output.ConfirmationPublisher
	gateways  map[core.Gateway]output.GatewayAdapter
	policy    core.UnknownStatusPolicy
	logger    *zap.Logger
	now       func() time.Time
}

// Option customizes a ConfirmationServiceImpl
type Option func(*ConfirmationServiceImpl)

// WithClock overrides the time source used to stamp confirmations
func WithClock(now func() time.Time) Option {
	return func(s *ConfirmationServiceImpl) { s.now = now }
}

// WithUnknownStatusPolicy sets how unmapped gateway status codes are handled
func WithUnknownStatusPolicy(p core.UnknownStatusPolicy) Option {
	return func(s *ConfirmationServiceImpl) { s.policy = p }
}

// NewConfirmationService creates a new confirmation service
func NewConfirmationService(
	store output.ConfirmationStore,
	events output.EventLog,
	publisher output.ConfirmationPublisher,
	adapters []output.GatewayAdapter,
	logger *zap.Logger,
	opts ...Option,
) input.ConfirmationService {
	s := &ConfirmationServiceImpl{
		store:     store,
		events:    events,
		publisher: publisher,
		gateways:  make(map[core.Gateway]output.GatewayAdapter, len(adapters)),
		policy:    core.UnknownStatusReject,
		logger:    logger,
		now:       time.Now,
	}
	for _, a := range adapters {
		s.gateways[a.Gateway()] = a
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ConfirmationServiceImpl) adapter(g core.Gateway) (output.GatewayAdapter, error) {
	a, ok := s.gateways[g]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownGateway, g)
	}
	return a, nil
}

// Ingest authenticates, parses and stores a gateway webhook
func (s *ConfirmationServiceImpl) Ingest(ctx context.Context, gateway core.Gateway, headers http.Header, body []byte) (*core.PaymentConfirmation, error) {
	adapter, err := s.adapter(gateway)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(zap.String("gateway", string(gateway)))

	if err := adapter.Authenticate(headers, body); err != nil {
		log.Warn("rejected webhook", zap.Error(err))
		return nil, err
	}

	n, err := adapter.ParseWebhook(body)
	if err != nil {
		return nil, err
	}
	if n.ExternalID == "" && n.InvoiceID == "" {
		return nil, core.ErrMissingIdentifier
	}

	info, err := adapter.StatusTable().Resolve(n.StatusCode, s.policy)
	if err != nil {
		log.Warn("unmapped status code",
			zap.Int("status_code", n.StatusCode),
			zap.String("external_id", n.ExternalID),
		)
		return nil, err
	}

	now := s.now()
	c := core.NewConfirmation(n, info, now, adapter.ConfirmationTTL())
	if err := s.store.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save confirmation: %w", err)
	}

	log = log.With(
		zap.String("external_id", c.ExternalID),
		zap.String("invoice_id", c.InvoiceID),
		zap.Int("status_code", c.StatusCode),
	)

	if err := s.events.Append(ctx, core.NewWebhookEvent(n.EventType, c)); err != nil {
		log.Warn("failed to append webhook event", zap.Error(err))
	}

	// The confirmation is already stored, a broker outage must not fail the webhook
	if evt, ok := core.NewConfirmationEvent(c, now); ok {
		if err := s.publisher.PublishConfirmation(ctx, evt); err != nil {
			log.Error("failed to publish confirmation", zap.Error(err))
		}
	}

	log.Info("webhook ingested",
		zap.String("status", c.StatusName),
		zap.String("outcome", string(c.Outcome())),
	)
	return c, nil
}

// Get retrieves a confirmation by any of its identifiers
func (s *ConfirmationServiceImpl) Get(ctx context.Context, identifier string) (*core.PaymentConfirmation, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, core.ErrMissingIdentifier
	}
	c, err := s.store.Get(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to get confirmation: %w", err)
	}
	return c, nil
}

// List returns all confirmations, newest first
func (s *ConfirmationServiceImpl) List(ctx context.Context) ([]core.PaymentConfirmation, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmations: %w", err)
	}
	return list, nil
}

// RecentEvents returns the latest webhook events
func (s *ConfirmationServiceImpl) RecentEvents(ctx context.Context, limit int) ([]core.WebhookEvent, error) {
	if limit <= 0 {
		limit = defaultRecentEvents
	}
	limit = min(limit, output.MaxRecentEvents)
	events, err := s.events.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook events: %w", err)
	}
	return events, nil
}

// CreateInvoice creates a PIX charge on the requested gateway
func (s *ConfirmationServiceImpl) CreateInvoice(ctx context.Context, req core.CreateInvoiceRequest) (*core.Invoice, error) {
	if !req.Amount.IsPositive() {
		return nil, core.ErrInvalidAmount
	}
	adapter, err := s.adapter(req.Gateway)
	if err != nil {
		return nil, err
	}

	req.ExternalID = strings.TrimSpace(req.ExternalID)
	if req.ExternalID == "" {
		req.ExternalID = uuid.NewString()
	}

	invoice, err := adapter.CreateInvoice(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	s.logger.Info("invoice created",
		zap.String("gateway", string(req.Gateway)),
		zap.String("external_id", invoice.ExternalID),
		zap.String("invoice_id", invoice.InvoiceID),
	)
	return invoice, nil
}
