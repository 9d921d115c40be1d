package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cashflow/pix-gateway/internal/adapter/secondary/memory"
	"github.com/cashflow/pix-gateway/internal/core"
	"github.com/cashflow/pix-gateway/internal/core/service"
	"github.com/cashflow/pix-gateway/internal/port/input"
	"github.com/cashflow/pix-gateway/internal/port/output"
)

type fakeAdapter struct {
	gateway     core.Gateway
	ttl         time.Duration
	authErr     error
	invoiceErr  error
	lastInvoice core.CreateInvoiceRequest
}

func (f *fakeAdapter) Gateway() core.Gateway                  { return f.gateway }
func (f *fakeAdapter) StatusTable() core.StatusTable          { return core.SuperPayStatusTable() }
func (f *fakeAdapter) ConfirmationTTL() time.Duration         { return f.ttl }
func (f *fakeAdapter) Authenticate(http.Header, []byte) error { return f.authErr }

func (f *fakeAdapter) ParseWebhook(body []byte) (*core.WebhookNotification, error) {
	var p struct {
		ExternalID string `json:"external_id"`
		InvoiceID  string `json:"invoice_id"`
		Status     int    `json:"status"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, core.ErrInvalidPayload
	}
	return &core.WebhookNotification{
		Gateway:    f.gateway,
		EventType:  "invoice.update",
		ExternalID: p.ExternalID,
		InvoiceID:  p.InvoiceID,
		StatusCode: p.Status,
		Amount:     decimal.NewFromInt(10),
		Raw:        body,
	}, nil
}

func (f *fakeAdapter) CreateInvoice(_ context.Context, req core.CreateInvoiceRequest) (*core.Invoice, error) {
	f.lastInvoice = req
	if f.invoiceErr != nil {
		return nil, f.invoiceErr
	}
	return &core.Invoice{Gateway: f.gateway, ExternalID: req.ExternalID, InvoiceID: "inv-1", PixCode: "000201"}, nil
}

type fakePublisher struct {
	published []core.ConfirmationEvent
	err       error
}

func (f *fakePublisher) PublishConfirmation(_ context.Context, evt core.ConfirmationEvent) error {
	f.published = append(f.published, evt)
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

type fixture struct {
	svc     input.ConfirmationService
	store   *memory.Store
	pub     *fakePublisher
	adapter *fakeAdapter
}

func newFixture(opts ...service.Option) *fixture {
	f := &fixture{
		store:   memory.NewStore(),
		pub:     &fakePublisher{},
		adapter: &fakeAdapter{gateway: core.GatewaySuperPay},
	}
	f.svc = service.NewConfirmationService(f.store, f.store, f.pub, []output.GatewayAdapter{f.adapter}, zap.NewNop(), opts...)
	return f
}

func ingest(f *fixture, body string) (*core.PaymentConfirmation, error) {
	return f.svc.Ingest(context.Background(), core.GatewaySuperPay, http.Header{}, []byte(body))
}

func TestIngest_PendingStoresConfirmationAndEvent(t *testing.T) {
	f := newFixture()

	c, err := ingest(f, `{"external_id":"ext-1","invoice_id":"9","status":1}`)
	require.NoError(t, err)
	assert.False(t, c.IsTerminal())
	assert.Empty(t, f.pub.published)

	got, err := f.svc.Get(context.Background(), "9")
	require.NoError(t, err)
	assert.Equal(t, "ext-1", got.ExternalID)

	events, err := f.svc.RecentEvents(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, core.OutcomePending, events[0].Outcome)
	assert.Equal(t, "invoice.update", events[0].EventType)
}

func TestIngest_TerminalPublishesEvent(t *testing.T) {
	f := newFixture()

	_, err := ingest(f, `{"external_id":"ext-1","status":1}`)
	require.NoError(t, err)
	c, err := ingest(f, `{"external_id":"ext-1","status":5}`)
	require.NoError(t, err)

	assert.True(t, c.IsPaid)
	require.Len(t, f.pub.published, 1)
	assert.Equal(t, "PaymentPaid", f.pub.published[0].EventType)
	assert.Equal(t, "ext-1", f.pub.published[0].ExternalID)

	list, err := f.svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestIngest_PublishFailureDoesNotFailWebhook(t *testing.T) {
	f := newFixture()
	f.pub.err = errors.New("broker down")

	c, err := ingest(f, `{"external_id":"ext-1","status":12}`)
	require.NoError(t, err)
	assert.True(t, c.IsDenied)
}

func TestIngest_UnknownStatus(t *testing.T) {
	f := newFixture()
	_, err := ingest(f, `{"external_id":"ext-1","status":99}`)
	assert.ErrorIs(t, err, core.ErrUnknownStatus)

	_, err = f.svc.Get(context.Background(), "ext-1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	lenient := newFixture(service.WithUnknownStatusPolicy(core.UnknownStatusPending))
	c, err := ingest(lenient, `{"external_id":"ext-1","status":99}`)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomePending, c.Outcome())
}

func TestIngest_Rejections(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Ingest(context.Background(), core.GatewayTryploPay, http.Header{}, []byte(`{}`))
	assert.ErrorIs(t, err, core.ErrUnknownGateway)

	_, err = ingest(f, `not json`)
	assert.ErrorIs(t, err, core.ErrInvalidPayload)

	_, err = ingest(f, `{"status":1}`)
	assert.ErrorIs(t, err, core.ErrMissingIdentifier)

	f.adapter.authErr = core.ErrUnauthorized
	_, err = ingest(f, `{"external_id":"ext-1","status":1}`)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestIngest_AppliesGatewayTTL(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f := newFixture(service.WithClock(func() time.Time { return now }))
	f.adapter.ttl = 15 * time.Minute

	c, err := ingest(f, `{"external_id":"ext-1","status":5}`)
	require.NoError(t, err)
	require.NotNil(t, c.ExpiresAt)
	assert.Equal(t, now.Add(15*time.Minute), *c.ExpiresAt)
	assert.Equal(t, now, c.ReceivedAt)
}

func TestGet_RequiresIdentifier(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Get(context.Background(), "  ")
	assert.ErrorIs(t, err, core.ErrMissingIdentifier)
}

func TestCreateInvoice(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateInvoice(ctx, core.CreateInvoiceRequest{Gateway: core.GatewaySuperPay, Amount: decimal.Zero})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = f.svc.CreateInvoice(ctx, core.CreateInvoiceRequest{Gateway: core.GatewaySuperPayBR, Amount: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, core.ErrUnknownGateway)

	inv, err := f.svc.CreateInvoice(ctx, core.CreateInvoiceRequest{Gateway: core.GatewaySuperPay, Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	assert.NotEmpty(t, inv.ExternalID)
	assert.Equal(t, inv.ExternalID, f.adapter.lastInvoice.ExternalID)

	f.adapter.invoiceErr = errors.New("upstream down")
	_, err = f.svc.CreateInvoice(ctx, core.CreateInvoiceRequest{Gateway: core.GatewaySuperPay, ExternalID: "ext-9", Amount: decimal.NewFromInt(5)})
	assert.Error(t, err)
}
