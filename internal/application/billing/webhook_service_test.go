package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/billing"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test_secret"

// MockInvoiceRepository is a mock implementation of billing.InvoiceRepository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Create(ctx context.Context, inv *billing.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, inv *billing.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceRepository) FindByProviderInvoiceID(ctx context.Context, providerInvoiceID string) (*billing.Invoice, error) {
	args := m.Called(ctx, providerInvoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindAll(ctx context.Context, tenantID *uuid.UUID, filter shared.Filter) ([]billing.Invoice, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]billing.Invoice), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceRepository) FindOverdue(ctx context.Context, asOf time.Time) ([]billing.Invoice, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

// fakeIdempotencyStore remembers keys for the lifetime of the test
type fakeIdempotencyStore struct {
	seen map[string]bool
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{seen: make(map[string]bool)}
}

func (s *fakeIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

func (s *fakeIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	return s.seen[key], nil
}

func (s *fakeIdempotencyStore) Close() error { return nil }

// signedEvent builds a Stripe event payload with a valid signature header
func signedEvent(t *testing.T, eventID, eventType string, invoice map[string]any) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(invoice)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]any{
		"id":          eventID,
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": json.RawMessage(raw)},
	})
	require.NoError(t, err)

	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, testWebhookSecret)
	header := fmt.Sprintf("t=%d,v1=%x", now.Unix(), sig)
	return payload, header
}

func newWebhookService(invoices *MockInvoiceRepository, ledger *MockLedgerRepository) *WebhookService {
	ledgerService := NewLedgerService(ledger, &fakeTxManager{}, zap.NewNop())
	return NewWebhookService(testWebhookSecret, invoices, ledgerService, newFakeIdempotencyStore(), nil, zap.NewNop())
}

func TestWebhookService_InvalidSignature(t *testing.T) {
	invoices := new(MockInvoiceRepository)
	svc := newWebhookService(invoices, new(MockLedgerRepository))

	_, err := svc.ProcessWebhook(context.Background(), []byte(`{"id":"evt_1"}`), "t=1,v1=deadbeef")

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_SIGNATURE", domainErr.Code)
	invoices.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestWebhookService_DuplicateEventSkipped(t *testing.T) {
	invoices := new(MockInvoiceRepository)
	svc := newWebhookService(invoices, new(MockLedgerRepository))

	payload, header := signedEvent(t, "evt_dup", "invoice.created", map[string]any{
		"id": "in_1", "amount_due": 5000, "currency": "brl", "status": "open",
	})

	invoices.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	first, err := svc.ProcessWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.True(t, first.Processed)

	second, err := svc.ProcessWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.False(t, second.Processed)
	assert.Equal(t, "Duplicate event", second.Message)
	invoices.AssertNumberOfCalls(t, "Create", 1)
}

func TestWebhookService_FailedDeliveryIsRetriable(t *testing.T) {
	invoices := new(MockInvoiceRepository)
	svc := newWebhookService(invoices, new(MockLedgerRepository))

	payload, header := signedEvent(t, "evt_retry", "invoice.created", map[string]any{
		"id": "in_9", "amount_due": 5000, "currency": "brl", "status": "open",
	})

	// First delivery hits a database outage; the event id must not be
	// remembered, or Stripe's retry of the same event would be dropped
	// as a duplicate and the invoice never mirrored.
	invoices.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()
	invoices.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := svc.ProcessWebhook(context.Background(), payload, header)
	require.Error(t, err)

	retry, err := svc.ProcessWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.True(t, retry.Processed)
	invoices.AssertNumberOfCalls(t, "Create", 2)
}

func TestWebhookService_InvoiceCreated(t *testing.T) {
	tenantID := uuid.New()

	t.Run("mirrors the invoice", func(t *testing.T) {
		invoices := new(MockInvoiceRepository)
		svc := newWebhookService(invoices, new(MockLedgerRepository))

		var created *billing.Invoice
		invoices.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			created = args.Get(1).(*billing.Invoice)
		}).Return(nil)

		payload, header := signedEvent(t, "evt_1", "invoice.created", map[string]any{
			"id": "in_42", "amount_due": 9900, "currency": "brl", "status": "open",
			"metadata": map[string]string{"tenant_id": tenantID.String()},
		})

		result, err := svc.ProcessWebhook(context.Background(), payload, header)
		require.NoError(t, err)
		assert.True(t, result.Processed)
		require.NotNil(t, created)
		assert.Equal(t, "in_42", created.ProviderInvoiceID)
		assert.Equal(t, int64(9900), created.AmountCents)
		assert.Equal(t, "BRL", created.Currency)
		require.NotNil(t, created.TenantID)
		assert.Equal(t, tenantID, *created.TenantID)
	})

	t.Run("re-delivered created event is a no-op", func(t *testing.T) {
		invoices := new(MockInvoiceRepository)
		svc := newWebhookService(invoices, new(MockLedgerRepository))

		invoices.On("Create", mock.Anything, mock.Anything).Return(shared.ErrAlreadyExists)

		payload, header := signedEvent(t, "evt_2", "invoice.finalized", map[string]any{
			"id": "in_42", "amount_due": 9900, "currency": "brl", "status": "open",
		})

		result, err := svc.ProcessWebhook(context.Background(), payload, header)
		require.NoError(t, err)
		assert.True(t, result.Processed)
	})
}

func TestWebhookService_InvoicePaid(t *testing.T) {
	tenantID := uuid.New()

	cashRevenueExpectations := func(ledger *MockLedgerRepository) {
		cash, _ := billing.NewLedgerAccount(billing.AccountCodeCash, "Cash", billing.AccountTypeAsset)
		revenue, _ := billing.NewLedgerAccount(billing.AccountCodeRevenue, "Platform Revenue", billing.AccountTypeRevenue)
		ledger.On("EnsureAccount", mock.Anything, billing.AccountCodeCash, mock.Anything, billing.AccountTypeAsset).Return(cash, nil)
		ledger.On("EnsureAccount", mock.Anything, billing.AccountCodeRevenue, mock.Anything, billing.AccountTypeRevenue).Return(revenue, nil)
	}

	t.Run("known invoice marked paid and posted", func(t *testing.T) {
		invoices := new(MockInvoiceRepository)
		ledger := new(MockLedgerRepository)
		svc := newWebhookService(invoices, ledger)

		existing, err := billing.NewInvoice("in_500", &tenantID, 5000, "BRL", billing.InvoiceStatusOpen)
		require.NoError(t, err)

		invoices.On("FindByProviderInvoiceID", mock.Anything, "in_500").Return(existing, nil)
		invoices.On("Save", mock.Anything, existing).Return(nil)
		ledger.On("ExistsByReference", mock.Anything, "in_500").Return(false, nil)
		cashRevenueExpectations(ledger)
		var posted []billing.LedgerEntry
		ledger.On("CreateEntries", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			posted = args.Get(2).([]billing.LedgerEntry)
		}).Return(nil)

		payload, header := signedEvent(t, "evt_3", "invoice.paid", map[string]any{
			"id": "in_500", "amount_paid": 5000, "currency": "brl", "status": "paid",
		})

		result, err := svc.ProcessWebhook(context.Background(), payload, header)
		require.NoError(t, err)
		assert.True(t, result.Processed)
		assert.True(t, existing.IsPaid())
		require.Len(t, posted, 2)
		assert.Equal(t, int64(0), billing.BalanceEntries(posted))
	})

	t.Run("paid before created falls back to event payload", func(t *testing.T) {
		invoices := new(MockInvoiceRepository)
		ledger := new(MockLedgerRepository)
		svc := newWebhookService(invoices, ledger)

		invoices.On("FindByProviderInvoiceID", mock.Anything, "in_600").Return(nil, shared.ErrNotFound)
		var created *billing.Invoice
		invoices.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			created = args.Get(1).(*billing.Invoice)
		}).Return(nil)
		invoices.On("Save", mock.Anything, mock.Anything).Return(nil)
		ledger.On("ExistsByReference", mock.Anything, "in_600").Return(false, nil)
		cashRevenueExpectations(ledger)
		ledger.On("CreateEntries", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		payload, header := signedEvent(t, "evt_4", "invoice.paid", map[string]any{
			"id": "in_600", "amount_paid": 7500, "currency": "usd", "status": "paid",
			"metadata": map[string]string{"tenant_id": tenantID.String()},
		})

		result, err := svc.ProcessWebhook(context.Background(), payload, header)
		require.NoError(t, err)
		assert.True(t, result.Processed)
		require.NotNil(t, created)
		assert.Equal(t, int64(7500), created.AmountCents)
		assert.Equal(t, "USD", created.Currency)
	})

	t.Run("replayed paid event posts nothing new", func(t *testing.T) {
		invoices := new(MockInvoiceRepository)
		ledger := new(MockLedgerRepository)
		svc := newWebhookService(invoices, ledger)

		paid, err := billing.NewInvoice("in_700", &tenantID, 5000, "BRL", billing.InvoiceStatusOpen)
		require.NoError(t, err)
		require.True(t, paid.MarkPaid(time.Now()))

		invoices.On("FindByProviderInvoiceID", mock.Anything, "in_700").Return(paid, nil)
		ledger.On("ExistsByReference", mock.Anything, "in_700").Return(true, nil)

		// Same payload, different Stripe event id: event dedupe does not
		// catch it, the invoice-level checks must.
		payload, header := signedEvent(t, "evt_5b", "invoice.paid", map[string]any{
			"id": "in_700", "amount_paid": 5000, "currency": "brl", "status": "paid",
		})

		result, err := svc.ProcessWebhook(context.Background(), payload, header)
		require.NoError(t, err)
		assert.True(t, result.Processed)
		invoices.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		ledger.AssertNotCalled(t, "CreateEntries", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestWebhookService_UnknownEventIgnored(t *testing.T) {
	invoices := new(MockInvoiceRepository)
	svc := newWebhookService(invoices, new(MockLedgerRepository))

	payload, header := signedEvent(t, "evt_6", "customer.subscription.updated", map[string]any{
		"id": "sub_1",
	})

	result, err := svc.ProcessWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.False(t, result.Processed)
	assert.Equal(t, "Event type not handled", result.Message)
	invoices.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
