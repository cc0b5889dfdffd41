package billing

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/billing"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/infrastructure/metrics"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// eventDedupeTTL is how long a processed Stripe event id is remembered.
// Stripe retries failed deliveries for up to 3 days, but replays of a
// successfully acknowledged event arrive within hours.
const eventDedupeTTL = 24 * time.Hour

// ErrInvalidSignature rejects deliveries that fail signature verification
var ErrInvalidSignature = shared.NewDomainError("INVALID_SIGNATURE", "Webhook signature verification failed")

// WebhookService ingests Stripe billing events. Events are deduplicated
// by Stripe event id, invoices are keyed by provider invoice id, and paid
// invoices are forwarded to the ledger. Delivery order is not trusted: a
// paid event may arrive before, without, or after its created event.
type WebhookService struct {
	webhookSecret    string
	invoiceRepo      billing.InvoiceRepository
	ledgerService    *LedgerService
	idempotencyStore shared.IdempotencyStore
	metrics          *metrics.Metrics
	logger           *zap.Logger
}

// NewWebhookService creates a new WebhookService. Metrics may be nil.
func NewWebhookService(
	webhookSecret string,
	invoiceRepo billing.InvoiceRepository,
	ledgerService *LedgerService,
	idempotencyStore shared.IdempotencyStore,
	m *metrics.Metrics,
	logger *zap.Logger,
) *WebhookService {
	return &WebhookService{
		webhookSecret:    webhookSecret,
		invoiceRepo:      invoiceRepo,
		ledgerService:    ledgerService,
		idempotencyStore: idempotencyStore,
		metrics:          m,
		logger:           logger.Named("webhook"),
	}
}

// WebhookResult reports what happened to a delivery
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Message   string `json:"message,omitempty"`
}

// ProcessWebhook verifies, deduplicates, and routes one Stripe delivery.
// A signature failure returns ErrInvalidSignature with no side effects;
// any other error means the delivery must be retried by the provider.
func (s *WebhookService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		s.logger.Warn("webhook signature verification failed", zap.Error(err))
		s.count("invalid_signature")
		return nil, ErrInvalidSignature
	}

	logger := s.logger.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
	)

	// Event-level dedupe: a replayed delivery of an acknowledged event is
	// a no-op before any routing happens. Only acknowledged events are in
	// the store, so a delivery that previously failed is processed again.
	seen, err := s.idempotencyStore.IsProcessed(ctx, event.ID)
	if err != nil {
		s.count("error")
		return nil, err
	}
	if seen {
		logger.Info("duplicate webhook event, skipping")
		s.count("duplicate")
		return &WebhookResult{
			EventID:   event.ID,
			EventType: string(event.Type),
			Processed: false,
			Message:   "Duplicate event",
		}, nil
	}

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: string(event.Type),
		Processed: true,
	}

	switch event.Type {
	case "invoice.created", "invoice.finalized":
		err = s.handleInvoiceUpserted(ctx, event)
	case "invoice.paid":
		err = s.handleInvoicePaid(ctx, event)
	default:
		logger.Debug("unhandled webhook event type")
		result.Processed = false
		result.Message = "Event type not handled"
		s.count("ignored")
		s.markAcknowledged(ctx, event.ID)
		return result, nil
	}

	if err != nil {
		// The event id stays unmarked: the provider retries the delivery
		// and the invoice/ledger checks absorb any partial progress.
		logger.Error("failed to process webhook event", zap.Error(err))
		s.count("error")
		result.Processed = false
		result.Message = err.Error()
		return result, err
	}

	s.markAcknowledged(ctx, event.ID)
	logger.Info("webhook event processed")
	s.count("processed")
	return result, nil
}

// markAcknowledged records an event id after successful handling. A store
// failure is only logged: reprocessing an acknowledged event is safe.
func (s *WebhookService) markAcknowledged(ctx context.Context, eventID string) {
	if _, err := s.idempotencyStore.MarkProcessed(ctx, eventID, eventDedupeTTL); err != nil {
		s.logger.Warn("failed to record acknowledged event id",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
	}
}

// handleInvoiceUpserted mirrors invoice.created / invoice.finalized into
// the invoices table. A row already present (earlier delivery, or a paid
// event that arrived first) is left untouched.
func (s *WebhookService) handleInvoiceUpserted(ctx context.Context, event stripe.Event) error {
	inv, err := s.invoiceFromEvent(event)
	if err != nil {
		return err
	}

	if err := s.invoiceRepo.Create(ctx, inv); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			s.logger.Debug("invoice already mirrored",
				zap.String("provider_invoice_id", inv.ProviderInvoiceID),
			)
			return nil
		}
		return err
	}
	return nil
}

// handleInvoicePaid marks the invoice paid and posts the ledger pair.
// The whole path is idempotent: MarkPaid refuses a second transition and
// the ledger refuses a second posting for the same reference, so replays
// and out-of-order deliveries converge on the same final state.
func (s *WebhookService) handleInvoicePaid(ctx context.Context, event stripe.Event) error {
	fromEvent, err := s.invoiceFromEvent(event)
	if err != nil {
		return err
	}

	inv, err := s.invoiceRepo.FindByProviderInvoiceID(ctx, fromEvent.ProviderInvoiceID)
	if errors.Is(err, shared.ErrNotFound) {
		// Paid arrived before created: trust the event payload
		inv = fromEvent
		if createErr := s.invoiceRepo.Create(ctx, inv); createErr != nil {
			if !errors.Is(createErr, shared.ErrAlreadyExists) {
				return createErr
			}
			// Lost a concurrent race; re-read the winner's row
			inv, err = s.invoiceRepo.FindByProviderInvoiceID(ctx, fromEvent.ProviderInvoiceID)
			if err != nil {
				return err
			}
		}
	} else if err != nil {
		return err
	}

	if inv.MarkPaid(time.Now()) {
		if err := s.invoiceRepo.Save(ctx, inv); err != nil {
			return err
		}
	}

	// Posting is keyed on the provider invoice id and checks for an
	// existing set, so this is safe even when MarkPaid was a no-op but a
	// prior delivery crashed between Save and the posting.
	_, err = s.ledgerService.PostInvoicePayment(ctx, inv.TenantID, inv.AmountCents, inv.ProviderInvoiceID)
	return err
}

// invoiceFromEvent maps the Stripe invoice payload to a domain invoice
func (s *WebhookService) invoiceFromEvent(event stripe.Event) (*billing.Invoice, error) {
	var stripeInvoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &stripeInvoice); err != nil {
		return nil, shared.NewDomainError("INVALID_PAYLOAD", "Malformed invoice payload: "+err.Error())
	}

	amount := stripeInvoice.AmountDue
	if amount == 0 {
		amount = stripeInvoice.AmountPaid
	}

	currency := strings.ToUpper(string(stripeInvoice.Currency))

	var tenantID *uuid.UUID
	if raw, ok := stripeInvoice.Metadata["tenant_id"]; ok {
		if parsed, err := uuid.Parse(raw); err == nil {
			tenantID = &parsed
		} else {
			s.logger.Warn("invoice carries unparseable tenant_id metadata",
				zap.String("provider_invoice_id", stripeInvoice.ID),
				zap.String("tenant_id", raw),
			)
		}
	}

	status := billing.InvoiceStatus(stripeInvoice.Status)
	switch status {
	case billing.InvoiceStatusDraft, billing.InvoiceStatusOpen, billing.InvoiceStatusPaid,
		billing.InvoiceStatusVoid, billing.InvoiceStatusUncollectible:
	default:
		status = billing.InvoiceStatusOpen
	}

	return billing.NewInvoice(stripeInvoice.ID, tenantID, amount, currency, status)
}

// ListInvoices returns mirrored invoices, optionally scoped to a tenant
func (s *WebhookService) ListInvoices(ctx context.Context, tenantID *uuid.UUID, filter shared.Filter) ([]billing.Invoice, int64, error) {
	return s.invoiceRepo.FindAll(ctx, tenantID, filter)
}

func (s *WebhookService) count(result string) {
	if s.metrics != nil {
		s.metrics.WebhookEventsTotal.WithLabelValues(result).Inc()
	}
}
