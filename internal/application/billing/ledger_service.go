package billing

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/billing"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TransactionManager runs a function inside a database transaction
type TransactionManager interface {
	Transaction(fn func(tx *gorm.DB) error) error
}

// LedgerService posts balanced entry sets and answers reconciliation
// queries. Postings are idempotent per reference: the same invoice never
// produces a second pair.
type LedgerService struct {
	ledgerRepo billing.LedgerRepository
	txManager  TransactionManager
	logger     *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	ledgerRepo billing.LedgerRepository,
	txManager TransactionManager,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		ledgerRepo: ledgerRepo,
		txManager:  txManager,
		logger:     logger.Named("ledger"),
	}
}

// PostInvoicePayment records a paid invoice as a balanced cash/revenue
// pair tagged with the provider invoice ID. Returns false when entries
// for the reference already exist (webhook re-delivery).
func (s *LedgerService) PostInvoicePayment(ctx context.Context, tenantID *uuid.UUID, amountCents int64, providerInvoiceID string) (bool, error) {
	if amountCents == 0 {
		// Trial or 100%-discounted invoices settle at zero; there is
		// nothing to post and the delivery must still be acknowledged.
		s.logger.Debug("zero-amount invoice, nothing to post",
			zap.String("reference", providerInvoiceID),
		)
		return false, nil
	}

	exists, err := s.ledgerRepo.ExistsByReference(ctx, providerInvoiceID)
	if err != nil {
		return false, err
	}
	if exists {
		s.logger.Debug("ledger posting already exists, skipping",
			zap.String("reference", providerInvoiceID),
		)
		return false, nil
	}

	cash, err := s.ledgerRepo.EnsureAccount(ctx, billing.AccountCodeCash, "Cash", billing.AccountTypeAsset)
	if err != nil {
		return false, err
	}
	revenue, err := s.ledgerRepo.EnsureAccount(ctx, billing.AccountCodeRevenue, "Platform Revenue", billing.AccountTypeRevenue)
	if err != nil {
		return false, err
	}

	entries, err := billing.NewInvoicePaymentEntries(cash.ID, revenue.ID, tenantID, amountCents, providerInvoiceID)
	if err != nil {
		return false, err
	}

	if err := s.txManager.Transaction(func(tx *gorm.DB) error {
		return s.ledgerRepo.CreateEntries(ctx, tx, entries)
	}); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			// Lost a concurrent race for the same reference; the winner
			// posted the identical pair, so this delivery is settled.
			s.logger.Debug("concurrent posting won the reference, skipping",
				zap.String("reference", providerInvoiceID),
			)
			return false, nil
		}
		return false, err
	}

	s.logger.Info("invoice payment posted",
		zap.String("reference", providerInvoiceID),
		zap.Int64("amount_cents", amountCents),
	)
	return true, nil
}

// EntriesForInvoice returns the posting set tagged with a provider
// invoice ID, for reconciliation
func (s *LedgerService) EntriesForInvoice(ctx context.Context, providerInvoiceID string) ([]billing.LedgerEntry, error) {
	return s.ledgerRepo.FindEntriesByReference(ctx, providerInvoiceID)
}

// AccountBalance is one line of the trial balance
type AccountBalance struct {
	Code    string          `json:"code"`
	Balance decimal.Decimal `json:"balance"`
}

// TrialBalanceResult is the per-account sums plus the cross-ledger total,
// which is zero when every posting set balanced
type TrialBalanceResult struct {
	Accounts []AccountBalance `json:"accounts"`
	Total    decimal.Decimal  `json:"total"`
	Balanced bool             `json:"balanced"`
}

// TrialBalance sums all entries per account. The grand total across
// accounts must be zero; anything else means a broken posting set.
func (s *LedgerService) TrialBalance(ctx context.Context) (*TrialBalanceResult, error) {
	sums, err := s.ledgerRepo.SumByAccount(ctx)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(sums))
	for code := range sums {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	result := &TrialBalanceResult{Accounts: make([]AccountBalance, 0, len(sums))}
	total := decimal.Zero
	for _, code := range codes {
		balance := decimal.New(sums[code], -2)
		total = total.Add(balance)
		result.Accounts = append(result.Accounts, AccountBalance{Code: code, Balance: balance})
	}
	result.Total = total
	result.Balanced = total.IsZero()
	return result, nil
}
