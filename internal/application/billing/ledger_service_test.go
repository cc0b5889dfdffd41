package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/billing"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MockLedgerRepository is a mock implementation of billing.LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) EnsureAccount(ctx context.Context, code, name string, accountType billing.AccountType) (*billing.LedgerAccount, error) {
	args := m.Called(ctx, code, name, accountType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.LedgerAccount), args.Error(1)
}

func (m *MockLedgerRepository) FindAccountByCode(ctx context.Context, code string) (*billing.LedgerAccount, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.LedgerAccount), args.Error(1)
}

func (m *MockLedgerRepository) CreateEntries(ctx context.Context, tx *gorm.DB, entries []billing.LedgerEntry) error {
	args := m.Called(ctx, tx, entries)
	return args.Error(0)
}

func (m *MockLedgerRepository) FindEntriesByReference(ctx context.Context, reference string) ([]billing.LedgerEntry, error) {
	args := m.Called(ctx, reference)
	return args.Get(0).([]billing.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	args := m.Called(ctx, reference)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerRepository) SumByAccount(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]int64), args.Error(1)
}

// fakeTxManager runs the function directly; transaction boundaries are
// covered by the repository tests.
type fakeTxManager struct {
	err error
}

func (f *fakeTxManager) Transaction(fn func(tx *gorm.DB) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

func testAccount(t *testing.T, code, name string, accountType billing.AccountType) *billing.LedgerAccount {
	t.Helper()
	account, err := billing.NewLedgerAccount(code, name, accountType)
	require.NoError(t, err)
	return account
}

func TestLedgerService_PostInvoicePayment(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("posts a balanced pair", func(t *testing.T) {
		repo := new(MockLedgerRepository)
		cash := testAccount(t, billing.AccountCodeCash, "Cash", billing.AccountTypeAsset)
		revenue := testAccount(t, billing.AccountCodeRevenue, "Platform Revenue", billing.AccountTypeRevenue)

		repo.On("ExistsByReference", ctx, "in_123").Return(false, nil)
		repo.On("EnsureAccount", ctx, billing.AccountCodeCash, "Cash", billing.AccountTypeAsset).Return(cash, nil)
		repo.On("EnsureAccount", ctx, billing.AccountCodeRevenue, "Platform Revenue", billing.AccountTypeRevenue).Return(revenue, nil)
		var posted []billing.LedgerEntry
		repo.On("CreateEntries", ctx, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			posted = args.Get(2).([]billing.LedgerEntry)
		}).Return(nil)

		svc := NewLedgerService(repo, &fakeTxManager{}, zap.NewNop())
		inserted, err := svc.PostInvoicePayment(ctx, &tenantID, 5000, "in_123")

		require.NoError(t, err)
		assert.True(t, inserted)
		require.Len(t, posted, 2)
		assert.Equal(t, int64(0), billing.BalanceEntries(posted))
		assert.Equal(t, cash.ID, posted[0].AccountID)
		assert.Equal(t, int64(5000), posted[0].AmountCents)
		assert.Equal(t, revenue.ID, posted[1].AccountID)
		assert.Equal(t, int64(-5000), posted[1].AmountCents)
	})

	t.Run("existing reference skips without touching accounts", func(t *testing.T) {
		repo := new(MockLedgerRepository)
		repo.On("ExistsByReference", ctx, "in_123").Return(true, nil)

		svc := NewLedgerService(repo, &fakeTxManager{}, zap.NewNop())
		inserted, err := svc.PostInvoicePayment(ctx, &tenantID, 5000, "in_123")

		require.NoError(t, err)
		assert.False(t, inserted)
		repo.AssertNotCalled(t, "EnsureAccount", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "CreateEntries", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("transaction failure surfaces", func(t *testing.T) {
		repo := new(MockLedgerRepository)
		cash := testAccount(t, billing.AccountCodeCash, "Cash", billing.AccountTypeAsset)
		revenue := testAccount(t, billing.AccountCodeRevenue, "Platform Revenue", billing.AccountTypeRevenue)

		repo.On("ExistsByReference", ctx, "in_124").Return(false, nil)
		repo.On("EnsureAccount", ctx, mock.Anything, mock.Anything, billing.AccountTypeAsset).Return(cash, nil)
		repo.On("EnsureAccount", ctx, mock.Anything, mock.Anything, billing.AccountTypeRevenue).Return(revenue, nil)

		svc := NewLedgerService(repo, &fakeTxManager{err: errors.New("connection reset")}, zap.NewNop())
		_, err := svc.PostInvoicePayment(ctx, &tenantID, 5000, "in_124")

		assert.Error(t, err)
	})

	t.Run("zero amount is a posted no-op", func(t *testing.T) {
		// Trial and fully-discounted invoices settle at zero; the
		// delivery must be acknowledged without any ledger movement.
		repo := new(MockLedgerRepository)

		svc := NewLedgerService(repo, &fakeTxManager{}, zap.NewNop())
		inserted, err := svc.PostInvoicePayment(ctx, &tenantID, 0, "in_125")

		require.NoError(t, err)
		assert.False(t, inserted)
		repo.AssertNotCalled(t, "ExistsByReference", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "CreateEntries", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		repo := new(MockLedgerRepository)
		cash := testAccount(t, billing.AccountCodeCash, "Cash", billing.AccountTypeAsset)
		revenue := testAccount(t, billing.AccountCodeRevenue, "Platform Revenue", billing.AccountTypeRevenue)

		repo.On("ExistsByReference", ctx, "in_126").Return(false, nil)
		repo.On("EnsureAccount", ctx, mock.Anything, mock.Anything, billing.AccountTypeAsset).Return(cash, nil)
		repo.On("EnsureAccount", ctx, mock.Anything, mock.Anything, billing.AccountTypeRevenue).Return(revenue, nil)

		svc := NewLedgerService(repo, &fakeTxManager{}, zap.NewNop())
		_, err := svc.PostInvoicePayment(ctx, &tenantID, -100, "in_126")

		assert.Error(t, err)
		repo.AssertNotCalled(t, "CreateEntries", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("concurrent posting race loser settles quietly", func(t *testing.T) {
		// Two distinct events for the same invoice can pass the
		// existence check together; the unique reference index makes
		// the second insert fail, which is not an error for the caller.
		repo := new(MockLedgerRepository)
		cash := testAccount(t, billing.AccountCodeCash, "Cash", billing.AccountTypeAsset)
		revenue := testAccount(t, billing.AccountCodeRevenue, "Platform Revenue", billing.AccountTypeRevenue)

		repo.On("ExistsByReference", ctx, "in_127").Return(false, nil)
		repo.On("EnsureAccount", ctx, mock.Anything, mock.Anything, billing.AccountTypeAsset).Return(cash, nil)
		repo.On("EnsureAccount", ctx, mock.Anything, mock.Anything, billing.AccountTypeRevenue).Return(revenue, nil)
		repo.On("CreateEntries", ctx, mock.Anything, mock.Anything).Return(shared.ErrAlreadyExists)

		svc := NewLedgerService(repo, &fakeTxManager{}, zap.NewNop())
		inserted, err := svc.PostInvoicePayment(ctx, &tenantID, 5000, "in_127")

		require.NoError(t, err)
		assert.False(t, inserted)
	})
}

func TestLedgerService_TrialBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("balanced ledger", func(t *testing.T) {
		repo := new(MockLedgerRepository)
		repo.On("SumByAccount", ctx).Return(map[string]int64{
			billing.AccountCodeCash:    12500,
			billing.AccountCodeRevenue: -12500,
		}, nil)

		svc := NewLedgerService(repo, &fakeTxManager{}, zap.NewNop())
		result, err := svc.TrialBalance(ctx)

		require.NoError(t, err)
		assert.True(t, result.Balanced)
		assert.True(t, result.Total.IsZero())
		require.Len(t, result.Accounts, 2)
		assert.Equal(t, billing.AccountCodeCash, result.Accounts[0].Code)
		assert.True(t, result.Accounts[0].Balance.Equal(decimal.NewFromFloat(125.00)))
	})

	t.Run("unbalanced ledger flagged", func(t *testing.T) {
		repo := new(MockLedgerRepository)
		repo.On("SumByAccount", ctx).Return(map[string]int64{
			billing.AccountCodeCash:    5000,
			billing.AccountCodeRevenue: -4000,
		}, nil)

		svc := NewLedgerService(repo, &fakeTxManager{}, zap.NewNop())
		result, err := svc.TrialBalance(ctx)

		require.NoError(t, err)
		assert.False(t, result.Balanced)
		assert.True(t, result.Total.Equal(decimal.NewFromFloat(10.00)))
	})
}
