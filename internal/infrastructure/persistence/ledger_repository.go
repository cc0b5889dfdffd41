package persistence

import (
	"context"
	"errors"

	"github.com/noro/control-plane/internal/domain/billing"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormLedgerRepository implements billing.LedgerRepository using GORM
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// EnsureAccount returns the account with the given code, creating it if
// missing. The code carries a unique index, so a concurrent creator may
// win the insert; in that case the winner's row is re-read.
func (r *GormLedgerRepository) EnsureAccount(ctx context.Context, code, name string, accountType billing.AccountType) (*billing.LedgerAccount, error) {
	account, err := r.FindAccountByCode(ctx, code)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	created, err := billing.NewLedgerAccount(code, name, accountType)
	if err != nil {
		return nil, err
	}
	var model models.LedgerAccountModel
	model.FromDomain(created)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return r.FindAccountByCode(ctx, code)
		}
		return nil, err
	}
	return created, nil
}

// FindAccountByCode finds a ledger account by its code
func (r *GormLedgerRepository) FindAccountByCode(ctx context.Context, code string) (*billing.LedgerAccount, error) {
	var model models.LedgerAccountModel
	if err := r.db.WithContext(ctx).First(&model, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// CreateEntries inserts a matched set of entries atomically inside tx.
// The caller is responsible for the set summing to zero. A unique index
// on (reference, account_id) backstops concurrent postings for the same
// reference; the loser gets shared.ErrAlreadyExists.
func (r *GormLedgerRepository) CreateEntries(ctx context.Context, tx *gorm.DB, entries []billing.LedgerEntry) error {
	if len(entries) == 0 {
		return shared.NewDomainError("INVALID_INPUT", "No ledger entries to create")
	}
	rows := make([]models.LedgerEntryModel, len(entries))
	for i := range entries {
		rows[i].FromDomain(entries[i])
	}
	if err := tx.WithContext(ctx).Create(&rows).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// FindEntriesByReference returns all entries tagged with the reference
func (r *GormLedgerRepository) FindEntriesByReference(ctx context.Context, reference string) ([]billing.LedgerEntry, error) {
	var rows []models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("reference = ?", reference).
		Order("amount_cents DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]billing.LedgerEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].ToDomain())
	}
	return entries, nil
}

// ExistsByReference reports whether any entry carries the reference
func (r *GormLedgerRepository) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}).
		Where("reference = ?", reference).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// SumByAccount returns the signed balance per account code
func (r *GormLedgerRepository) SumByAccount(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Code string
		Sum  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Table("ledger_entries").
		Select("ledger_accounts.code AS code, COALESCE(SUM(ledger_entries.amount_cents), 0) AS sum").
		Joins("JOIN ledger_accounts ON ledger_accounts.id = ledger_entries.account_id").
		Group("ledger_accounts.code").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	balances := make(map[string]int64, len(rows))
	for _, r := range rows {
		balances[r.Code] = r.Sum
	}
	return balances, nil
}
