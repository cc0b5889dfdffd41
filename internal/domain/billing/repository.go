package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/shared"
	"gorm.io/gorm"
)

// InvoiceRepository persists invoices keyed by provider invoice ID
type InvoiceRepository interface {
	// Create inserts an invoice; duplicate provider invoice IDs surface
	// shared.ErrAlreadyExists so webhook re-delivery can no-op.
	Create(ctx context.Context, inv *Invoice) error
	Save(ctx context.Context, inv *Invoice) error
	FindByProviderInvoiceID(ctx context.Context, providerInvoiceID string) (*Invoice, error)
	FindAll(ctx context.Context, tenantID *uuid.UUID, filter shared.Filter) ([]Invoice, int64, error)
	// FindOverdue returns open invoices whose due date has passed as of
	// the given instant, oldest first
	FindOverdue(ctx context.Context, asOf time.Time) ([]Invoice, error)
}

// LedgerRepository persists accounts and entries. Account codes carry a
// uniqueness constraint; EnsureAccount loses the creation race gracefully
// by re-reading the winner's row.
type LedgerRepository interface {
	EnsureAccount(ctx context.Context, code, name string, accountType AccountType) (*LedgerAccount, error)
	FindAccountByCode(ctx context.Context, code string) (*LedgerAccount, error)
	// CreateEntries inserts a matched set atomically inside tx
	CreateEntries(ctx context.Context, tx *gorm.DB, entries []LedgerEntry) error
	FindEntriesByReference(ctx context.Context, reference string) ([]LedgerEntry, error)
	ExistsByReference(ctx context.Context, reference string) (bool, error)
	SumByAccount(ctx context.Context) (map[string]int64, error)
}
