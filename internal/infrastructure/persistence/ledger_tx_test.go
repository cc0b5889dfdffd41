package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

// Entry pairs must land atomically: both rows in one transaction, and a
// failed insert rolls the whole posting back.
func TestLedgerEntries_TransactionBoundary(t *testing.T) {
	cash := uuid.New()
	revenue := uuid.New()

	t.Run("pair inserted inside one transaction", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewGormLedgerRepository(db)

		entries, err := billing.NewInvoicePaymentEntries(cash, revenue, nil, 5000, "in_500")
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "ledger_entries"`).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		err = db.Transaction(func(tx *gorm.DB) error {
			return repo.CreateEntries(context.Background(), tx, entries)
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure rolls back", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewGormLedgerRepository(db)

		entries, err := billing.NewInvoicePaymentEntries(cash, revenue, nil, 5000, "in_501")
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "ledger_entries"`).
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		err = db.Transaction(func(tx *gorm.DB) error {
			return repo.CreateEntries(context.Background(), tx, entries)
		})
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
